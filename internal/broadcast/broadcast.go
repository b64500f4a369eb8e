// Package broadcast implements the scheduled campaign job: pick one promo
// variant, fan it out to eligible users, and append one campaign row
// summarizing the batch.
package broadcast

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"promobot/internal/engage"
	"promobot/internal/storage"
	"promobot/internal/transport"
	logx "promobot/pkg/logx"
)

// Sender is the delivery half of the transport adapter.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// Config tunes one campaign job.
type Config struct {
	// Name labels the campaign rows (default "daily_promo").
	Name string
	// RatePerSec paces per-recipient sends so a large batch cannot trip
	// Telegram's flood limits. Default 20.
	RatePerSec int
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "daily_promo"
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 20
	}
	return c
}

type Job struct {
	cfg      Config
	store    storage.Store
	sender   Sender
	selector *engage.Selector
	limiter  *rate.Limiter
	log      logx.Logger
}

func New(store storage.Store, sender Sender, selector *engage.Selector, cfg Config, log logx.Logger) *Job {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Job{
		cfg:      cfg,
		store:    store,
		sender:   sender,
		selector: selector,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:      log.With(logx.String("campaign", cfg.Name)),
	}
}

// Run executes one campaign batch.
//
// Eligible recipients are users in stage new, returning or active; engaged
// users are skipped. A per-recipient delivery failure is logged and the batch
// continues. The appended campaign row records attempted recipients, not
// confirmed deliveries.
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	text := j.selector.PromoPitch() + "\n\n" + engage.TextPromoFooter

	ids, err := j.store.ListUsersInStages(ctx,
		storage.StageNew, storage.StageReturning, storage.StageActive)
	if err != nil {
		j.log.Error("campaign recipient query failed", logx.Err(err))
		return err
	}

	failed := 0
	for _, id := range ids {
		if err := j.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := j.sender.SendText(ctx, transport.ChatTarget{ChatID: id}, text, nil)
		if err != nil {
			failed++
			j.log.Warn("campaign send failed", logx.Int64("user_id", id), logx.Err(err))
		}
	}

	rec := storage.CampaignRecord{
		Name:           j.cfg.Name,
		MessageText:    text,
		RecipientCount: len(ids),
		SentAt:         time.Now(),
	}
	if err := j.store.AppendCampaign(ctx, rec); err != nil {
		j.log.Error("campaign log append failed", logx.Err(err))
		return err
	}

	fields := []logx.Field{
		logx.Int("recipients", len(ids)),
		logx.Int("failed", failed),
		logx.Duration("dur", time.Since(start)),
	}
	if failed > 0 {
		j.log.Warn("campaign finished with failures", fields...)
	} else {
		j.log.Info("campaign finished", fields...)
	}
	return nil
}
