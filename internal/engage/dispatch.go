package engage

import (
	"context"
	"fmt"
	"time"

	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

// Dispatcher is the per-event façade: rate limit, resolve or create the user
// record, apply the stage transition, persist, and pick a reply.
//
// Handle never panics the caller into a dead dispatch loop: storage failures
// come back as the apology reply plus the error (for the caller to log).
type Dispatcher struct {
	store    storage.Store
	limiter  *Limiter
	selector *Selector
	adminID  int64
	log      logx.Logger

	now func() time.Time
}

func NewDispatcher(store storage.Store, limiter *Limiter, selector *Selector, adminID int64, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		store:    store,
		limiter:  limiter,
		selector: selector,
		adminID:  adminID,
		log:      log,
		now:      time.Now,
	}
}

// Handle processes one inbound event and returns the reply to deliver.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) (Reply, error) {
	// The admin report is identity-gated, not rate-limited, and touches no
	// user record.
	if ev.Kind == EventAdminReport {
		return d.adminReport(ctx, ev)
	}

	now := d.now()

	admitted, err := d.limiter.Admit(ctx, ev.UserID, now)
	if err != nil {
		return Reply{Text: TextApology}, err
	}
	if !admitted {
		return Reply{Text: TextRateLimited}, nil
	}

	rec, err := d.store.GetUser(ctx, ev.UserID)
	if err != nil {
		return Reply{Text: TextApology}, err
	}

	known := rec != nil
	if rec == nil {
		rec = &storage.UserRecord{
			UserID:      ev.UserID,
			FirstSeenAt: now,
			WindowCount: 1, // this event counts toward the window
			Stage:       storage.StageNew,
		}
		if ev.Kind != EventGreeting {
			rec.Stage = nextStage(ev.Kind, rec.Stage)
		}
	} else {
		rec.Stage = nextStage(ev.Kind, rec.Stage)
	}
	if ev.DisplayName != "" {
		rec.DisplayName = ev.DisplayName
	}
	rec.InteractionCount++
	rec.LastSeenAt = now

	if err := d.store.UpsertUser(ctx, *rec); err != nil {
		return Reply{Text: TextApology}, err
	}

	return d.reply(ev, known), nil
}

func (d *Dispatcher) reply(ev Event, known bool) Reply {
	switch ev.Kind {
	case EventGreeting:
		text := d.selector.WelcomeNew()
		if known {
			text = d.selector.WelcomeBack()
		}
		return Reply{Text: text + "\n\n" + TextAdminFollow}

	case EventPromoRequest:
		return Reply{
			Text: d.selector.PromoPitch() + "\n\nWhat would you like to do?",
			Options: []Option{
				{Label: "Learn More", Token: SelLearnMore},
				{Label: "Contact Admin", Token: SelContactAdmin},
				{Label: "View Account", Token: SelViewAccount},
			},
		}

	case EventButton:
		return Reply{Text: d.selector.ButtonReply(ev.Selection)}

	case EventFreeText:
		if text, ok := d.selector.TextReply(ev.Text); ok {
			return Reply{Text: text}
		}
		return Reply{Text: d.selector.Fallback()}
	}

	d.log.Warn("unhandled event kind", logx.String("kind", string(ev.Kind)))
	return Reply{}
}

func (d *Dispatcher) adminReport(ctx context.Context, ev Event) (Reply, error) {
	if ev.UserID != d.adminID {
		d.log.Warn("unauthorized stats request", logx.Int64("user_id", ev.UserID))
		return Reply{Text: TextUnauthorized}, nil
	}

	total, err := d.store.CountUsers(ctx)
	if err != nil {
		return Reply{Text: TextApology}, err
	}
	engaged, err := d.store.CountUsersByStage(ctx, storage.StageEngaged)
	if err != nil {
		return Reply{Text: TextApology}, err
	}
	active, err := d.store.CountUsersByStage(ctx, storage.StageActive)
	if err != nil {
		return Reply{Text: TextApology}, err
	}

	text := fmt.Sprintf("📊 Marketing Statistics:\nTotal Users: %d\nEngaged Users: %d\nActive Users: %d",
		total, engaged, active)
	return Reply{Text: text}, nil
}
