// Package scheduler runs the bot's timed jobs on a cron engine: the periodic
// rate-limit window reset and the daily campaign broadcast.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "promobot/pkg/logx"
)

type Config struct {
	// Timezone is an IANA TZ name (e.g. "Europe/Paris"). Empty means local.
	Timezone string
}

type jobDef struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

// Service owns a cron runner. Register jobs first, then Start.
type Service struct {
	log logx.Logger
	loc *time.Location

	mu      sync.Mutex
	defs    []jobDef
	c       *cron.Cron
	runCtx  context.Context
	cancel  context.CancelFunc
	running bool
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone: %w", err)
		}
		loc = l
	}
	return &Service{log: log, loc: loc}, nil
}

// AddInterval registers a job firing every `every` on a fixed tick.
func (s *Service) AddInterval(name string, every time.Duration, job func(ctx context.Context) error) error {
	if every <= 0 {
		return fmt.Errorf("interval for %q must be positive", name)
	}
	s.addDef(jobDef{name: name, spec: "@every " + every.String(), run: job})
	return nil
}

// AddDaily registers a job firing once per day at the given "HH:MM".
func (s *Service) AddDaily(name, hhmm string, job func(ctx context.Context) error) error {
	h, m, err := parseHHMM(hhmm)
	if err != nil {
		return fmt.Errorf("daily schedule for %q: %w", name, err)
	}
	s.addDef(jobDef{name: name, spec: fmt.Sprintf("%d %d * * *", m, h), run: job})
	return nil
}

func (s *Service) addDef(def jobDef) {
	s.mu.Lock()
	s.defs = append(s.defs, def)
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithLocation(s.loc))

	runCtx := s.runCtx
	for _, def := range s.defs {
		def := def
		_, err := s.c.AddFunc(def.spec, func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in scheduled job",
						logx.String("job", def.name),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
				}
			}()
			start := time.Now()
			if err := def.run(runCtx); err != nil {
				s.log.Warn("scheduled job failed",
					logx.String("job", def.name),
					logx.Duration("dur", time.Since(start)),
					logx.Err(err),
				)
				return
			}
			s.log.Debug("scheduled job ok",
				logx.String("job", def.name),
				logx.Duration("dur", time.Since(start)),
			)
		})
		if err != nil {
			s.cancel()
			return fmt.Errorf("register job %q: %w", def.name, err)
		}
	}

	s.c.Start()
	s.running = true
	s.log.Info("scheduler started",
		logx.Int("jobs", len(s.defs)),
		logx.String("tz", s.loc.String()),
	)
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// stop continues in background
	}
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", s)
	}
	return hour, minute, nil
}
