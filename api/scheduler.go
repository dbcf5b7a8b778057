/*
scheduler.go - Automated settlement scheduler

PURPOSE:
  Periodically settles every studio that has saved settings: unassigned
  ledger rows completed up to today are placed into the Open period of
  their pay schedule, opening scheduled periods as needed.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on Start
  - A failing studio is logged and does not stop the others
  - Interval 0 disables the scheduler

USAGE:
  scheduler := NewSettlementScheduler(store, periods, interval, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Settle endpoint (manual settlement)
  - commission/period.go: PeriodManager.Settle
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// SettlementScheduler handles automated settlement.
type SettlementScheduler struct {
	Settings commission.SettingsStore
	Periods  *commission.PeriodManager
	Interval time.Duration
	Logger   *zap.Logger

	// Now supplies the settlement date. Defaults to time.Now.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSettlementScheduler creates a new scheduler.
func NewSettlementScheduler(settings commission.SettingsStore, periods *commission.PeriodManager, interval time.Duration, logger *zap.Logger) *SettlementScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementScheduler{
		Settings: settings,
		Periods:  periods,
		Interval: interval,
		Logger:   logger.Named("scheduler"),
		Now:      time.Now,
	}
}

// Enabled reports whether Start will run anything.
func (s *SettlementScheduler) Enabled() bool { return s.Interval > 0 }

// Start begins the scheduler.
func (s *SettlementScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled() {
		s.Logger.Info("settlement scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.Logger.Info("settlement scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *SettlementScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("settlement scheduler stopped")
	}
}

func (s *SettlementScheduler) run() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stop
		cancel()
	}()

	s.RunNow(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.RunNow(ctx)
		case <-s.stop:
			return
		}
	}
}

// RunNow settles every studio with saved settings and returns the results
// of the studios that succeeded.
func (s *SettlementScheduler) RunNow(ctx context.Context) []commission.SettlementResult {
	studios, err := s.Settings.ListStudioSettings(ctx)
	if err != nil {
		s.Logger.Error("list studio settings", zap.Error(err))
		return nil
	}

	asOf := s.Now()
	results := make([]commission.SettlementResult, 0, len(studios))
	assigned := 0
	for _, st := range studios {
		if ctx.Err() != nil {
			break
		}
		res, err := s.Periods.Settle(ctx, st.StudioID, asOf)
		if err != nil {
			s.Logger.Error("settle studio", zap.String("studio_id", string(st.StudioID)), zap.Error(err))
			continue
		}
		assigned += res.Assigned
		results = append(results, res)
	}

	if assigned > 0 {
		s.Logger.Info("settlement pass completed",
			zap.Int("studios", len(results)),
			zap.Int("assigned", assigned))
	}
	return results
}
