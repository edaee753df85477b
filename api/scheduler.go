/*
scheduler.go - Periodic consistency audit

PURPOSE:
  Runs the audit in the background so that drift between waybills, blanks,
  stock and fuel cards shows up without anyone calling GET /api/audit.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Audits once immediately on start
  - Keeps only the latest report; GET /api/audit/last serves it
  - Violations are logged at warn level by the auditor itself

CONFIGURATION:
  - Interval: AUDIT_INTERVAL; zero or negative disables the scheduler

USAGE:
  scheduler := NewAuditScheduler(handler.Auditor, time.Hour, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAudit (on demand) and LastAudit
  - audit/checker.go: The rules
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/waybill-engine/audit"
)

// AuditScheduler audits the store on a fixed interval.
type AuditScheduler struct {
	Auditor  *audit.Auditor
	Interval time.Duration
	Logger   *slog.Logger

	// Now is the clock stamped on reports.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	last    AuditResponse
	hasLast bool
}

// NewAuditScheduler creates a new scheduler.
func NewAuditScheduler(auditor *audit.Auditor, interval time.Duration, logger *slog.Logger) *AuditScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditScheduler{
		Auditor:  auditor,
		Interval: interval,
		Logger:   logger,
		Now:      time.Now,
	}
}

// Start begins the scheduler. It is a no-op when the interval is not positive.
func (s *AuditScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Interval <= 0 {
		s.Logger.Info("audit scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("audit scheduler started", "interval", s.Interval)
}

// Stop stops the scheduler and waits for a running audit to finish.
func (s *AuditScheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.Logger.Info("audit scheduler stopped")
}

// Last returns the most recent report, if any audit has completed.
func (s *AuditScheduler) Last() (AuditResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

func (s *AuditScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	s.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-stop:
			return
		}
	}
}

// RunOnce audits now and records the report.
func (s *AuditScheduler) RunOnce(ctx context.Context) {
	violations, err := s.Auditor.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.Logger.Error("scheduled audit failed", "error", err)
		}
		return
	}

	report := toAuditResponse(violations)
	report.CheckedAt = s.Now().UTC().Format(time.RFC3339)

	s.mu.Lock()
	s.last = report
	s.hasLast = true
	s.mu.Unlock()
}
