// Package scheduler owns the background scan loop. All loop state lives on
// the Scheduler value handed to the process, never in package globals.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glimt-hq/friktion/internal/delivery"
)

// DueProcessor promotes elapsed scheduled assessments. Implemented by
// services.AssessmentService.
type DueProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler drives the recurring assessment scan and the once-per-day
// retention callback.
type Scheduler struct {
	processor     DueProcessor
	retention     delivery.RetentionJob
	log           *zap.Logger
	interval      time.Duration
	retentionHour int
	now           func() time.Time

	mu          sync.Mutex
	started     bool
	lastCleanup string // calendar date of the last retention run
	stop        chan struct{}
	wg          sync.WaitGroup
}

func New(processor DueProcessor, retention delivery.RetentionJob, log *zap.Logger, interval time.Duration, retentionHour int) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if retention == nil {
		retention = delivery.NoopRetention{}
	}
	return &Scheduler{
		processor:     processor,
		retention:     retention,
		log:           log,
		interval:      interval,
		retentionHour: retentionHour,
		now:           func() time.Time { return time.Now().UTC() },
		stop:          make(chan struct{}),
	}
}

// Start launches the loop goroutine. Starting twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the loop and waits for the in-flight tick to finish. No new
// iteration starts once stop has been requested.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			s.log.Info("scheduler stopped")
			return
		case <-ctx.Done():
			s.log.Info("scheduler context cancelled")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scan iteration: promote due assessments, then check whether
// the daily retention callback should fire. Exported so tests and operational
// tooling can drive the loop manually.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	sent, err := s.processor.ProcessDue(ctx, now)
	if err != nil {
		s.log.Error("due-assessment scan failed", zap.Error(err))
	} else if sent > 0 {
		s.log.Info("assessments promoted to sent", zap.Int("count", sent))
	}
	s.maybeRunRetention(ctx, now)
}

// maybeRunRetention fires the retention callback at most once per calendar
// day. The last-run marker guards against the loop's clock check overlapping
// the trigger hour more than once.
func (s *Scheduler) maybeRunRetention(ctx context.Context, now time.Time) {
	if now.Hour() < s.retentionHour {
		return
	}
	today := now.Format("2006-01-02")
	s.mu.Lock()
	if s.lastCleanup == today {
		s.mu.Unlock()
		return
	}
	s.lastCleanup = today
	s.mu.Unlock()

	if err := s.retention.Run(ctx); err != nil {
		s.log.Error("retention callback failed", zap.Error(err))
	} else {
		s.log.Info("retention callback completed", zap.String("date", today))
	}
}
