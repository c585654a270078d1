package scheduler

import (
	"context"
	"time"

	"newsroom/internal/ports"
)

// Interval drives a recurring job on a fixed period. It backs the
// stuck-processing reconciler sweep.
type Interval struct {
	period time.Duration
	stop   chan struct{}
}

var _ ports.Scheduler = (*Interval)(nil)

// NewInterval builds a scheduler firing every period.
func NewInterval(period time.Duration) *Interval {
	return &Interval{period: period}
}

// Start begins ticking. The job also runs once immediately, so a restart
// does not wait a full period before the first sweep.
func (s *Interval) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if s.stop != nil {
		return nil
	}

	// Captured locally so Stop nilling the field cannot race the goroutine.
	stop := make(chan struct{})
	s.stop = stop
	go func() {
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (s *Interval) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}
