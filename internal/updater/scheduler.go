// ABOUTME: Periodic update check scheduling on an injectable clock
// ABOUTME: Fires once after the initial delay and then on every interval

package updater

import (
	"context"
	"time"

	"github.com/juju/clock"
)

// Scheduler calls Check after InitialDelay and then every Interval until
// its context is cancelled.
type Scheduler struct {
	Clock        clock.Clock
	InitialDelay time.Duration
	Interval     time.Duration
	Check        func(ctx context.Context)
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	clk := s.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	timer := clk.NewTimer(s.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.Chan():
			s.Check(ctx)
			timer.Reset(s.Interval)
		}
	}
}
