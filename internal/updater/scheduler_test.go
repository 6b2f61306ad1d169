package updater

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
)

const shortWait = time.Second

func expectCheck(t *testing.T, checks <-chan struct{}) {
	t.Helper()
	select {
	case <-checks:
	case <-time.After(shortWait):
		t.Fatal("expected an update check")
	}
}

func expectNoCheck(t *testing.T, checks <-chan struct{}) {
	t.Helper()
	select {
	case <-checks:
		t.Fatal("unexpected update check")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_InitialDelayThenInterval(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	checks := make(chan struct{}, 4)
	s := &Scheduler{
		Clock:        clk,
		InitialDelay: 5 * time.Second,
		Interval:     24 * time.Hour,
		Check:        func(context.Context) { checks <- struct{}{} },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, clk.WaitAdvance(4*time.Second, shortWait, 1))
	expectNoCheck(t, checks)

	require.NoError(t, clk.WaitAdvance(time.Second, shortWait, 1))
	expectCheck(t, checks)

	require.NoError(t, clk.WaitAdvance(23*time.Hour, shortWait, 1))
	expectNoCheck(t, checks)

	require.NoError(t, clk.WaitAdvance(time.Hour, shortWait, 1))
	expectCheck(t, checks)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shortWait):
		t.Fatal("scheduler did not stop")
	}
}
