package migrate

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerReportsOutsideLock(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	tr := newTracker(time.Now(), time.Hour, 1, 10, time.Now, func(Progress) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	})
	tr.enqueue(2)

	go tr.recordSuccess(10)
	<-entered

	// A callback stuck in the consumer must not hold the tracker lock,
	// or every other worker would stall behind it.
	recorded := make(chan struct{})
	go func() {
		tr.recordFailure(7, errors.New("boom"))
		close(recorded)
	}()
	select {
	case <-recorded:
	case <-time.After(2 * time.Second):
		t.Fatal("recording blocked while a progress callback was running")
	}
	close(release)

	result := tr.result(time.Second)
	assert.Equal(t, int64(2), result.TotalProcessed)
	assert.Equal(t, int64(1), result.Succeeded)
	assert.Equal(t, int64(1), result.Failed)
}

func TestTrackerUsesInjectedClock(t *testing.T) {
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	current := base
	clock := func() time.Time { return current }

	var reports []Progress
	tr := newTracker(base, time.Minute, 100, 10, clock, func(p Progress) {
		reports = append(reports, p)
	})
	tr.enqueue(2)

	// Below both the batch and interval thresholds, nothing fires.
	tr.recordSuccess(5)
	require.Empty(t, reports)

	// Advancing the injected clock past the interval triggers a report
	// with elapsed time measured on that clock.
	current = base.Add(2 * time.Minute)
	tr.recordSuccess(5)
	require.Len(t, reports, 1)
	assert.Equal(t, 2*time.Minute, reports[0].Elapsed)
	assert.Equal(t, int64(2), reports[0].Processed)
}
