package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunnerRunsJobOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var runs atomic.Int32
	r := New()
	r.Add(ctx, Job{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	r.Wait()
}

func TestRunnerSkipsOverlappingTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var concurrent, peak atomic.Int32
	r := New()
	r.Add(ctx, Job{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			n := concurrent.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(30 * time.Millisecond)
			concurrent.Add(-1)
			return nil
		},
	})

	time.Sleep(150 * time.Millisecond)
	cancel()
	r.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestRunnerAppliesTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan struct{})
	r := New()
	r.Add(ctx, Job{
		Name:     "deadline",
		Interval: 5 * time.Millisecond,
		Timeout:  10 * time.Millisecond,
		Run: func(runCtx context.Context) error {
			select {
			case <-runCtx.Done():
				select {
				case done <- struct{}{}:
				default:
				}
			case <-time.After(time.Second):
			}
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job context never hit its deadline")
	}

	cancel()
	r.Wait()
}
