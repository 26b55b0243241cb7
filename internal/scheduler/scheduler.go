// Package scheduler runs the engine's periodic jobs. Each job is guarded by
// its own lock, so a run that outlives the interval is skipped instead of
// stacking up.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	// zero means the run inherits the scheduler context without a deadline
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type Runner struct {
	wg sync.WaitGroup
}

func New() *Runner {
	return &Runner{}
}

// Add launches a job loop. The first run happens after one interval.
func (r *Runner) Add(ctx context.Context, job Job) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		var running sync.Mutex
		ticker := time.NewTicker(job.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !running.TryLock() {
					logs.Warnf("job %s still running, skipping tick", job.Name)
					continue
				}
				r.runOnce(ctx, job)
				running.Unlock()
			}
		}
	}()
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	runCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	if err := job.Run(runCtx); err != nil {
		logs.Errorf("job %s: %v", job.Name, err)
	}
}

// Wait blocks until every job loop has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}
