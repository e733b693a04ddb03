package verify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/mealplan/internal/metrics"
)

// Scheduler accepts verification jobs. The mutator depends on this, not
// on Runner.
type Scheduler interface {
	Schedule(job Job)
}

// Runner verifies scheduled jobs in the background.
//
// With one worker (the default) jobs run in the order scheduled. Close
// stops intake, runs every job already queued, and returns the joined
// VERIFICATION_FAILURE errors seen over the runner's life.
type Runner struct {
	verifier *Verifier
	queue    *jobQueue
	workers  int
	metrics  *metrics.Collector
	logger   *slog.Logger
	onResult func(Result, error)

	wg       sync.WaitGroup
	mu       sync.Mutex
	failures []error
	start    sync.Once
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the number of concurrent verifications.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithResultHook is called after every job. Used by tests and the CLI.
func WithResultHook(fn func(Result, error)) RunnerOption {
	return func(r *Runner) { r.onResult = fn }
}

// WithRunnerMetrics sets the metrics collector for queue depth.
func WithRunnerMetrics(m *metrics.Collector) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner. Call Start before scheduling work you want
// verified promptly; jobs scheduled earlier wait in the queue.
func NewRunner(v *Verifier, opts ...RunnerOption) *Runner {
	r := &Runner{
		verifier: v,
		queue:    newJobQueue(),
		workers:  1,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the workers. ctx is passed to every job; once it is done,
// queued jobs still run and publish incomplete reports.
func (r *Runner) Start(ctx context.Context) {
	r.start.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.work(ctx)
		}
	})
}

// Schedule queues job. After Close the job is logged and dropped.
func (r *Runner) Schedule(job Job) {
	if !r.queue.Enqueue(job) {
		r.logger.Error("verification job scheduled after shutdown",
			"severity", "verification_failure",
			"job_id", job.JobID,
			"plan_id", job.PlanID,
		)
		return
	}
	r.metrics.SetQueueDepth(r.queue.Len())
}

// Pending returns the number of queued jobs.
func (r *Runner) Pending() int {
	return r.queue.Len()
}

// Close stops intake, waits for queued jobs, and returns the failures.
// If Start was never called the queued jobs run on a background context.
func (r *Runner) Close() error {
	r.Start(context.Background())
	r.queue.Close()
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.failures...)
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		if job, ok := r.queue.TryDequeue(); ok {
			r.metrics.SetQueueDepth(r.queue.Len())
			r.run(ctx, job)
			continue
		}
		if r.queue.Drained() {
			return
		}
		<-r.queue.Wait()
	}
}

func (r *Runner) run(ctx context.Context, job Job) {
	res, err := r.verifier.Verify(ctx, job)
	if err != nil {
		r.mu.Lock()
		r.failures = append(r.failures, err)
		r.mu.Unlock()
	}
	if r.onResult != nil {
		r.onResult(res, err)
	}
}
