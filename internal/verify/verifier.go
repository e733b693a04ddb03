package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/mealplan/internal/metrics"
	"github.com/roach88/mealplan/internal/plan"
	"github.com/roach88/mealplan/internal/retry"
)

// PlanReader reads the current plan document.
type PlanReader interface {
	GetPlan(ctx context.Context, planID string) (plan.Plan, error)
}

// Sink receives published reports.
type Sink interface {
	Publish(ctx context.Context, r Report) error
}

// Result is the outcome of one job, as recorded.
type Result struct {
	JobID      string
	OrderID    string
	PlanID     string
	ActorID    string
	Outcome    Outcome
	Mismatches int
	StartedAt  time.Time
	FinishedAt time.Time
	Err        string

	// Report is set when one was published.
	Report *Report
}

// Recorder stores job results. Matches are only ever recorded here.
type Recorder interface {
	RecordResult(ctx context.Context, r Result) error
}

// Default bounds.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultPublishGrace = 5 * time.Second
)

// Verifier runs verification jobs.
type Verifier struct {
	plans    PlanReader
	sink     Sink
	foods    FoodCatalog
	users    UserDirectory
	recorder Recorder
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time

	timeout      time.Duration
	publishGrace time.Duration
	retries      retry.Policy
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithFoodCatalog sets the food name source.
func WithFoodCatalog(c FoodCatalog) Option { return func(v *Verifier) { v.foods = c } }

// WithUserDirectory sets the display name source.
func WithUserDirectory(d UserDirectory) Option { return func(v *Verifier) { v.users = d } }

// WithRecorder sets where results are recorded.
func WithRecorder(r Recorder) Option { return func(v *Verifier) { v.recorder = r } }

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option { return func(v *Verifier) { v.metrics = m } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(v *Verifier) { v.logger = l } }

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(v *Verifier) { v.now = now } }

// WithTimeout bounds one job. A job that exceeds it publishes an
// incomplete report and fails. Zero disables the bound.
func WithTimeout(d time.Duration) Option { return func(v *Verifier) { v.timeout = d } }

// WithPublishGrace bounds publishing the incomplete report after the job
// window has run out.
func WithPublishGrace(d time.Duration) Option { return func(v *Verifier) { v.publishGrace = d } }

// WithRetryPolicy bounds retries of the plan re-read on STORE_UNAVAILABLE.
func WithRetryPolicy(p retry.Policy) Option { return func(v *Verifier) { v.retries = p } }

// New creates a Verifier.
func New(plans PlanReader, sink Sink, opts ...Option) *Verifier {
	v := &Verifier{
		plans:        plans,
		sink:         sink,
		logger:       slog.Default(),
		now:          time.Now,
		timeout:      DefaultTimeout,
		publishGrace: DefaultPublishGrace,
		retries:      retry.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify re-reads the plan and compares it with job.Expected.
//
// A match returns OutcomeMatch and publishes nothing. A mismatch publishes
// one report and returns OutcomeMismatch with a nil error. Any failure of
// the verifier itself is logged and returned as VERIFICATION_FAILURE; when
// the job ran out of time an incomplete report is published first.
func (v *Verifier) Verify(ctx context.Context, job Job) (Result, error) {
	began := v.now()
	jctx, cancel := v.window(ctx)
	defer cancel()

	res := Result{
		JobID:     job.JobID,
		OrderID:   job.OrderID,
		PlanID:    job.PlanID,
		ActorID:   job.ActorID,
		StartedAt: job.StartedAt,
	}

	var actual plan.Plan
	err := retry.Do(jctx, v.retries, func() error {
		p, err := v.plans.GetPlan(jctx, job.PlanID)
		actual = p
		return err
	}, func(attempt int, err error) {
		v.metrics.ObserveStoreRetry("verify_read")
		v.logger.Warn("plan store unavailable during verification, retrying",
			"job_id", job.JobID,
			"plan_id", job.PlanID,
			"attempt", attempt,
			"error", err,
		)
	})
	if err != nil {
		if expired(jctx, err) {
			return v.incomplete(ctx, job, res, nil, "plan re-read", err, began)
		}
		return v.fail(ctx, job, res, fmt.Errorf("re-read plan: %w", err), began)
	}

	mismatches := Diff(job.Expected, actual.OrderDetail)
	if len(mismatches) == 0 {
		res.Outcome = OutcomeMatch
		v.finish(ctx, res, began)
		v.logger.Debug("verification matched",
			"job_id", job.JobID,
			"plan_id", job.PlanID,
			"days", len(job.Expected),
		)
		return res, nil
	}

	digest, err := plan.Digest(actual.OrderDetail)
	if err != nil {
		return v.fail(ctx, job, res, fmt.Errorf("build report: %w", err), began)
	}

	r := newResolver(jctx, v.foods, v.users, actual.OrderDetail)
	report := buildReport(r, job, OutcomeMismatch, mismatches, true, v.now().UTC())
	report.ActualDigest = digest
	if jctx.Err() != nil {
		return v.incomplete(ctx, job, res, mismatches, "name resolution", jctx.Err(), began)
	}

	v.logger.Warn("lost update detected",
		"job_id", job.JobID,
		"plan_id", job.PlanID,
		"actor_id", job.ActorID,
		"mismatches", len(mismatches),
	)

	if err := v.sink.Publish(jctx, report); err != nil {
		if expired(jctx, err) {
			return v.incomplete(ctx, job, res, mismatches, "publish", err, began)
		}
		return v.fail(ctx, job, res, fmt.Errorf("publish report: %w", err), began)
	}

	res.Outcome = OutcomeMismatch
	res.Mismatches = len(mismatches)
	res.Report = &report
	v.finish(ctx, res, began)
	return res, nil
}

// incomplete publishes what is known after the job window ran out, then
// fails. mismatches is nil when the actual state was never read.
func (v *Verifier) incomplete(ctx context.Context, job Job, res Result, mismatches []Mismatch, stage string, cause error, began time.Time) (Result, error) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.publishGrace)
	defer cancel()

	// Names are not resolved: the collaborators may be what stalled.
	r := newResolver(pctx, nil, nil, nil)
	report := buildReport(r, job, OutcomeIncomplete, mismatches, mismatches != nil, v.now().UTC())
	report.Note = fmt.Sprintf("verification window exceeded during %s", stage)

	err := fmt.Errorf("%s: %w", stage, cause)
	if perr := v.sink.Publish(pctx, report); perr != nil {
		err = errors.Join(err, fmt.Errorf("publish incomplete report: %w", perr))
	} else {
		res.Report = &report
	}
	res.Mismatches = report.MismatchCount()
	res.Outcome = OutcomeIncomplete
	return v.failWith(ctx, job, res, err, began)
}

func (v *Verifier) fail(ctx context.Context, job Job, res Result, cause error, began time.Time) (Result, error) {
	res.Outcome = OutcomeError
	return v.failWith(ctx, job, res, cause, began)
}

func (v *Verifier) failWith(ctx context.Context, job Job, res Result, cause error, began time.Time) (Result, error) {
	err := plan.NewVerificationFailure(job.JobID, job.PlanID, cause)
	res.Err = err.Error()
	v.logger.Error("verification failed",
		"severity", "verification_failure",
		"job_id", job.JobID,
		"plan_id", job.PlanID,
		"order_id", job.OrderID,
		"actor_id", job.ActorID,
		"outcome", string(res.Outcome),
		"error", cause,
	)
	v.finish(ctx, res, began)
	return res, err
}

// finish records the result. A recording failure is logged only.
func (v *Verifier) finish(ctx context.Context, res Result, began time.Time) {
	res.FinishedAt = v.now().UTC()
	v.metrics.ObserveVerification(string(res.Outcome), res.FinishedAt.Sub(began))
	if v.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.publishGrace)
	defer cancel()
	if err := v.recorder.RecordResult(rctx, res); err != nil {
		v.logger.Warn("failed to record verification result",
			"job_id", res.JobID,
			"plan_id", res.PlanID,
			"outcome", string(res.Outcome),
			"error", err,
		)
	}
}

func (v *Verifier) window(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.timeout)
}

// expired reports whether err came from the job window running out or the
// caller giving up.
func expired(jctx context.Context, err error) bool {
	return jctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
