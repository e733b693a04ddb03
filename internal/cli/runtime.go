package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mealplan/internal/app"
	"github.com/roach88/mealplan/internal/config"
	"github.com/roach88/mealplan/internal/plan"
)

// runFunc is the body of a command that needs an open runtime.
type runFunc func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error

// withRuntime loads the configuration, opens the runtime, runs fn and
// closes the runtime. Close waits for queued verifications, so a lost
// update detected after fn returned still shows in the logs before exit.
func withRuntime(cmd *cobra.Command, opts *RootOptions, fn runFunc) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "failed to load config", err), ErrCodeConfig)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out.VerboseLog("opening database %s", cfg.Database)
	rt, err := app.Open(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "failed to open database", err), ErrCodeDatabase)
	}

	runErr := fn(ctx, rt, out)
	closeErr := rt.Close()

	if opts.Metrics {
		if err := rt.Metrics.WriteText(cmd.ErrOrStderr()); err != nil {
			logger.Warn("failed to write metrics", "error", err)
		}
	}

	if runErr != nil {
		return fail(out, runErr, "")
	}
	if closeErr != nil {
		return fail(out, WrapExitError(ExitFailure, "verification failed", closeErr), ErrCodeVerifyFail)
	}
	return nil
}

// fail reports err in JSON mode and returns it as an ExitError. code
// overrides the code derived from err when set.
func fail(out *OutputFormatter, err error, code string) error {
	derived, details := describe(err)
	if code == "" {
		code = derived
	}
	if out.Format == "json" {
		_ = out.Error(code, err.Error(), details)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(ExitFailure, "operation failed", err)
}

// resolveDay accepts a raw day key or a YYYY-MM-DD date in the order's
// timezone.
func resolveDay(ctx context.Context, rt *app.Runtime, planID, s string) (plan.DayKey, error) {
	if s == "" {
		return "", NewExitError(ExitCommandError, "--day is required")
	}
	if key, err := plan.ParseDayKey(s); err == nil {
		return key, nil
	}

	loc := rt.Location
	if p, err := rt.Store.GetPlan(ctx, planID); err == nil {
		if order, err := rt.Store.GetOrder(ctx, p.OrderID); err == nil {
			loc = order.GeneralInfo.Location()
		}
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return "", WrapExitError(ExitCommandError, fmt.Sprintf("invalid day %q", s), err)
	}
	return plan.DayKeyOf(t, loc), nil
}

// planLocation returns the timezone of p's order, or the configured
// timezone when the order cannot be read.
func planLocation(ctx context.Context, rt *app.Runtime, p plan.Plan) *time.Location {
	order, err := rt.Store.GetOrder(ctx, p.OrderID)
	if err != nil {
		return rt.Location
	}
	return order.GeneralInfo.Location()
}

// parseParams turns repeated key=value flags into a map.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --param %q: want key=value", pair))
		}
		params[k] = v
	}
	return params, nil
}
