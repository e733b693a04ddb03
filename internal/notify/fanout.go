package notify

import (
	"context"
	"errors"

	"github.com/roach88/mealplan/internal/verify"
)

// Fanout publishes to every sink in order. One sink failing does not stop
// the others; the errors are joined.
type Fanout []verify.Sink

// Publish implements verify.Sink.
func (f Fanout) Publish(ctx context.Context, r verify.Report) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
