package connector

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/UltimateTournament/backoff/v4"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

var errPending = stderrors.New("poll condition not met")

// PollUntil calls fn at a constant interval until it reports done or fails.
// The first call is immediate. The wait never grows and is bounded only by
// ctx; a cancelled or expired ctx fails with a request error.
func PollUntil(ctx context.Context, interval time.Duration, fn func(context.Context) (bool, error)) error {
	if interval <= 0 {
		return errors.Newf(errors.ErrorTypeValue, "poll interval %v must be positive", interval)
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		done, err := fn(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errPending
		}
		return nil
	}, b)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && (err == errPending || errors.Is(err, ctxErr)) {
		return errors.Wrap(ctxErr, errors.ErrorTypeRequest, "polling stopped before completion").
			WithDetail("attempts", attempts)
	}
	return err
}
