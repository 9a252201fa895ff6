package arcrest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrJobTimeout = errors.New("job did not finish in time")

// PollFunc checks an asynchronous job once and reports whether it has reached a terminal state.
type PollFunc func(ctx context.Context) (done bool, err error)

// WaitForJob calls poll every interval until it reports done, returns an error, maxWait elapses or ctx is cancelled.
// A maxWait of 0 waits until the context ends.
func WaitForJob(ctx context.Context, interval time.Duration, maxWait time.Duration, poll PollFunc) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var deadline <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		done, err := poll(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		log.Debug().Int("attempt", attempt).Msg("rest: job still running")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrJobTimeout
		case <-ticker.C:
		}
	}
}
