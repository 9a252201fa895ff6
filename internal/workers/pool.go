package workers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const DefaultParallel = 4

// Result is the outcome of one item, correlated by its id.
type Result[T any] struct {
	ID       string
	Value    T
	Err      error
	Duration time.Duration
}

// Pool runs independent per item work with a fixed number of workers and an optional
// shared request rate.
type Pool struct {
	parallel int
	limiter  *rate.Limiter
}

// New returns a pool of parallel workers, perSecond of zero leaves the rate unlimited.
func New(parallel int, perSecond float64) *Pool {
	if parallel <= 0 {
		parallel = DefaultParallel
	}

	p := &Pool{parallel: parallel}
	if perSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), parallel)
	}
	return p
}

func (p *Pool) Parallel() int {
	return p.parallel
}

// Run calls fn once for each id, a failing item does not stop the others.
// Items not started before ctx is cancelled are returned with the context error.
func Run[T any](ctx context.Context, p *Pool, ids []string, fn func(ctx context.Context, id string) (T, error)) map[string]Result[T] {
	var (
		mu      sync.Mutex
		results = make(map[string]Result[T], len(ids))
	)

	g := &errgroup.Group{}
	g.SetLimit(p.parallel)

	for _, id := range ids {
		g.Go(func() error {
			var zero T
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					mu.Lock()
					results[id] = Result[T]{ID: id, Value: zero, Err: err}
					mu.Unlock()
					return nil
				}
			}
			if err := ctx.Err(); err != nil {
				mu.Lock()
				results[id] = Result[T]{ID: id, Value: zero, Err: err}
				mu.Unlock()
				return nil
			}

			start := time.Now()
			value, err := fn(ctx, id)
			r := Result[T]{ID: id, Value: value, Err: err, Duration: time.Since(start)}

			if err != nil {
				log.Error().Err(err).Str("id", id).Msg("workers: item failed")
			} else {
				log.Debug().Str("id", id).Dur("duration", r.Duration).Msg("workers: item done")
			}

			mu.Lock()
			results[id] = r
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	return results
}

// Failed returns the failed results sorted by id.
func Failed[T any](results map[string]Result[T]) []Result[T] {
	var failed []Result[T]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].ID < failed[j].ID })
	return failed
}
