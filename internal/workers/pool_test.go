package workers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunCorrelatesResultsByID(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f"}

	results := Run(context.Background(), New(3, 0), ids, func(ctx context.Context, id string) (string, error) {
		if id == "c" {
			return "", errors.New("boom")
		}
		return "item-" + id, nil
	})

	if len(results) != len(ids) {
		t.Fatalf("results = %d, want %d", len(results), len(ids))
	}
	for _, id := range ids {
		r := results[id]
		if r.ID != id {
			t.Errorf("result for %s has id %s", id, r.ID)
		}
		if id == "c" {
			if r.Err == nil {
				t.Error("expected an error for c")
			}
			continue
		}
		if r.Value != "item-"+id || r.Err != nil {
			t.Errorf("result %s = %+v", id, r)
		}
	}

	failed := Failed(results)
	if len(failed) != 1 || failed[0].ID != "c" {
		t.Errorf("Failed() = %+v", failed)
	}
}

func TestRunHonoursParallelLimit(t *testing.T) {
	var active, peak int32

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}

	Run(context.Background(), New(2, 0), ids, func(ctx context.Context, id string) (int, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return 0, nil
	})

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := Run(ctx, New(2, 0), []string{"a", "b"}, func(ctx context.Context, id string) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})

	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("result %s error = %v", r.ID, r.Err)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	if New(0, 0).Parallel() != DefaultParallel {
		t.Errorf("Parallel() = %d, want %d", New(0, 0).Parallel(), DefaultParallel)
	}
	if New(2, 5).limiter == nil {
		t.Error("expected a limiter when a rate is set")
	}
}
