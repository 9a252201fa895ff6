package stats

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/paularlott/gisadmin/internal/agsserver"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"24h", 86400000 * time.Millisecond, false},
		{"week", 604800000 * time.Millisecond, false},
		{"30d", 2592000000 * time.Millisecond, false},
		{"Last Week", LastWeek, false},
		{"year", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePeriod(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePeriod(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator()
	for _, msg := range []agsserver.LogMessage{
		{Source: "Roads.MapServer", Message: "REST request successfully processed.", Elapsed: 0.5},
		{Source: "Roads.MapServer", Message: "REST request successfully processed.", Elapsed: 1.5},
		{Source: "Roads.MapServer", Message: "End ExportMapImage", Elapsed: 0.25},
		{Source: "Roads.MapServer", Message: "End Query", Elapsed: 0.1},
		{Source: "Roads.MapServer", Message: "End Identify", Elapsed: 0.3},
		{Source: "Parcels.MapServer", Message: "End Find", Elapsed: 2},
		{Source: "Parcels.MapServer", Message: "Service started"},
	} {
		agg.Add(msg)
	}

	rows := agg.Rows()
	want := [][]string{
		{"Parcels.MapServer", "0", "0", "0", "0", "1", "2"},
		{"Roads.MapServer", "2", "1", "1", "0.25", "2", "0.2"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for i := range want {
		if strings.Join(rows[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
	if agg.Messages() != 7 {
		t.Errorf("Messages() = %d, want 7", agg.Messages())
	}
}

type fakeLogs struct {
	query agsserver.LogQuery
	msgs  []agsserver.LogMessage
	err   error
}

func (f *fakeLogs) QueryLogs(ctx context.Context, q agsserver.LogQuery) iter.Seq2[agsserver.LogMessage, error] {
	f.query = q
	return func(yield func(agsserver.LogMessage, error) bool) {
		for _, m := range f.msgs {
			if !yield(m, nil) {
				return
			}
		}
		if f.err != nil {
			yield(agsserver.LogMessage{}, f.err)
		}
	}
}

func TestCollect(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	src := &fakeLogs{msgs: []agsserver.LogMessage{
		{Source: "Roads.MapServer", Message: "request successfully processed", Elapsed: 1},
	}}

	agg, err := Collect(context.Background(), src, Last24Hours, now)
	if err != nil {
		t.Fatal(err)
	}

	if src.query.Level != "FINE" || src.query.Start.UnixMilli() != 1700000000000 || src.query.End.UnixMilli() != 1700000000000-86400000 {
		t.Errorf("query = %+v", src.query)
	}
	if len(agg.Usage()) != 1 || agg.Usage()[0].Requests != 1 {
		t.Errorf("usage = %+v", agg.Usage())
	}
}

func TestCollectError(t *testing.T) {
	src := &fakeLogs{err: errors.New("boom")}
	if _, err := Collect(context.Background(), src, LastWeek, time.Now()); err == nil {
		t.Error("expected the log query error")
	}
}
