package features

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paularlott/gisadmin/internal/arcrest"
)

var now = time.UnixMilli(1700000000000)

func queryResult() *QueryResult {
	day := int64(24 * time.Hour / time.Millisecond)
	return &QueryResult{
		ObjectIDField: "OBJECTID",
		Features: []Feature{
			{Attributes: map[string]any{"OBJECTID": float64(1), "created": float64(now.UnixMilli() - 10*day)}},
			{Attributes: map[string]any{"OBJECTID": float64(2), "created": float64(now.UnixMilli() - day/2)}},
			{Attributes: map[string]any{"OBJECTID": float64(3), "created": nil}},
			{Attributes: map[string]any{"OBJECTID": float64(4), "created": float64(now.UnixMilli() - 3*day)}},
		},
	}
}

func TestSelectStale(t *testing.T) {
	ids, err := SelectStale(queryResult(), "Created", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(ids) != "[1 4]" {
		t.Errorf("ids = %v, want [1 4]", ids)
	}

	if _, err := SelectStale(queryResult(), "edited", now); err == nil {
		t.Error("expected an error for a missing field")
	}
}

func TestWhereObjectIDs(t *testing.T) {
	if got := WhereObjectIDs("OBJECTID", []int64{4, 8, 15}); got != "OBJECTID IN (4,8,15)" {
		t.Errorf("WhereObjectIDs() = %s", got)
	}
}

func TestBatches(t *testing.T) {
	got := batches([]int64{1, 2, 3, 4, 5}, 2)
	if fmt.Sprint(got) != "[[1 2] [3 4] [5]]" {
		t.Errorf("batches = %v", got)
	}
	if len(batches(nil, 2)) != 0 {
		t.Error("expected no batches for no ids")
	}
}

type fakeLayer struct {
	pages   []*QueryResult
	offsets []int
	deletes []string
	delete  *DeleteResponse
}

func (f *fakeLayer) Query(ctx context.Context, where string, outFields string, offset int) (*QueryResult, error) {
	f.offsets = append(f.offsets, offset)
	if f.pages == nil {
		return queryResult(), nil
	}
	if len(f.offsets) > len(f.pages) {
		return nil, fmt.Errorf("unexpected query at offset %d", offset)
	}
	return f.pages[len(f.offsets)-1], nil
}

func (f *fakeLayer) DeleteWhere(ctx context.Context, where string) (*DeleteResponse, error) {
	f.deletes = append(f.deletes, where)
	if f.delete != nil {
		return f.delete, nil
	}
	return &DeleteResponse{Results: []DeleteResult{{ObjectID: 1, Success: true}, {ObjectID: 4, Success: false}}}, nil
}

func TestPurgeFollowsTransferLimit(t *testing.T) {
	day := int64(24 * time.Hour / time.Millisecond)
	old := float64(now.UnixMilli() - 5*day)

	layer := &fakeLayer{pages: []*QueryResult{
		{
			ObjectIDField: "FID",
			Features: []Feature{
				{Attributes: map[string]any{"FID": float64(1), "created": old}},
				{Attributes: map[string]any{"FID": float64(2), "created": old}},
			},
			ExceededTransferLimit: true,
		},
		{
			Features: []Feature{
				{Attributes: map[string]any{"FID": float64(3), "created": old}},
			},
		},
	}}

	result, err := Purge(context.Background(), layer, PurgeOptions{
		DateField: "created",
		MaxAge:    24 * time.Hour,
		DryRun:    true,
		Now:       now,
	})
	if err != nil {
		t.Fatal(err)
	}

	if fmt.Sprint(layer.offsets) != "[0 2]" {
		t.Errorf("query offsets = %v, want [0 2]", layer.offsets)
	}
	if result.Scanned != 3 || fmt.Sprint(result.Stale) != "[1 2 3]" {
		t.Errorf("scanned = %d, stale = %v, want 3 and [1 2 3]", result.Scanned, result.Stale)
	}
}

func TestPurgeSuccessWithoutResults(t *testing.T) {
	tests := []struct {
		name        string
		response    *DeleteResponse
		wantDeleted int
		wantFailed  string
	}{
		{"success", &DeleteResponse{Success: true}, 2, "[]"},
		{"failure", &DeleteResponse{Success: false}, 0, "[1 4]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layer := &fakeLayer{delete: tt.response}
			result, err := Purge(context.Background(), layer, PurgeOptions{
				DateField: "created",
				MaxAge:    24 * time.Hour,
				Now:       now,
			})
			if err != nil {
				t.Fatal(err)
			}

			if result.Deleted != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", result.Deleted, tt.wantDeleted)
			}
			if got := fmt.Sprint(result.Failed); got != tt.wantFailed {
				t.Errorf("failed = %s, want %s", got, tt.wantFailed)
			}
		})
	}
}

func TestPurge(t *testing.T) {
	tests := []struct {
		name        string
		dryRun      bool
		wantDeletes int
		wantDeleted int
	}{
		{"dry run", true, 0, 0},
		{"delete", false, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layer := &fakeLayer{}
			result, err := Purge(context.Background(), layer, PurgeOptions{
				DateField: "created",
				MaxAge:    24 * time.Hour,
				DryRun:    tt.dryRun,
				Now:       now,
			})
			if err != nil {
				t.Fatal(err)
			}

			if result.Scanned != 4 || len(result.Stale) != 2 {
				t.Errorf("result = %+v", result)
			}
			if len(layer.deletes) != tt.wantDeletes {
				t.Fatalf("deletes = %v", layer.deletes)
			}
			if tt.wantDeletes > 0 && layer.deletes[0] != "OBJECTID IN (1,4)" {
				t.Errorf("where = %s", layer.deletes[0])
			}
			if result.Deleted != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", result.Deleted, tt.wantDeleted)
			}
		})
	}
}

func TestLayerRequests(t *testing.T) {
	var deleteWhere string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/FeatureServer/0/query"):
			if r.Form.Get("where") != "1=1" || r.Form.Get("outFields") != "*" || r.Form.Get("token") != "tok" {
				t.Errorf("query form = %v", r.Form)
			}
			switch r.Form.Get("resultOffset") {
			case "":
				fmt.Fprint(w, `{"objectIdFieldName":"OBJECTID","features":[{"attributes":{"OBJECTID":7,"created":1000}}],"exceededTransferLimit":true}`)
			case "1":
				fmt.Fprint(w, `{"objectIdFieldName":"OBJECTID","features":[{"attributes":{"OBJECTID":9,"created":2000}}]}`)
			default:
				t.Errorf("unexpected resultOffset %q", r.Form.Get("resultOffset"))
			}
		case strings.HasSuffix(r.URL.Path, "/FeatureServer/0/deleteFeatures"):
			deleteWhere = r.Form.Get("where")
			fmt.Fprint(w, `{"success":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := arcrest.NewClient(server.URL, false)
	if err != nil {
		t.Fatal(err)
	}
	client.SetToken("tok")

	layer := NewLayer(client, server.URL+"/server/rest/services/Incidents/FeatureServer/0/")
	result, err := Purge(context.Background(), layer, PurgeOptions{DateField: "created", MaxAge: time.Hour, Now: now})
	if err != nil {
		t.Fatal(err)
	}

	if result.Scanned != 2 || result.Deleted != 2 || deleteWhere != "OBJECTID IN (7,9)" {
		t.Errorf("scanned = %d, deleted = %d, where = %q", result.Scanned, result.Deleted, deleteWhere)
	}
}

func TestParseMaxAge(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"72h", 72 * time.Hour, false},
		{" 1d ", 24 * time.Hour, false},
		{"0d", 0, true},
		{"-5h", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMaxAge(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMaxAge(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMaxAge(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
