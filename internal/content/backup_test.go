package content

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paularlott/gisadmin/internal/arcrest"
	"github.com/paularlott/gisadmin/internal/portal"
	"github.com/paularlott/gisadmin/internal/workers"
)

type fakePortal struct {
	mu        sync.Mutex
	items     map[string]portal.Item
	exportErr error
	exported  []string
	deleted   []string
	downloads map[string]string
}

func newFakePortal(items ...portal.Item) *fakePortal {
	f := &fakePortal{items: map[string]portal.Item{}, downloads: map[string]string{}}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

func (f *fakePortal) Item(ctx context.Context, id string) (*portal.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, &arcrest.ApiError{Code: 400, Message: "Item does not exist or is inaccessible."}
	}
	return &item, nil
}

func (f *fakePortal) SearchItems(ctx context.Context, query string, sortField string, pageSize int) iter.Seq2[portal.Item, error] {
	return func(yield func(portal.Item, error) bool) {
		for _, item := range f.items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (f *fakePortal) Export(ctx context.Context, owner string, itemID string, format string) (*portal.ExportJob, error) {
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exported = append(f.exported, itemID)
	return &portal.ExportJob{JobID: "job1", ExportItemID: "export-" + itemID}, nil
}

func (f *fakePortal) WaitForExport(ctx context.Context, owner string, job *portal.ExportJob, interval time.Duration, maxWait time.Duration) error {
	return nil
}

func (f *fakePortal) DeleteItem(ctx context.Context, owner string, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, itemID)
	return nil
}

func (f *fakePortal) DownloadItem(ctx context.Context, id string, destination string, chunkSize int) (int64, error) {
	data := []byte(`{"id":"` + id + `"}`)
	if err := os.WriteFile(destination, data, 0644); err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.downloads[id] = destination
	f.mu.Unlock()
	return int64(len(data)), nil
}

func TestFileName(t *testing.T) {
	tests := []struct {
		item portal.Item
		want string
	}{
		{portal.Item{ID: "a1", Name: "roads.zip"}, "roads.zip"},
		{portal.Item{ID: "a1", Title: "My Web Map"}, "My Web Map.json"},
		{portal.Item{ID: "a1"}, "a1.json"},
		{portal.Item{ID: "a1", Name: "a/b:c"}, "a_b_c.json"},
	}

	for _, tt := range tests {
		if got := FileName(&tt.item); got != tt.want {
			t.Errorf("FileName(%+v) = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func TestBackupDir(t *testing.T) {
	got := BackupDir("/backups", time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC))
	if want := filepath.Join("/backups", "AGSBackup-20240307"); got != want {
		t.Errorf("BackupDir() = %q, want %q", got, want)
	}
}

func TestBackup(t *testing.T) {
	src := newFakePortal(
		portal.Item{ID: "map1", Owner: "admin", Title: "City Map", Type: "Web Map"},
		portal.Item{ID: "fs1", Owner: "admin", Title: "Parcels", Type: "Feature Service", TypeKeywords: []string{"Hosted Service"}},
		portal.Item{ID: "fs2", Owner: "admin", Title: "Roads", Type: "Feature Service", Name: "roads.sd"},
		portal.Item{ID: "code1", Owner: "admin", Title: "Widget", Type: "Code Attachment"},
	)

	dest := t.TempDir()
	ids := []string{"map1", "fs1", "fs2", "code1", "missing"}

	results, err := Backup(context.Background(), src, workers.New(2, 0), ids, Options{Dest: dest})
	if err != nil {
		t.Fatal(err)
	}

	downloaded, skipped, failed := Summarize(results)
	if downloaded != 3 || skipped != 1 || len(failed) != 1 || failed[0].ID != "missing" {
		t.Fatalf("downloaded=%d skipped=%d failed=%v", downloaded, skipped, failed)
	}

	if len(src.exported) != 1 || src.exported[0] != "fs1" {
		t.Errorf("exported = %v, want [fs1]", src.exported)
	}
	if len(src.deleted) != 1 || src.deleted[0] != "export-fs1" {
		t.Errorf("deleted = %v, want [export-fs1]", src.deleted)
	}

	hosted := results["fs1"].Value
	if !hosted.Exported || filepath.Base(hosted.Path) != "fs1-Parcels.zip" {
		t.Errorf("hosted download = %+v", hosted)
	}
	if got := filepath.Base(results["map1"].Value.Path); got != "map1-City Map.json" {
		t.Errorf("web map file = %q", got)
	}
	if _, err := os.Stat(results["fs2"].Value.Path); err != nil {
		t.Errorf("roads download missing: %v", err)
	}
}

func TestExportFailureDeletesNothing(t *testing.T) {
	src := newFakePortal(portal.Item{ID: "fs1", Owner: "admin", Title: "Parcels", Type: "Feature Service"})
	src.exportErr = &arcrest.ApiError{Code: 403, Message: "not allowed"}

	_, err := ExportOne(context.Background(), src, "fs1", Options{Dest: t.TempDir()})
	var apiErr *arcrest.ApiError
	if !errors.As(err, &apiErr) || apiErr.Code != 403 {
		t.Fatalf("err = %v, want ApiError 403", err)
	}
	if len(src.deleted) != 0 {
		t.Errorf("deleted = %v, want none", src.deleted)
	}
}

func TestExportOneRejectsOtherTypes(t *testing.T) {
	src := newFakePortal(portal.Item{ID: "map1", Type: "Web Map"})
	if _, err := ExportOne(context.Background(), src, "map1", Options{Dest: t.TempDir()}); err == nil {
		t.Error("expected an error exporting a web map")
	}
}

func TestSearchAll(t *testing.T) {
	src := newFakePortal(portal.Item{ID: "a"}, portal.Item{ID: "b"})
	ids, err := SearchAll(context.Background(), src, "orgid:abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v", ids)
	}
}
