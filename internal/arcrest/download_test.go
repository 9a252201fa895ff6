package arcrest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestDownloadChunked(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 2500) // 40000 bytes, not a multiple of the chunk size

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "abc" {
			t.Errorf("token missing from download request")
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	client.SetToken("abc")

	dest := filepath.Join(t.TempDir(), "export", "Data.zip")
	written, err := client.DownloadChunked(context.Background(), "sharing/rest/content/items/abc123/data", nil, dest, DefaultChunkSize)
	if err != nil {
		t.Fatalf("DownloadChunked() error = %v", err)
	}

	if written != int64(len(payload)) {
		t.Errorf("written = %d, want %d", written, len(payload))
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("downloaded content differs from the payload")
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("partial file left behind after a complete download")
	}
}

func TestDownloadChunkedJSONItem(t *testing.T) {
	body := `{"operationalLayers":[],"baseMap":{"baseMapLayers":[]},"version":"2.10"}`

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))

	dest := filepath.Join(t.TempDir(), "webmap.json")
	written, err := client.DownloadChunked(context.Background(), "sharing/rest/content/items/map1/data", nil, dest, 8)
	if err != nil {
		t.Fatalf("DownloadChunked() error = %v", err)
	}
	if written != int64(len(body)) {
		t.Errorf("written = %d, want %d", written, len(body))
	}
}

func TestDownloadChunkedErrorEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"error":{"code":400,"message":"Item does not exist or is inaccessible."}}`)
	}))

	dest := filepath.Join(t.TempDir(), "Data.zip")
	_, err := client.DownloadChunked(context.Background(), "sharing/rest/content/items/missing/data", nil, dest, DefaultChunkSize)

	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *ApiError, got %T: %v", err, err)
	}
	if apiErr.Code != 400 {
		t.Errorf("Code = %d, want 400", apiErr.Code)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination created for a failed download")
	}
}

func TestDownloadChunkedHTTPError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.DownloadChunked(context.Background(), "sharing/rest/content/items/x/data", nil, filepath.Join(t.TempDir(), "x"), 0)

	var apiErr *ApiError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 *ApiError, got %v", err)
	}
}

func TestDownloadChunkedInterrupted(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", "100000")
		w.Write(bytes.Repeat([]byte("x"), 30000))
		// Returning early closes the connection short of the declared length
	}))

	dest := filepath.Join(t.TempDir(), "Data.zip")
	_, err := client.DownloadChunked(context.Background(), "sharing/rest/content/items/x/data", nil, dest, DefaultChunkSize)
	if err == nil {
		t.Fatal("expected an error for a truncated body")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("expected *NetworkError, got %T: %v", err, err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("final file exists after an interrupted download")
	}
}

func TestDownloadChunkedWriteFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("data"))
	}))

	// A file where a directory is expected
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := client.DownloadChunked(context.Background(), "sharing/rest/content/items/x/data", nil, filepath.Join(blocker, "Data.zip"), 0)

	var ioErr *IoError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *IoError, got %T: %v", err, err)
	}
}

func TestDownloadChunkedReauthenticates(t *testing.T) {
	var tokenCalls, dataCalls atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/portal/sharing/rest/generateToken":
			n := tokenCalls.Add(1)
			fmt.Fprintf(w, `{"token":"t%d"}`, n)
		default:
			dataCalls.Add(1)
			if r.URL.Query().Get("token") == "t1" {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"error":{"code":498,"message":"Invalid token."}}`)
				return
			}
			w.Header().Set("Content-Type", "application/zip")
			w.Write([]byte("zipdata"))
		}
	}))

	if _, err := client.Authenticate(context.Background(), Credentials{Username: "admin", Password: "secret"}); err != nil {
		t.Fatal(err)
	}

	written, err := client.DownloadChunked(context.Background(), "sharing/rest/content/items/x/data", nil, filepath.Join(t.TempDir(), "Data.zip"), 0)
	if err != nil {
		t.Fatalf("DownloadChunked() error = %v", err)
	}
	if written != 7 {
		t.Errorf("written = %d, want 7", written)
	}
	if tokenCalls.Load() != 2 || dataCalls.Load() != 2 {
		t.Errorf("token calls = %d, data calls = %d, want 2 and 2", tokenCalls.Load(), dataCalls.Load())
	}
}

func TestCopyChunks(t *testing.T) {
	tests := []struct {
		size      int
		chunkSize int
	}{
		{0, 16},
		{15, 16},
		{16, 16},
		{17, 16},
		{16 * 1024 * 3, DefaultChunkSize},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.size, tt.chunkSize), func(t *testing.T) {
			src := bytes.Repeat([]byte{'a'}, tt.size)
			var dst bytes.Buffer

			n, err := copyChunks(&dst, bytes.NewReader(src), tt.chunkSize)
			if err != nil {
				t.Fatal(err)
			}
			if n != int64(tt.size) || dst.Len() != tt.size {
				t.Errorf("copied %d (buffer %d), want %d", n, dst.Len(), tt.size)
			}
		})
	}
}

func TestWaitForJob(t *testing.T) {
	var polls int
	err := WaitForJob(context.Background(), time.Millisecond, time.Second, func(ctx context.Context) (bool, error) {
		polls++
		return polls == 3, nil
	})
	if err != nil {
		t.Fatalf("WaitForJob() error = %v", err)
	}
	if polls != 3 {
		t.Errorf("polls = %d, want 3", polls)
	}
}

func TestWaitForJobError(t *testing.T) {
	want := errors.New("job failed")
	err := WaitForJob(context.Background(), time.Millisecond, 0, func(ctx context.Context) (bool, error) {
		return false, want
	})
	if !errors.Is(err, want) {
		t.Errorf("WaitForJob() error = %v, want %v", err, want)
	}
}

func TestWaitForJobTimeout(t *testing.T) {
	err := WaitForJob(context.Background(), 5*time.Millisecond, 20*time.Millisecond, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, ErrJobTimeout) {
		t.Errorf("WaitForJob() error = %v, want ErrJobTimeout", err)
	}
}

func TestWaitForJobCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForJob(ctx, time.Second, 0, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForJob() error = %v, want context.Canceled", err)
	}
}

func TestFetch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/portal/tile/3/10/12":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("\x89PNG"))
		default:
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"error":{"code":404,"message":"Tile not found"}}`)
		}
	}))

	body, err := client.Fetch(context.Background(), "tile/3/10/12", nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "\x89PNG" {
		t.Errorf("body = %q", body)
	}

	_, err = client.Fetch(context.Background(), "tile/3/10/13", nil)
	var apiErr *ApiError
	if !errors.As(err, &apiErr) || apiErr.Code != 404 {
		t.Errorf("expected 404 ApiError, got %v", err)
	}
}
