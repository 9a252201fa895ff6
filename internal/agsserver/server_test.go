package agsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paularlott/gisadmin/internal/arcrest"
)

type request struct {
	path string
	form url.Values
}

type fakeServer struct {
	mu       sync.Mutex
	requests []request
	routes   map[string]func(form url.Values) string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()

	f.mu.Lock()
	f.requests = append(f.requests, request{path: r.URL.Path, form: r.Form})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	route, ok := f.routes[strings.TrimPrefix(r.URL.Path, "/server/")]
	if !ok {
		fmt.Fprintf(w, `{"status":"error","messages":["No route for %s"],"code":404}`, r.URL.Path)
		return
	}
	fmt.Fprint(w, route(r.Form))
}

func (f *fakeServer) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, r := range f.requests {
		if r.path == "/server/"+path {
			n++
		}
	}
	return n
}

func newTestServer(t *testing.T, routes map[string]func(url.Values) string) (*Server, *fakeServer) {
	t.Helper()

	fake := &fakeServer{routes: routes}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	client, err := arcrest.NewClient(ts.URL+"/server", false)
	if err != nil {
		t.Fatal(err)
	}
	client.SetTimeout(5 * time.Second)
	client.SetToken("tok")

	return New(client, nil), fake
}

func static(body string) func(url.Values) string {
	return func(url.Values) string { return body }
}

func TestRESTPath(t *testing.T) {
	tests := []struct {
		service string
		want    string
	}{
		{"Roads.MapServer", "rest/services/Roads/MapServer"},
		{"Maps/Roads.MapServer", "rest/services/Maps/Roads/MapServer"},
		{"Maps/Land Use.FeatureServer", "rest/services/Maps/Land%20Use/FeatureServer"},
		{"Maps/Geocode.v2.GeocodeServer", "rest/services/Maps/Geocode.v2/GeocodeServer"},
	}

	for _, tt := range tests {
		if got := RESTPath(tt.service); got != tt.want {
			t.Errorf("RESTPath(%q) = %q, want %q", tt.service, got, tt.want)
		}
	}

	if got := ServiceType("Maps/Roads.MapServer"); got != ServiceTypeMap {
		t.Errorf("ServiceType() = %q", got)
	}
}

func TestListServices(t *testing.T) {
	s, fake := newTestServer(t, map[string]func(url.Values) string{
		"admin/services": static(`{"folders":["System","Utilities","Maps"],"services":[{"folderName":"/","serviceName":"SampleWorldCities","type":"MapServer"}]}`),
		"admin/services/Maps": static(`{"folders":[],"services":[
{"folderName":"Maps","serviceName":"Roads","type":"MapServer"},
{"folderName":"Maps","serviceName":"Parcels","type":"FeatureServer"}]}`),
	})

	services, err := s.ListServices(context.Background())
	if err != nil {
		t.Fatalf("ListServices() error = %v", err)
	}

	want := "SampleWorldCities.MapServer,Maps/Roads.MapServer,Maps/Parcels.FeatureServer"
	if strings.Join(services, ",") != want {
		t.Errorf("services = %v, want %s", services, want)
	}
	if fake.count("admin/services/System") != 0 || fake.count("admin/services/Utilities") != 0 {
		t.Error("system folders were listed")
	}
}

func TestServiceStatus(t *testing.T) {
	tests := []struct {
		body        string
		wantStopped bool
	}{
		{`{"configuredState":"STARTED","realTimeState":"STARTED"}`, false},
		{`{"configuredState":"STOPPED","realTimeState":"STOPPED"}`, true},
		{`{"realTimeState":"stopped"}`, true},
		{`{"realTimeState":"STARTING"}`, false},
	}

	for _, tt := range tests {
		s, _ := newTestServer(t, map[string]func(url.Values) string{
			"admin/services/Maps/Roads.MapServer/status": static(tt.body),
		})

		status, err := s.ServiceStatus(context.Background(), "Maps/Roads.MapServer")
		if err != nil {
			t.Fatal(err)
		}
		if status.Stopped() != tt.wantStopped {
			t.Errorf("%s: Stopped() = %v, want %v", tt.body, status.Stopped(), tt.wantStopped)
		}
	}
}

func TestServiceStatusReauthenticatesOnce(t *testing.T) {
	var tokens, statusCalls int
	var mu sync.Mutex

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		mu.Lock()
		defer mu.Unlock()

		switch r.URL.Path {
		case "/server/admin/generateToken":
			tokens++
			fmt.Fprintf(w, `{"token":"t%d","expires":1}`, tokens)
		case "/server/admin/services/Roads.MapServer/status":
			statusCalls++
			if r.Form.Get("token") == "t1" {
				fmt.Fprint(w, `{"status":"error","messages":["Invalid token."],"code":498}`)
				return
			}
			fmt.Fprint(w, `{"realTimeState":"STOPPED"}`)
		}
	}))
	defer ts.Close()

	client, err := arcrest.NewClient(ts.URL+"/server", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.SetTokenEndpoint(arcrest.ServerToken, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Authenticate(context.Background(), arcrest.Credentials{Username: "siteadmin", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	status, err := New(client, nil).ServiceStatus(context.Background(), "Roads.MapServer")
	if err != nil {
		t.Fatalf("ServiceStatus() error = %v", err)
	}
	if !status.Stopped() {
		t.Error("expected a stopped service")
	}
	if tokens != 2 || statusCalls != 2 {
		t.Errorf("token requests = %d, status requests = %d, want 2 and 2", tokens, statusCalls)
	}
}

func TestServiceInstances(t *testing.T) {
	s, _ := newTestServer(t, map[string]func(url.Values) string{
		"admin/services/Roads.MapServer":            static(`{"serviceName":"Roads","type":"MapServer","minInstancesPerNode":1,"maxInstancesPerNode":4}`),
		"admin/services/Roads.MapServer/statistics": static(`{"summary":{"busy":1,"free":1,"initializing":0,"notCreated":2}}`),
	})

	info, err := s.ServiceInfo(context.Background(), "Roads.MapServer")
	if err != nil {
		t.Fatal(err)
	}
	stats, err := s.ServiceStatistics(context.Background(), "Roads.MapServer")
	if err != nil {
		t.Fatal(err)
	}

	if info.MinInstancesPerNode != 1 || info.MaxInstancesPerNode != 4 {
		t.Errorf("info = %+v", info)
	}
	if stats.Busy != 1 || stats.NotCreated != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPermissions(t *testing.T) {
	s, _ := newTestServer(t, map[string]func(url.Values) string{
		"admin/services/Maps/permissions": static(`{"permissions":[{"principal":"viewers","permission":{"isAllowed":true}},{"principal":"esriEveryone","permission":{"isAllowed":true}}]}`),
	})

	principals, err := s.Permissions(context.Background(), "Maps")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(principals, ",") != "esriEveryone,viewers" {
		t.Errorf("principals = %v", principals)
	}
}

func TestSecurityRequests(t *testing.T) {
	ok := static(`{"status":"success"}`)
	s, fake := newTestServer(t, map[string]func(url.Values) string{
		"admin/security/roles/add":             ok,
		"admin/security/roles/assignPrivilege": ok,
		"admin/security/users/add":             ok,
		"admin/security/roles/addUsersToRole":  ok,
	})
	ctx := context.Background()

	if err := s.AddRole(ctx, "Editors", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignPrivilege(ctx, "Editors", "publish"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddUser(ctx, ServerUser{Username: "jo", Password: "pw", Email: "jo@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddUsersToRole(ctx, "Editors", []string{"jo", "sam"}); err != nil {
		t.Fatal(err)
	}

	var role map[string]string
	if err := json.Unmarshal([]byte(fake.requests[0].form.Get("Role")), &role); err != nil || role["rolename"] != "Editors" {
		t.Errorf("Role = %q", fake.requests[0].form.Get("Role"))
	}
	if fake.requests[1].form.Get("privilege") != PrivilegePublish {
		t.Errorf("privilege = %q", fake.requests[1].form.Get("privilege"))
	}

	var user ServerUser
	if err := json.Unmarshal([]byte(fake.requests[2].form.Get("user")), &user); err != nil || user.Username != "jo" {
		t.Errorf("user = %q", fake.requests[2].form.Get("user"))
	}
	if fake.requests[3].form.Get("users") != "jo,sam" {
		t.Errorf("users = %q", fake.requests[3].form.Get("users"))
	}
}

func TestQueryLogs(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	var starts []string

	s, _ := newTestServer(t, map[string]func(url.Values) string{
		"admin/logs/query": func(form url.Values) string {
			starts = append(starts, form.Get("startTime"))
			switch form.Get("startTime") {
			case "1700000000000":
				return `{"hasMore":true,"logMessages":[
{"type":"FINE","message":"Request successfully processed.","time":1699999999000,"source":"Roads.MapServer","elapsed":"0.5"},
{"type":"FINE","message":"End ExportMapImage","time":1699999998000,"source":"Roads.MapServer","elapsed":""}]}`
			case "1699999998000":
				return `{"hasMore":false,"logMessages":[
{"type":"FINE","message":"End Query","time":1699999997000,"source":"Parcels.MapServer","elapsed":"1.25"}]}`
			}
			return `{"hasMore":false,"logMessages":[]}`
		},
	})

	var messages []LogMessage
	for msg, err := range s.QueryLogs(context.Background(), LogQuery{Start: now, End: now.Add(-24 * time.Hour)}) {
		if err != nil {
			t.Fatal(err)
		}
		messages = append(messages, msg)
	}

	if len(messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(messages))
	}
	if strings.Join(starts, ",") != "1700000000000,1699999998000" {
		t.Errorf("startTime cursor = %v", starts)
	}
	if messages[0].Elapsed != 0.5 || messages[1].Elapsed != 0 || messages[2].Elapsed != 1.25 {
		t.Errorf("elapsed = %v %v %v", messages[0].Elapsed, messages[1].Elapsed, messages[2].Elapsed)
	}
}

func TestQueryLogsStopsWhenCursorStalls(t *testing.T) {
	calls := 0
	s, _ := newTestServer(t, map[string]func(url.Values) string{
		"admin/logs/query": func(url.Values) string {
			calls++
			return `{"hasMore":true,"logMessages":[{"message":"x","time":1700000000000}]}`
		},
	})

	now := time.UnixMilli(1700000000000)
	for _, err := range s.QueryLogs(context.Background(), LogQuery{Start: now, End: now.Add(-time.Hour)}) {
		if err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCountFeatures(t *testing.T) {
	s, _ := newTestServer(t, map[string]func(url.Values) string{
		"rest/services/Maps/Roads/MapServer": static(`{"layers":[{"id":0,"name":"Group","subLayerIds":[1]},{"id":1,"name":"Roads","subLayerIds":null}]}`),
		"rest/services/Maps/Roads/MapServer/1/query": func(form url.Values) string {
			if form.Get("returnCountOnly") != "true" || form.Get("where") != "1=1" {
				return `{"error":{"code":400,"message":"bad query"}}`
			}
			return `{"count":42}`
		},
		"rest/services/Maps/Empty/MapServer/0/query": static(`{}`),
	})
	ctx := context.Background()

	desc, err := s.Describe(ctx, "Maps/Roads.MapServer")
	if err != nil {
		t.Fatal(err)
	}
	layer, err := desc.FirstDataLayer()
	if err != nil || layer.ID != 1 {
		t.Fatalf("FirstDataLayer() = %+v, %v", layer, err)
	}

	count, err := s.CountFeatures(ctx, "Maps/Roads.MapServer", layer.ID)
	if err != nil || count != 42 {
		t.Errorf("CountFeatures() = %d, %v", count, err)
	}

	if _, err := s.CountFeatures(ctx, "Maps/Empty.MapServer", 0); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}

	empty := &ServiceDescription{Layers: []LayerInfo{{ID: 0, SubLayerIDs: []int{}}}}
	if _, err := empty.FirstDataLayer(); !errors.Is(err, ErrNoLayers) {
		t.Errorf("expected ErrNoLayers, got %v", err)
	}
}

func TestSubmitManageCache(t *testing.T) {
	s, fake := newTestServer(t, map[string]func(url.Values) string{
		"rest/services/Maps/Roads/MapServer":                                          static(`{"tileInfo":{"rows":256,"cols":256,"lods":[{"level":0,"scale":1000000},{"level":1,"scale":500000.5}]}}`),
		"rest/services/System/CachingTools/GPServer/Manage Map Cache Tiles/submitJob": static(`{"jobId":"j1","jobStatus":"esriJobSubmitted"}`),
		"rest/services/System/CachingTools/GPServer/Manage Map Cache Tiles/jobs/j1":   static(`{"jobId":"j1","jobStatus":"esriJobExecuting","messages":[]}`),
	})
	ctx := context.Background()

	scales, err := s.TileScales(ctx, "Maps/Roads.MapServer")
	if err != nil {
		t.Fatal(err)
	}

	job, err := s.SubmitManageCache(ctx, "Maps/Roads.MapServer", scales, 3, UpdateEmptyTiles)
	if err != nil {
		t.Fatalf("SubmitManageCache() error = %v", err)
	}

	form := fake.requests[1].form
	if form.Get("levels") != "1000000;500000.5" {
		t.Errorf("levels = %q", form.Get("levels"))
	}
	if form.Get("service_url") != "Maps/Roads:MapServer" {
		t.Errorf("service_url = %q", form.Get("service_url"))
	}
	if form.Get("thread_count") != "3" || form.Get("update_mode") != UpdateEmptyTiles {
		t.Errorf("form = %v", form)
	}

	status, err := s.CacheJobStatus(ctx, ToolManageCache, job.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Healthy() || status.Finished() {
		t.Errorf("status = %+v", status)
	}
}

func TestLoadCacheSettings(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "cache.toml")
	os.WriteFile(good, []byte(`
out_folder = "d:\\arcgisserver\\directories\\arcgiscache"
tile_origin = "-20037508.342787 20037508.342787"
scales = "591657527.591555;295828763.795777"
dpi = 96
use_local_cache_dir = true
`), 0644)

	settings, err := LoadCacheSettings(good)
	if err != nil {
		t.Fatalf("LoadCacheSettings() error = %v", err)
	}
	if settings.TileWidth != 256 || settings.StorageFormat != "COMPACT" || !settings.UseLocalCacheDir {
		t.Errorf("settings = %+v", settings)
	}

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte(`dpi = 96`), 0644)
	if _, err := LoadCacheSettings(bad); err == nil {
		t.Error("expected an error for settings without out_folder")
	}
}
