package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "health"},
		{"/api/preview/{path:.*}", "api/preview"},
		{"/api/library/added", "api/library"},
		{"/api", "api"},
		{"/", ""},
		{"/metrics", "metrics"},
	}
	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	noop := func(http.ResponseWriter, *http.Request) {}
	r := mux.NewRouter()
	r.HandleFunc("/health", noop).Methods("GET")
	r.HandleFunc("/livez", noop).Methods("GET", "HEAD")
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/preview/{path:.*}", noop).Methods("GET").Name("preview")
	api.HandleFunc("/library/added", noop).Methods("POST")

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}

	want := []RouteInfo{
		{Methods: []string{"GET"}, Path: "/health"},
		{Methods: []string{"GET", "HEAD"}, Path: "/livez"},
		{Methods: []string{"GET"}, Path: "/api/preview/{path:.*}", Name: "preview"},
		{Methods: []string{"POST"}, Path: "/api/library/added"},
	}
	if len(routes) != len(want) {
		t.Fatalf("routes = %+v, want %d without the /api prefix", routes, len(want))
	}
	for i, route := range routes {
		if route.Path != want[i].Path || route.Name != want[i].Name || !slices.Equal(route.Methods, want[i].Methods) {
			t.Errorf("route %d = %+v, want %+v", i, route, want[i])
		}
	}
}

func TestEnsureDirectory(t *testing.T) {
	base := t.TempDir()

	created := filepath.Join(base, "new", "nested")
	if err := ensureDirectory(created, "cache"); err != nil {
		t.Fatalf("ensureDirectory: %v", err)
	}
	if info, err := os.Stat(created); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}

	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(file, "cache"); err == nil {
		t.Error("expected an error for a regular file")
	}
}

func TestTestWriteAccess(t *testing.T) {
	dir := t.TempDir()
	if err := testWriteAccess(dir); err != nil {
		t.Fatalf("testWriteAccess: %v", err)
	}
	if entries, err := os.ReadDir(dir); err != nil || len(entries) != 0 {
		t.Errorf("write test file left behind: %v %v", entries, err)
	}
	if err := testWriteAccess(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestEnabledString(t *testing.T) {
	if enabledString(true) != "ENABLED" || enabledString(false) != "DISABLED" {
		t.Error("unexpected enabled strings")
	}
}
