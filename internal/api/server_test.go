package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/MacphersonDesigns/site-scraper/internal/config"
	"github.com/MacphersonDesigns/site-scraper/internal/project"
	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

func testServer(t *testing.T) (*Server, *project.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := project.OpenStore(filepath.Join(t.TempDir(), "projects.json"), logger)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	runner := project.NewRunner(store, config.Default(), logger)
	return NewServer(store, runner), store
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthRoute(t *testing.T) {
	server, _ := testServer(t)
	rr := doRequest(t, server, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
}

func TestProjectCRUD(t *testing.T) {
	server, _ := testServer(t)

	// Create.
	rr := doRequest(t, server, http.MethodPost, "/api/projects", CreateProjectRequest{
		Name:   "Example",
		Config: types.ProjectConfig{SeedURLs: []string{"https://example.com"}, MaxPages: 5},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var created types.Project
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" || created.Status != types.StatusIdle {
		t.Fatalf("created = %+v", created)
	}

	// List.
	rr = doRequest(t, server, http.MethodGet, "/api/projects", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list []types.Project
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list = %d projects, want 1", len(list))
	}

	// Get.
	rr = doRequest(t, server, http.MethodGet, "/api/projects/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}

	// Update.
	rr = doRequest(t, server, http.MethodPut, "/api/projects/"+created.ID, CreateProjectRequest{Name: "Renamed"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var updated types.Project
	_ = json.Unmarshal(rr.Body.Bytes(), &updated)
	if updated.Name != "Renamed" {
		t.Fatalf("updated name = %q", updated.Name)
	}

	// Delete.
	rr = doRequest(t, server, http.MethodDelete, "/api/projects/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = doRequest(t, server, http.MethodGet, "/api/projects/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", rr.Code)
	}
}

func TestCreateProjectRejectsBadPayload(t *testing.T) {
	server, _ := testServer(t)

	rr := doRequest(t, server, http.MethodPost, "/api/projects", CreateProjectRequest{Name: "no-seeds"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed json status = %d, want 400", rec.Code)
	}
}

func TestRunConflictsWhileRunning(t *testing.T) {
	server, store := testServer(t)
	created, err := store.Create("p", types.ProjectConfig{SeedURLs: []string{"https://example.com"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Update(created.ID, func(p *types.Project) error {
		p.Status = types.StatusRunning
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rr := doRequest(t, server, http.MethodPost, "/api/projects/"+created.ID+"/run", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("run status = %d, want 409", rr.Code)
	}

	// Updating a running project is also a conflict.
	rr = doRequest(t, server, http.MethodPut, "/api/projects/"+created.ID, CreateProjectRequest{Name: "nope"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("update status = %d, want 409", rr.Code)
	}
}

func TestRunUnknownProject(t *testing.T) {
	server, _ := testServer(t)
	rr := doRequest(t, server, http.MethodPost, "/api/projects/missing/run", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestCancelWithoutRun(t *testing.T) {
	server, store := testServer(t)
	created, _ := store.Create("p", types.ProjectConfig{SeedURLs: []string{"https://example.com"}})

	rr := doRequest(t, server, http.MethodPost, "/api/projects/"+created.ID+"/cancel", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("cancel status = %d, want 409", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := testServer(t)
	rr := doRequest(t, server, http.MethodDelete, "/api/projects", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow == "" {
		t.Fatal("missing Allow header")
	}
}

func TestEventsRouteUnknownProject(t *testing.T) {
	server, _ := testServer(t)
	rr := doRequest(t, server, http.MethodGet, "/api/projects/missing/events", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
