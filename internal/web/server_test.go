package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer() *Server {
	snapshot := func() Snapshot {
		return Snapshot{
			Specimen:     6,
			SpecimenName: "Specimen 6",
			Tab:          1,
			TraySteps:    10000,
			Phase:        "holding",
			Initialized:  true,
			Autonomous:   true,
		}
	}
	return NewServer(":0", NewBroadcaster(), snapshot)
}

func TestHandleState(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	rec := httptest.NewRecorder()

	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Specimen != 6 || snap.Tab != 1 || snap.TraySteps != 10000 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Phase != "holding" || !snap.Initialized {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestServeIndex(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<html") {
		t.Error("index page body missing")
	}
}

func TestUnknownPathNotFound(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()

	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
