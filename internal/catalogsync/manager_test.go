package catalogsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"zonegate/internal/config"
	"zonegate/internal/db"
	"zonegate/internal/store"
)

func newSyncStore(t *testing.T) *store.Store {
	t.Helper()
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "app.db"), 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })
	if err := db.ApplyMigrationFile(sqdb, filepath.Join("..", "..", "migrations", "001_init.sql")); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	return store.New(sqdb)
}

func TestStatusReportsDriftAgainstLoadedRevision(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("ETag", `"rev-9"`)
		_, _ = w.Write([]byte("revision: \"r9\"\nzones: []\n"))
	}))
	defer srv.Close()

	st := newSyncStore(t)
	m := NewManager(config.Config{
		CatalogSyncEnabled:     true,
		CatalogSyncURL:         srv.URL,
		CatalogSyncIntervalMin: 60,
	}, "r8")

	status, err := m.Status(context.Background(), st, true)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Enabled || status.LoadedRevision != "r8" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LatestRevision != "r9" || !status.Drift {
		t.Fatalf("expected drift r8 -> r9, got %+v", status)
	}
	if status.LastCheckAt == "" {
		t.Fatalf("expected a check timestamp")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one fetch, got %d", hits.Load())
	}

	// Inside the interval the cached answer is reused.
	if _, err := m.Status(context.Background(), st, false); err != nil {
		t.Fatalf("status: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("non-forced status inside the interval must not refetch, got %d", hits.Load())
	}
}

func TestRefreshSendsETagAndHandles304(t *testing.T) {
	var sawETag atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inm := r.Header.Get("If-None-Match"); inm != "" {
			sawETag.Store(inm)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"rev-1"`)
		_, _ = w.Write([]byte("revision: \"r1\"\n"))
	}))
	defer srv.Close()

	st := newSyncStore(t)
	m := NewManager(config.Config{
		CatalogSyncEnabled:     true,
		CatalogSyncURL:         srv.URL,
		CatalogSyncIntervalMin: 60,
	}, "r1")

	if _, err := m.Status(context.Background(), st, true); err != nil {
		t.Fatalf("first check: %v", err)
	}
	status, err := m.Status(context.Background(), st, true)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if got, _ := sawETag.Load().(string); got != `"rev-1"` {
		t.Fatalf("second fetch should carry the stored etag, got %q", got)
	}
	if status.Drift {
		t.Fatalf("matching revisions must not report drift: %+v", status)
	}
}

func TestForcedCheckSurfacesFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := newSyncStore(t)
	m := NewManager(config.Config{
		CatalogSyncEnabled:     true,
		CatalogSyncURL:         srv.URL,
		CatalogSyncIntervalMin: 60,
	}, "r1")

	if _, err := m.Status(context.Background(), st, true); err == nil {
		t.Fatalf("forced check should surface the fetch error")
	}
	// The error is persisted for the non-forced path to report.
	status, err := m.Status(context.Background(), st, false)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.LastCheckError == "" {
		t.Fatalf("expected last check error recorded, got %+v", status)
	}
}

func TestStatusDisabled(t *testing.T) {
	st := newSyncStore(t)
	m := NewManager(config.Config{}, "r1")
	status, err := m.Status(context.Background(), st, true)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Enabled || status.LatestRevision != "" {
		t.Fatalf("disabled sync should report nothing remote: %+v", status)
	}
}
