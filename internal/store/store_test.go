package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"zonegate/internal/db"
	"zonegate/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "app.db"), 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })
	if err := db.ApplyMigrationFile(sqdb, filepath.Join("..", "..", "migrations", "001_init.sql")); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	return New(sqdb)
}

func TestRegistrationLifecycle(t *testing.T) {
	st := newTestStore(t)
	reg, err := st.CreateRegistration(context.Background(), "Maya", "maya@example.com",
		[]string{"club-hollywood", "shadow-market"}, "127.0.0.1", "ua", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if reg.Status != models.RegistrationPending {
		t.Fatalf("expected pending, got %s", reg.Status)
	}

	pending, err := st.ListRegistrations(context.Background(), models.RegistrationPending, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != reg.ID {
		t.Fatalf("expected the pending registration listed, got %+v", pending)
	}
	if len(pending[0].RequestedZones) != 2 {
		t.Fatalf("requested zones lost: %v", pending[0].RequestedZones)
	}

	if err := st.SetRegistrationDecision(context.Background(), reg.ID, models.RegistrationApproved, "admin", "", "7788"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, err := st.GetRegistrationByID(context.Background(), reg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.RegistrationApproved || got.IssuedCode == nil || *got.IssuedCode != "7788" {
		t.Fatalf("approval not recorded: %+v", got)
	}
	if got.DecidedAt == nil || got.DecidedBy == nil || *got.DecidedBy != "admin" {
		t.Fatalf("decision metadata missing: %+v", got)
	}
}

func TestDecidingTwiceIsConflict(t *testing.T) {
	st := newTestStore(t)
	reg, err := st.CreateRegistration(context.Background(), "Maya", "maya@example.com", nil, "", "", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.SetRegistrationDecision(context.Background(), reg.ID, models.RegistrationRejected, "admin", "spam", ""); err != nil {
		t.Fatalf("reject: %v", err)
	}
	err = st.SetRegistrationDecision(context.Background(), reg.ID, models.RegistrationApproved, "admin", "", "7788")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on a second decision, got %v", err)
	}
}

func TestEnsureAdminAccountIsIdempotentAndPromotes(t *testing.T) {
	st := newTestStore(t)
	if err := st.EnsureAdminAccount(context.Background(), "admin@example.com", "hash1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := st.EnsureAdminAccount(context.Background(), "admin@example.com", "hash2"); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	acc, err := st.GetProviderAccountByEmail(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !acc.IsAdmin || !acc.Premium {
		t.Fatalf("bootstrap admin should be admin+premium: %+v", acc)
	}
	if acc.PasswordHash != "hash2" {
		t.Fatalf("re-running bootstrap should refresh the password hash, got %q", acc.PasswordHash)
	}
}

func TestSettingsUpsertRoundTrip(t *testing.T) {
	st := newTestStore(t)
	if _, ok, err := st.GetSetting(context.Background(), "catalog_etag"); err != nil || ok {
		t.Fatalf("expected missing setting, ok=%v err=%v", ok, err)
	}
	if err := st.UpsertSetting(context.Background(), "catalog_etag", `"abc"`); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.UpsertSetting(context.Background(), "catalog_etag", `"def"`); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	v, ok, err := st.GetSetting(context.Background(), "catalog_etag")
	if err != nil || !ok || v != `"def"` {
		t.Fatalf("expected def, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestAuditLogNewestFirst(t *testing.T) {
	st := newTestStore(t)
	for _, action := range []string{"code.create", "code.deactivate"} {
		if err := st.InsertAudit(context.Background(), "admin", action, "4711", ""); err != nil {
			t.Fatalf("insert %s: %v", action, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	items, err := st.ListAudit(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Action != "code.deactivate" {
		t.Fatalf("expected newest first, got %+v", items)
	}
}
