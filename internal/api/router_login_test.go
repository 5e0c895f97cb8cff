package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"zonegate/internal/models"
	"zonegate/internal/util"
)

func loginAs(t *testing.T, router http.Handler, email, password string) *clientSession {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/login", map[string]string{"email": email, "password": password}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	csrf, _ := body["csrf_token"].(string)
	return &clientSession{cookies: rec.Result().Cookies(), csrf: csrf}
}

func TestLoginBootstrapAdmin(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "admin@example.com", "password": "SecretPass123!",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["is_admin"] != true {
		t.Fatalf("bootstrap account should be admin: %v", body)
	}

	cs := &clientSession{cookies: rec.Result().Cookies(), csrf: body["csrf_token"].(string)}
	me := doJSON(t, router, http.MethodGet, "/api/v1/me", nil, cs)
	if decodeBody(t, me)["kind"] != "admin" {
		t.Fatalf("admin login should restore as admin identity")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "admin@example.com", "password": "WrongPass123!",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var apiErr util.APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if apiErr.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %q", apiErr.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("failed login must not set cookies")
	}
}

func TestWingToggleNeedsPremium(t *testing.T) {
	router, reg, _ := newTestRouter(t)
	seedTestCode(t, reg, "6060", models.LevelUser, "club-hollywood")
	cs := enterAs(t, router, "6060", "club-hollywood")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wing/toggle", nil, cs)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user-level toggle into night: expected 403, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["code"] != "wing_upgrade_required" || body["wing"] != "day" {
		t.Fatalf("refusal should hold the day wing, got %v", body)
	}
}

func TestWingTogglePremiumRoundTrip(t *testing.T) {
	router, reg, _ := newTestRouter(t)
	seedTestCode(t, reg, "7171", models.LevelPremium, "kazmo-mansion")
	cs := enterAs(t, router, "7171", "kazmo-mansion")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wing/toggle", nil, cs)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle to night: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["wing"] != "night" {
		t.Fatalf("expected night wing")
	}

	// The wing is per-session state: a plain restore sees it too.
	me := doJSON(t, router, http.MethodGet, "/api/v1/me", nil, cs)
	body := decodeBody(t, me)
	if body["wing"] != "night" || body["can_use_night"] != true {
		t.Fatalf("wing not persisted on the session: %v", body)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/wing/toggle", nil, cs)
	if decodeBody(t, rec)["wing"] != "day" {
		t.Fatalf("toggle back to day failed")
	}
}

func TestWingToggleRequiresCSRF(t *testing.T) {
	router, reg, _ := newTestRouter(t)
	seedTestCode(t, reg, "7171", models.LevelPremium, "kazmo-mansion")
	cs := enterAs(t, router, "7171", "kazmo-mansion")

	bare := &clientSession{cookies: cs.cookies}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/wing/toggle", nil, bare)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing csrf header: expected 403, got %d", rec.Code)
	}

	forged := &clientSession{cookies: cs.cookies, csrf: "not-the-cookie-value"}
	rec = doJSON(t, router, http.MethodPost, "/api/v1/wing/toggle", nil, forged)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mismatched csrf token: expected 403, got %d", rec.Code)
	}
}

func TestEnteringNewCodeReplacesIdentity(t *testing.T) {
	router, reg, _ := newTestRouter(t)
	seedTestCode(t, reg, "6060", models.LevelUser, "club-hollywood")
	seedTestCode(t, reg, "7171", models.LevelPremium, "kazmo-mansion")

	enterAs(t, router, "6060", "club-hollywood")
	cs := enterAs(t, router, "7171", "kazmo-mansion")

	me := doJSON(t, router, http.MethodGet, "/api/v1/me", nil, cs)
	body := decodeBody(t, me)
	if body["level"] != "premium" {
		t.Fatalf("second entry should replace the identity, got %v", body)
	}
	zonesGranted := body["granted_zones"].([]any)
	if len(zonesGranted) != 1 || zonesGranted[0] != "kazmo-mansion" {
		t.Fatalf("privileges must never merge across codes, got %v", zonesGranted)
	}
}
