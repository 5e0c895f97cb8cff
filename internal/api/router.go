package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"zonegate/internal/access"
	"zonegate/internal/captcha"
	"zonegate/internal/config"
	"zonegate/internal/gate"
	"zonegate/internal/middleware"
	"zonegate/internal/models"
	"zonegate/internal/rate"
	"zonegate/internal/registry"
	"zonegate/internal/service"
	"zonegate/internal/store"
	"zonegate/internal/util"
	"zonegate/internal/version"
	"zonegate/internal/wing"
)

type Handlers struct {
	cfg             config.Config
	svc             *service.Service
	gates           *gate.Manager
	limiter         *rate.Limiter
	captchaVerifier captcha.Verifier
}

func NewRouter(cfg config.Config, svc *service.Service) http.Handler {
	h := &Handlers{
		cfg:             cfg,
		svc:             svc,
		gates:           gate.NewManager(svc.Resolver(), cfg.GateCheckTimeout(), cfg.GateSessionTTL()),
		limiter:         rate.NewLimiter(),
		captchaVerifier: captcha.NewVerifier(cfg),
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-CSRF-Token"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", h.HealthReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionLoader(svc.Sessions(), cfg.SessionCookieName))

		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			util.WriteJSON(w, 200, version.Current())
		})
		r.Get("/zones", h.ListZones)
		r.With(middleware.RateLimit(h.limiter, "signup", 10, time.Minute, cfg.TrustProxy)).Post("/signup", h.Signup)
		r.With(middleware.RateLimit(h.limiter, "login", 20, time.Minute, cfg.TrustProxy)).Post("/login", h.Login)
		r.With(middleware.RateLimit(h.limiter, "enter", 30, time.Minute, cfg.TrustProxy)).Post("/enter", h.Enter)
		r.Post("/logout", h.Logout)

		r.Post("/gate", h.OpenGate)
		r.Get("/gate/{id}", h.GateState)
		r.With(middleware.RateLimit(h.limiter, "gate_press", 120, time.Minute, cfg.TrustProxy)).Post("/gate/{id}/press", h.GatePress)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession)
			r.Get("/me", h.Me)
			r.With(middleware.CSRFFromCookie(cfg.CSRFCookieName)).Post("/wing/toggle", h.ToggleWing)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Get("/registrations", h.AdminListRegistrations)
				r.Get("/codes", h.AdminListCodes)
				r.Get("/audit-log", h.AdminAuditLog)
				r.Get("/catalog/status", h.AdminCatalogStatus)
				r.Group(func(r chi.Router) {
					r.Use(middleware.CSRFFromCookie(cfg.CSRFCookieName))
					r.Post("/registrations/{id}/approve", h.AdminApproveRegistration)
					r.Post("/registrations/{id}/reject", h.AdminRejectRegistration)
					r.Post("/codes", h.AdminCreateCode)
					r.Post("/codes/{code}/activate", h.AdminActivateCode)
					r.Post("/codes/{code}/deactivate", h.AdminDeactivateCode)
					r.Post("/codes/{code}/zones", h.AdminSetCodeZones)
					r.Post("/codes/{code}/level", h.AdminSetCodeLevel)
				})
			})
		})
	})

	return r
}

func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := map[string]any{
		"checked_at": time.Now().UTC().Format(time.RFC3339),
		"components": map[string]any{},
	}
	comps := ready["components"].(map[string]any)
	ok := true

	if err := h.svc.PingStore(r.Context()); err != nil {
		ok = false
		comps["app_db"] = map[string]any{"ok": false, "error": err.Error()}
	} else {
		comps["app_db"] = map[string]any{"ok": true}
	}
	if err := h.svc.PingRegistry(r.Context()); err != nil {
		ok = false
		comps["registry"] = map[string]any{"ok": false, "error": err.Error()}
	} else {
		comps["registry"] = map[string]any{"ok": true}
	}

	if ok {
		ready["status"] = "ready"
		util.WriteJSON(w, 200, ready)
		return
	}
	ready["status"] = "degraded"
	util.WriteJSON(w, 503, ready)
}

func (h *Handlers) ListZones(w http.ResponseWriter, r *http.Request) {
	zs := h.svc.Zones()
	items := make([]map[string]string, 0, len(zs))
	for _, z := range zs {
		items = append(items, map[string]string{
			"id":        z.ID,
			"name":      z.DisplayName,
			"min_level": z.MinimumLevel.String(),
		})
	}
	util.WriteJSON(w, 200, map[string]any{"items": items})
}

type signupRequest struct {
	Name           string   `json:"name"`
	Contact        string   `json:"contact"`
	RequestedZones []string `json:"requested_zones"`
	CaptchaToken   string   `json:"captcha_token"`
}

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	captchaOK := true
	if h.cfg.CaptchaEnabled {
		ip := middleware.ClientIP(r, h.cfg.TrustProxy)
		if err := h.captchaVerifier.Verify(r.Context(), req.CaptchaToken, ip); err != nil {
			util.WriteError(w, 400, "captcha_required", "captcha validation failed", middleware.RequestID(r.Context()))
			return
		}
	}
	reg, err := h.svc.Signup(r.Context(), req.Name, req.Contact, req.RequestedZones, middleware.ClientIP(r, h.cfg.TrustProxy), r.UserAgent(), captchaOK)
	if err != nil {
		util.WriteError(w, 400, "signup_failed", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 201, map[string]string{"status": "pending_approval", "registration_id": reg.ID})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	token, account, err := h.svc.Login(r.Context(), req.Email, req.Password, middleware.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())
	if err != nil {
		util.WriteError(w, 401, "invalid_credentials", "invalid email or password", middleware.RequestID(r.Context()))
		return
	}
	csrfToken := randomToken()
	h.setAuthCookies(w, token, csrfToken)
	util.WriteJSON(w, 200, map[string]any{
		"email":      account.Email,
		"premium":    account.Premium,
		"is_admin":   account.IsAdmin,
		"csrf_token": csrfToken,
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	c, _ := r.Cookie(h.cfg.SessionCookieName)
	if c != nil && c.Value != "" {
		h.svc.Logout(r.Context(), c.Value)
	}
	h.clearAuthCookies(w)
	util.WriteJSON(w, 200, map[string]string{"status": "ok"})
}

type enterRequest struct {
	Code string `json:"code"`
	Zone string `json:"zone"`
}

func (h *Handlers) Enter(w http.ResponseWriter, r *http.Request) {
	var req enterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	out, token, err := h.svc.EnterZone(r.Context(), req.Code, req.Zone, middleware.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())
	if errors.Is(err, service.ErrUnknownZone) {
		util.WriteError(w, 404, "unknown_zone", "no such zone", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	if !out.Allowed() {
		h.writeDenied(w, r, out)
		return
	}
	csrfToken := randomToken()
	h.setAuthCookies(w, token, csrfToken)
	util.WriteJSON(w, 200, grantedPayload(out, csrfToken))
}

// writeDenied maps each denial to its own status and payload. System errors
// must never read like a wrong code.
func (h *Handlers) writeDenied(w http.ResponseWriter, r *http.Request, out access.Outcome) {
	rid := middleware.RequestID(r.Context())
	body := map[string]any{"status": "denied", "reason": out.Reason, "request_id": rid}
	switch out.Reason {
	case access.ReasonInvalidCode:
		util.WriteJSON(w, 401, body)
	case access.ReasonZoneNotGranted:
		if out.Record != nil {
			body["granted_zones"] = out.Record.GrantedZones
		}
		util.WriteJSON(w, 403, body)
	case access.ReasonInsufficientLevel:
		body["required_level"] = out.RequiredLevel.String()
		if out.Record != nil {
			body["current_level"] = out.Record.Level.String()
		}
		util.WriteJSON(w, 403, body)
	default:
		body["message"] = "could not check the code, try again"
		util.WriteJSON(w, 503, body)
	}
}

func grantedPayload(out access.Outcome, csrfToken string) map[string]any {
	body := map[string]any{"status": string(out.Status), "csrf_token": csrfToken}
	if out.Record != nil {
		body["display_name"] = out.Record.DisplayName
		body["level"] = out.Record.Level.String()
		body["granted_zones"] = out.Record.GrantedZones
	}
	return body
}

type openGateRequest struct {
	Zone string `json:"zone"`
}

func (h *Handlers) OpenGate(w http.ResponseWriter, r *http.Request) {
	var req openGateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	if _, ok := h.svc.Catalog().Get(req.Zone); !ok {
		util.WriteError(w, 404, "unknown_zone", "no such zone", middleware.RequestID(r.Context()))
		return
	}
	id, ctrl := h.gates.Open(req.Zone)
	util.WriteJSON(w, 201, map[string]any{"gate_id": id, "gate": snapshotPayload(ctrl.Snapshot())})
}

func (h *Handlers) GateState(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.gates.Get(chi.URLParam(r, "id"))
	if !ok {
		util.WriteError(w, 404, "gate_not_found", "gate session expired or unknown", middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]any{"gate": snapshotPayload(ctrl.Snapshot())})
}

type pressRequest struct {
	Key string `json:"key"`
}

func (h *Handlers) GatePress(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.gates.Get(chi.URLParam(r, "id"))
	if !ok {
		util.WriteError(w, 404, "gate_not_found", "gate session expired or unknown", middleware.RequestID(r.Context()))
		return
	}
	var req pressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	snap := ctrl.Press(r.Context(), req.Key)
	body := map[string]any{"gate": snapshotPayload(snap)}
	if snap.State == gate.StateGranted && snap.Outcome != nil {
		token, err := h.svc.EstablishSession(r.Context(), *snap.Outcome, middleware.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())
		if err != nil {
			util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
			return
		}
		csrfToken := randomToken()
		h.setAuthCookies(w, token, csrfToken)
		body["session"] = grantedPayload(*snap.Outcome, csrfToken)
		ctrl.Reset()
	}
	util.WriteJSON(w, 200, body)
}

func snapshotPayload(snap gate.Snapshot) map[string]any {
	body := map[string]any{
		"state":       string(snap.State),
		"zone_id":     snap.ZoneID,
		"entered":     snap.Entered,
		"code_length": snap.CodeLength,
	}
	if snap.State == gate.StateDenied {
		body["reason"] = string(snap.Reason)
		if snap.Outcome != nil && snap.Outcome.Record != nil {
			if snap.Reason == access.ReasonZoneNotGranted {
				body["granted_zones"] = snap.Outcome.Record.GrantedZones
			}
			if snap.Reason == access.ReasonInsufficientLevel {
				body["required_level"] = snap.Outcome.RequiredLevel.String()
				body["current_level"] = snap.Outcome.Record.Level.String()
			}
		}
	}
	return body
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())
	sess, _ := middleware.Session(r.Context())
	mode := wing.Normalize(sess.Wing)
	body := map[string]any{
		"kind":          string(identity.Kind),
		"level":         identity.Level().String(),
		"wing":          string(mode),
		"can_use_night": wing.CanEnterElevatedWing(identity),
	}
	if identity.Kind == models.KindCoded && identity.Record != nil {
		body["display_name"] = identity.Record.DisplayName
		body["granted_zones"] = identity.Record.GrantedZones
	}
	util.WriteJSON(w, 200, body)
}

func (h *Handlers) ToggleWing(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())
	sess, ok := middleware.Session(r.Context())
	if !ok {
		util.WriteError(w, 401, "unauthorized", "an established session is required", middleware.RequestID(r.Context()))
		return
	}
	mode, err := h.svc.ToggleWing(r.Context(), sess, identity)
	if errors.Is(err, service.ErrWingRefused) {
		util.WriteJSON(w, 403, map[string]any{
			"code":    "wing_upgrade_required",
			"message": "the night wing needs premium access",
			"wing":    string(mode),
		})
		return
	}
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]string{"wing": string(mode)})
}

func (h *Handlers) AdminListRegistrations(w http.ResponseWriter, r *http.Request) {
	status := models.RegistrationStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.RegistrationPending
	}
	limit, offset := parsePage(r)
	items, err := h.svc.ListRegistrations(r.Context(), status, limit, offset)
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, reg := range items {
		entry := map[string]any{
			"id":              reg.ID,
			"name":            reg.DisplayName,
			"contact":         reg.ContactHandle,
			"requested_zones": reg.RequestedZones,
			"captcha_ok":      reg.CaptchaOK,
			"status":          string(reg.Status),
			"created_at":      reg.CreatedAt.Format(time.RFC3339),
		}
		if reg.IssuedCode != nil {
			entry["issued_code"] = *reg.IssuedCode
		}
		if reg.Reason != nil {
			entry["reason"] = *reg.Reason
		}
		out = append(out, entry)
	}
	util.WriteJSON(w, 200, map[string]any{"items": out})
}

type approveRequest struct {
	Level string   `json:"level"`
	Zones []string `json:"zones"`
}

func (h *Handlers) AdminApproveRegistration(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	level := models.LevelUser
	if req.Level != "" {
		var ok bool
		level, ok = models.ParseLevel(req.Level)
		if !ok {
			util.WriteError(w, 400, "bad_request", "unknown level", middleware.RequestID(r.Context()))
			return
		}
	}
	rec, err := h.svc.ApproveRegistration(r.Context(), actorLabel(r), chi.URLParam(r, "id"), level, req.Zones)
	if err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"status": "approved", "code": rec.Code, "level": rec.Level.String(), "granted_zones": rec.GrantedZones})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) AdminRejectRegistration(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	if err := h.svc.RejectRegistration(r.Context(), actorLabel(r), chi.URLParam(r, "id"), req.Reason); err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "rejected"})
}

func (h *Handlers) AdminListCodes(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	items, err := h.svc.ListCodes(r.Context(), limit, offset)
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]any{"items": items})
}

type createCodeRequest struct {
	Name    string   `json:"name"`
	Contact string   `json:"contact"`
	Level   string   `json:"level"`
	Zones   []string `json:"zones"`
}

func (h *Handlers) AdminCreateCode(w http.ResponseWriter, r *http.Request) {
	var req createCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	level := models.LevelUser
	if req.Level != "" {
		var ok bool
		level, ok = models.ParseLevel(req.Level)
		if !ok {
			util.WriteError(w, 400, "bad_request", "unknown level", middleware.RequestID(r.Context()))
			return
		}
	}
	rec, err := h.svc.CreateCode(r.Context(), actorLabel(r), req.Name, req.Contact, level, req.Zones)
	if err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	util.WriteJSON(w, 201, rec)
}

func (h *Handlers) AdminActivateCode(w http.ResponseWriter, r *http.Request) {
	h.setCodeActive(w, r, true)
}

func (h *Handlers) AdminDeactivateCode(w http.ResponseWriter, r *http.Request) {
	h.setCodeActive(w, r, false)
}

func (h *Handlers) setCodeActive(w http.ResponseWriter, r *http.Request, active bool) {
	if err := h.svc.SetCodeActive(r.Context(), actorLabel(r), chi.URLParam(r, "code"), active); err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]bool{"is_active": active})
}

type setZonesRequest struct {
	Zones []string `json:"zones"`
}

func (h *Handlers) AdminSetCodeZones(w http.ResponseWriter, r *http.Request) {
	var req setZonesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	if err := h.svc.SetCodeZones(r.Context(), actorLabel(r), chi.URLParam(r, "code"), req.Zones); err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"granted_zones": req.Zones})
}

type setLevelRequest struct {
	Level string `json:"level"`
}

func (h *Handlers) AdminSetCodeLevel(w http.ResponseWriter, r *http.Request) {
	var req setLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	level, ok := models.ParseLevel(req.Level)
	if !ok {
		util.WriteError(w, 400, "bad_request", "unknown level", middleware.RequestID(r.Context()))
		return
	}
	if err := h.svc.SetCodeLevel(r.Context(), actorLabel(r), chi.URLParam(r, "code"), level); err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]string{"level": level.String()})
}

func (h *Handlers) AdminAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	items, err := h.svc.ListAudit(r.Context(), limit, offset)
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]any{"items": items})
}

func (h *Handlers) AdminCatalogStatus(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "true"
	status, err := h.svc.CatalogStatus(r.Context(), force)
	if err != nil {
		util.WriteError(w, 502, "catalog_check_failed", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, status)
}

func (h *Handlers) writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	rid := middleware.RequestID(r.Context())
	switch {
	case errors.Is(err, service.ErrUnknownZone):
		util.WriteError(w, 400, "unknown_zone", err.Error(), rid)
	case errors.Is(err, service.ErrAlreadyDecided):
		util.WriteError(w, 409, "already_decided", err.Error(), rid)
	case isNotFound(err):
		util.WriteError(w, 404, "not_found", "no such record", rid)
	default:
		util.WriteError(w, 500, "internal_error", err.Error(), rid)
	}
}

func actorLabel(r *http.Request) string {
	identity := middleware.Identity(r.Context())
	if identity.Kind == models.KindCoded && identity.Record != nil {
		if identity.Record.Code != "" {
			return "code:" + identity.Record.Code
		}
		return "account:" + identity.Record.ContactHandle
	}
	return "admin"
}

func parsePage(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func randomToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func (h *Handlers) setAuthCookies(w http.ResponseWriter, sessionToken, csrfToken string) {
	maxAge := 0
	if d := h.cfg.SessionAbsoluteDuration(); d > 0 {
		maxAge = int(d.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *Handlers) clearAuthCookies(w http.ResponseWriter) {
	expiredAt := time.Unix(1, 0).UTC()
	for _, c := range []http.Cookie{
		{Name: h.cfg.SessionCookieName, HttpOnly: true},
		{Name: h.cfg.CSRFCookieName},
	} {
		c.Value = ""
		c.Path = "/"
		c.Secure = h.cfg.CookieSecure
		c.SameSite = http.SameSiteLaxMode
		c.MaxAge = -1
		c.Expires = expiredAt
		cc := c
		http.SetCookie(w, &cc)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, registry.ErrNotFound)
}
