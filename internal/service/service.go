package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"zonegate/internal/access"
	"zonegate/internal/catalogsync"
	"zonegate/internal/config"
	"zonegate/internal/models"
	"zonegate/internal/notify"
	"zonegate/internal/provider"
	"zonegate/internal/registry"
	"zonegate/internal/session"
	"zonegate/internal/store"
	"zonegate/internal/wing"
	"zonegate/internal/zones"
)

var (
	ErrUnknownZone       = errors.New("unknown zone")
	ErrWingRefused       = errors.New("elevated wing requires premium access")
	ErrAlreadyDecided    = errors.New("registration already decided")
	ErrInvalidCredential = errors.New("invalid credentials")
)

type Service struct {
	cfg      config.Config
	st       *store.Store
	reg      registry.Registry
	catalog  *zones.Catalog
	resolver *access.Resolver
	sessions *session.Store
	prov     *provider.Provider
	sender   notify.Sender
	catsync  *catalogsync.Manager
}

func New(cfg config.Config, st *store.Store, reg registry.Registry, catalog *zones.Catalog, resolver *access.Resolver, sessions *session.Store, sender notify.Sender) *Service {
	if sender == nil {
		sender = notify.LogSender{}
	}
	return &Service{
		cfg:      cfg,
		st:       st,
		reg:      reg,
		catalog:  catalog,
		resolver: resolver,
		sessions: sessions,
		prov:     provider.New(st),
		sender:   sender,
		catsync:  catalogsync.NewManager(cfg, catalog.Revision()),
	}
}

func HashUA(ua string) string {
	s := sha256.Sum256([]byte(ua))
	return hex.EncodeToString(s[:])
}

func (s *Service) Catalog() *zones.Catalog    { return s.catalog }
func (s *Service) Resolver() *access.Resolver { return s.resolver }
func (s *Service) Sessions() *session.Store   { return s.sessions }

func (s *Service) Zones() []models.Zone { return s.catalog.List() }

// EnterZone is the one-shot entry path: resolve the code against the zone
// and, when allowed, establish a session. The outcome is returned either way
// so the caller can render the precise denial.
func (s *Service) EnterZone(ctx context.Context, code, zoneID, ip, ua string) (access.Outcome, string, error) {
	if _, ok := s.catalog.Get(zoneID); !ok {
		return access.Outcome{}, "", ErrUnknownZone
	}
	out := s.resolver.Resolve(ctx, code, zoneID)
	if !out.Allowed() {
		return out, "", nil
	}
	token, err := s.EstablishSession(ctx, out, ip, ua)
	if err != nil {
		return out, "", err
	}
	return out, token, nil
}

// EstablishSession turns an allowing outcome into a persisted session and
// returns the raw cookie token. The new identity replaces whatever session
// the caller held before.
func (s *Service) EstablishSession(ctx context.Context, out access.Outcome, ip, ua string) (string, error) {
	now := time.Now().UTC()
	var identity models.SessionIdentity
	switch {
	case out.Status == access.StatusAdminGranted:
		identity = models.Admin(now)
	case out.Status == access.StatusGranted && out.Record != nil:
		identity = models.Coded(*out.Record, now)
	default:
		return "", fmt.Errorf("outcome does not allow a session")
	}
	return s.sessions.Set(ctx, identity, ip, HashUA(ua))
}

func (s *Service) Logout(ctx context.Context, rawToken string) {
	s.sessions.Clear(ctx, rawToken)
}

// Login authenticates against the parallel provider source and establishes a
// session for the account. Coded access and provider access stay separate
// identities; whichever session the browser holds is the one that counts.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (string, provider.Account, error) {
	account, err := s.prov.Authenticate(ctx, email, password)
	if err != nil {
		return "", provider.Account{}, ErrInvalidCredential
	}
	identity := provider.ActiveIdentity(models.Guest(), &account)
	if account.IsAdmin {
		identity = models.Admin(time.Now().UTC())
	}
	token, err := s.sessions.Set(ctx, identity, ip, HashUA(ua))
	if err != nil {
		return "", provider.Account{}, err
	}
	return token, account, nil
}

// ToggleWing flips the session's wing, refusing the night wing below premium.
func (s *Service) ToggleWing(ctx context.Context, sess models.GateSession, identity models.SessionIdentity) (wing.Mode, error) {
	current := wing.Normalize(sess.Wing)
	next, refused := wing.Toggle(current, identity)
	if refused {
		return current, ErrWingRefused
	}
	if err := s.sessions.SetWing(ctx, sess.ID, string(next)); err != nil {
		return current, err
	}
	return next, nil
}

// Signup records a pending registration. Codes are only minted on approval.
func (s *Service) Signup(ctx context.Context, displayName, contact string, requestedZones []string, ip, ua string, captchaOK bool) (models.Registration, error) {
	displayName = strings.TrimSpace(displayName)
	contact = strings.ToLower(strings.TrimSpace(contact))
	if displayName == "" || contact == "" {
		return models.Registration{}, errors.New("name and contact are required")
	}
	clean := make([]string, 0, len(requestedZones))
	for _, z := range requestedZones {
		z = strings.TrimSpace(z)
		if z == "" {
			continue
		}
		if _, ok := s.catalog.Get(z); !ok {
			return models.Registration{}, fmt.Errorf("%w: %s", ErrUnknownZone, z)
		}
		clean = append(clean, z)
	}
	return s.st.CreateRegistration(ctx, displayName, contact, clean, ip, HashUA(ua), captchaOK)
}

// ApproveRegistration mints the entry code, marks the registration decided
// and notifies the contact. The level and zone set can be overridden by the
// approving admin; otherwise the requested zones are granted at user level.
func (s *Service) ApproveRegistration(ctx context.Context, actor, regID string, level models.AccessLevel, zoneOverride []string) (models.IdentityRecord, error) {
	r, err := s.st.GetRegistrationByID(ctx, regID)
	if err != nil {
		return models.IdentityRecord{}, err
	}
	if r.Status != models.RegistrationPending {
		return models.IdentityRecord{}, ErrAlreadyDecided
	}
	granted := r.RequestedZones
	if len(zoneOverride) > 0 {
		granted = zoneOverride
	}
	for _, z := range granted {
		if _, ok := s.catalog.Get(z); !ok {
			return models.IdentityRecord{}, fmt.Errorf("%w: %s", ErrUnknownZone, z)
		}
	}
	rec, err := s.resolver.GenerateCode(ctx, models.IdentityRecord{
		DisplayName:   r.DisplayName,
		ContactHandle: r.ContactHandle,
		Level:         level,
		GrantedZones:  granted,
		IsActive:      true,
	})
	if err != nil {
		return models.IdentityRecord{}, err
	}
	if err := s.st.SetRegistrationDecision(ctx, regID, models.RegistrationApproved, actor, "", rec.Code); err != nil {
		return models.IdentityRecord{}, err
	}
	if err := s.sender.SendCodeIssued(ctx, r.ContactHandle, r.DisplayName, rec.Code, granted); err != nil {
		// Delivery problems are not a reason to roll back the approval.
		meta, _ := json.Marshal(map[string]string{"registration_id": regID, "error": err.Error()})
		_ = s.st.InsertAudit(ctx, actor, "registration.notify_failed", r.ContactHandle, string(meta))
	}
	meta, _ := json.Marshal(map[string]string{"registration_id": regID, "code": rec.Code, "level": level.String()})
	_ = s.st.InsertAudit(ctx, actor, "registration.approve", r.ContactHandle, string(meta))
	return rec, nil
}

func (s *Service) RejectRegistration(ctx context.Context, actor, regID, reason string) error {
	if err := s.st.SetRegistrationDecision(ctx, regID, models.RegistrationRejected, actor, reason, ""); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrAlreadyDecided
		}
		return err
	}
	meta, _ := json.Marshal(map[string]string{"registration_id": regID, "reason": reason})
	return s.st.InsertAudit(ctx, actor, "registration.reject", regID, string(meta))
}

func (s *Service) ListRegistrations(ctx context.Context, status models.RegistrationStatus, limit, offset int) ([]models.Registration, error) {
	return s.st.ListRegistrations(ctx, status, limit, offset)
}

func (s *Service) ListCodes(ctx context.Context, limit, offset int) ([]models.IdentityRecord, error) {
	return s.reg.List(ctx, limit, offset)
}

// CreateCode mints a code directly, without a registration. Admin path.
func (s *Service) CreateCode(ctx context.Context, actor, displayName, contact string, level models.AccessLevel, grantedZones []string) (models.IdentityRecord, error) {
	for _, z := range grantedZones {
		if _, ok := s.catalog.Get(z); !ok {
			return models.IdentityRecord{}, fmt.Errorf("%w: %s", ErrUnknownZone, z)
		}
	}
	rec, err := s.resolver.GenerateCode(ctx, models.IdentityRecord{
		DisplayName:   strings.TrimSpace(displayName),
		ContactHandle: strings.ToLower(strings.TrimSpace(contact)),
		Level:         level,
		GrantedZones:  grantedZones,
		IsActive:      true,
	})
	if err != nil {
		return models.IdentityRecord{}, err
	}
	meta, _ := json.Marshal(map[string]string{"code": rec.Code, "level": level.String()})
	_ = s.st.InsertAudit(ctx, actor, "code.create", rec.Code, string(meta))
	return rec, nil
}

// SetCodeActive flips the active flag. Deactivation is how codes retire;
// registry rows are never deleted.
func (s *Service) SetCodeActive(ctx context.Context, actor, code string, active bool) error {
	if err := s.reg.SetActive(ctx, code, active); err != nil {
		return err
	}
	action := "code.deactivate"
	if active {
		action = "code.activate"
	}
	return s.st.InsertAudit(ctx, actor, action, code, `{}`)
}

func (s *Service) SetCodeZones(ctx context.Context, actor, code string, zoneIDs []string) error {
	for _, z := range zoneIDs {
		if _, ok := s.catalog.Get(z); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownZone, z)
		}
	}
	if err := s.reg.SetZones(ctx, code, zoneIDs); err != nil {
		return err
	}
	meta, _ := json.Marshal(map[string]any{"zones": zoneIDs})
	return s.st.InsertAudit(ctx, actor, "code.set_zones", code, string(meta))
}

func (s *Service) SetCodeLevel(ctx context.Context, actor, code string, level models.AccessLevel) error {
	if err := s.reg.SetLevel(ctx, code, level); err != nil {
		return err
	}
	meta, _ := json.Marshal(map[string]string{"level": level.String()})
	return s.st.InsertAudit(ctx, actor, "code.set_level", code, string(meta))
}

func (s *Service) ListAudit(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	return s.st.ListAudit(ctx, limit, offset)
}

func (s *Service) CatalogStatus(ctx context.Context, forceCheck bool) (catalogsync.Status, error) {
	return s.catsync.Status(ctx, s.st, forceCheck)
}

func (s *Service) RunCatalogSync(ctx context.Context) {
	s.catsync.RunWorker(ctx, s.st)
}

func (s *Service) PingStore(ctx context.Context) error    { return s.st.Ping(ctx) }
func (s *Service) PingRegistry(ctx context.Context) error { return s.reg.Ping(ctx) }
