// Package store is the app-database layer: durable sessions, signups,
// provider accounts, the audit log and the settings table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"zonegate/internal/models"
)

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateGateSession(ctx context.Context, sess models.GateSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gate_sessions(id,token_hash,identity_json,admin_seal,wing,ip_hint,user_agent_hash,expires_at,idle_expires_at,created_at,last_seen_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		sess.ID, sess.TokenHash, sess.IdentityJSON, sess.AdminSeal, sess.Wing, sess.IPHint, sess.UserAgentHash, sess.ExpiresAt, sess.IdleExpiresAt, sess.CreatedAt, sess.LastSeenAt,
	)
	return err
}

func (s *Store) GetGateSessionByTokenHash(ctx context.Context, tokenHash string) (models.GateSession, error) {
	var sess models.GateSession
	var expires, idleExpires, revoked sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id,token_hash,identity_json,admin_seal,wing,ip_hint,user_agent_hash,expires_at,idle_expires_at,created_at,last_seen_at,revoked_at FROM gate_sessions WHERE token_hash=?`,
		tokenHash,
	).Scan(&sess.ID, &sess.TokenHash, &sess.IdentityJSON, &sess.AdminSeal, &sess.Wing, &sess.IPHint, &sess.UserAgentHash, &expires, &idleExpires, &sess.CreatedAt, &sess.LastSeenAt, &revoked)
	if err == sql.ErrNoRows {
		return models.GateSession{}, ErrNotFound
	}
	if err != nil {
		return models.GateSession{}, err
	}
	if expires.Valid {
		t := expires.Time
		sess.ExpiresAt = &t
	}
	if idleExpires.Valid {
		t := idleExpires.Time
		sess.IdleExpiresAt = &t
	}
	if revoked.Valid {
		t := revoked.Time
		sess.RevokedAt = &t
	}
	return sess, nil
}

func (s *Store) TouchGateSession(ctx context.Context, id string, idleExpiry *time.Time) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE gate_sessions SET last_seen_at=?, idle_expires_at=? WHERE id=?`, now, idleExpiry, id)
	return err
}

func (s *Store) UpdateGateSessionIdentity(ctx context.Context, id, identityJSON, adminSeal string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE gate_sessions SET identity_json=?, admin_seal=? WHERE id=?`, identityJSON, adminSeal, id)
	return err
}

func (s *Store) UpdateGateSessionWing(ctx context.Context, id, wing string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE gate_sessions SET wing=? WHERE id=?`, wing, id)
	return err
}

func (s *Store) RevokeGateSession(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE gate_sessions SET revoked_at=? WHERE id=?`, now, id)
	return err
}

func (s *Store) CreateProviderAccount(ctx context.Context, email, passwordHash string, premium, isAdmin bool) (models.ProviderAccount, error) {
	now := time.Now().UTC()
	a := models.ProviderAccount{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, Premium: premium, IsAdmin: isAdmin, CreatedAt: now}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_accounts(id,email,password_hash,premium,is_admin,created_at) VALUES(?,?,?,?,?,?)`,
		a.ID, a.Email, a.PasswordHash, boolToInt(premium), boolToInt(isAdmin), now,
	)
	if err != nil && isUniqueErr(err) {
		return models.ProviderAccount{}, ErrConflict
	}
	return a, err
}

func (s *Store) GetProviderAccountByEmail(ctx context.Context, email string) (models.ProviderAccount, error) {
	var a models.ProviderAccount
	var premium, isAdmin int
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id,email,password_hash,premium,is_admin,created_at,last_login_at FROM provider_accounts WHERE email=?`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &premium, &isAdmin, &a.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return models.ProviderAccount{}, ErrNotFound
	}
	if err != nil {
		return models.ProviderAccount{}, err
	}
	a.Premium = premium == 1
	a.IsAdmin = isAdmin == 1
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return a, nil
}

func (s *Store) EnsureAdminAccount(ctx context.Context, email, passwordHash string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return nil
	}
	a, err := s.GetProviderAccountByEmail(ctx, email)
	if err == ErrNotFound {
		_, err = s.CreateProviderAccount(ctx, email, passwordHash, true, true)
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE provider_accounts SET password_hash=?, premium=1, is_admin=1 WHERE id=?`,
		passwordHash, a.ID,
	)
	return err
}

func (s *Store) TouchProviderLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE provider_accounts SET last_login_at=? WHERE id=?`, at, id)
	return err
}

func (s *Store) CreateRegistration(ctx context.Context, displayName, contact string, requestedZones []string, ip, uaHash string, captchaOK bool) (models.Registration, error) {
	now := time.Now().UTC()
	r := models.Registration{
		ID:             uuid.NewString(),
		DisplayName:    displayName,
		ContactHandle:  contact,
		RequestedZones: requestedZones,
		SourceIP:       ip,
		UserAgentHash:  uaHash,
		CaptchaOK:      captchaOK,
		Status:         models.RegistrationPending,
		CreatedAt:      now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations(id,display_name,contact_handle,requested_zones,source_ip,user_agent_hash,captcha_ok,status,created_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		r.ID, r.DisplayName, r.ContactHandle, strings.Join(requestedZones, ","), r.SourceIP, r.UserAgentHash, boolToInt(captchaOK), r.Status, r.CreatedAt,
	)
	return r, err
}

func (s *Store) GetRegistrationByID(ctx context.Context, id string) (models.Registration, error) {
	var r models.Registration
	var zonesCSV string
	var cap int
	var decidedAt sql.NullTime
	var decidedBy, reason, issuedCode sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id,display_name,contact_handle,requested_zones,source_ip,user_agent_hash,captcha_ok,status,created_at,decided_at,decided_by,reason,issued_code FROM registrations WHERE id=?`,
		id,
	).Scan(&r.ID, &r.DisplayName, &r.ContactHandle, &zonesCSV, &r.SourceIP, &r.UserAgentHash, &cap, &r.Status, &r.CreatedAt, &decidedAt, &decidedBy, &reason, &issuedCode)
	if err == sql.ErrNoRows {
		return models.Registration{}, ErrNotFound
	}
	if err != nil {
		return models.Registration{}, err
	}
	r.RequestedZones = splitCSV(zonesCSV)
	r.CaptchaOK = cap == 1
	if decidedAt.Valid {
		t := decidedAt.Time
		r.DecidedAt = &t
	}
	if decidedBy.Valid {
		v := decidedBy.String
		r.DecidedBy = &v
	}
	if reason.Valid {
		v := reason.String
		r.Reason = &v
	}
	if issuedCode.Valid {
		v := issuedCode.String
		r.IssuedCode = &v
	}
	return r, nil
}

func (s *Store) ListRegistrations(ctx context.Context, status models.RegistrationStatus, limit, offset int) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,display_name,contact_handle,requested_zones,source_ip,user_agent_hash,captcha_ok,status,created_at,decided_at,decided_by,reason,issued_code FROM registrations WHERE status=? ORDER BY created_at ASC LIMIT ? OFFSET ?`,
		status, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Registration
	for rows.Next() {
		var r models.Registration
		var zonesCSV string
		var cap int
		var decidedAt sql.NullTime
		var decidedBy, reason, issuedCode sql.NullString
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.ContactHandle, &zonesCSV, &r.SourceIP, &r.UserAgentHash, &cap, &r.Status, &r.CreatedAt, &decidedAt, &decidedBy, &reason, &issuedCode); err != nil {
			return nil, err
		}
		r.RequestedZones = splitCSV(zonesCSV)
		r.CaptchaOK = cap == 1
		if decidedAt.Valid {
			t := decidedAt.Time
			r.DecidedAt = &t
		}
		if decidedBy.Valid {
			v := decidedBy.String
			r.DecidedBy = &v
		}
		if reason.Valid {
			v := reason.String
			r.Reason = &v
		}
		if issuedCode.Valid {
			v := issuedCode.String
			r.IssuedCode = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetRegistrationDecision flips a pending registration exactly once; a second
// decision on the same row reports ErrConflict.
func (s *Store) SetRegistrationDecision(ctx context.Context, regID string, status models.RegistrationStatus, decidedBy, reason, issuedCode string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE registrations SET status=?,decided_at=?,decided_by=?,reason=?,issued_code=? WHERE id=? AND status='pending'`,
		status, now, decidedBy, reason, nullIfEmpty(issuedCode), regID,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) InsertAudit(ctx context.Context, actorID, action, target, metadata string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log(id,actor_id,action,target,metadata_json,created_at) VALUES(?,?,?,?,?,?)`,
		uuid.NewString(), actorID, action, target, metadata, time.Now().UTC(),
	)
	return err
}

func (s *Store) ListAudit(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,actor_id,action,target,metadata_json,created_at FROM audit_log ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.AuditEntry, 0, limit)
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Target, &e.MetadataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key,value,updated_at) VALUES(?,?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return err
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func isUniqueErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
