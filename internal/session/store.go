// Package session holds the resolved session identity: who is currently
// interacting, persisted so a reload does not force the code to be re-entered.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"zonegate/internal/auth"
	"zonegate/internal/models"
	"zonegate/internal/registry"
	"zonegate/internal/store"
	"zonegate/internal/util"
)

// adminSealPrefix is what the sealed admin marker must decrypt to. A forged
// or copied marker that does not open under the server key restores as guest.
const adminSealPrefix = "zonegate-admin:"

type Store struct {
	st       *store.Store
	reg      registry.Registry
	sealKey  []byte
	idle     time.Duration
	absolute time.Duration

	mu        sync.Mutex
	listeners map[int]func(models.SessionIdentity)
	nextID    int
}

// New wires the session store. idle/absolute of zero disable that expiry.
func New(st *store.Store, reg registry.Registry, sealKey []byte, idle, absolute time.Duration) *Store {
	return &Store{
		st:        st,
		reg:       reg,
		sealKey:   sealKey,
		idle:      idle,
		absolute:  absolute,
		listeners: map[int]func(models.SessionIdentity){},
	}
}

// Subscribe registers a listener for identity changes. Listeners always see a
// complete identity value, never a partial one. The returned func removes the
// listener.
func (s *Store) Subscribe(fn func(models.SessionIdentity)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(identity models.SessionIdentity) {
	s.mu.Lock()
	fns := make([]func(models.SessionIdentity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(identity)
	}
}

// Set persists the identity and returns the raw session token the browser
// keeps. Entering a new identity always starts a fresh session row; nothing
// is merged with a prior identity.
func (s *Store) Set(ctx context.Context, identity models.SessionIdentity, ip, uaHash string) (string, error) {
	raw, tokenHash, err := auth.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	sessID := uuid.NewString()
	adminSeal := ""
	if identity.Kind == models.KindAdmin {
		adminSeal, err = util.SealString(s.sealKey, adminSealPrefix+sessID)
		if err != nil {
			return "", err
		}
	}
	now := time.Now().UTC()
	sess := models.GateSession{
		ID:            sessID,
		TokenHash:     tokenHash,
		IdentityJSON:  string(payload),
		AdminSeal:     adminSeal,
		Wing:          "",
		IPHint:        ip,
		UserAgentHash: uaHash,
		CreatedAt:     now,
		LastSeenAt:    now,
	}
	if s.absolute > 0 {
		t := now.Add(s.absolute)
		sess.ExpiresAt = &t
	}
	if s.idle > 0 {
		t := now.Add(s.idle)
		sess.IdleExpiresAt = &t
	}
	if err := s.st.CreateGateSession(ctx, sess); err != nil {
		return "", err
	}
	s.notify(identity)
	return raw, nil
}

// Get restores the identity behind a raw token. Anything that cannot be
// restored cleanly comes back as guest: missing or expired rows, an admin
// marker that does not open, or a coded snapshot whose registry row has been
// deactivated since. Registry outages fall back to the stored snapshot.
func (s *Store) Get(ctx context.Context, rawToken string) models.SessionIdentity {
	identity, _, err := s.Lookup(ctx, rawToken)
	if err != nil {
		return models.Guest()
	}
	return identity
}

// Lookup is Get plus the backing session row, for callers that need the
// per-session wing or the row id.
func (s *Store) Lookup(ctx context.Context, rawToken string) (models.SessionIdentity, models.GateSession, error) {
	if rawToken == "" {
		return models.Guest(), models.GateSession{}, errors.New("no session token")
	}
	sess, err := s.st.GetGateSessionByTokenHash(ctx, auth.HashToken(rawToken))
	if err != nil {
		return models.Guest(), models.GateSession{}, err
	}
	now := time.Now().UTC()
	if sess.RevokedAt != nil ||
		(sess.ExpiresAt != nil && now.After(*sess.ExpiresAt)) ||
		(sess.IdleExpiresAt != nil && now.After(*sess.IdleExpiresAt)) {
		return models.Guest(), models.GateSession{}, errors.New("session expired")
	}

	var identity models.SessionIdentity
	if err := json.Unmarshal([]byte(sess.IdentityJSON), &identity); err != nil {
		return models.Guest(), models.GateSession{}, err
	}

	switch identity.Kind {
	case models.KindAdmin:
		opened, err := util.OpenString(s.sealKey, sess.AdminSeal)
		if err != nil || opened != adminSealPrefix+sess.ID {
			log.Printf("session %s: admin marker did not open, downgrading to guest", sess.ID)
			_ = s.st.RevokeGateSession(ctx, sess.ID)
			return models.Guest(), models.GateSession{}, errors.New("invalid admin marker")
		}
	case models.KindCoded:
		if identity.Record == nil {
			return models.Guest(), models.GateSession{}, errors.New("coded session without record")
		}
		// Provider-derived identities carry no code; there is nothing in
		// the registry to revalidate them against.
		if identity.Record.Code != "" {
			// Snapshot can be stale if an admin deactivated the code after
			// the session was established. Revalidate when the registry is
			// reachable; stay on the snapshot when it is not.
			rec, err := s.reg.FindByCode(ctx, identity.Record.Code)
			if errors.Is(err, registry.ErrNotFound) || (err == nil && !rec.IsActive) {
				_ = s.st.RevokeGateSession(ctx, sess.ID)
				return models.Guest(), models.GateSession{}, errors.New("code no longer active")
			}
			if err == nil {
				identity = models.Coded(rec, identity.EstablishedAt)
			}
		}
	case models.KindGuest, "":
		return models.Guest(), sess, nil
	}

	var idleExpiry *time.Time
	if s.idle > 0 {
		t := now.Add(s.idle)
		idleExpiry = &t
	}
	_ = s.st.TouchGateSession(ctx, sess.ID, idleExpiry)
	return identity, sess, nil
}

// Clear revokes the session and notifies subscribers with guest.
func (s *Store) Clear(ctx context.Context, rawToken string) {
	if rawToken == "" {
		return
	}
	sess, err := s.st.GetGateSessionByTokenHash(ctx, auth.HashToken(rawToken))
	if err == nil {
		_ = s.st.RevokeGateSession(ctx, sess.ID)
	}
	s.notify(models.Guest())
}

func (s *Store) SetWing(ctx context.Context, sessionID, wing string) error {
	return s.st.UpdateGateSessionWing(ctx, sessionID, wing)
}
