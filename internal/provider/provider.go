// Package provider is the parallel password-based identity source and the
// rule for reconciling it with code-based sessions.
package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"zonegate/internal/auth"
	"zonegate/internal/models"
	"zonegate/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Account is the provider-side view of an authenticated user, exposed to the
// wing guard through an effective access level.
type Account struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Premium bool   `json:"premium"`
	IsAdmin bool   `json:"is_admin"`
}

func (a Account) Level() models.AccessLevel {
	switch {
	case a.IsAdmin:
		return models.LevelAdmin
	case a.Premium:
		return models.LevelPremium
	default:
		return models.LevelUser
	}
}

type Provider struct {
	st *store.Store
}

func New(st *store.Store) *Provider { return &Provider{st: st} }

// Authenticate verifies email+password against the account table. Lookup
// misses and bad passwords are indistinguishable to the caller.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (Account, error) {
	a, err := p.st.GetProviderAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !auth.VerifyPassword(a.PasswordHash, password) {
		return Account{}, ErrInvalidCredentials
	}
	_ = p.st.TouchProviderLastLogin(ctx, a.ID, time.Now().UTC())
	return Account{ID: a.ID, Email: a.Email, Premium: a.Premium, IsAdmin: a.IsAdmin}, nil
}

// ActiveIdentity reconciles the two identity sources: the coded session wins
// when present, otherwise the provider account stands in, otherwise guest.
// Privileges from the two are never combined; a user session plus a premium
// account does not add up to premium zone access.
func ActiveIdentity(coded models.SessionIdentity, account *Account) models.SessionIdentity {
	if !coded.IsGuest() {
		return coded
	}
	if account != nil {
		rec := models.IdentityRecord{
			DisplayName:   account.Email,
			ContactHandle: account.Email,
			Level:         account.Level(),
			IsActive:      true,
		}
		return models.SessionIdentity{Kind: models.KindCoded, Record: &rec}
	}
	return models.Guest()
}
