// Package access decides whether an entered code may open a zone.
package access

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"zonegate/internal/models"
	"zonegate/internal/registry"
	"zonegate/internal/zones"
)

type Status string

const (
	StatusGranted      Status = "granted"
	StatusAdminGranted Status = "admin_granted"
	StatusDenied       Status = "denied"
)

type DenyReason string

const (
	// ReasonInvalidCode covers unknown and deactivated codes alike; the
	// caller cannot tell the two apart.
	ReasonInvalidCode       DenyReason = "invalid_code"
	ReasonZoneNotGranted    DenyReason = "zone_not_granted"
	ReasonInsufficientLevel DenyReason = "insufficient_level"
	// ReasonSystemError means the registry could not be consulted. Never
	// reported as an invalid code: the user's credential may be fine.
	ReasonSystemError DenyReason = "system_error"
)

// Outcome is the resolver's verdict. Denials for a known identity carry the
// record so the caller can explain which zones and level the identity has.
type Outcome struct {
	Status        Status
	Reason        DenyReason
	Record        *models.IdentityRecord
	RequiredLevel models.AccessLevel
}

func (o Outcome) Allowed() bool {
	return o.Status == StatusGranted || o.Status == StatusAdminGranted
}

type Resolver struct {
	reg        registry.Registry
	catalog    *zones.Catalog
	masterCode string
	codeLength int
	now        func() time.Time
}

func NewResolver(reg registry.Registry, catalog *zones.Catalog, masterCode string, codeLength int) *Resolver {
	return &Resolver{
		reg:        reg,
		catalog:    catalog,
		masterCode: masterCode,
		codeLength: codeLength,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Resolver) CodeLength() int { return r.codeLength }

// Resolve runs the checks in fixed order: master code, registry lookup, zone
// grant, level. The master code never touches the registry and opens every
// zone, catalog-listed or not.
func (r *Resolver) Resolve(ctx context.Context, enteredCode, zoneID string) Outcome {
	enteredCode = strings.TrimSpace(enteredCode)
	if enteredCode == r.masterCode {
		return Outcome{Status: StatusAdminGranted}
	}

	rec, err := r.reg.FindByCode(ctx, enteredCode)
	if errors.Is(err, registry.ErrNotFound) {
		return Outcome{Status: StatusDenied, Reason: ReasonInvalidCode}
	}
	if err != nil {
		return Outcome{Status: StatusDenied, Reason: ReasonSystemError}
	}
	if !rec.IsActive {
		return Outcome{Status: StatusDenied, Reason: ReasonInvalidCode}
	}
	if !rec.HasZone(zoneID) {
		return Outcome{Status: StatusDenied, Reason: ReasonZoneNotGranted, Record: &rec}
	}
	required := models.LevelUser
	if z, ok := r.catalog.Get(zoneID); ok {
		required = z.MinimumLevel
	}
	if rec.Level < required {
		return Outcome{Status: StatusDenied, Reason: ReasonInsufficientLevel, Record: &rec, RequiredLevel: required}
	}

	// Usage bookkeeping is best-effort: the user is already let in, so a
	// failed touch must not turn a grant into a denial.
	_ = r.reg.TouchUsage(ctx, rec.Code)
	rec.UsageCounter++
	at := r.now()
	rec.LastUsedAt = &at
	return Outcome{Status: StatusGranted, Record: &rec}
}

const generateAttempts = 100

// GenerateCode draws a uniform numeric code of the configured length,
// skipping the master code and retrying on registry collisions. The caller
// supplies the record to insert; its Code field is filled in.
func (r *Resolver) GenerateCode(ctx context.Context, rec models.IdentityRecord) (models.IdentityRecord, error) {
	max := big.NewInt(1)
	for i := 0; i < r.codeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	for attempt := 0; attempt < generateAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return models.IdentityRecord{}, err
		}
		code := fmt.Sprintf("%0*d", r.codeLength, n)
		if code == r.masterCode {
			continue
		}
		rec.Code = code
		err = r.reg.CreateCode(ctx, rec)
		if errors.Is(err, registry.ErrConflict) {
			continue
		}
		if err != nil {
			return models.IdentityRecord{}, err
		}
		return rec, nil
	}
	return models.IdentityRecord{}, fmt.Errorf("could not generate a free code after %d attempts", generateAttempts)
}
