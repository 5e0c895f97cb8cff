// Package registry is the code registry contract: the mapping from a short
// numeric entry code to its identity record. The default backend lives in the
// embedded app DB; deployments that keep codes in a hosted relational store
// use the external SQL backend instead.
package registry

import (
	"context"
	"errors"

	"zonegate/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type Registry interface {
	// FindByCode returns ErrNotFound for unknown codes. Inactive codes are
	// returned as-is; the resolver decides what inactive means.
	FindByCode(ctx context.Context, code string) (models.IdentityRecord, error)
	// CreateCode inserts a new record and returns ErrConflict if the code
	// is already taken.
	CreateCode(ctx context.Context, rec models.IdentityRecord) error
	// TouchUsage increments the usage counter and stamps last_used_at.
	TouchUsage(ctx context.Context, code string) error
	SetActive(ctx context.Context, code string, active bool) error
	SetZones(ctx context.Context, code string, zones []string) error
	SetLevel(ctx context.Context, code string, level models.AccessLevel) error
	List(ctx context.Context, limit, offset int) ([]models.IdentityRecord, error)
	Ping(ctx context.Context) error
}
