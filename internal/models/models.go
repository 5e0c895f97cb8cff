package models

import (
	"fmt"
	"strings"
	"time"
)

// AccessLevel is ordered: User < Premium < Admin.
type AccessLevel int

const (
	LevelUser AccessLevel = iota
	LevelPremium
	LevelAdmin
)

func (l AccessLevel) String() string {
	switch l {
	case LevelPremium:
		return "premium"
	case LevelAdmin:
		return "admin"
	default:
		return "user"
	}
}

// MarshalJSON keeps the wire form symbolic so stored snapshots stay readable
// across reorderings of the enum.
func (l AccessLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

func (l *AccessLevel) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, ok := ParseLevel(s)
	if !ok {
		return fmt.Errorf("unknown access level %q", s)
	}
	*l = v
	return nil
}

func ParseLevel(s string) (AccessLevel, bool) {
	switch s {
	case "user":
		return LevelUser, true
	case "premium":
		return LevelPremium, true
	case "admin":
		return LevelAdmin, true
	}
	return LevelUser, false
}

// IdentityRecord is the registry row behind a numeric entry code.
type IdentityRecord struct {
	Code          string      `json:"code"`
	DisplayName   string      `json:"display_name,omitempty"`
	ContactHandle string      `json:"contact_handle,omitempty"`
	Level         AccessLevel `json:"level"`
	GrantedZones  []string    `json:"granted_zones"`
	IsActive      bool        `json:"is_active"`
	UsageCounter  int64       `json:"usage_counter"`
	CreatedAt     time.Time   `json:"created_at"`
	LastUsedAt    *time.Time  `json:"last_used_at,omitempty"`
}

func (r IdentityRecord) HasZone(zoneID string) bool {
	for _, z := range r.GrantedZones {
		if z == zoneID {
			return true
		}
	}
	return false
}

// Zone is a static catalog entry. The catalog never changes at runtime.
type Zone struct {
	ID           string      `json:"id"`
	DisplayName  string      `json:"name"`
	MinimumLevel AccessLevel `json:"min_level"`
}

// IdentityKind discriminates the session identity variants.
type IdentityKind string

const (
	KindGuest IdentityKind = "guest"
	KindCoded IdentityKind = "coded"
	KindAdmin IdentityKind = "admin"
)

// SessionIdentity is the resolved "who is interacting" value. Exactly one
// variant is active per session; entering a new code replaces it wholesale,
// never merges with what was there before.
type SessionIdentity struct {
	Kind          IdentityKind    `json:"kind"`
	Record        *IdentityRecord `json:"record,omitempty"`
	EstablishedAt time.Time       `json:"established_at,omitempty"`
}

func Guest() SessionIdentity { return SessionIdentity{Kind: KindGuest} }

func Coded(rec IdentityRecord, at time.Time) SessionIdentity {
	snapshot := rec
	return SessionIdentity{Kind: KindCoded, Record: &snapshot, EstablishedAt: at}
}

func Admin(at time.Time) SessionIdentity {
	return SessionIdentity{Kind: KindAdmin, EstablishedAt: at}
}

func (si SessionIdentity) IsGuest() bool { return si.Kind == KindGuest || si.Kind == "" }

// Level reports the effective access level of the identity. Guests sit at
// the bottom of the ladder so callers can compare without special-casing.
func (si SessionIdentity) Level() AccessLevel {
	switch si.Kind {
	case KindAdmin:
		return LevelAdmin
	case KindCoded:
		if si.Record != nil {
			return si.Record.Level
		}
	}
	return LevelUser
}

// GateSession is the durable server-side row behind the session cookie.
type GateSession struct {
	ID            string
	TokenHash     string
	IdentityJSON  string
	AdminSeal     string
	Wing          string
	IPHint        string
	UserAgentHash string
	ExpiresAt     *time.Time
	IdleExpiresAt *time.Time
	CreatedAt     time.Time
	LastSeenAt    time.Time
	RevokedAt     *time.Time
}

// ProviderAccount is a password identity from the parallel auth source.
type ProviderAccount struct {
	ID           string
	Email        string
	PasswordHash string
	Premium      bool
	IsAdmin      bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// Registration is a signup awaiting an admin decision. Approval is what
// mints the entry code.
type Registration struct {
	ID             string
	DisplayName    string
	ContactHandle  string
	RequestedZones []string
	SourceIP       string
	UserAgentHash  string
	CaptchaOK      bool
	Status         RegistrationStatus
	CreatedAt      time.Time
	DecidedAt      *time.Time
	DecidedBy      *string
	Reason         *string
	IssuedCode     *string
}

type AuditEntry struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id"`
	Action       string    `json:"action"`
	Target       string    `json:"target"`
	MetadataJSON string    `json:"metadata_json"`
	CreatedAt    time.Time `json:"created_at"`
}
