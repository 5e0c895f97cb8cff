package wing

import (
	"testing"
	"time"

	"zonegate/internal/models"
)

func codedIdentity(level models.AccessLevel) models.SessionIdentity {
	return models.Coded(models.IdentityRecord{Code: "1234", Level: level, IsActive: true}, time.Now().UTC())
}

func TestToggle(t *testing.T) {
	cases := []struct {
		name     string
		current  Mode
		identity models.SessionIdentity
		want     Mode
		refused  bool
	}{
		{"guest blocked from night", ModeDay, models.Guest(), ModeDay, true},
		{"user blocked from night", ModeDay, codedIdentity(models.LevelUser), ModeDay, true},
		{"premium enters night", ModeDay, codedIdentity(models.LevelPremium), ModeNight, false},
		{"admin enters night", ModeDay, models.Admin(time.Now().UTC()), ModeNight, false},
		{"night back to day always", ModeNight, models.Guest(), ModeDay, false},
		{"premium leaves night", ModeNight, codedIdentity(models.LevelPremium), ModeDay, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, refused := Toggle(tc.current, tc.identity)
			if next != tc.want || refused != tc.refused {
				t.Fatalf("Toggle(%s) = %s refused=%v, want %s refused=%v", tc.current, next, refused, tc.want, tc.refused)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("night") != ModeNight {
		t.Fatalf("night should normalize to night")
	}
	for _, raw := range []string{"", "day", "garbage"} {
		if Normalize(raw) != ModeDay {
			t.Fatalf("%q should normalize to day", raw)
		}
	}
}
