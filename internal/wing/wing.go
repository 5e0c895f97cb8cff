// Package wing is the day/night mode toggle. It reads the resolved identity
// but owns its own state, so flipping wings never re-triggers code entry.
package wing

import "zonegate/internal/models"

type Mode string

const (
	ModeDay   Mode = "day"
	ModeNight Mode = "night"
)

// Normalize maps unknown or empty stored values to the base wing.
func Normalize(m string) Mode {
	if Mode(m) == ModeNight {
		return ModeNight
	}
	return ModeDay
}

// CanEnterElevatedWing reports whether the identity may enter the night wing:
// premium or admin.
func CanEnterElevatedWing(identity models.SessionIdentity) bool {
	return identity.Level() >= models.LevelPremium
}

// Toggle flips between wings. Entering the night wing is refused for
// identities below premium; the mode stays put and refused=true tells the
// caller to show the upsell instead. Returning to the day wing always works.
func Toggle(current Mode, identity models.SessionIdentity) (next Mode, refused bool) {
	switch current {
	case ModeNight:
		return ModeDay, false
	default:
		if !CanEnterElevatedWing(identity) {
			return current, true
		}
		return ModeNight, false
	}
}
