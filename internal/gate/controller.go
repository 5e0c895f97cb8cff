// Package gate drives the keypad entry flow for one target zone: collect
// digits, fire exactly one access check per full code, and hold the verdict
// for the UI to read.
package gate

import (
	"context"
	"strings"
	"sync"
	"time"

	"zonegate/internal/access"
)

type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateChecking   State = "checking"
	StateGranted    State = "granted"
	StateDenied     State = "denied"
)

// Keys accepted by Press besides the digits 0-9.
const (
	KeyBack    = "back"
	KeyCancel  = "cancel"
	KeyDismiss = "dismiss"
)

type resolver interface {
	Resolve(ctx context.Context, code, zoneID string) access.Outcome
	CodeLength() int
}

// Snapshot is the controller state handed to the UI. The partial code itself
// never leaves the controller; only its length does.
type Snapshot struct {
	State      State             `json:"state"`
	ZoneID     string            `json:"zone_id"`
	Entered    int               `json:"entered"`
	CodeLength int               `json:"code_length"`
	Reason     access.DenyReason `json:"reason,omitempty"`
	Outcome    *access.Outcome   `json:"-"`
}

// Controller is the per-keypad-session state machine. One resolution may be
// in flight at a time; key presses during Checking are no-ops, which keeps a
// slow check from being overwritten by a faster later one.
type Controller struct {
	mu           sync.Mutex
	res          resolver
	zoneID       string
	checkTimeout time.Duration

	state    State
	partial  string
	checking bool
	outcome  access.Outcome
}

func NewController(res resolver, zoneID string, checkTimeout time.Duration) *Controller {
	return &Controller{res: res, zoneID: zoneID, checkTimeout: checkTimeout, state: StateIdle}
}

func (c *Controller) ZoneID() string { return c.zoneID }

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:      c.state,
		ZoneID:     c.zoneID,
		Entered:    len(c.partial),
		CodeLength: c.res.CodeLength(),
	}
	if c.state == StateDenied {
		s.Reason = c.outcome.Reason
		out := c.outcome
		s.Outcome = &out
	}
	if c.state == StateGranted {
		out := c.outcome
		s.Outcome = &out
	}
	return s
}

// Press feeds one key. Digit presses that complete the code run the access
// check before returning; everything else returns immediately.
func (c *Controller) Press(ctx context.Context, key string) Snapshot {
	key = strings.TrimSpace(key)

	c.mu.Lock()
	if c.checking {
		defer c.mu.Unlock()
		return c.snapshotLocked()
	}

	switch {
	case key == KeyCancel || key == KeyDismiss:
		c.state = StateIdle
		c.partial = ""
		c.outcome = access.Outcome{}
		defer c.mu.Unlock()
		return c.snapshotLocked()
	case key == KeyBack:
		if c.state == StateCollecting && len(c.partial) > 0 {
			c.partial = c.partial[:len(c.partial)-1]
			if c.partial == "" {
				c.state = StateIdle
			}
		}
		defer c.mu.Unlock()
		return c.snapshotLocked()
	case isDigit(key):
		switch c.state {
		case StateGranted:
			// A granted gate stays granted until the caller resets it.
			defer c.mu.Unlock()
			return c.snapshotLocked()
		case StateDenied:
			// Wrong-code denials clear on the next digit. Informative
			// denials hold their panel until dismissed.
			if c.outcome.Reason != access.ReasonInvalidCode {
				defer c.mu.Unlock()
				return c.snapshotLocked()
			}
			c.state = StateIdle
			c.partial = ""
			c.outcome = access.Outcome{}
		}
		c.partial += key
		c.state = StateCollecting
		if len(c.partial) < c.res.CodeLength() {
			defer c.mu.Unlock()
			return c.snapshotLocked()
		}
		code := c.partial
		c.state = StateChecking
		c.checking = true
		c.mu.Unlock()
		return c.check(ctx, code)
	default:
		defer c.mu.Unlock()
		return c.snapshotLocked()
	}
}

func (c *Controller) check(ctx context.Context, code string) Snapshot {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	out := c.res.Resolve(checkCtx, code, c.zoneID)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checking = false
	c.partial = ""
	c.outcome = out
	if out.Allowed() {
		c.state = StateGranted
	} else {
		c.state = StateDenied
	}
	return c.snapshotLocked()
}

// Reset returns the gate to idle, discarding any verdict. The gate is
// re-enterable indefinitely.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checking {
		return
	}
	c.state = StateIdle
	c.partial = ""
	c.outcome = access.Outcome{}
}

func isDigit(key string) bool {
	return len(key) == 1 && key[0] >= '0' && key[0] <= '9'
}
