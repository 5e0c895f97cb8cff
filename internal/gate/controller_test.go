package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"zonegate/internal/access"
	"zonegate/internal/models"
)

type scriptedResolver struct {
	mu      sync.Mutex
	calls   int
	codes   []string
	outcome access.Outcome
	block   chan struct{}
	length  int
	perCode map[string]access.Outcome
}

func newScriptedResolver(out access.Outcome) *scriptedResolver {
	return &scriptedResolver{outcome: out, length: 4}
}

func (s *scriptedResolver) Resolve(ctx context.Context, code, zoneID string) access.Outcome {
	s.mu.Lock()
	s.calls++
	s.codes = append(s.codes, code)
	block := s.block
	out := s.outcome
	if o, ok := s.perCode[code]; ok {
		out = o
	}
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return out
}

func (s *scriptedResolver) CodeLength() int { return s.length }

func (s *scriptedResolver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func granted() access.Outcome {
	return access.Outcome{Status: access.StatusGranted, Record: &models.IdentityRecord{Code: "1234"}}
}

func denied(reason access.DenyReason) access.Outcome {
	return access.Outcome{Status: access.StatusDenied, Reason: reason}
}

func pressAll(t *testing.T, c *Controller, keys ...string) Snapshot {
	t.Helper()
	var snap Snapshot
	for _, k := range keys {
		snap = c.Press(context.Background(), k)
	}
	return snap
}

func TestControllerCollectsDigitsAndChecksExactlyOnce(t *testing.T) {
	res := newScriptedResolver(granted())
	c := NewController(res, "club-hollywood", time.Second)

	snap := pressAll(t, c, "1", "2", "3")
	if snap.State != StateCollecting || snap.Entered != 3 {
		t.Fatalf("expected collecting/3, got %s/%d", snap.State, snap.Entered)
	}

	snap = c.Press(context.Background(), "4")
	if snap.State != StateGranted {
		t.Fatalf("expected granted after full code, got %s", snap.State)
	}
	if res.callCount() != 1 {
		t.Fatalf("expected exactly one check per full entry, got %d", res.callCount())
	}
	if res.codes[0] != "1234" {
		t.Fatalf("expected code 1234 checked, got %q", res.codes[0])
	}
	if snap.Entered != 0 {
		t.Fatalf("partial code must be cleared after the check, entered=%d", snap.Entered)
	}
}

func TestControllerBackspaceAndCancel(t *testing.T) {
	res := newScriptedResolver(granted())
	c := NewController(res, "club-hollywood", time.Second)

	snap := pressAll(t, c, "1", "2", KeyBack)
	if snap.State != StateCollecting || snap.Entered != 1 {
		t.Fatalf("expected collecting/1 after back, got %s/%d", snap.State, snap.Entered)
	}
	snap = c.Press(context.Background(), KeyBack)
	if snap.State != StateIdle || snap.Entered != 0 {
		t.Fatalf("expected idle after backing out the last digit, got %s/%d", snap.State, snap.Entered)
	}
	// Backspace at idle is harmless.
	snap = c.Press(context.Background(), KeyBack)
	if snap.State != StateIdle {
		t.Fatalf("expected idle, got %s", snap.State)
	}

	snap = pressAll(t, c, "1", "2", KeyCancel)
	if snap.State != StateIdle || snap.Entered != 0 {
		t.Fatalf("expected idle after cancel, got %s/%d", snap.State, snap.Entered)
	}
	if res.callCount() != 0 {
		t.Fatalf("no full code was entered, resolver must not run, got %d calls", res.callCount())
	}
}

func TestControllerIgnoresKeysWhileChecking(t *testing.T) {
	res := newScriptedResolver(granted())
	res.block = make(chan struct{})
	c := NewController(res, "club-hollywood", time.Second)

	pressAll(t, c, "1", "2", "3")
	done := make(chan Snapshot, 1)
	go func() { done <- c.Press(context.Background(), "4") }()

	// Wait for the check to be in flight, then hammer the keypad.
	deadline := time.After(2 * time.Second)
	for c.Snapshot().State != StateChecking {
		select {
		case <-deadline:
			t.Fatalf("check never entered flight")
		case <-time.After(time.Millisecond):
		}
	}
	for _, k := range []string{"9", "9", KeyCancel, KeyBack} {
		snap := c.Press(context.Background(), k)
		if snap.State != StateChecking {
			t.Fatalf("key %q must be a no-op during checking, got %s", k, snap.State)
		}
	}

	close(res.block)
	snap := <-done
	if snap.State != StateGranted {
		t.Fatalf("expected granted, got %s", snap.State)
	}
	if res.callCount() != 1 {
		t.Fatalf("presses during checking must not trigger checks, got %d", res.callCount())
	}
}

func TestControllerWrongCodeDenialClearsOnNextDigit(t *testing.T) {
	res := newScriptedResolver(denied(access.ReasonInvalidCode))
	c := NewController(res, "club-hollywood", time.Second)

	snap := pressAll(t, c, "9", "9", "9", "9")
	if snap.State != StateDenied || snap.Reason != access.ReasonInvalidCode {
		t.Fatalf("expected denied/invalid_code, got %s/%s", snap.State, snap.Reason)
	}

	snap = c.Press(context.Background(), "1")
	if snap.State != StateCollecting || snap.Entered != 1 {
		t.Fatalf("a new digit should start a fresh entry, got %s/%d", snap.State, snap.Entered)
	}
	if snap.Reason != "" {
		t.Fatalf("denial reason must be cleared, got %s", snap.Reason)
	}
}

func TestControllerInformativeDenialHoldsUntilDismissed(t *testing.T) {
	res := newScriptedResolver(denied(access.ReasonZoneNotGranted))
	c := NewController(res, "kazmo-mansion", time.Second)

	snap := pressAll(t, c, "1", "2", "3", "4")
	if snap.State != StateDenied || snap.Reason != access.ReasonZoneNotGranted {
		t.Fatalf("expected denied/zone_not_granted, got %s/%s", snap.State, snap.Reason)
	}

	// Digits bounce off an informative panel.
	snap = c.Press(context.Background(), "5")
	if snap.State != StateDenied || snap.Entered != 0 {
		t.Fatalf("informative denial must hold, got %s/%d", snap.State, snap.Entered)
	}

	snap = c.Press(context.Background(), KeyDismiss)
	if snap.State != StateIdle {
		t.Fatalf("expected idle after dismiss, got %s", snap.State)
	}
	snap = c.Press(context.Background(), "5")
	if snap.State != StateCollecting || snap.Entered != 1 {
		t.Fatalf("entry should work again after dismiss, got %s/%d", snap.State, snap.Entered)
	}
}

func TestControllerGrantedStaysUntilReset(t *testing.T) {
	res := newScriptedResolver(granted())
	c := NewController(res, "club-hollywood", time.Second)

	snap := pressAll(t, c, "1", "2", "3", "4")
	if snap.State != StateGranted {
		t.Fatalf("expected granted, got %s", snap.State)
	}
	if snap.Outcome == nil || snap.Outcome.Record == nil {
		t.Fatalf("granted snapshot must carry the outcome")
	}

	snap = c.Press(context.Background(), "7")
	if snap.State != StateGranted {
		t.Fatalf("digits after grant are no-ops, got %s", snap.State)
	}

	c.Reset()
	snap = c.Snapshot()
	if snap.State != StateIdle || snap.Outcome != nil {
		t.Fatalf("expected idle with no outcome after reset, got %s", snap.State)
	}
	// The gate is re-enterable indefinitely.
	snap = pressAll(t, c, "1", "2", "3", "4")
	if snap.State != StateGranted {
		t.Fatalf("expected granted on re-entry, got %s", snap.State)
	}
	if res.callCount() != 2 {
		t.Fatalf("expected two checks across two entries, got %d", res.callCount())
	}
}

func TestControllerPartialCodeNeverLeavesSnapshot(t *testing.T) {
	res := newScriptedResolver(granted())
	c := NewController(res, "club-hollywood", time.Second)
	snap := pressAll(t, c, "1", "2")
	if snap.Entered != 2 || snap.CodeLength != 4 {
		t.Fatalf("expected entered=2 of 4, got %d of %d", snap.Entered, snap.CodeLength)
	}
}

func TestManagerOpenGetClose(t *testing.T) {
	res := newScriptedResolver(granted())
	m := NewManager(res, time.Second, time.Hour)

	id, ctrl := m.Open("club-hollywood")
	if id == "" || ctrl == nil {
		t.Fatalf("open returned empty gate")
	}
	got, ok := m.Get(id)
	if !ok || got != ctrl {
		t.Fatalf("get did not return the opened gate")
	}
	if _, ok := m.Get("nope"); ok {
		t.Fatalf("unknown id must not resolve")
	}
	m.Close(id)
	if _, ok := m.Get(id); ok {
		t.Fatalf("closed gate must not resolve")
	}
}
