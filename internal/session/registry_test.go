package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diagnosis/attendance-beacon/internal/beacon"
	"github.com/diagnosis/attendance-beacon/internal/domain"
	"github.com/diagnosis/attendance-beacon/internal/token"
)

// Two distinct valid tokens whose SHA-256 digests share the same leading
// 16 bits, i.e. a real minor-field collision.
const (
	collidingTokenA = "89UEFSQMKZJX"
	collidingTokenB = "EZHF9RXPCB4S"
	collidingMinor  = 12619
)

type mockSource struct {
	sessions []domain.Session
	err      error
	calls    int
}

func (m *mockSource) ActiveByOrg(_ context.Context, orgID int64) ([]domain.Session, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Session
	for _, s := range m.sessions {
		if s.OrgID == orgID {
			out = append(out, s)
		}
	}
	return out, nil
}

func testSession(tok string, orgID int64, startsAt time.Time, ttl time.Duration) domain.Session {
	return domain.Session{
		SessionToken: tok,
		EventID:      "event-" + tok,
		EventTitle:   "Weekly Meeting",
		OrgID:        orgID,
		OrgSlug:      "nhs",
		StartsAt:     startsAt,
		ExpiresAt:    startsAt.Add(ttl),
	}
}

func TestFindByBeacon_match(t *testing.T) {
	now := time.Now()
	src := &mockSource{sessions: []domain.Session{
		testSession("ABCDEFGH2345", 1, now.Add(-time.Minute), time.Hour),
		testSession("WXYZ23456789", 1, now.Add(-time.Minute), time.Hour),
	}}
	registry := NewRegistry(src)

	minor := token.EncodeToMinor("ABCDEFGH2345")
	found, err := registry.FindByBeacon(context.Background(), 1, minor, 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found == nil || found.SessionToken != "ABCDEFGH2345" {
		t.Errorf("found = %+v, want session for ABCDEFGH2345", found)
	}
}

func TestFindByBeacon_noMatch(t *testing.T) {
	now := time.Now()
	src := &mockSource{sessions: []domain.Session{
		testSession("ABCDEFGH2345", 1, now, time.Hour),
	}}
	registry := NewRegistry(src)

	found, err := registry.FindByBeacon(context.Background(), 1, token.EncodeToMinor("WXYZ23456789"), 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found != nil {
		t.Errorf("found = %+v, want nil for unmatched minor", found)
	}
}

func TestFindByBeacon_unknownMajor(t *testing.T) {
	src := &mockSource{}
	registry := NewRegistry(src)

	found, err := registry.FindByBeacon(context.Background(), beacon.OrgUnknown, 1234, 1)
	if err != nil || found != nil {
		t.Errorf("unknown major should resolve to nothing, got %+v, %v", found, err)
	}
	if src.calls != 0 {
		t.Error("unknown major should not hit storage")
	}
}

func TestFindByBeacon_expiredFiltered(t *testing.T) {
	now := time.Now()
	src := &mockSource{sessions: []domain.Session{
		testSession("ABCDEFGH2345", 1, now.Add(-2*time.Hour), time.Hour),
	}}
	registry := NewRegistry(src)

	found, err := registry.FindByBeacon(context.Background(), 1, token.EncodeToMinor("ABCDEFGH2345"), 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found != nil {
		t.Errorf("expired session should not resolve, got %+v", found)
	}
}

func TestFindByBeacon_collisionPrefersMostRecent(t *testing.T) {
	now := time.Now()
	src := &mockSource{sessions: []domain.Session{
		testSession(collidingTokenA, 1, now.Add(-30*time.Minute), time.Hour),
		testSession(collidingTokenB, 1, now.Add(-5*time.Minute), time.Hour),
	}}
	registry := NewRegistry(src)

	found, err := registry.FindByBeacon(context.Background(), 1, collidingMinor, 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found == nil || found.SessionToken != collidingTokenB {
		t.Errorf("found = %+v, want the most recently started session", found)
	}
}

func TestFindByBeacon_unresolvableAmbiguityReturnsNil(t *testing.T) {
	startsAt := time.Now().Add(-5 * time.Minute)
	src := &mockSource{sessions: []domain.Session{
		testSession(collidingTokenA, 1, startsAt, time.Hour),
		testSession(collidingTokenB, 1, startsAt, time.Hour),
	}}
	registry := NewRegistry(src)

	found, err := registry.FindByBeacon(context.Background(), 1, collidingMinor, 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found != nil {
		t.Errorf("tied collision should return nil, got %+v", found)
	}
}

func TestActiveSessions_sourceError(t *testing.T) {
	src := &mockSource{err: errors.New("connection refused")}
	registry := NewRegistry(src)

	if _, err := registry.ActiveSessions(context.Background(), 1); err == nil {
		t.Error("source errors should propagate")
	}
}
