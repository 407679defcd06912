package session

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/diagnosis/attendance-beacon/internal/beacon"
	"github.com/diagnosis/attendance-beacon/internal/domain"
	"github.com/diagnosis/attendance-beacon/internal/token"
)

// Source is the read side of the persistence collaborator.
type Source interface {
	ActiveByOrg(ctx context.Context, orgID int64) ([]domain.Session, error)
}

// Registry resolves received beacon payloads to live sessions. Scan
// callbacks fire in bursts, so concurrent lookups for the same organization
// are collapsed into one storage fetch.
type Registry struct {
	src   Source
	group singleflight.Group
	now   func() time.Time
}

func NewRegistry(src Source) *Registry {
	return &Registry{src: src, now: time.Now}
}

// ActiveSessions returns the currently valid sessions for an organization.
// Expired records are filtered at read time.
func (r *Registry) ActiveSessions(ctx context.Context, orgID int64) ([]domain.Session, error) {
	v, err, _ := r.group.Do(fmt.Sprintf("org:%d", orgID), func() (interface{}, error) {
		return r.src.ActiveByOrg(ctx, orgID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active sessions: %w", err)
	}

	now := r.now()
	all := v.([]domain.Session)
	active := make([]domain.Session, 0, len(all))
	for _, s := range all {
		if s.IsValid(now) {
			active = append(active, s)
		}
	}
	return active, nil
}

// FindByBeacon resolves a validated (major, minor) pair to the session whose
// token digests to minor. The 16-bit digest is lossy, so more than one live
// session can match; the most recently started wins, and an unresolvable tie
// returns nil rather than a guess.
func (r *Registry) FindByBeacon(ctx context.Context, major beacon.OrgCode, minor uint16, orgID int64) (*domain.Session, error) {
	if major == beacon.OrgUnknown {
		return nil, nil
	}

	sessions, err := r.ActiveSessions(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var matches []domain.Session
	for _, s := range sessions {
		if token.EncodeToMinor(s.SessionToken) == minor {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	}

	best := matches[0]
	ambiguous := false
	for _, m := range matches[1:] {
		if m.StartsAt.After(best.StartsAt) {
			best = m
			ambiguous = false
		} else if m.StartsAt.Equal(best.StartsAt) && m.SessionToken != best.SessionToken {
			ambiguous = true
		}
	}
	if ambiguous {
		return nil, nil
	}
	return &best, nil
}
