package domain

import "time"

// Session is the client-side read view of a live attendance window. It is
// never mutated; a "new" session is a new token.
type Session struct {
	SessionToken  string    `json:"session_token"`
	EventID       string    `json:"event_id"`
	EventTitle    string    `json:"event_title"`
	OrgID         int64     `json:"org_id"`
	OrgSlug       string    `json:"org_slug"`
	StartsAt      time.Time `json:"starts_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	AttendeeCount int       `json:"attendee_count"`
}

// IsValid is computed at read time, never persisted. A session becomes
// invalid the instant ExpiresAt passes.
func (s *Session) IsValid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// CreateSessionRequest is the organizer-side request to open an attendance
// window. TTL is validated to the inclusive range 1–86400 seconds.
type CreateSessionRequest struct {
	Title      string `json:"title"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// CreatedSession is what the persistence layer returns from session creation.
type CreatedSession struct {
	SessionToken string    `json:"session_token"`
	EventID      string    `json:"event_id"`
	EntropyBits  float64   `json:"entropy_bits"`
	StartsAt     time.Time `json:"starts_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

const (
	MinSessionTTLSeconds = 1
	MaxSessionTTLSeconds = 86400
)
