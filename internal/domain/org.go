package domain

import "time"

// Org is an organization that can run attendance sessions. APIKeyHash is an
// argon2id hash of the organizer provisioning key; the raw key is never
// stored.
type Org struct {
	ID         int64     `json:"id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
