package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/attendance-beacon/internal/domain"
	"github.com/diagnosis/attendance-beacon/internal/token"
)

// SessionRepo owns the session side of the persistence collaborator.
type SessionRepo interface {
	// Create opens an attendance window: generates the session token,
	// validates the TTL and inserts the row atomically.
	Create(ctx context.Context, orgID int64, title string, ttlSeconds int) (*domain.CreatedSession, error)
	ActiveByOrg(ctx context.Context, orgID int64) ([]domain.Session, error)
	// DeleteExpired removes sessions past their expiry plus a grace period.
	DeleteExpired(ctx context.Context, grace time.Duration) (int64, error)
}

type SessionRepoImpl struct {
	pool  *pgxpool.Pool
	codec *token.Codec
}

func NewSessionRepo(pool *pgxpool.Pool, codec *token.Codec) *SessionRepoImpl {
	return &SessionRepoImpl{pool: pool, codec: codec}
}

var ErrInvalidTTL = errors.New("session TTL must be between 1 and 86400 seconds")

// uniqueViolation is the postgres SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

const createAttempts = 3

func (r *SessionRepoImpl) Create(ctx context.Context, orgID int64, title string, ttlSeconds int) (*domain.CreatedSession, error) {
	if ttlSeconds < domain.MinSessionTTLSeconds || ttlSeconds > domain.MaxSessionTTLSeconds {
		return nil, ErrInvalidTTL
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO sessions (token, event_id, title, org_id, starts_at, expires_at, attendee_count)
		VALUES ($1, $2, $3, $4, $5, $6, 0)`

	// Full-token collisions against live sessions are rare but possible;
	// regenerate on a unique violation instead of failing the organizer.
	for attempt := 0; attempt < createAttempts; attempt++ {
		tok, err := r.codec.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session token: %w", err)
		}

		eventID := uuid.New().String()
		startsAt := time.Now()
		expiresAt := startsAt.Add(time.Duration(ttlSeconds) * time.Second)

		if _, err := r.pool.Exec(ctx, query, tok, eventID, title, orgID, startsAt, expiresAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				continue
			}
			return nil, fmt.Errorf("failed to create session: %w", err)
		}

		return &domain.CreatedSession{
			SessionToken: tok,
			EventID:      eventID,
			EntropyBits:  token.EntropyBits(tok),
			StartsAt:     startsAt,
			ExpiresAt:    expiresAt,
		}, nil
	}

	return nil, fmt.Errorf("failed to create session after %d token collisions", createAttempts)
}

func (r *SessionRepoImpl) ActiveByOrg(ctx context.Context, orgID int64) ([]domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `
		SELECT s.token, s.event_id, s.title, s.org_id, o.slug, s.starts_at, s.expires_at, s.attendee_count
		FROM sessions s
		JOIN orgs o ON o.id = s.org_id
		WHERE s.org_id = $1 AND s.expires_at > now()
		ORDER BY s.starts_at DESC`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.SessionToken, &s.EventID, &s.EventTitle, &s.OrgID, &s.OrgSlug, &s.StartsAt, &s.ExpiresAt, &s.AttendeeCount); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepoImpl) DeleteExpired(ctx context.Context, grace time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `DELETE FROM sessions WHERE expires_at < now() - $1::interval`
	result, err := r.pool.Exec(ctx, query, grace.String())
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

var _ SessionRepo = (*SessionRepoImpl)(nil)
