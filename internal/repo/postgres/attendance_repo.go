package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/attendance-beacon/internal/domain"
)

// AttendanceRepo is the authoritative arbiter of an attendance claim. It
// returns structured business results, not errors, for every adjudication
// outcome; a non-nil error means the claim never reached a decision.
type AttendanceRepo interface {
	SubmitAttendance(ctx context.Context, tok string, memberID, memberOrgID int64) (*domain.AttendanceResult, error)
}

type AttendanceRepoImpl struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepo(pool *pgxpool.Pool) *AttendanceRepoImpl {
	return &AttendanceRepoImpl{pool: pool}
}

func (r *AttendanceRepoImpl) SubmitAttendance(ctx context.Context, tok string, memberID, memberOrgID int64) (*domain.AttendanceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		eventID    string
		eventTitle string
		orgID      int64
		orgSlug    string
		orgActive  bool
		expiresAt  time.Time
	)

	sessionQuery := `
		SELECT s.event_id, s.title, s.org_id, o.slug, o.active, s.expires_at
		FROM sessions s
		JOIN orgs o ON o.id = s.org_id
		WHERE s.token = $1`

	err := r.pool.QueryRow(ctx, sessionQuery, tok).Scan(&eventID, &eventTitle, &orgID, &orgSlug, &orgActive, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AttendanceFailure(domain.ErrSessionNotFound, "no session exists for this token"), nil
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(expiresAt) {
		return domain.AttendanceFailure(domain.ErrSessionExpired, "session has expired"), nil
	}
	if orgID != memberOrgID {
		return domain.AttendanceFailure(domain.ErrOrgMismatch, "session belongs to a different organization"), nil
	}
	if !orgActive {
		return domain.AttendanceFailure(domain.ErrOrgInactive, "organization is not active"), nil
	}

	var isMember bool
	membershipQuery := `SELECT EXISTS(SELECT 1 FROM members WHERE id = $1 AND org_id = $2 AND active)`
	if err := r.pool.QueryRow(ctx, membershipQuery, memberID, orgID).Scan(&isMember); err != nil {
		return nil, err
	}
	if !isMember {
		return domain.AttendanceFailure(domain.ErrUnauthorized, "not an active member of this organization"), nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	attendanceID := uuid.New().String()
	recordedAt := time.Now()

	// The unique (event_id, member_id) constraint is the true duplicate
	// check; the client-side cache is a courtesy guard only.
	insertQuery := `
		INSERT INTO attendance (id, event_id, member_id, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, member_id) DO NOTHING`

	result, err := tx.Exec(ctx, insertQuery, attendanceID, eventID, memberID, recordedAt)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return domain.AttendanceFailure(domain.ErrDuplicateSubmission, "attendance already recorded for this session"), nil
	}

	countQuery := `UPDATE sessions SET attendee_count = attendee_count + 1 WHERE token = $1`
	if _, err := tx.Exec(ctx, countQuery, tok); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.AttendanceResult{
		Success:      true,
		AttendanceID: attendanceID,
		EventID:      eventID,
		EventTitle:   eventTitle,
		OrgSlug:      orgSlug,
		RecordedAt:   &recordedAt,
	}, nil
}

var _ AttendanceRepo = (*AttendanceRepoImpl)(nil)
