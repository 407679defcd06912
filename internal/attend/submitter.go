package attend

import (
	"context"
	"time"

	"github.com/diagnosis/attendance-beacon/internal/domain"
	"github.com/diagnosis/attendance-beacon/internal/token"
	"github.com/diagnosis/attendance-beacon/pkg/logger"
)

// Store is the write side of the persistence collaborator. It is the final
// arbiter of membership, expiry and true duplicate detection; its structured
// results are passed through unchanged.
type Store interface {
	SubmitAttendance(ctx context.Context, tok string, memberID, memberOrgID int64) (*domain.AttendanceResult, error)
}

// Submitter adjudicates one attendance claim at a time:
//
//	Idle → Validating → DuplicateChecking → Submitting → Resolved
//
// Each stage either halts with a terminal result or advances exactly once.
// Independent claims may run concurrently; the duplicate cache is the only
// shared state.
type Submitter struct {
	codec   *token.Codec
	cache   *DuplicateCache
	store   Store
	timeout time.Duration
}

func NewSubmitter(codec *token.Codec, cache *DuplicateCache, store Store, timeout time.Duration) *Submitter {
	return &Submitter{
		codec:   codec,
		cache:   cache,
		store:   store,
		timeout: timeout,
	}
}

// Submit runs the full pipeline for a raw token string. Malformed or
// hostile input resolves locally at the validation stage and never reaches
// storage. The returned result is terminal: only network_error may be
// retried by the caller.
func (s *Submitter) Submit(ctx context.Context, raw string, memberID, memberOrgID int64) *domain.AttendanceResult {
	// Validating
	tok, ok := s.codec.Sanitize(raw)
	if !ok {
		logger.WarnContext(ctx, "Rejected malformed attendance token",
			"token_digest", token.LogDigest(raw))
		return domain.AttendanceFailure(domain.ErrInvalidToken, "token failed format or entropy checks")
	}

	// DuplicateChecking. The timestamp is recorded before the remote call
	// completes, closing the race window for rapid double-taps. Scoped to
	// the member so other members' claims for the same beacon get through.
	if !s.cache.CheckAndRecord(memberID, tok) {
		digest, _ := s.codec.Hash(tok)
		logger.DebugContext(ctx, "Suppressed duplicate submission",
			"token_digest", digest)
		return domain.AttendanceFailure(domain.ErrDuplicateSubmission, "token already submitted from this device")
	}

	// Submitting
	submitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.store.SubmitAttendance(submitCtx, tok, memberID, memberOrgID)
	if err != nil {
		// Nothing reached storage; release the token so the caller may
		// retry the transport failure.
		s.cache.Forget(memberID, tok)
		digest, _ := s.codec.Hash(tok)
		logger.ErrorContext(ctx, "Attendance submission transport failure",
			"error", err, "token_digest", digest)
		return domain.AttendanceFailure(domain.ErrNetwork, "attendance submission failed, please retry")
	}

	// Resolved
	return result
}
