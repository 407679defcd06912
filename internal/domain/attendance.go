package domain

import "time"

// ErrorCode is the closed taxonomy of attendance failure modes. Codes
// produced by the persistence layer are surfaced verbatim, never
// reinterpreted.
type ErrorCode string

const (
	// ErrInvalidToken: format or entropy failure, detected locally. No
	// network or storage call is made for these.
	ErrInvalidToken ErrorCode = "invalid_token"
	// ErrDuplicateSubmission: blocked locally within the suppression
	// window, or confirmed by the server.
	ErrDuplicateSubmission ErrorCode = "duplicate_submission"
	ErrSessionNotFound     ErrorCode = "session_not_found"
	ErrSessionExpired      ErrorCode = "session_expired"
	ErrOrgMismatch         ErrorCode = "organization_mismatch"
	ErrOrgInactive         ErrorCode = "organization_inactive"
	ErrUnauthorized        ErrorCode = "unauthorized"
	// ErrNetwork wraps transport-level failures. The only code a caller
	// may retry.
	ErrNetwork ErrorCode = "network_error"
)

// AttendanceResult is created once per submission attempt and is immutable.
type AttendanceResult struct {
	Success      bool       `json:"success"`
	AttendanceID string     `json:"attendance_id,omitempty"`
	EventID      string     `json:"event_id,omitempty"`
	EventTitle   string     `json:"event_title,omitempty"`
	OrgSlug      string     `json:"org_slug,omitempty"`
	RecordedAt   *time.Time `json:"recorded_at,omitempty"`
	Code         ErrorCode  `json:"code,omitempty"`
	Message      string     `json:"message,omitempty"`
}

func AttendanceFailure(code ErrorCode, message string) *AttendanceResult {
	return &AttendanceResult{Code: code, Message: message}
}

// SubmitAttendanceRequest is the member-side submission body.
type SubmitAttendanceRequest struct {
	Token string `json:"token"`
}
