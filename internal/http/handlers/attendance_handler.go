package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/diagnosis/attendance-beacon/internal/domain"
	mw "github.com/diagnosis/attendance-beacon/internal/http/middleware"
	"github.com/diagnosis/attendance-beacon/internal/http/response"
	"github.com/diagnosis/attendance-beacon/internal/token"
	"github.com/diagnosis/attendance-beacon/pkg/events"
	"github.com/diagnosis/attendance-beacon/pkg/logger"
)

// SubmitAttendance runs one attendance claim through the submission
// pipeline and surfaces the structured result verbatim.
func (h *Handlers) SubmitAttendance(w http.ResponseWriter, r *http.Request) {
	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "member authentication required")
		return
	}

	var req domain.SubmitAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	result := h.submitter.Submit(r.Context(), req.Token, claims.Sub, claims.OrgID)

	if !result.Success {
		if result.Code != domain.ErrInvalidToken && result.Code != domain.ErrDuplicateSubmission {
			event := events.AttendanceRejectedEvent{
				TokenDigest: token.LogDigest(req.Token),
				MemberID:    claims.Sub,
				Code:        string(result.Code),
				RejectedAt:  time.Now(),
			}
			if err := h.eventBus.Publish(r.Context(), events.AttendanceRejected, event); err != nil {
				logger.ErrorContext(r.Context(), "Failed to publish attendance rejected event", "error", err)
			}
		}
		response.WriteJSON(w, response.AttendanceStatus(result.Code), result)
		return
	}

	event := events.AttendanceRecordedEvent{
		AttendanceID: result.AttendanceID,
		EventID:      result.EventID,
		EventTitle:   result.EventTitle,
		MemberID:     claims.Sub,
		OrgSlug:      result.OrgSlug,
		RecordedAt:   *result.RecordedAt,
	}
	if err := h.eventBus.Publish(r.Context(), events.AttendanceRecorded, event); err != nil {
		logger.ErrorContext(r.Context(), "Failed to publish attendance recorded event", "error", err, "attendance_id", result.AttendanceID)
	}

	notification := events.NotificationEvent{
		Type:      "attendance_confirmation",
		Recipient: fmt.Sprintf("member:%d", claims.Sub),
		Subject:   "Attendance recorded",
		Template:  "attendance_recorded",
		Data: map[string]interface{}{
			"event_title": result.EventTitle,
			"org_slug":    result.OrgSlug,
			"recorded_at": result.RecordedAt,
		},
	}
	if err := h.eventBus.Publish(r.Context(), events.NotifySend, notification); err != nil {
		logger.ErrorContext(r.Context(), "Failed to publish notification event", "error", err, "attendance_id", result.AttendanceID)
	}

	response.WriteJSON(w, http.StatusCreated, result)
}
