package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/attendance-beacon/internal/beacon"
	"github.com/diagnosis/attendance-beacon/internal/domain"
	mw "github.com/diagnosis/attendance-beacon/internal/http/middleware"
	"github.com/diagnosis/attendance-beacon/internal/http/response"
	"github.com/diagnosis/attendance-beacon/internal/repo/postgres"
	"github.com/diagnosis/attendance-beacon/pkg/events"
	"github.com/diagnosis/attendance-beacon/pkg/logger"
)

type createSessionResponse struct {
	domain.CreatedSession
	Beacon beacon.Payload `json:"beacon"`
}

// CreateSession opens an attendance window for the authenticated
// organization and returns the token plus the payload to broadcast.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	org := mw.Org(r)
	if org == nil {
		response.Unauthorized(w, "organization authentication required")
		return
	}

	var req domain.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Title == "" {
		response.BadRequest(w, "title is required")
		return
	}
	if req.TTLSeconds == 0 {
		req.TTLSeconds = int(h.config.Attendance.DefaultTTL.Seconds())
	}

	created, err := h.sessions.Create(r.Context(), org.ID, req.Title, req.TTLSeconds)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidTTL) {
			response.BadRequest(w, err.Error())
			return
		}
		logger.ErrorContext(r.Context(), "Failed to create session", "error", err, "org_slug", org.Slug)
		response.InternalError(w, "failed to create session")
		return
	}

	payload, err := h.packer.Pack(created.SessionToken, org.Slug)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to pack beacon payload", "error", err, "org_slug", org.Slug)
		response.InternalError(w, "failed to encode beacon payload")
		return
	}

	digest, _ := h.codec.Hash(created.SessionToken)
	event := events.SessionCreatedEvent{
		EventID:     created.EventID,
		EventTitle:  req.Title,
		OrgID:       org.ID,
		OrgSlug:     org.Slug,
		TokenDigest: digest,
		EntropyBits: created.EntropyBits,
		StartsAt:    created.StartsAt,
		ExpiresAt:   created.ExpiresAt,
	}
	if err := h.eventBus.Publish(r.Context(), events.SessionCreated, event); err != nil {
		logger.ErrorContext(r.Context(), "Failed to publish session created event", "error", err, "event_id", created.EventID)
	}

	response.WriteJSON(w, http.StatusCreated, createSessionResponse{
		CreatedSession: *created,
		Beacon:         payload,
	})
}

// ListActiveSessions returns the member's organization's live sessions.
// The slug in the URL must be the member's own organization.
func (h *Handlers) ListActiveSessions(w http.ResponseWriter, r *http.Request) {
	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "member authentication required")
		return
	}

	if slug := chi.URLParam(r, "slug"); slug != claims.OrgSlug {
		response.Forbidden(w, "token does not grant access to this organization")
		return
	}

	sessions, err := h.registry.ActiveSessions(r.Context(), claims.OrgID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list active sessions", "error", err, "org_id", claims.OrgID)
		response.InternalError(w, "failed to list sessions")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type resolveBeaconRequest struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// ResolveBeacon maps a received advertisement back to a live session. The
// payload is pre-filtered against the member's organization before any
// session lookup.
func (h *Handlers) ResolveBeacon(w http.ResponseWriter, r *http.Request) {
	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "member authentication required")
		return
	}

	var req resolveBeaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if !h.packer.ValidatePayload(req.Major, req.Minor, claims.OrgSlug) {
		response.BadRequest(w, "payload does not belong to this organization")
		return
	}

	found, err := h.registry.FindByBeacon(r.Context(), beacon.OrgCode(req.Major), uint16(req.Minor), claims.OrgID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to resolve beacon", "error", err, "org_id", claims.OrgID)
		response.InternalError(w, "failed to resolve beacon")
		return
	}
	if found == nil {
		response.NotFound(w, "no live session matches this beacon")
		return
	}

	response.WriteJSON(w, http.StatusOK, found)
}

// SecurityMetrics exposes the process-wide token counters.
func (h *Handlers) SecurityMetrics(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.metrics.Snapshot())
}
