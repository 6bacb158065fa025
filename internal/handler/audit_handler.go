package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/medsimlab/clinsim-backend/internal/response"
	"github.com/medsimlab/clinsim-backend/internal/service"
	"github.com/medsimlab/clinsim-backend/internal/validator"
)

// AuditHandler ingests interaction events from the learner UI.
type AuditHandler struct {
	auditService   *service.AuditService
	sessionService *service.SessionService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditService *service.AuditService, sessionService *service.SessionService) *AuditHandler {
	return &AuditHandler{
		auditService:   auditService,
		sessionService: sessionService,
	}
}

// Record godoc
// POST /api/v1/learner/sessions/:session_id/events
// Appends one interaction event to the session's audit log. The stress
// detector reads these on its poll cycle; nothing is computed inline.
func (h *AuditHandler) Record(c *gin.Context) {
	orch, ok := resolveSession(c, h.sessionService)
	if !ok {
		return
	}

	var req model.RecordEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	entry, err := h.auditService.Record(c.Request.Context(), orch.State().ID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"recorded_at": entry.Timestamp})
}

// ListEvents godoc
// GET /api/v1/learner/sessions/:session_id/events
// Returns the hot tail of the session's audit log.
func (h *AuditHandler) ListEvents(c *gin.Context) {
	orch, ok := resolveSession(c, h.sessionService)
	if !ok {
		return
	}

	entries, err := h.auditService.EntriesForSession(c.Request.Context(), orch.State().ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"events": entries})
}
