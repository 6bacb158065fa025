package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/medsimlab/clinsim-backend/internal/middleware"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/medsimlab/clinsim-backend/internal/response"
	"github.com/medsimlab/clinsim-backend/internal/service"
	"github.com/medsimlab/clinsim-backend/internal/session"
	"github.com/medsimlab/clinsim-backend/internal/validator"
)

// SessionHandler drives a learner's case-study session.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Start godoc
// POST /api/v1/learner/sessions
// Starts a session on a case study, or resumes the learner's active one.
func (h *SessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	orch, resumed, err := h.sessionService.Start(c.Request.Context(), claims.LearnerID, req.CaseStudyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrCaseStudyMissing)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{
		"resumed": resumed,
		"session": buildSessionView(orch, orch.State()),
	})
}

// GetState godoc
// GET /api/v1/learner/sessions/:session_id
// Returns the full derived view of a live session.
func (h *SessionHandler) GetState(c *gin.Context) {
	orch, ok := resolveSession(c, h.sessionService)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": buildSessionView(orch, orch.State())})
}

// SubmitAnswer godoc
// POST /api/v1/learner/sessions/:session_id/answers
// Scores and records an answer for one item.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	orch, ok := resolveSession(c, h.sessionService)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if orch.State().Status != model.SessionStatusActive {
		response.Fail(c, http.StatusConflict, response.ErrSessionFinished)
		return
	}
	if orch.CaseStudy().ItemByID(req.ItemID) == nil {
		response.Fail(c, http.StatusNotFound, response.ErrUnknownItem)
		return
	}

	var answer any
	if err := json.Unmarshal(req.Answer, &answer); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	state, result := h.sessionService.SubmitAnswer(c.Request.Context(), orch, req.ItemID, answer)

	response.Success(c, http.StatusOK, gin.H{
		"score": gin.H{
			"item_id": req.ItemID,
			"earned":  result.Earned,
			"max":     result.Max,
			"ratio":   result.Ratio,
		},
		"session": buildSessionView(orch, state),
	})
}

// NextItem godoc
// POST /api/v1/learner/sessions/:session_id/next
// Advances to the next item, releasing any staged clinical data.
func (h *SessionHandler) NextItem(c *gin.Context) {
	orch, ok := resolveSession(c, h.sessionService)
	if !ok {
		return
	}

	if orch.State().Status != model.SessionStatusActive {
		response.Fail(c, http.StatusConflict, response.ErrSessionFinished)
		return
	}

	state := h.sessionService.NextItem(c.Request.Context(), orch)
	response.Success(c, http.StatusOK, gin.H{"session": buildSessionView(orch, state)})
}

// AdministerMed godoc
// POST /api/v1/learner/sessions/:session_id/medications
// Records a medication administration at the current item.
func (h *SessionHandler) AdministerMed(c *gin.Context) {
	orch, ok := resolveSession(c, h.sessionService)
	if !ok {
		return
	}

	var req model.AdministerMedRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if orch.State().Status != model.SessionStatusActive {
		response.Fail(c, http.StatusConflict, response.ErrSessionFinished)
		return
	}

	state := orch.AdministerMed(c.Request.Context(), req.MedID, req.RightsChecked, req.NurseName)
	response.Success(c, http.StatusOK, gin.H{"session": buildSessionView(orch, state)})
}

// Complete godoc
// POST /api/v1/learner/sessions/:session_id/complete
// Terminates the session and returns the final summary.
func (h *SessionHandler) Complete(c *gin.Context) {
	orch, ok := resolveSession(c, h.sessionService)
	if !ok {
		return
	}

	if orch.State().Status != model.SessionStatusActive {
		response.Fail(c, http.StatusConflict, response.ErrSessionFinished)
		return
	}

	state := h.sessionService.Complete(c.Request.Context(), orch)
	response.Success(c, http.StatusOK, gin.H{"session": buildSessionView(orch, state)})
}

// resolveSession validates the path param, loads the live orchestrator, and
// enforces ownership. Writes the error response itself on failure.
func resolveSession(c *gin.Context, sessionService *service.SessionService) (*session.Orchestrator, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	sessionID := c.Param("session_id")
	if _, err := uuid.Parse(sessionID); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	orch, err := sessionService.Get(sessionID, claims.LearnerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotSessionOwner):
			response.Fail(c, http.StatusForbidden, response.ErrSessionNotOwned)
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return nil, false
	}
	return orch, true
}

// buildSessionView assembles the derived session payload returned by every
// session endpoint.
func buildSessionView(orch *session.Orchestrator, state model.SessionState) gin.H {
	view := gin.H{
		"id":                  state.ID,
		"case_study_id":       state.CaseStudyID,
		"status":              state.Status,
		"current_item_index":  state.CurrentItemIndex,
		"start_time":          state.StartTime,
		"stress_state":        state.StressState,
		"scores":              state.Scores,
		"cjmm_profile":        state.CJMMProfile,
		"administered_meds":   state.AdministeredMeds,
		"clinical_data":       state.ActiveClinicalData,
		"progress":            orch.Progress(),
		"pass_probability":    orch.PassProbability(),
		"alerts":              orch.Alerts(),
	}
	if state.EndTime != nil {
		view["end_time"] = state.EndTime
	}
	if item := orch.CurrentItem(); item != nil {
		view["current_item_id"] = item.ID
	}
	return view
}
