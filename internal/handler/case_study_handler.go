package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/medsimlab/clinsim-backend/internal/response"
	"github.com/medsimlab/clinsim-backend/internal/service"
)

// CaseStudyHandler serves the case-study catalog and learner payloads.
type CaseStudyHandler struct {
	caseStudyService *service.CaseStudyService
}

// NewCaseStudyHandler creates a new CaseStudyHandler.
func NewCaseStudyHandler(caseStudyService *service.CaseStudyService) *CaseStudyHandler {
	return &CaseStudyHandler{caseStudyService: caseStudyService}
}

// List godoc
// GET /api/v1/learner/case-studies
// Returns the catalog of available case studies.
func (h *CaseStudyHandler) List(c *gin.Context) {
	summaries, err := h.caseStudyService.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"case_studies": summaries})
}

// Get godoc
// GET /api/v1/learner/case-studies/:case_study_id
// Returns the learner-safe payload: patient, clinical data, and items with
// answer keys stripped.
func (h *CaseStudyHandler) Get(c *gin.Context) {
	id := c.Param("case_study_id")
	if _, err := uuid.Parse(id); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	payload, err := h.caseStudyService.GetPayload(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrCaseStudyMissing)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, payload)
}
