package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medsimlab/clinsim-backend/internal/middleware"
	"github.com/medsimlab/clinsim-backend/internal/model"
	"github.com/medsimlab/clinsim-backend/internal/repository"
	"github.com/medsimlab/clinsim-backend/internal/response"
	"github.com/medsimlab/clinsim-backend/internal/service"
	"github.com/medsimlab/clinsim-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	learnerRepo *repository.LearnerRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, learnerRepo *repository.LearnerRepository) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		learnerRepo: learnerRepo,
	}
}

// Login godoc
// POST /api/v1/auth/login
// Validates username + password, checks for an existing login session
// (rejects if active), returns JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	learner, err := h.learnerRepo.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(learner.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateToken(c.Request.Context(), learner.ID)
	if err != nil {
		if errors.Is(err, service.ErrSessionAlreadyActive) {
			response.Fail(c, http.StatusConflict, response.ErrSessionActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"learner": gin.H{
			"id":       learner.ID,
			"username": learner.Username,
			"name":     learner.Name,
		},
	})
}

// Me godoc
// GET /api/v1/learner/me
// Returns the profile of the currently authenticated learner.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	learner, err := h.learnerRepo.GetByID(c.Request.Context(), claims.LearnerID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"learner": gin.H{
			"id":       learner.ID,
			"username": learner.Username,
			"name":     learner.Name,
		},
	})
}

// Logout godoc
// POST /api/v1/learner/logout
// Releases the single-device login session.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.ResetSession(c.Request.Context(), claims.LearnerID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
