package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"travelsync/internal/service"
)

// AuthHandler handles HTTP requests for phone login.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RequestOTPRequest is the HTTP request body for requesting a login code.
type RequestOTPRequest struct {
	Phone string `json:"phone"`
}

// VerifyOTPRequest is the HTTP request body for verifying a login code.
type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// VerifyOTPResponse is the HTTP response for a successful login.
type VerifyOTPResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

// RequestOTP handles POST /v1/auth/otp/request
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req RequestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.authService.RequestOTP(c.Request.Context(), req.Phone); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

// VerifyOTP handles POST /v1/auth/otp/verify
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.authService.VerifyOTP(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, VerifyOTPResponse{
		Token:     token,
		UserID:    user.ID,
		Phone:     user.Phone,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}
