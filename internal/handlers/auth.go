package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID := AuthedUserID(c)
	token := bearerToken(c)
	if token == "" {
		respondError(c, apierr.New(401, "missing_token", nil))
		return
	}
	if err := h.authService.Logout(c.Request.Context(), token, userID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"loggedOut": true})
}

func (h *AuthHandler) Invite(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.Invite(c.Request.Context(), req.Email, req.Name, req.Role); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"invited": true})
}

func (h *AuthHandler) Activate(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Activate(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (h *AuthHandler) RequestRecovery(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.RequestRecovery(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"requested": true})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"reset": true})
}

const authedUserKey = "authedUserID"

// AuthedUserID reads the user id the auth middleware stored on the context.
func AuthedUserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(authedUserKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// SetAuthedUserID is called by the auth middleware after token validation.
func SetAuthedUserID(c *gin.Context, id uuid.UUID) {
	c.Set(authedUserKey, id)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
