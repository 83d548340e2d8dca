package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/citysafe/planning-backend/internal/platform/apierr"
)

// ErrorEnvelope is the uniform error body: a machine-readable code plus a
// human-readable message.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, err error) {
	ae := apierr.From(err)
	msg := ae.Error()
	if ae.Status >= http.StatusInternalServerError {
		// internal details stay in the logs
		msg = "internal server error"
	}
	c.JSON(ae.Status, gin.H{"error": ErrorEnvelope{Code: ae.Code, Message: msg}})
}

func respondOK(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}

func respondCreated(c *gin.Context, body interface{}) {
	c.JSON(http.StatusCreated, body)
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, apierr.BadRequest("invalid_payload", err))
		return false
	}
	return true
}
