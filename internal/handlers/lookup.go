package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/citysafe/planning-backend/internal/repos"
)

// LookupHandler serves the small reference tables behind form dropdowns.
type LookupHandler struct {
	lookupRepo repos.LookupRepo
}

func NewLookupHandler(lookupRepo repos.LookupRepo) *LookupHandler {
	return &LookupHandler{lookupRepo: lookupRepo}
}

func (h *LookupHandler) Departments(c *gin.Context) {
	rows, err := h.lookupRepo.Departments(c.Request.Context(), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

func (h *LookupHandler) Neighborhoods(c *gin.Context) {
	rows, err := h.lookupRepo.Neighborhoods(c.Request.Context(), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

func (h *LookupHandler) Outcomes(c *gin.Context) {
	rows, err := h.lookupRepo.Outcomes(c.Request.Context(), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}
