package handlers

import (
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/services"
	"github.com/citysafe/planning-backend/internal/types"
)

type InitiativeHandler struct {
	initiativeService     services.InitiativeService
	prioritizationService services.PrioritizationService
}

func NewInitiativeHandler(initiativeService services.InitiativeService, prioritizationService services.PrioritizationService) *InitiativeHandler {
	return &InitiativeHandler{initiativeService: initiativeService, prioritizationService: prioritizationService}
}

func (h *InitiativeHandler) List(c *gin.Context) {
	req, ok := bindPageRequest(c)
	if !ok {
		return
	}
	page, err := h.initiativeService.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *InitiativeHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.initiativeService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, detail)
}

func (h *InitiativeHandler) Summary(c *gin.Context) {
	summary, err := h.initiativeService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

func (h *InitiativeHandler) Options(c *gin.Context) {
	options, err := h.initiativeService.Options(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, options)
}

func (h *InitiativeHandler) Create(c *gin.Context) {
	var input services.CreateInitiativeInput
	uploads, ok := bindMultipart(c, &input)
	if !ok {
		return
	}
	defer closeUploads(uploads)
	initiative, err := h.initiativeService.CreateCustom(c.Request.Context(), input, uploads, AuthedUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, initiative)
}

func (h *InitiativeHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateInitiativeInput
	uploads, ok := bindMultipart(c, &input)
	if !ok {
		return
	}
	defer closeUploads(uploads)
	initiative, err := h.initiativeService.UpdateCustom(c.Request.Context(), id, input, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, initiative)
}

func (h *InitiativeHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.initiativeService.DeleteCustom(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

func (h *InitiativeHandler) DownloadAnnex(c *gin.Context) {
	key := c.Param("key")
	annex, rc, err := h.initiativeService.OpenAnnex(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", annex.Filename))
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, rc); err != nil {
		_ = c.Error(err)
	}
}

func (h *InitiativeHandler) Prioritization(c *gin.Context) {
	var req struct {
		InitiativeIDs []uint `form:"initiative_ids"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, apierr.BadRequest("invalid_query", err))
		return
	}
	tree, err := h.prioritizationService.InitiativeAssociationTree(c.Request.Context(), req.InitiativeIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, tree)
}

func (h *InitiativeHandler) SetPrioritization(c *gin.Context) {
	var req struct {
		TriplesToPrioritize   []types.InitiativeTriple `json:"triplesToPrioritize"`
		TriplesToDeprioritize []types.InitiativeTriple `json:"triplesToDeprioritize"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.prioritizationService.SetInitiativePrioritization(c.Request.Context(), req.TriplesToPrioritize, req.TriplesToDeprioritize); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": true})
}
