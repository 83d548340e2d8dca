package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/services"
	"github.com/citysafe/planning-backend/internal/types"
)

type ProblemHandler struct {
	problemService        services.ProblemService
	prioritizationService services.PrioritizationService
}

func NewProblemHandler(problemService services.ProblemService, prioritizationService services.PrioritizationService) *ProblemHandler {
	return &ProblemHandler{problemService: problemService, prioritizationService: prioritizationService}
}

func (h *ProblemHandler) List(c *gin.Context) {
	req, ok := bindPageRequest(c)
	if !ok {
		return
	}
	page, err := h.problemService.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *ProblemHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.problemService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, detail)
}

func (h *ProblemHandler) Summary(c *gin.Context) {
	summary, err := h.problemService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

func (h *ProblemHandler) Create(c *gin.Context) {
	var input services.CreateProblemInput
	if !bindJSON(c, &input) {
		return
	}
	problem, err := h.problemService.CreateCustom(c.Request.Context(), input, AuthedUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, problem)
}

func (h *ProblemHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input services.CreateProblemInput
	if !bindJSON(c, &input) {
		return
	}
	problem, err := h.problemService.UpdateCustom(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, problem)
}

func (h *ProblemHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.problemService.DeleteCustom(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

func (h *ProblemHandler) SetPrioritization(c *gin.Context) {
	var req struct {
		ProblemIDsToPrioritize   []uint `json:"problemIdsToPrioritize"`
		ProblemIDsToDeprioritize []uint `json:"problemIdsToDeprioritize"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := h.prioritizationService.SetProblemPrioritization(ctx, req.ProblemIDsToPrioritize, true); err != nil {
		respondError(c, err)
		return
	}
	if err := h.prioritizationService.SetProblemPrioritization(ctx, req.ProblemIDsToDeprioritize, false); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": true})
}

func bindPageRequest(c *gin.Context) (types.PageRequest, bool) {
	var req types.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, apierr.BadRequest("invalid_query", err))
		return req, false
	}
	return req, true
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, apierr.BadRequest("invalid_id", err))
		return 0, false
	}
	return uint(id), true
}
