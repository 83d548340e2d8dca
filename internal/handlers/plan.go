package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/citysafe/planning-backend/internal/services"
)

type PlanHandler struct {
	planService services.PlanService
}

func NewPlanHandler(planService services.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

func (h *PlanHandler) Create(c *gin.Context) {
	var input services.PlanInput
	if !bindJSON(c, &input) {
		return
	}
	plan, err := h.planService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, plan)
}

func (h *PlanHandler) Current(c *gin.Context) {
	plan, err := h.planService.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, plan)
}

func (h *PlanHandler) UpdateBasicInfo(c *gin.Context) {
	var input services.PlanInput
	if !bindJSON(c, &input) {
		return
	}
	plan, err := h.planService.UpdateBasicInfo(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, plan)
}

func (h *PlanHandler) Status(c *gin.Context) {
	status, err := h.planService.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, status)
}

func (h *PlanHandler) MacroObjectives(c *gin.Context) {
	nodes, err := h.planService.MacroObjectives(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nodes)
}

func (h *PlanHandler) SetMacroObjectiveGoals(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Goals            []services.MacroObjectiveGoalInput `json:"goals"`
		CustomIndicators []services.CustomIndicatorInput    `json:"customIndicators"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.planService.SetMacroObjectiveGoals(c.Request.Context(), id, req.Goals, req.CustomIndicators); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": true})
}

func (h *PlanHandler) SetFocusGoals(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Goals            []services.FocusGoalInput       `json:"goals"`
		CustomIndicators []services.CustomIndicatorInput `json:"customIndicators"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.planService.SetFocusGoals(c.Request.Context(), id, req.Goals, req.CustomIndicators); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": true})
}

func (h *PlanHandler) Diagnosis(c *gin.Context) {
	tree, err := h.planService.Diagnosis(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, tree)
}

func (h *PlanHandler) UpsertProblemDiagnoses(c *gin.Context) {
	var req struct {
		Items []services.ProblemDiagnosisInput `json:"items" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.planService.UpsertProblemDiagnoses(c.Request.Context(), req.Items); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": true})
}

func (h *PlanHandler) UpsertCauseDiagnoses(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Items []services.CauseDiagnosisInput `json:"items" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.planService.UpsertCauseDiagnoses(c.Request.Context(), id, req.Items); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": true})
}

func (h *PlanHandler) SetTacticalDimension(c *gin.Context) {
	var input services.TacticalDimensionInput
	if !bindJSON(c, &input) {
		return
	}
	dim, err := h.planService.SetTacticalDimension(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, dim)
}

func (h *PlanHandler) TacticalDimension(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	dim, err := h.planService.TacticalDimension(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, dim)
}

func (h *PlanHandler) TacticalDimensions(c *gin.Context) {
	dims, err := h.planService.TacticalDimensions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, dims)
}
