package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/services"
	"github.com/citysafe/planning-backend/internal/types"
)

type CauseHandler struct {
	causeService          services.CauseService
	prioritizationService services.PrioritizationService
}

func NewCauseHandler(causeService services.CauseService, prioritizationService services.PrioritizationService) *CauseHandler {
	return &CauseHandler{causeService: causeService, prioritizationService: prioritizationService}
}

func (h *CauseHandler) List(c *gin.Context) {
	req, ok := bindPageRequest(c)
	if !ok {
		return
	}
	page, err := h.causeService.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *CauseHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.causeService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, detail)
}

func (h *CauseHandler) Summary(c *gin.Context) {
	summary, err := h.causeService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

// Create accepts multipart form data (a "payload" JSON part plus zero or
// more "annexes" file parts) or a plain JSON body.
func (h *CauseHandler) Create(c *gin.Context) {
	var input services.CreateCauseInput
	uploads, ok := bindMultipart(c, &input)
	if !ok {
		return
	}
	defer closeUploads(uploads)
	cause, err := h.causeService.CreateCustom(c.Request.Context(), input, uploads, AuthedUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, cause)
}

func (h *CauseHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateCauseInput
	uploads, ok := bindMultipart(c, &input)
	if !ok {
		return
	}
	defer closeUploads(uploads)
	cause, err := h.causeService.UpdateCustom(c.Request.Context(), id, input, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, cause)
}

func (h *CauseHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.causeService.DeleteCustom(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

func (h *CauseHandler) Indicators(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	series, err := h.causeService.IndicatorSeries(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, series)
}

func (h *CauseHandler) DownloadAnnex(c *gin.Context) {
	key := c.Param("key")
	annex, rc, err := h.causeService.OpenAnnex(c.Request.Context(), key)
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

func (h *CauseHandler) Prioritization(c *gin.Context) {
	var req struct {
		CauseIDs []uint `form:"cause_ids"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, apierr.BadRequest("invalid_query", err))
		return
	}
	rows, err := h.prioritizationService.CausePrioritizationRows(c.Request.Context(), req.CauseIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

func (h *CauseHandler) SetPrioritization(c *gin.Context) {
	var req struct {
		Items []types.CausePrioritizationItem `json:"items" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.prioritizationService.SetCauseProblemPrioritization(c.Request.Context(), req.Items); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": true})
}

// bindMultipart parses a write request that may carry annexes: a multipart
// body with a JSON "payload" part and "annexes" file parts. Annex-less
// clients can send a plain JSON body instead.
func bindMultipart(c *gin.Context, dest interface{}) ([]services.AnnexUpload, bool) {
	if c.ContentType() != "multipart/form-data" {
		if !bindJSON(c, dest) {
			return nil, false
		}
		return nil, true
	}
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, apierr.BadRequest("invalid_multipart", err))
		return nil, false
	}
	payloads := form.Value["payload"]
	if len(payloads) != 1 {
		respondError(c, apierr.BadRequest("invalid_payload", fmt.Errorf("exactly one payload part is required")))
		return nil, false
	}
	if err := json.Unmarshal([]byte(payloads[0]), dest); err != nil {
		respondError(c, apierr.BadRequest("invalid_payload", err))
		return nil, false
	}
	files := form.File["annexes"]
	uploads := make([]services.AnnexUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeUploads(uploads)
			respondError(c, apierr.BadRequest("invalid_annex", err))
			return nil, false
		}
		uploads = append(uploads, services.AnnexUpload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Reader:   f,
		})
	}
	return uploads, true
}

func closeUploads(uploads []services.AnnexUpload) {
	for _, up := range uploads {
		if closer, ok := up.Reader.(multipart.File); ok {
			_ = closer.Close()
		} else if closer, ok := up.Reader.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}
