package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opl-api/internal/dto"
	"github.com/noah-isme/opl-api/internal/service"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
	"github.com/noah-isme/opl-api/pkg/response"
)

// AdminHandler exposes arbitration, audit export, and overview endpoints.
type AdminHandler struct {
	requests    *service.RequestService
	disputes    *service.DisputeService
	settlements *service.SettlementService
	stats       *service.StatsService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(requests *service.RequestService, disputes *service.DisputeService, settlements *service.SettlementService, stats *service.StatsService) *AdminHandler {
	return &AdminHandler{requests: requests, disputes: disputes, settlements: settlements, stats: stats}
}

// ListDisputes godoc
// @Summary List open disputes with their deliverables
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/disputes [get]
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	cases, err := h.disputes.ListOpen(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cases, nil)
}

// ResolveDispute godoc
// @Summary Resolve a dispute in favour of the teacher or the student
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request id"
// @Param payload body dto.ResolveDisputePayload true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Router /admin/disputes/{id}/resolve [post]
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	var payload dto.ResolveDisputePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	req, err := h.disputes.Resolve(c.Request.Context(), c.Param("id"), claims.UserID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// DeclineRequest godoc
// @Summary Decline a sent request on the teacher's behalf
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Request id"
// @Param payload body dto.DeclinePayload true "Decline payload"
// @Success 200 {object} response.Envelope
// @Router /admin/requests/{id}/decline [post]
func (h *AdminHandler) DeclineRequest(c *gin.Context) {
	var payload dto.DeclinePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	req, err := h.requests.DeclineOnBehalf(c.Request.Context(), c.Param("id"), claims.UserID, payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// ExportSettlements godoc
// @Summary Export the settlement audit as CSV or PDF
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param from query string false "Range start (RFC3339)"
// @Param to query string false "Range end (RFC3339)"
// @Success 200 {file} byte
// @Router /admin/settlements/export [get]
func (h *AdminHandler) ExportSettlements(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", string(service.FormatCSV)))

	var from, to time.Time
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from timestamp"))
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to timestamp"))
			return
		}
	}

	result, err := h.settlements.Export(c.Request.Context(), format, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// Stats godoc
// @Summary Engine overview counters
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
