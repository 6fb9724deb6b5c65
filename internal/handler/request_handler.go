package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opl-api/internal/dto"
	"github.com/noah-isme/opl-api/internal/models"
	"github.com/noah-isme/opl-api/internal/service"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
	"github.com/noah-isme/opl-api/pkg/response"
)

// RequestHandler exposes the feedback request lifecycle endpoints.
type RequestHandler struct {
	requests *service.RequestService
}

// NewRequestHandler constructs handler.
func NewRequestHandler(requests *service.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create godoc
// @Summary Create a draft feedback request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var payload dto.CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	req, err := h.requests.CreateDraft(c.Request.Context(), payload, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, req, nil)
}

// List godoc
// @Summary List feedback requests visible to the caller
// @Tags Requests
// @Produce json
// @Param status query string false "Comma separated status filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	filter := models.RequestFilter{}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Status = append(filter.Status, models.RequestStatus(strings.TrimSpace(s)))
		}
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	requests, err := h.requests.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get a feedback request with its deliverable
// @Tags Requests
// @Produce json
// @Param id path string true "Request id"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	detail, err := h.requests.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Fund godoc
// @Summary Fund a draft request from the student's credit balance
// @Tags Requests
// @Produce json
// @Param id path string true "Request id"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/fund [post]
func (h *RequestHandler) Fund(c *gin.Context) {
	claims := claimsFromContext(c)
	req, err := h.requests.Fund(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Dispatch godoc
// @Summary Send a funded request to the teacher
// @Tags Requests
// @Produce json
// @Param id path string true "Request id"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/dispatch [post]
func (h *RequestHandler) Dispatch(c *gin.Context) {
	claims := claimsFromContext(c)
	req, err := h.requests.Dispatch(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Accept godoc
// @Summary Accept a sent request
// @Tags Requests
// @Produce json
// @Param id path string true "Request id"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/accept [post]
func (h *RequestHandler) Accept(c *gin.Context) {
	claims := claimsFromContext(c)
	req, err := h.requests.Accept(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Decline godoc
// @Summary Decline a sent request with a reason
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request id"
// @Param payload body dto.DeclinePayload true "Decline payload"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/decline [post]
func (h *RequestHandler) Decline(c *gin.Context) {
	var payload dto.DeclinePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	req, err := h.requests.Decline(c.Request.Context(), c.Param("id"), claims.UserID, payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// RaiseClarification godoc
// @Summary Raise the one allowed clarification question
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request id"
// @Param payload body dto.ClarificationPayload true "Question payload"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/clarification [post]
func (h *RequestHandler) RaiseClarification(c *gin.Context) {
	var payload dto.ClarificationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	req, err := h.requests.RaiseClarification(c.Request.Context(), c.Param("id"), claims.UserID, payload.Question)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// AnswerClarification godoc
// @Summary Answer the open clarification question
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request id"
// @Param payload body dto.ClarificationAnswerPayload true "Answer payload"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/clarification/answer [post]
func (h *RequestHandler) AnswerClarification(c *gin.Context) {
	var payload dto.ClarificationAnswerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	req, err := h.requests.AnswerClarification(c.Request.Context(), c.Param("id"), claims.UserID, payload.Answer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Submit godoc
// @Summary Submit the feedback deliverable
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request id"
// @Param payload body dto.SubmitFeedbackPayload true "Deliverable payload"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/feedback [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	var payload dto.SubmitFeedbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	req, err := h.requests.Submit(c.Request.Context(), c.Param("id"), claims.UserID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Complete godoc
// @Summary Confirm the deliverable and release credits to the teacher
// @Tags Requests
// @Produce json
// @Param id path string true "Request id"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/complete [post]
func (h *RequestHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	req, err := h.requests.Complete(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Dispute godoc
// @Summary Dispute a submitted deliverable within the review window
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request id"
// @Param payload body dto.DisputePayload true "Dispute payload"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/dispute [post]
func (h *RequestHandler) Dispute(c *gin.Context) {
	var payload dto.DisputePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	req, err := h.requests.Dispute(c.Request.Context(), c.Param("id"), claims.UserID, payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}
