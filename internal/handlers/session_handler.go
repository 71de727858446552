package handlers

import (
	"net/http"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"github.com/SAP-F-2025/survey-service/internal/services"
	"github.com/SAP-F-2025/survey-service/internal/utils"
	"github.com/SAP-F-2025/survey-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// SessionHandler serves respondents taking a survey and the collected
// responses.
type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
}

func NewSessionHandler(
	sessionService services.SessionService,
	validator *validator.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger, validator),
		sessionService: sessionService,
	}
}

// ResponseListResponse is a page of finished responses.
type ResponseListResponse struct {
	Responses interface{} `json:"responses"`
	Total     int64       `json:"total"`
	Limit     int         `json:"limit"`
	Offset    int         `json:"offset"`
}

// StartSession starts a respondent session on an active survey
// @Summary Start session
// @Tags sessions
// @Produce json
// @Param id path string true "Survey ID"
// @Success 201 {object} services.SessionView
// @Failure 422 {object} ErrorResponse
// @Router /surveys/{id}/sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	surveyID := ParseStringIDParam(c, "id")
	if surveyID == "" {
		return
	}

	h.LogRequest(c, "Starting session", "survey_id", surveyID)

	view, err := h.sessionService.Start(c.Request.Context(), surveyID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// GetSession returns the current section, its visible questions and the
// answers so far
// @Router /sessions/{session_id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	view, err := h.sessionService.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitAnswer records an answer in the current section
// @Summary Answer question
// @Tags sessions
// @Accept json
// @Produce json
// @Param session_id path string true "Session ID"
// @Param answer body services.AnswerRequest true "Answer"
// @Success 200 {object} services.SessionView
// @Failure 400 {object} ErrorResponse
// @Router /sessions/{session_id}/answers [put]
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	var req services.AnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	view, err := h.sessionService.Answer(c.Request.Context(), sessionID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// NextSection leaves the current section
// @Router /sessions/{session_id}/next [post]
func (h *SessionHandler) NextSection(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	result, err := h.sessionService.Next(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PreviousSection returns to the section visited before
// @Router /sessions/{session_id}/previous [post]
func (h *SessionHandler) PreviousSection(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	view, err := h.sessionService.Previous(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitSession stores the finished response
// @Summary Submit session
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 201 {object} models.FinishedResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{session_id}/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	h.LogRequest(c, "Submitting session", "session_id", sessionID)

	response, err := h.sessionService.Submit(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetResponse returns one finished response
// @Router /responses/{response_id} [get]
func (h *SessionHandler) GetResponse(c *gin.Context) {
	responseID := ParseStringIDParam(c, "response_id")
	if responseID == "" {
		return
	}

	response, err := h.sessionService.GetResponse(c.Request.Context(), responseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ListResponses lists the responses of a survey
// @Param from query string false "RFC 3339 lower bound on completion time"
// @Param to query string false "RFC 3339 upper bound on completion time"
// @Router /surveys/{id}/responses [get]
func (h *SessionHandler) ListResponses(c *gin.Context) {
	surveyID := ParseStringIDParam(c, "id")
	if surveyID == "" {
		return
	}

	limit, offset := parsePagination(c)
	filters := repositories.ResponseFilters{Limit: limit, Offset: offset}
	for param, target := range map[string]**time.Time{"from": &filters.DateFrom, "to": &filters.DateTo} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid " + param,
				Details: err.Error(),
			})
			return
		}
		*target = &t
	}

	responses, total, err := h.sessionService.ListResponses(c.Request.Context(), surveyID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ResponseListResponse{
		Responses: responses,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}
