package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"github.com/SAP-F-2025/survey-service/internal/services"
	"github.com/SAP-F-2025/survey-service/internal/utils"
	"github.com/SAP-F-2025/survey-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type SurveyHandler struct {
	BaseHandler
	surveyService services.SurveyService
}

func NewSurveyHandler(
	surveyService services.SurveyService,
	validator *validator.Validator,
	logger utils.Logger,
) *SurveyHandler {
	return &SurveyHandler{
		BaseHandler:   NewBaseHandler(logger, validator),
		surveyService: surveyService,
	}
}

// CreateSurvey creates a new draft survey holding only the default section
// @Summary Create survey
// @Tags surveys
// @Accept json
// @Produce json
// @Param survey body services.CreateSurveyRequest true "Survey data"
// @Success 201 {object} services.SurveyDetail
// @Failure 400 {object} ErrorResponse
// @Router /surveys [post]
func (h *SurveyHandler) CreateSurvey(c *gin.Context) {
	var req services.CreateSurveyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating survey", "title", req.Title)

	detail, err := h.surveyService.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, detail)
}

// GetSurvey retrieves a survey with its document and stats
// @Summary Get survey
// @Tags surveys
// @Produce json
// @Param id path string true "Survey ID"
// @Success 200 {object} services.SurveyDetail
// @Failure 404 {object} ErrorResponse
// @Router /surveys/{id} [get]
func (h *SurveyHandler) GetSurvey(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	detail, err := h.surveyService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("ETag", etag(detail))
	c.JSON(http.StatusOK, detail)
}

// ListSurveys lists surveys with filters
// @Summary List surveys
// @Tags surveys
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Param status query string false "draft, active or closed"
// @Param category query string false "Category"
// @Param search query string false "Search in title, description and category"
// @Success 200 {object} services.SurveyListResponse
// @Router /surveys [get]
func (h *SurveyHandler) ListSurveys(c *gin.Context) {
	h.LogRequest(c, "Listing surveys")

	limit, offset := parsePagination(c)
	filters := repositories.SurveyFilters{
		Category:  c.Query("category"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Limit:     limit,
		Offset:    offset,
	}
	if status := c.Query("status"); status != "" {
		surveyStatus := models.SurveyStatus(status)
		filters.Status = &surveyStatus
	}

	surveys, err := h.surveyService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, surveys)
}

// ListCategories lists the categories in use
// @Router /surveys/categories [get]
func (h *SurveyHandler) ListCategories(c *gin.Context) {
	categories, err := h.surveyService.ListCategories(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// UpdateSurvey updates title, description and category of a draft survey
// @Summary Update survey info
// @Tags surveys
// @Accept json
// @Produce json
// @Param id path string true "Survey ID"
// @Param survey body services.UpdateSurveyRequest true "Fields to update"
// @Success 200 {object} services.SurveyDetail
// @Failure 422 {object} ErrorResponse
// @Router /surveys/{id} [put]
func (h *SurveyHandler) UpdateSurvey(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.UpdateSurveyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	detail, err := h.surveyService.UpdateInfo(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// DeleteSurvey deletes a survey without responses
// @Router /surveys/{id} [delete]
func (h *SurveyHandler) DeleteSurvey(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Deleting survey", "survey_id", id)

	if err := h.surveyService.Delete(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Survey deleted successfully"})
}

// GetSurveyStats returns counts and the estimated completion time
// @Router /surveys/{id}/stats [get]
func (h *SurveyHandler) GetSurveyStats(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	stats, err := h.surveyService.Stats(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// PublishSurvey validates a draft and opens it for responses
// @Summary Publish survey
// @Tags surveys
// @Produce json
// @Param id path string true "Survey ID"
// @Success 200 {object} services.SurveyDetail
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /surveys/{id}/publish [post]
func (h *SurveyHandler) PublishSurvey(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Publishing survey", "survey_id", id)

	detail, err := h.surveyService.Publish(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// CloseSurvey stops accepting responses
// @Router /surveys/{id}/close [post]
func (h *SurveyHandler) CloseSurvey(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Closing survey", "survey_id", id)

	detail, err := h.surveyService.Close(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// PreviewNavigation evaluates one navigation step without a session
// @Summary Preview navigation
// @Tags surveys
// @Accept json
// @Produce json
// @Param id path string true "Survey ID"
// @Param request body services.PreviewRequest true "Question and answer"
// @Success 200 {object} navigation.NavigationDecision
// @Router /surveys/{id}/preview [post]
func (h *SurveyHandler) PreviewNavigation(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.PreviewRequest
	if !h.bindJSON(c, &req) {
		return
	}

	decision, err := h.surveyService.Preview(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}
