package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/services"
	"github.com/SAP-F-2025/survey-service/internal/utils"
	"github.com/SAP-F-2025/survey-service/internal/validator"
	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20

var contentTypes = map[models.ExportFormat]string{
	models.ExportJSON: "application/json",
	models.ExportYAML: "application/yaml",
	models.ExportCSV:  "text/csv",
	models.ExportXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type ImportExportHandler struct {
	BaseHandler
	importExportService services.ImportExportService
}

func NewImportExportHandler(
	importExportService services.ImportExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *ImportExportHandler {
	return &ImportExportHandler{
		BaseHandler:         NewBaseHandler(logger, validator),
		importExportService: importExportService,
	}
}

// ImportQuestions adds the questions of an uploaded CSV or XLSX file to a
// draft survey
// @Summary Import questions
// @Tags import-export
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Survey ID"
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} models.ImportSummary
// @Router /surveys/{id}/import/questions [post]
func (h *ImportExportHandler) ImportQuestions(c *gin.Context) {
	surveyID := ParseStringIDParam(c, "id")
	if surveyID == "" {
		return
	}

	header, ok := h.uploadedFile(c)
	if !ok {
		return
	}
	file, err := header.Open()
	if err != nil {
		h.handleServiceError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing questions", "survey_id", surveyID, "filename", header.Filename)

	summary, err := h.importExportService.ImportQuestionsFromFile(c.Request.Context(), surveyID, file, header.Filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if summary.Status == models.ImportValidationFailed {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, summary)
}

// ImportDocument creates a draft survey from an uploaded JSON or YAML
// document
// @Router /surveys/import [post]
func (h *ImportExportHandler) ImportDocument(c *gin.Context) {
	header, ok := h.uploadedFile(c)
	if !ok {
		return
	}
	file, err := header.Open()
	if err != nil {
		h.handleServiceError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing survey document", "filename", header.Filename)

	detail, err := h.importExportService.ImportDocument(c.Request.Context(), file, header.Filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, detail)
}

// ExportDocument downloads the survey document
// @Param format query string false "json or yaml" default(json)
// @Router /surveys/{id}/export [get]
func (h *ImportExportHandler) ExportDocument(c *gin.Context) {
	surveyID := ParseStringIDParam(c, "id")
	if surveyID == "" {
		return
	}
	format := models.ExportFormat(c.DefaultQuery("format", string(models.ExportJSON)))

	data, err := h.importExportService.ExportDocument(c.Request.Context(), surveyID, format)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.attachment(c, fmt.Sprintf("survey-%s.%s", surveyID, format), format, data)
}

// ExportResponses downloads the collected responses
// @Param format query string false "csv or xlsx" default(xlsx)
// @Router /surveys/{id}/responses/export [get]
func (h *ImportExportHandler) ExportResponses(c *gin.Context) {
	surveyID := ParseStringIDParam(c, "id")
	if surveyID == "" {
		return
	}
	format := models.ExportFormat(c.DefaultQuery("format", string(models.ExportXLSX)))

	h.LogRequest(c, "Exporting responses", "survey_id", surveyID, "format", format)

	data, err := h.importExportService.ExportResponses(c.Request.Context(), surveyID, format)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.attachment(c, fmt.Sprintf("responses-%s.%s", surveyID, format), format, data)
}

func (h *ImportExportHandler) uploadedFile(c *gin.Context) (*multipart.FileHeader, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "File upload required",
			Details: err.Error(),
		})
		return nil, false
	}
	return header, true
}

func (h *ImportExportHandler) attachment(c *gin.Context, filename string, format models.ExportFormat, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentTypes[format], data)
}
