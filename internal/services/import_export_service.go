package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"github.com/SAP-F-2025/survey-service/internal/survey"
	"github.com/SAP-F-2025/survey-service/internal/validator"
	"github.com/xuri/excelize/v2"
)

const (
	optionSeparator = "|"
	exportPageSize  = 100
	timestampLayout = "2006-01-02 15:04:05"
)

// ImportExportService handles file import/export of questions, documents and
// collected responses
type ImportExportService interface {
	// Question import into a draft survey
	ImportQuestionsFromFile(ctx context.Context, surveyID string, reader io.Reader, filename string) (*models.ImportSummary, error)
	ImportQuestionsFromCSV(ctx context.Context, surveyID string, reader io.Reader) (*models.ImportSummary, error)
	ImportQuestionsFromExcel(ctx context.Context, surveyID string, reader io.Reader) (*models.ImportSummary, error)

	// Whole documents
	ImportDocument(ctx context.Context, reader io.Reader, filename string) (*SurveyDetail, error)
	ExportDocument(ctx context.Context, surveyID string, format models.ExportFormat) ([]byte, error)

	// Responses
	ExportResponses(ctx context.Context, surveyID string, format models.ExportFormat) ([]byte, error)
}

type importExportService struct {
	surveys   SurveyService
	repo      repositories.Repository
	validator *validator.Validator
	logger    *ServiceLogger
}

func NewImportExportService(surveys SurveyService, deps Dependencies) ImportExportService {
	deps = deps.withDefaults()
	return &importExportService{
		surveys:   surveys,
		repo:      deps.Repo,
		validator: deps.Validator,
		logger:    NewServiceLogger(deps.Logger, LogConfig{Service: "survey-service", Component: "import_export"}),
	}
}

// ===== IMPORT OPERATIONS =====

// importedQuestion is one parsed spreadsheet row.
type importedQuestion struct {
	row         int
	section     string
	qType       models.QuestionType
	prompt      string
	description *string
	required    bool
	options     []string
}

func (s *importExportService) ImportQuestionsFromFile(ctx context.Context, surveyID string, reader io.Reader, filename string) (*models.ImportSummary, error) {
	s.logger.Slog().InfoContext(ctx, "Starting file import", "filename", filename, "survey_id", surveyID)

	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".csv":
		return s.ImportQuestionsFromCSV(ctx, surveyID, reader)
	case ".xlsx":
		return s.ImportQuestionsFromExcel(ctx, surveyID, reader)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func (s *importExportService) ImportQuestionsFromCSV(ctx context.Context, surveyID string, reader io.Reader) (*models.ImportSummary, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV: %v", ErrBadRequest, err)
	}

	return s.importRows(ctx, surveyID, records)
}

func (s *importExportService) ImportQuestionsFromExcel(ctx context.Context, surveyID string, reader io.Reader) (*models.ImportSummary, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", ErrBadRequest, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}

	return s.importRows(ctx, surveyID, rows)
}

func (s *importExportService) importRows(ctx context.Context, surveyID string, rows [][]string) (*models.ImportSummary, error) {
	start := time.Now()

	if len(rows) < 2 {
		return nil, NewValidationError("file", "file must have a header row and at least one data row", len(rows))
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, col := range []string{"type", "prompt"} {
		if _, exists := headerMap[col]; !exists {
			return nil, NewValidationError("headers", fmt.Sprintf("missing required column: %s", col), col)
		}
	}

	summary := &models.ImportSummary{
		TotalRows:        len(rows) - 1,
		CreatedQuestions: []string{},
		CreatedSections:  []string{},
		Errors:           []models.ImportValidationError{},
	}

	var parsed []importedQuestion
	for i, row := range rows[1:] {
		summary.ProcessedRows++
		q, rowErrors := s.parseRow(row, headerMap, i+2)
		if len(rowErrors) > 0 {
			summary.Errors = append(summary.Errors, rowErrors...)
			summary.ErrorCount++
			continue
		}
		parsed = append(parsed, q)
	}

	if len(parsed) == 0 {
		summary.Status = models.ImportValidationFailed
		summary.ProcessingTime = time.Since(start)
		return summary, nil
	}

	_, err := s.surveys.Edit(ctx, surveyID, 0, func(b *survey.Builder) error {
		sections := make(map[string]string)
		for _, q := range parsed {
			sectionID := s.resolveSection(b, q.section, sections, summary)
			created, err := b.AddQuestion(sectionID, q.qType)
			if err != nil {
				return err
			}

			update := survey.QuestionUpdate{
				Prompt:      &q.prompt,
				Description: q.description,
				Required:    &q.required,
			}
			if len(q.options) > 0 {
				update.Options = q.options
			}
			if _, err := b.UpdateQuestion(created.ID, update); err != nil {
				return fmt.Errorf("row %d: %w", q.row, err)
			}
			summary.CreatedQuestions = append(summary.CreatedQuestions, created.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary.SuccessCount = len(summary.CreatedQuestions)
	summary.Status = models.ImportCompleted
	summary.ProcessingTime = time.Since(start)

	s.logger.Slog().InfoContext(ctx, "Question import completed",
		"survey_id", surveyID,
		"total_rows", summary.TotalRows,
		"success_count", summary.SuccessCount,
		"error_count", summary.ErrorCount)

	return summary, nil
}

func (s *importExportService) parseRow(row []string, headerMap map[string]int, rowNum int) (importedQuestion, []models.ImportValidationError) {
	cell := func(col string) string {
		if idx, ok := headerMap[col]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}
	var errs []models.ImportValidationError
	fail := func(col, message, value, code string) {
		errs = append(errs, models.ImportValidationError{Row: rowNum, Column: col, Message: message, Value: value, Code: code})
	}

	q := importedQuestion{
		row:     rowNum,
		section: cell("section"),
		prompt:  cell("prompt"),
	}

	rawType := cell("type")
	qType, ok := models.ParseQuestionType(rawType)
	if !ok {
		fail("type", "unknown question type", rawType, "invalid_type")
	}
	q.qType = qType

	if q.prompt == "" {
		fail("prompt", "prompt is required", "", "required")
	}

	if description := cell("description"); description != "" {
		q.description = &description
	}

	if raw := cell("required"); raw != "" {
		required, err := parseBool(raw)
		if err != nil {
			fail("required", "must be true/false or yes/no", raw, "invalid_bool")
		}
		q.required = required
	}

	if raw := cell("options"); raw != "" {
		for _, option := range strings.Split(raw, optionSeparator) {
			q.options = append(q.options, strings.TrimSpace(option))
		}
	}
	if ok && (len(q.options) > 0 || !qType.HasOptions()) {
		if err := s.validator.Question().ValidateOptions(qType, q.options); err != nil {
			fail("options", err.Error(), cell("options"), "invalid_options")
		}
	}

	return q, errs
}

// resolveSection maps a section title from the file to a section id,
// creating the section when no section has that title. An empty title means
// the default section.
func (s *importExportService) resolveSection(b *survey.Builder, title string, known map[string]string, summary *models.ImportSummary) string {
	doc := b.Document()
	if title == "" {
		return doc.DefaultSectionID
	}

	key := strings.ToLower(title)
	if id, ok := known[key]; ok {
		return id
	}
	for _, section := range doc.Sections {
		if strings.EqualFold(section.Title, title) {
			known[key] = section.ID
			return section.ID
		}
	}

	section := b.AddSection()
	// the section was just added, so the update cannot fail
	_, _ = b.UpdateSection(section.ID, survey.SectionUpdate{Title: &title})
	known[key] = section.ID
	summary.CreatedSections = append(summary.CreatedSections, section.ID)
	return section.ID
}

func (s *importExportService) ImportDocument(ctx context.Context, reader io.Reader, filename string) (*SurveyDetail, error) {
	format, err := models.FormatFromPath(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return s.surveys.ImportDocument(ctx, data, format)
}

// ===== EXPORT OPERATIONS =====

func (s *importExportService) ExportDocument(ctx context.Context, surveyID string, format models.ExportFormat) ([]byte, error) {
	switch format {
	case models.ExportJSON:
		return s.surveys.ExportDocument(ctx, surveyID, models.FormatJSON)
	case models.ExportYAML:
		return s.surveys.ExportDocument(ctx, surveyID, models.FormatYAML)
	default:
		return nil, fmt.Errorf("%w: documents export as json or yaml, got %s", ErrUnsupportedFormat, format)
	}
}

func (s *importExportService) ExportResponses(ctx context.Context, surveyID string, format models.ExportFormat) ([]byte, error) {
	if format != models.ExportCSV && format != models.ExportXLSX {
		return nil, fmt.Errorf("%w: responses export as csv or xlsx, got %s", ErrUnsupportedFormat, format)
	}

	_, doc, err := s.surveys.LoadDocument(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	responses, err := s.allResponses(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	headers, rows, err := responseTable(doc, responses)
	if err != nil {
		return nil, err
	}

	if format == models.ExportXLSX {
		return writeExcel("Responses", headers, rows)
	}
	return writeCSV(headers, rows)
}

func (s *importExportService) allResponses(ctx context.Context, surveyID string) ([]*models.SurveyResponse, error) {
	var all []*models.SurveyResponse
	for offset := 0; ; offset += exportPageSize {
		page, total, err := s.repo.Response().ListBySurvey(ctx, surveyID, repositories.ResponseFilters{
			Limit:  exportPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list responses: %w", err)
		}
		all = append(all, page...)
		if len(page) == 0 || int64(len(all)) >= total {
			return all, nil
		}
	}
}

// responseTable lays responses out one per row with a column per question in
// traversal order.
func responseTable(doc *models.SurveyDocument, responses []*models.SurveyResponse) ([]string, [][]string, error) {
	var questions []models.Question
	for _, section := range doc.OrderedSections() {
		questions = append(questions, doc.SectionQuestions(section.ID)...)
	}

	headers := []string{"Response ID", "Session ID", "Completed At"}
	for _, q := range questions {
		headers = append(headers, q.Prompt)
	}

	rows := make([][]string, 0, len(responses))
	for _, row := range responses {
		finished, err := row.Finished()
		if err != nil {
			return nil, nil, err
		}
		record := []string{finished.ID, finished.SessionID, finished.CompletedAt.Format(timestampLayout)}
		for _, q := range questions {
			record = append(record, finished.Answers[q.ID].String())
		}
		rows = append(rows, record)
	}
	return headers, rows, nil
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return buf.Bytes(), nil
}

func writeExcel(sheetName string, headers []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	write := func(rowNum int, values []string) error {
		for col, value := range values {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(1, headers); err != nil {
		return nil, fmt.Errorf("failed to write Excel header: %w", err)
	}
	for i, row := range rows {
		if err := write(i+2, row); err != nil {
			return nil, fmt.Errorf("failed to write Excel row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	default:
		return strconv.ParseBool(raw)
	}
}
