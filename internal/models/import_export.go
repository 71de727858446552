package models

import "time"

type ImportStatus string

const (
	ImportCompleted        ImportStatus = "completed"
	ImportValidationFailed ImportStatus = "validation_failed"
)

type ImportValidationError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
	Value   string `json:"value"`
	Code    string `json:"code"`
}

type ImportSummary struct {
	TotalRows        int                     `json:"total_rows"`
	ProcessedRows    int                     `json:"processed_rows"`
	SuccessCount     int                     `json:"success_count"`
	ErrorCount       int                     `json:"error_count"`
	CreatedQuestions []string                `json:"created_questions"`
	CreatedSections  []string                `json:"created_sections"`
	Errors           []ImportValidationError `json:"errors"`
	Status           ImportStatus            `json:"status"`
	ProcessingTime   time.Duration           `json:"processing_time"`
}

type ExportFormat string

const (
	ExportXLSX ExportFormat = "xlsx"
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
)
