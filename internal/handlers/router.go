package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/services"
	"github.com/SAP-F-2025/survey-service/internal/utils"
	"github.com/SAP-F-2025/survey-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

type HandlerManager struct {
	surveyHandler       *SurveyHandler
	builderHandler      *BuilderHandler
	sessionHandler      *SessionHandler
	importExportHandler *ImportExportHandler
	health              map[string]HealthChecker
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	health map[string]HealthChecker,
) *HandlerManager {
	return &HandlerManager{
		surveyHandler:       NewSurveyHandler(serviceManager.Survey(), validator, logger),
		builderHandler:      NewBuilderHandler(serviceManager.Survey(), validator, logger),
		sessionHandler:      NewSessionHandler(serviceManager.Session(), validator, logger),
		importExportHandler: NewImportExportHandler(serviceManager.ImportExport(), validator, logger),
		health:              health,
	}
}

// SetupRoutes sets up all API routes. metrics is mounted on /metrics when
// not nil.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, metrics http.Handler) {
	router.GET("/health", hm.HealthCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Survey routes
		surveys := v1.Group("/surveys")
		{
			surveys.POST("", hm.surveyHandler.CreateSurvey)
			surveys.GET("", hm.surveyHandler.ListSurveys)
			surveys.GET("/categories", hm.surveyHandler.ListCategories)
			surveys.POST("/import", hm.importExportHandler.ImportDocument)
			surveys.GET("/:id", hm.surveyHandler.GetSurvey)
			surveys.PUT("/:id", hm.surveyHandler.UpdateSurvey)
			surveys.DELETE("/:id", hm.surveyHandler.DeleteSurvey)
			surveys.GET("/:id/stats", hm.surveyHandler.GetSurveyStats)
			surveys.POST("/:id/publish", hm.surveyHandler.PublishSurvey)
			surveys.POST("/:id/close", hm.surveyHandler.CloseSurvey)
			surveys.POST("/:id/preview", hm.surveyHandler.PreviewNavigation)

			// Builder operations on draft surveys
			surveys.POST("/:id/sections", hm.builderHandler.AddSection)
			surveys.PATCH("/:id/sections/:section_id", hm.builderHandler.UpdateSection)
			surveys.DELETE("/:id/sections/:section_id", hm.builderHandler.DeleteSection)
			surveys.POST("/:id/questions", hm.builderHandler.AddQuestion)
			surveys.PATCH("/:id/questions/:question_id", hm.builderHandler.UpdateQuestion)
			surveys.DELETE("/:id/questions/:question_id", hm.builderHandler.DeleteQuestion)
			surveys.POST("/:id/questions/:question_id/options", hm.builderHandler.AddOption)
			surveys.PUT("/:id/questions/:question_id/options/:index", hm.builderHandler.UpdateOption)
			surveys.DELETE("/:id/questions/:question_id/options/:index", hm.builderHandler.RemoveOption)
			surveys.POST("/:id/questions/:question_id/rules", hm.builderHandler.AddBranchingRule)
			surveys.PATCH("/:id/questions/:question_id/rules/:rule_id", hm.builderHandler.UpdateBranchingRule)
			surveys.DELETE("/:id/questions/:question_id/rules/:rule_id", hm.builderHandler.DeleteBranchingRule)
			surveys.POST("/:id/questions/:question_id/rules/:rule_id/question", hm.builderHandler.CreateBranchedQuestion)

			// Import/export
			surveys.POST("/:id/import/questions", hm.importExportHandler.ImportQuestions)
			surveys.GET("/:id/export", hm.importExportHandler.ExportDocument)

			// Responses
			surveys.POST("/:id/sessions", hm.sessionHandler.StartSession)
			surveys.GET("/:id/responses", hm.sessionHandler.ListResponses)
			surveys.GET("/:id/responses/export", hm.importExportHandler.ExportResponses)
		}

		// Respondent session routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:session_id", hm.sessionHandler.GetSession)
			sessions.PUT("/:session_id/answers", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:session_id/next", hm.sessionHandler.NextSection)
			sessions.POST("/:session_id/previous", hm.sessionHandler.PreviousSection)
			sessions.POST("/:session_id/submit", hm.sessionHandler.SubmitSession)
		}

		v1.GET("/responses/:response_id", hm.sessionHandler.GetResponse)
	}
}

// HealthCheck pings every registered dependency
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(hm.health))
	for name, check := range hm.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": "survey-service",
		"checks":  checks,
	})
}
