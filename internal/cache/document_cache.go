package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/models"
)

// DocumentCache caches decoded survey documents per version.
type DocumentCache interface {
	Get(ctx context.Context, surveyID string, version int) (*models.SurveyDocument, bool)
	Set(ctx context.Context, surveyID string, version int, doc *models.SurveyDocument) error
	Invalidate(ctx context.Context, surveyID string) error
}

type documentCache struct {
	cache CacheService
	ttl   time.Duration
}

func NewDocumentCache(cache CacheService, ttl time.Duration) DocumentCache {
	return &documentCache{cache: cache, ttl: ttl}
}

func documentKey(surveyID string, version int) string {
	return fmt.Sprintf("survey:doc:%s:v%d", surveyID, version)
}

func (d *documentCache) Get(ctx context.Context, surveyID string, version int) (*models.SurveyDocument, bool) {
	var doc models.SurveyDocument
	if err := d.cache.Get(ctx, documentKey(surveyID, version), &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

func (d *documentCache) Set(ctx context.Context, surveyID string, version int, doc *models.SurveyDocument) error {
	return d.cache.Set(ctx, documentKey(surveyID, version), doc, d.ttl)
}

// Invalidate drops every cached version of the survey.
func (d *documentCache) Invalidate(ctx context.Context, surveyID string) error {
	return d.cache.DeletePattern(ctx, fmt.Sprintf("survey:doc:%s:*", surveyID))
}
