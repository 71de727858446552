package cache

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/survey"
)

const sessionKeyPrefix = "survey:session:"

// ErrSessionExpired is returned when no snapshot is stored for a session id.
var ErrSessionExpired = errors.New("session not found or expired")

// SessionStore keeps respondent session snapshots between requests.
type SessionStore interface {
	Save(ctx context.Context, snapshot survey.SessionSnapshot) error
	Load(ctx context.Context, sessionID string) (*survey.SessionSnapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

type sessionStore struct {
	cache CacheService
	ttl   time.Duration
}

// NewSessionStore stores snapshots with a sliding ttl; every Save extends it.
func NewSessionStore(cache CacheService, ttl time.Duration) SessionStore {
	return &sessionStore{cache: cache, ttl: ttl}
}

func (s *sessionStore) Save(ctx context.Context, snapshot survey.SessionSnapshot) error {
	return s.cache.Set(ctx, sessionKeyPrefix+snapshot.ID, snapshot, s.ttl)
}

func (s *sessionStore) Load(ctx context.Context, sessionID string) (*survey.SessionSnapshot, error) {
	var snapshot survey.SessionSnapshot
	if err := s.cache.Get(ctx, sessionKeyPrefix+sessionID, &snapshot); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	return &snapshot, nil
}

func (s *sessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+sessionID)
}
