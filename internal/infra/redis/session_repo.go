package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps chat sessions as JSON blobs with a sliding TTL.
type SessionRepo struct {
	client RedisClient
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewSessionRepo(client RedisClient, ttl time.Duration, logger *zerolog.Logger) *SessionRepo {
	l := logger.With().Str("component", "redis_session").Logger()
	return &SessionRepo{client: client, ttl: ttl, log: &l}
}

func (s *SessionRepo) key(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}

func (s *SessionRepo) Get(ctx context.Context, userID int64) (*model.Session, error) {
	data, err := s.client.Get(ctx, s.key(userID))
	if errors.Is(err, Nil) {
		metrics.IncCacheRequest("session", "miss")
		return &model.Session{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", domain.ErrOperationFailed, err)
	}
	metrics.IncCacheRequest("session", "hit")

	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		// a corrupt blob is treated as an empty session
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("discarding unreadable session")
		return &model.Session{UserID: userID}, nil
	}
	sess.UserID = userID
	return &sess, nil
}

func (s *SessionRepo) Save(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(sess.UserID), data, s.ttl); err != nil {
		return fmt.Errorf("%w: save session: %v", domain.ErrOperationFailed, err)
	}
	return nil
}

func (s *SessionRepo) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID))
}
