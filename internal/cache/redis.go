package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parts-agent/internal/common/database"
	"parts-agent/internal/common/errors"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/models"
)

// RedisStore implements Store on Redis. History lives in a list per
// session; responses are plain keys with TTLs.
type RedisStore struct {
	db     *database.RedisClient
	client *redis.Client
	logger logger.Logger
}

// NewRedisStore wraps an established Redis connection.
func NewRedisStore(db *database.RedisClient, log logger.Logger) *RedisStore {
	return &RedisStore{
		db:     db,
		client: db.GetClient(),
		logger: log.WithFields(map[string]interface{}{"component": "cache"}),
	}
}

func (s *RedisStore) AppendTurns(ctx context.Context, sessionID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, data)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, historyKey(sessionID), values...)
	pipe.LTrim(ctx, historyKey(sessionID), -HistoryLimit, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]models.Turn, error) {
	raw, err := s.client.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, errors.NewCacheUnavailableError(err)
	}

	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			// A corrupt entry is dropped rather than failing the chat.
			s.logger.Warn("skipping unreadable history entry", map[string]interface{}{
				"session_id": sessionID,
			})
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisStore) GetResponse(ctx context.Context, message string) (*models.Answer, error) {
	raw, err := s.client.Get(ctx, responseKey(message)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewCacheUnavailableError(err)
	}

	var answer models.Answer
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return nil, nil
	}
	return &answer, nil
}

func (s *RedisStore) SetResponse(ctx context.Context, message string, answer *models.Answer, ttl time.Duration) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	if err := s.client.Set(ctx, responseKey(message), data, ttl).Err(); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.db.Get(ctx, key)
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.NewCacheUnavailableError(err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.db.Set(ctx, key, value, ttl); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.Del(ctx, keys...); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
