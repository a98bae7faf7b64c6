package polling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// signalTTL bounds how long an abandoned session's logs survive in Redis.
const signalTTL = 24 * time.Hour

// RedisLog is a MessageLog backed by Redis lists, for deployments running
// more than one signaling instance.
type RedisLog struct {
	client *redis.Client
}

// NewRedisLog wraps an existing Redis client.
func NewRedisLog(client *redis.Client) *RedisLog {
	return &RedisLog{client: client}
}

func key(sessionID, msgType string) string {
	return fmt.Sprintf("signaling:%s:%s", sessionID, msgType)
}

func (r *RedisLog) Append(ctx context.Context, sessionID, msgType string, payload json.RawMessage) error {
	k := key(sessionID, msgType)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, k, string(payload))
	pipe.Expire(ctx, k, signalTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisLog) After(ctx context.Context, sessionID, msgType string, lastIndex int) ([]json.RawMessage, int, error) {
	if lastIndex < 0 {
		lastIndex = 0
	}

	values, err := r.client.LRange(ctx, key(sessionID, msgType), int64(lastIndex), -1).Result()
	if err != nil {
		return nil, lastIndex, err
	}

	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		out = append(out, json.RawMessage(v))
	}
	return out, lastIndex + len(out), nil
}

func (r *RedisLog) Clear(ctx context.Context, sessionID string) error {
	keys := []string{
		key(sessionID, TypeOffer),
		key(sessionID, TypeAnswer),
		key(sessionID, TypeCandidate),
	}
	deleted, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrSessionNotFound
	}
	return nil
}
