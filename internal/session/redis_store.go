package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const sessionKeyPrefix = "clinic:session:"

// RedisStore keeps sessions as JSON values. Keys carry a TTL so sessions
// abandoned while the sweeper is down still disappear.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore builds a store; ttl <= 0 disables expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("clinic.internal.session"),
	}
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.user_id", userID))

	data, err := s.redis.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "session.put")
	defer span.End()
	if sess == nil || sess.UserID == "" {
		return fmt.Errorf("session: user id required")
	}
	span.SetAttributes(
		attribute.String("clinic.user_id", sess.UserID),
		attribute.String("clinic.step", sess.Step.String()),
	)

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.UserID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()
	if err := s.redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.list")
	defer span.End()

	var (
		out    []*Session
		cursor uint64
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("session: failed to scan sessions: %w", err)
		}
		if len(keys) > 0 {
			values, err := s.redis.MGet(ctx, keys...).Result()
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("session: failed to load sessions: %w", err)
			}
			for _, v := range values {
				raw, ok := v.(string)
				if !ok {
					continue // expired between SCAN and MGET
				}
				var sess Session
				if err := json.Unmarshal([]byte(raw), &sess); err != nil {
					span.RecordError(err)
					continue
				}
				out = append(out, &sess)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func sessionKey(userID string) string {
	return sessionKeyPrefix + userID
}
