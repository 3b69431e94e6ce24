package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Quoridor/internal/core"
	"github.com/dkeye/Quoridor/internal/domain"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Redis struct {
	rdb *redis.Client
}

type RedisOptions struct {
	URL             string
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
}

// NewRedis connects and pings. Transient command failures are retried by
// the client with exponential backoff before an error reaches the caller.
func NewRedis(ctx context.Context, o RedisOptions) (*Redis, error) {
	if strings.TrimSpace(o.URL) == "" {
		return nil, errors.New("redis url required")
	}
	opts, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = o.MaxRetries
	if o.MinRetryBackoff > 0 {
		opts.MinRetryBackoff = o.MinRetryBackoff
	}
	if o.MaxRetryBackoff > 0 {
		opts.MaxRetryBackoff = o.MaxRetryBackoff
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("module", "store.redis").Str("addr", opts.Addr).Int("db", opts.DB).Msg("connected")
	return &Redis{rdb: rdb}, nil
}

func NewRedisClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Redis) Create(ctx context.Context, room *domain.Room, ttl time.Duration) (bool, error) {
	b, err := encodeRoom(room)
	if err != nil {
		return false, err
	}
	ok, err := s.rdb.SetNX(ctx, roomKey(room.RoomID), b, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("create room %s: %w", room.RoomID, err)
	}
	return ok, nil
}

func (s *Redis) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	b, err := s.rdb.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	return decodeRoom(id, b)
}

func (s *Redis) Refresh(ctx context.Context, room *domain.Room, ttl time.Duration) (bool, error) {
	b, err := encodeRoom(room)
	if err != nil {
		return false, err
	}
	ok, err := s.rdb.SetXX(ctx, roomKey(room.RoomID), b, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("refresh room %s: %w", room.RoomID, err)
	}
	return ok, nil
}

func (s *Redis) Exists(ctx context.Context, id domain.RoomID) (bool, error) {
	n, err := s.rdb.Exists(ctx, roomKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("exists room %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Redis) Delete(ctx context.Context, id domain.RoomID) error {
	if err := s.rdb.Del(ctx, roomKey(id)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

func (s *Redis) Append(ctx context.Context, id domain.RoomID, msg domain.ChatMessage, ttl time.Duration, max int) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode chat: %w", err)
	}
	key := chatKey(id)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, b)
		if max > 0 {
			p.LTrim(ctx, key, int64(-max), -1)
		}
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append chat %s: %w", id, err)
	}
	return nil
}

func (s *Redis) Recent(ctx context.Context, id domain.RoomID) ([]domain.ChatMessage, error) {
	raw, err := s.rdb.LRange(ctx, chatKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat %s: %w", id, err)
	}
	return decodeChat(raw), nil
}

func (s *Redis) DeleteChat(ctx context.Context, id domain.RoomID) error {
	if err := s.rdb.Del(ctx, chatKey(id)).Err(); err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	return nil
}

func (s *Redis) Name(ctx context.Context, sid domain.SessionID) (string, error) {
	b, err := s.rdb.Get(ctx, sessionKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get session %s: %w", sid, err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return "", fmt.Errorf("decode session %s: %w", sid, err)
	}
	return rec.Name, nil
}

func (s *Redis) SetName(ctx context.Context, sid domain.SessionID, name string, ttl time.Duration) error {
	b, err := json.Marshal(sessionRecord{Name: name})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sid), b, ttl).Err(); err != nil {
		return fmt.Errorf("set session %s: %w", sid, err)
	}
	return nil
}
