package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/engine"
)

// Session binds a random identifier, carried in a cookie, to a user.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrNoSession is returned for unknown or expired session identifiers.
var ErrNoSession = domain.Errorf(domain.ErrUnauthorized, config.TKeyErrUnauthenticated)

// SessionStore persists sessions for their lifetime.
type SessionStore interface {
	Create(ctx context.Context, userID int64) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.Mutex
	clock    engine.Clock
	ttl      time.Duration
	sessions map[string]Session
}

// NewMemorySessionStore returns an empty store issuing sessions valid for ttl.
func NewMemorySessionStore(clock engine.Clock, ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		clock:    clock,
		ttl:      ttl,
		sessions: make(map[string]Session),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, userID int64) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNoSession
	}
	if !s.clock.Now().Before(sess.ExpiresAt) {
		delete(s.sessions, id)
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// NewRedisClient connects to the Redis server at url and checks it answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%s: parse redis URL: %w", config.ErrRedisConnect, err)
	}

	opts.PoolSize = config.RedisPoolSize
	opts.MinIdleConns = config.RedisMinIdleConns
	opts.DialTimeout = config.RedisDialTimeout
	opts.ReadTimeout = config.RedisReadTimeout
	opts.WriteTimeout = config.RedisWriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrRedisConnect, err)
	}
	return client, nil
}

// RedisSessionStore shares sessions between server instances. Keys expire
// with the session.
type RedisSessionStore struct {
	client *redis.Client
	clock  engine.Clock
	ttl    time.Duration
}

// NewRedisSessionStore stores sessions in client under config.SessionKeyPrefix.
func NewRedisSessionStore(client *redis.Client, clock engine.Clock, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, clock: clock, ttl: ttl}
}

func sessionKey(id string) string {
	return config.SessionKeyPrefix + id
}

func (s *RedisSessionStore) Create(ctx context.Context, userID int64) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", config.ErrSessionStore, err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), payload, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("%s: %w", config.ErrSessionStore, err)
	}
	return sess, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, ErrNoSession
	}
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", config.ErrSessionStore, err)
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return Session{}, fmt.Errorf("%s: %w", config.ErrSessionStore, err)
	}
	if !s.clock.Now().Before(sess.ExpiresAt) {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w", config.ErrSessionStore, err)
	}
	return nil
}
