package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pharmadb/deepresearch/core"
)

const redisKeyPrefix = "session:"

// RedisOptions configures the Redis backed session store.
type RedisOptions struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password is the optional AUTH password.
	Password string

	// DB selects the Redis logical database.
	DB int

	// TTL is the expiry applied on every session write. Zero means no expiry.
	TTL time.Duration

	// PoolSize caps the connection pool. Zero uses the client default.
	PoolSize int

	// MinIdleConns keeps warm connections in the pool.
	MinIdleConns int
}

// RedisStore persists sessions as JSON documents in Redis, allowing multiple
// service replicas to share conversational state. Writes are read-modify-write
// on the whole session document; concurrent writers to the same session may
// interleave, which is acceptable for the single-request-per-session access
// pattern this service uses.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, optFns ...func(o *RedisOptions)) (*RedisStore, error) {
	opts := RedisOptions{
		Addr: "localhost:6379",
		TTL:  24 * time.Hour,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

// NewRedisStoreFromClient wraps an existing client, mainly for tests.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping reports whether the Redis connection is currently usable. Health
// checks call this so the cache state reflects the live connection, not the
// state at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Create stores a fresh session under the given id, overwriting any existing one.
func (s *RedisStore) Create(sessionID string) (*core.Session, error) {
	sess := core.NewSession(sessionID)
	if err := s.save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads the session, creating an empty one if the key does not exist.
func (s *RedisStore) Get(sessionID string) (*core.Session, error) {
	data, err := s.client.Get(context.Background(), redisKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return s.Create(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %q: %w", sessionID, err)
	}

	var sess core.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", sessionID, err)
	}

	return &sess, nil
}

// AppendEvent loads the session, appends the event and writes it back.
func (s *RedisStore) AppendEvent(sessionID string, ev core.Event) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.AddEvent(ev)
	return s.save(sess)
}

// ApplyDelta merges state keys into the stored session.
func (s *RedisStore) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.ApplyStateDelta(delta)
	return s.save(sess)
}

func (s *RedisStore) save(sess *core.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", sess.ID, err)
	}

	if err := s.client.Set(context.Background(), redisKeyPrefix+sess.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %q: %w", sess.ID, err)
	}

	return nil
}
