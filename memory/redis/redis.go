// Package redis implements core.Memory on Redis, giving conversation state
// that survives the process and can be shared between instances. Messages
// live in a list per conversation; the Appended checkpoint is a companion
// key, so the store keeps the same append-only semantics as the in-memory
// implementation.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	backend "github.com/redis/go-redis/v9"

	"github.com/braidworks/braid/core"
)

// Options configure a Store.
type Options struct {
	// Addr is the Redis server address. Default "localhost:6379".
	Addr string

	// Password authenticates against the server. Empty means none.
	Password string

	// DB selects the logical Redis database.
	DB int

	// Prefix namespaces every key the store writes.
	// Default "braid:memory:".
	Prefix string

	// TTL expires a conversation's keys this long after the last write.
	// 0 keeps them forever.
	TTL time.Duration
}

// Store is a Redis-backed core.Memory bound to one conversation id. It is
// safe for concurrent use; the checkpoint is guarded locally so Appended
// reads and advances atomically with respect to this process.
type Store struct {
	client *backend.Client
	owned  bool
	id     string
	prefix string
	ttl    time.Duration

	mu sync.Mutex
}

// New creates a Store with its own client connection.
func New(conversationID string, optFns ...func(o *Options)) *Store {
	opts := Options{
		Addr:   "localhost:6379",
		Prefix: "braid:memory:",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client := backend.NewClient(&backend.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	s := newFromClient(client, conversationID, opts)
	s.owned = true
	return s
}

// NewFromClient creates a Store on an existing client, e.g. one shared with
// the rest of the application or a miniredis instance in tests. The caller
// keeps ownership of the client.
func NewFromClient(client *backend.Client, conversationID string, optFns ...func(o *Options)) *Store {
	opts := Options{Prefix: "braid:memory:"}

	for _, fn := range optFns {
		fn(&opts)
	}

	return newFromClient(client, conversationID, opts)
}

func newFromClient(client *backend.Client, conversationID string, opts Options) *Store {
	return &Store{
		client: client,
		id:     conversationID,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
	}
}

// WithAddr sets the Redis server address.
func WithAddr(addr string) func(o *Options) {
	return func(o *Options) { o.Addr = addr }
}

// WithPassword sets the server password.
func WithPassword(password string) func(o *Options) {
	return func(o *Options) { o.Password = password }
}

// WithDB selects the logical Redis database.
func WithDB(db int) func(o *Options) {
	return func(o *Options) { o.DB = db }
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) func(o *Options) {
	return func(o *Options) { o.Prefix = prefix }
}

// WithTTL sets the expiration applied after every write.
func WithTTL(ttl time.Duration) func(o *Options) {
	return func(o *Options) { o.TTL = ttl }
}

func (s *Store) messagesKey() string { return s.prefix + s.id + ":messages" }

func (s *Store) checkpointKey() string { return s.prefix + s.id + ":checkpoint" }

// Read implements core.Memory.
func (s *Store) Read(ctx context.Context) ([]core.Message, error) {
	raw, err := s.client.LRange(ctx, s.messagesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read messages: %w", err)
	}
	return decodeAll(raw)
}

// Store implements core.Memory.
func (s *Store) Store(ctx context.Context, msg core.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: encode message: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.messagesKey(), data)
	s.touch(ctx, pipe)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: store message: %w", err)
	}
	return nil
}

// Appended implements core.Memory. It returns the messages stored since the
// previous Appended call and advances the checkpoint past them.
func (s *Store) Appended(ctx context.Context) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, err := s.client.Get(ctx, s.checkpointKey()).Int64()
	if err != nil && err != backend.Nil {
		return nil, fmt.Errorf("redis: read checkpoint: %w", err)
	}

	raw, err := s.client.LRange(ctx, s.messagesKey(), cp, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read appended: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.checkpointKey(), cp+int64(len(raw)), 0)
	s.touch(ctx, pipe)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: advance checkpoint: %w", err)
	}

	return decodeAll(raw)
}

// Len reports the number of stored messages.
func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.messagesKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: count messages: %w", err)
	}
	return int(n), nil
}

// Clear removes the conversation's keys.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.messagesKey(), s.checkpointKey()).Err(); err != nil {
		return fmt.Errorf("redis: clear conversation: %w", err)
	}
	return nil
}

// Close releases the client connection when the store created it. A store
// built with NewFromClient leaves the shared client open.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// touch refreshes the TTL on both keys when expiration is configured.
func (s *Store) touch(ctx context.Context, pipe backend.Pipeliner) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, s.messagesKey(), s.ttl)
	pipe.Expire(ctx, s.checkpointKey(), s.ttl)
}

func decodeAll(raw []string) ([]core.Message, error) {
	out := make([]core.Message, 0, len(raw))
	for _, item := range raw {
		var msg core.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("redis: decode message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}
