package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "canopy:"
	defaultMaxLen = 1000
)

// TrailStore implements ports.TrailSink using Redis.
//
// Each root's trail is a capped list at <prefix>trail:<rootID>. Every append is
// also published on <prefix>events so external debuggers can follow along.
type TrailStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	maxLen int64
}

type Option func(*TrailStore)

// WithTTL sets the expiration for trails, refreshed on every append.
func WithTTL(ttl time.Duration) Option {
	return func(s *TrailStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *TrailStore) {
		s.prefix = prefix
	}
}

// WithMaxLen caps the number of entries kept per root.
func WithMaxLen(n int) Option {
	return func(s *TrailStore) {
		if n > 0 {
			s.maxLen = int64(n)
		}
	}
}

// New creates a new Redis trail store with options.
func New(address, password string, db int, opts ...Option) *TrailStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis trail store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *TrailStore {
	store := &TrailStore{
		client: client,
		prefix: defaultPrefix,
		ttl:    0, // No expiration by default
		maxLen: defaultMaxLen,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *TrailStore) key(rootID string) string {
	return s.prefix + "trail:" + rootID
}

func (s *TrailStore) indexKey() string {
	return s.prefix + "roots"
}

// Channel returns the pub/sub channel appends are published on.
func (s *TrailStore) Channel() string {
	return s.prefix + "events"
}

// Message is what Append publishes on Channel.
type Message struct {
	RootID string          `json:"root"`
	Event  json.RawMessage `json:"event"`
}

// Append pushes payload onto the root's list, trims it to the cap and
// publishes it.
func (s *TrailStore) Append(ctx context.Context, rootID string, payload []byte) error {
	msg, err := json.Marshal(Message{RootID: rootID, Event: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal trail message: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(rootID), payload)
	pipe.LTrim(ctx, s.key(rootID), -s.maxLen, -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(rootID), s.ttl)
	}

	// Score = expiry of the trail, so Roots can prune lazily.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: rootID})
	pipe.Publish(ctx, s.Channel(), msg)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis trail: %w", err)
	}
	return nil
}

// Recent returns up to n of the latest entries, oldest first.
func (s *TrailStore) Recent(ctx context.Context, rootID string, n int) ([][]byte, error) {
	start := int64(0)
	if n > 0 {
		start = -int64(n)
	}
	vals, err := s.client.LRange(ctx, s.key(rootID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read redis trail: %w", err)
	}

	entries := make([][]byte, len(vals))
	for i, v := range vals {
		entries[i] = []byte(v)
	}
	return entries, nil
}

// Delete removes a root's trail.
func (s *TrailStore) Delete(ctx context.Context, rootID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(rootID))
	pipe.ZRem(ctx, s.indexKey(), rootID)

	_, err := pipe.Exec(ctx)
	return err
}

// Roots lists roots with a live trail, pruning expired ones from the index.
func (s *TrailStore) Roots(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired trails: %w", err)
	}

	roots, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list trails: %w", err)
	}
	return roots, nil
}

// Subscribe follows appends from every process sharing the prefix. The
// channel is closed when ctx is done.
func (s *TrailStore) Subscribe(ctx context.Context) (<-chan Message, error) {
	sub := s.client.Subscribe(ctx, s.Channel())
	// Wait for the subscription to be confirmed before returning.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.Channel(), err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the redis client.
func (s *TrailStore) Close() error {
	return s.client.Close()
}
