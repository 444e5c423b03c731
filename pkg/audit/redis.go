package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/nvconf/pkg/util"
)

// DefaultRedisKey is the list events are pushed to.
const DefaultRedisKey = "nvconf:audit"

// RedisConfig configures a RedisLogger.
type RedisConfig struct {
	// Addr is "host:port" or a redis:// URL.
	Addr   string
	Key    string
	MaxLen int64 // list is trimmed to this many events; 0 keeps all
}

// RedisLogger keeps audit events in a Redis list, newest at the head, so
// several switches' sessions can be collected centrally.
type RedisLogger struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedisLogger connects to Redis and verifies the connection.
func NewRedisLogger(cfg RedisConfig) (*RedisLogger, error) {
	opts := &redis.Options{Addr: cfg.Addr}
	if strings.Contains(cfg.Addr, "://") {
		parsed, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("parsing redis address: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to audit redis %s: %w", opts.Addr, err)
	}

	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisLogger{client: client, key: key, maxLen: cfg.MaxLen}, nil
}

// Log pushes the event and trims the list.
func (l *RedisLogger) Log(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}

	ctx := context.Background()
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, l.key, data)
		if l.maxLen > 0 {
			pipe.LTrim(ctx, l.key, 0, l.maxLen-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// Query scans the whole list; the result is oldest first like FileLogger.
func (l *RedisLogger) Query(filter Filter) ([]*Event, error) {
	raw, err := l.client.LRange(context.Background(), l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading audit events: %w", err)
	}

	events := make([]*Event, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(raw[i]), &event); err != nil {
			util.Warnf("audit: skipping malformed redis entry %d: %v", i, err)
			continue
		}
		if event.Matches(filter) {
			events = append(events, &event)
		}
	}
	return tail(events, filter.Limit), nil
}

// Close closes the Redis client.
func (l *RedisLogger) Close() error {
	return l.client.Close()
}
