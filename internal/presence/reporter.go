package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reporter is told after every membership change. Notify must not block.
type Reporter interface {
	Notify()
}

type NopReporter struct{}

func (NopReporter) Notify() {}

// RedisReporter mirrors presence into a Redis hash and publishes each
// snapshot on a channel of the same name. Notifications are coalesced and the
// snapshot is taken when it is written, so Redis never ends on a stale count.
type RedisReporter struct {
	client  *redis.Client
	counter *Counter
	key     string
	ttl     time.Duration
	logger  *slog.Logger
	changed chan struct{}
}

func NewRedisReporter(client *redis.Client, counter *Counter, key string, ttl time.Duration, logger *slog.Logger) *RedisReporter {
	return &RedisReporter{
		client:  client,
		counter: counter,
		key:     key,
		ttl:     ttl,
		logger:  logger,
		changed: make(chan struct{}, 1),
	}
}

func (r *RedisReporter) Notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Run writes a fresh snapshot after each notification until ctx is done.
func (r *RedisReporter) Run(ctx context.Context) error {
	r.logger.Info("Redis presence reporter is running", "key", r.key)
	for {
		select {
		case <-r.changed:
			if err := r.Write(ctx, r.counter.Snapshot()); err != nil {
				r.logger.Warn("failed to report presence", "error", err)
			}
		case <-ctx.Done():
			r.logger.Info("shutting down Redis presence reporter")
			return nil
		}
	}
}

func (r *RedisReporter) Write(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	fields := make([]any, 0, 2*len(s.Rooms))
	for room, n := range s.Rooms {
		fields = append(fields, room, strconv.Itoa(n))
	}

	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, r.key, fields...)
		}
		pipe.Expire(ctx, r.key, r.ttl)
		pipe.Publish(ctx, r.key, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing presence: %w", err)
	}
	return nil
}
