package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coletivobank/coletivo/pkg/eventbus"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RedisEventBus publishes events to one Redis stream per event type and
// consumes them through a consumer group. Messages whose handler fails are
// copied to a dead-letter stream.
type RedisEventBus struct {
	client        *redis.Client
	prefix        string
	typeFactories map[string]func() eventbus.Event
	logger        *slog.Logger
	block         time.Duration
	consumer      string
	claimIdle     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a RedisEventBus.
type Option func(*RedisEventBus)

// WithConsumer sets the consumer name used in every group. Entries left
// pending under that name by a previous run are picked up again on start.
// An empty name keeps the default, the hostname.
func WithConsumer(name string) Option {
	return func(b *RedisEventBus) {
		if name != "" {
			b.consumer = name
		}
	}
}

// WithClaimIdle sets how long an entry may sit unacknowledged with any
// consumer before this one claims it. Zero or less keeps the default.
func WithClaimIdle(d time.Duration) Option {
	return func(b *RedisEventBus) {
		if d > 0 {
			b.claimIdle = d
		}
	}
}

// NewWithRedis creates a Redis-backed event bus on an existing client.
func NewWithRedis(
	client *redis.Client,
	prefix string,
	types map[string]func() eventbus.Event,
	logger *slog.Logger,
	opts ...Option,
) (*RedisEventBus, error) {
	if client == nil {
		return nil, errors.New("redis event bus: client is required")
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisEventBus{
		client:        client,
		prefix:        prefix,
		typeFactories: types,
		logger:        logger.With("component", "redis-event-bus"),
		block:         5 * time.Second,
		consumer:      defaultConsumer(),
		claimIdle:     time.Minute,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func defaultConsumer() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "consumer-" + uuid.NewString()
}

// Emit publishes an event to its type's stream.
func (b *RedisEventBus) Emit(ctx context.Context, event eventbus.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis event bus: marshal failed: %w", err)
	}
	env, err := json.Marshal(envelope{Type: event.Type(), Payload: data})
	if err != nil {
		return fmt.Errorf("redis event bus: envelope marshal failed: %w", err)
	}
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamNameFor(b.prefix, event.Type()),
		Values: map[string]any{"event": string(env)},
	}).Err(); err != nil {
		b.logger.Error("failed to emit event", "error", err, "type", event.Type())
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}
	b.logger.Debug("event emitted", "type", event.Type())
	return nil
}

// Register starts a consumer for eventType that calls handler for each message.
func (b *RedisEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	stream := streamNameFor(b.prefix, eventType)
	group := groupNameFor(b.prefix, eventType)
	consumer := b.consumer
	if err := b.client.XGroupCreateMkStream(b.ctx, stream, group, "0").Err(); err != nil &&
		!isBusyGroup(err) {
		b.logger.Error("failed to create consumer group", "error", err, "stream", stream)
	}
	b.logger.Info("registering handler", "event_type", eventType, "consumer", consumer)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		var lastClaim time.Time
		for b.ctx.Err() == nil {
			if time.Since(lastClaim) >= b.claimIdle {
				b.reclaim(eventType, stream, group, consumer, handler)
				lastClaim = time.Now()
			}
			res, err := b.client.XReadGroup(b.ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{stream, ">"},
				Count:    10,
				Block:    b.block,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || b.ctx.Err() != nil {
					continue
				}
				b.logger.Error("error reading from stream", "error", err, "stream", stream)
				time.Sleep(time.Second)
				continue
			}
			for _, s := range res {
				for _, msg := range s.Messages {
					b.handleAndAck(eventType, stream, group, handler, msg)
				}
			}
		}
	}()
}

// reclaim takes over entries that were delivered to some consumer of the
// group but not acknowledged within claimIdle, e.g. because that process
// died mid-handler, and handles them here.
func (b *RedisEventBus) reclaim(eventType, stream, group, consumer string, handler eventbus.HandlerFunc) {
	start := "0-0"
	for b.ctx.Err() == nil {
		msgs, next, err := b.client.XAutoClaim(b.ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    group,
			Consumer: consumer,
			MinIdle:  b.claimIdle,
			Start:    start,
			Count:    100,
		}).Result()
		if err != nil {
			if b.ctx.Err() == nil {
				b.logger.Error("failed to claim pending messages", "error", err, "stream", stream)
			}
			return
		}
		if len(msgs) > 0 {
			b.logger.Warn("claimed pending messages", "stream", stream, "count", len(msgs))
		}
		for _, msg := range msgs {
			b.handleAndAck(eventType, stream, group, handler, msg)
		}
		if next == "0-0" || next == "" {
			return
		}
		start = next
	}
}

func (b *RedisEventBus) handleAndAck(eventType, stream, group string, handler eventbus.HandlerFunc, msg redis.XMessage) {
	b.handle(eventType, handler, msg)
	if err := b.client.XAck(b.ctx, stream, group, msg.ID).Err(); err != nil {
		b.logger.Error("failed to acknowledge message", "error", err, "msg_id", msg.ID)
	}
}

func (b *RedisEventBus) handle(eventType string, handler eventbus.HandlerFunc, msg redis.XMessage) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		b.pushToDLQ(eventType, msg.Values)
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.logger.Error("failed to unmarshal envelope", "error", err)
		b.pushToDLQ(eventType, msg.Values)
		return
	}
	constructor, ok := b.typeFactories[env.Type]
	if !ok {
		b.logger.Error("unknown event type", "event_type", env.Type)
		b.pushToDLQ(eventType, msg.Values)
		return
	}
	evt := constructor()
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		b.logger.Error("failed to unmarshal payload", "error", err, "event_type", env.Type)
		b.pushToDLQ(eventType, msg.Values)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic recovered", "panic", r, "event_type", env.Type)
			b.pushToDLQ(eventType, msg.Values)
		}
	}()
	if err := handler(b.ctx, evt); err != nil {
		b.logger.Error("handler error", "error", err, "event_type", env.Type)
		b.pushToDLQ(eventType, msg.Values)
	}
}

func (b *RedisEventBus) pushToDLQ(eventType string, values map[string]any) {
	dlq := dlqStreamName(b.prefix, eventType)
	if err := b.client.XAdd(b.ctx, &redis.XAddArgs{Stream: dlq, Values: values}).Err(); err != nil {
		b.logger.Error("failed to push to DLQ", "error", err, "stream", dlq)
		return
	}
	b.logger.Warn("event pushed to DLQ", "stream", dlq)
}

// Close stops all consumers and waits for them to return.
func (b *RedisEventBus) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
