package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edms/internal/metrics"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrOutboxFull is returned when a bounded outbox cannot take more mail
var ErrOutboxFull = errors.New("mail outbox full")

// ErrOutboxClosed is returned by Enqueue after Close
var ErrOutboxClosed = errors.New("mail outbox closed")

// Outbox accepts emails for delivery. Delivery is best-effort: an accepted
// message may still fail, which is logged and counted.
type Outbox interface {
	Enqueue(ctx context.Context, msg Message) error
}

// deliver sends one message and records the outcome
func deliver(ctx context.Context, mailer Mailer, msg Message, m *metrics.Metrics, logger *slog.Logger) error {
	if err := mailer.Send(ctx, msg); err != nil {
		m.Emails.WithLabelValues("failed").Inc()
		logger.Warn("email delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
		return err
	}
	m.Emails.WithLabelValues("sent").Inc()
	logger.Debug("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// DirectOutbox sends synchronously on the caller's goroutine
type DirectOutbox struct {
	mailer  Mailer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewDirectOutbox(mailer Mailer, m *metrics.Metrics, logger *slog.Logger) *DirectOutbox {
	return &DirectOutbox{mailer: mailer, metrics: m, logger: logger}
}

func (o *DirectOutbox) Enqueue(ctx context.Context, msg Message) error {
	return deliver(ctx, o.mailer, msg, o.metrics, o.logger)
}

// ChannelOutbox queues mail in memory and delivers it from a single worker.
// Messages still queued at shutdown are delivered before Close returns.
type ChannelOutbox struct {
	mailer  Mailer
	queue   chan Message
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration

	// mu guards closed and the send on queue against Close
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewChannelOutbox creates an outbox holding up to size pending messages
// and starts its worker
func NewChannelOutbox(mailer Mailer, size int, m *metrics.Metrics, logger *slog.Logger) *ChannelOutbox {
	o := &ChannelOutbox{
		mailer:  mailer,
		queue:   make(chan Message, size),
		metrics: m,
		logger:  logger,
		timeout: 30 * time.Second,
	}
	o.wg.Add(1)
	go o.run()
	return o
}

// Enqueue never blocks; it drops the message when the queue is full or
// the outbox is closed
func (o *ChannelOutbox) Enqueue(_ context.Context, msg Message) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.metrics.Emails.WithLabelValues("dropped").Inc()
		return ErrOutboxClosed
	}
	select {
	case o.queue <- msg:
		return nil
	default:
		o.metrics.Emails.WithLabelValues("dropped").Inc()
		return ErrOutboxFull
	}
}

func (o *ChannelOutbox) run() {
	defer o.wg.Done()
	for msg := range o.queue {
		// Delivery outlives the request that queued the message
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		_ = deliver(ctx, o.mailer, msg, o.metrics, o.logger)
		cancel()
	}
}

// Close stops accepting mail and waits for the queue to drain
func (o *ChannelOutbox) Close() error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	o.wg.Wait()
	return nil
}

// RedisOutbox pushes jsoniter-encoded messages onto a redis list so any
// server instance can deliver them
type RedisOutbox struct {
	client  *redis.Client
	key     string
	mailer  Mailer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRedisOutbox creates an outbox on the list "queue:<name>"
func NewRedisOutbox(client *redis.Client, name string, mailer Mailer, m *metrics.Metrics, logger *slog.Logger) *RedisOutbox {
	return &RedisOutbox{
		client:  client,
		key:     "queue:" + name,
		mailer:  mailer,
		metrics: m,
		logger:  logger,
	}
}

func (o *RedisOutbox) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode email job: %w", err)
	}
	if err := o.client.LPush(ctx, o.key, payload).Err(); err != nil {
		return fmt.Errorf("push email job: %w", err)
	}
	return nil
}

// Run pops and delivers jobs until ctx is cancelled
func (o *RedisOutbox) Run(ctx context.Context) error {
	o.logger.Info("email worker started", "queue", o.key)
	for {
		result, err := o.client.BRPop(ctx, 5*time.Second, o.key).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			o.logger.Warn("pop email job failed", "queue", o.key, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		// result is [key, value]
		var msg Message
		if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
			o.metrics.Emails.WithLabelValues("dropped").Inc()
			o.logger.Error("discarding malformed email job", "queue", o.key, "error", err)
			continue
		}
		_ = deliver(ctx, o.mailer, msg, o.metrics, o.logger)
	}
}

// ConnectRedis parses a redis URL and checks the connection
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
