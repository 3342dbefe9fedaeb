// Package outbox exports recorded session events to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/liftlog/internal/domain"
)

// Source is the outbox held in the durable document. *core.Engine
// satisfies it.
type Source interface {
	DueOutbox(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDelivered(ctx context.Context, ids []string) (int, error)
	MarkFailed(ctx context.Context, ids []string, reason string, maxAttempts int, backoff func(attempt int) time.Duration) (int, int, error)
	OutboxStats(ctx context.Context) (int, int, error)
}

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// SchemaRegistrar resolves schema ids for the wire framing.
type SchemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Settings tune the polling loop.
type Settings struct {
	Topic        string
	PollInterval time.Duration
	BatchSize    int
	Retry        RetryPolicy
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher polls the outbox and publishes due events to Kafka, framed with
// Schema Registry metadata when a registry is configured.
type Dispatcher struct {
	source           Source
	producer         messageWriter
	registry         SchemaRegistrar
	settings         Settings
	logger           *zap.Logger
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher. registry may be nil, in which case
// messages carry schema id 0.
func NewDispatcher(source Source, producer messageWriter, registry SchemaRegistrar, settings Settings, opts ...Option) *Dispatcher {
	if settings.PollInterval <= 0 {
		settings.PollInterval = 5 * time.Second
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = 50
	}
	if settings.Retry.MaxRetries <= 0 || settings.Retry.BaseDelay <= 0 {
		settings.Retry = NewRetryPolicy(settings.Retry.MaxRetries, settings.Retry.BaseDelay)
	}
	d := &Dispatcher{
		source:           source,
		producer:         producer,
		registry:         registry,
		settings:         settings,
		logger:           zap.NewNop(),
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.settings.PollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("outbox dispatcher error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// RunOnce delivers a single batch. It is used by tests and the CLI.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	return d.processBatch(ctx)
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()
	defer d.refreshGauges(ctx)

	due, err := d.source.DueOutbox(ctx, d.settings.BatchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	defer batchDuration.Observe(time.Since(start).Seconds())

	records, ids, rejected := d.encode(ctx, due)
	for reason, rejectedIDs := range rejected {
		if err := d.fail(ctx, rejectedIDs, reason); err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return nil
	}

	if err := d.producer.WriteMessages(ctx, d.settings.Topic, records...); err != nil {
		d.logger.Warn("outbox delivery failure", zap.Int("events", len(ids)), zap.Error(err))
		return d.fail(ctx, ids, err.Error())
	}

	n, err := d.source.MarkDelivered(ctx, ids)
	if err != nil {
		return err
	}
	deliveredCounter.Add(float64(n))
	d.logger.Debug("outbox batch delivered", zap.Int("events", n), zap.String("topic", d.settings.Topic))
	return nil
}

// encode frames due events as Kafka messages. Events that cannot be framed
// are returned grouped by failure reason.
func (d *Dispatcher) encode(ctx context.Context, due []domain.OutboxEvent) ([]kafka.Message, []string, map[string][]string) {
	records := make([]kafka.Message, 0, len(due))
	ids := make([]string, 0, len(due))
	rejected := make(map[string][]string)

	for _, event := range due {
		schemaID, err := d.schemaID(ctx, event.EventType)
		if err != nil {
			rejected[err.Error()] = append(rejected[err.Error()], event.ID)
			continue
		}
		records = append(records, kafka.Message{
			Key:   []byte(event.AggregateID),
			Value: encodeWireFormat(schemaID, event.Payload),
			Time:  event.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(event.ID)},
				{Key: "event_type", Value: []byte(event.EventType)},
			},
		})
		ids = append(ids, event.ID)
	}
	return records, ids, rejected
}

func (d *Dispatcher) schemaID(ctx context.Context, eventType string) (int, error) {
	meta, ok := schemaCatalog[eventType]
	if !ok {
		return 0, fmt.Errorf("no schema metadata for event_type=%s", eventType)
	}
	if d.registry == nil {
		return 0, nil
	}

	subject := fmt.Sprintf("%s-%s", d.settings.Topic, eventType)
	cacheKey := fmt.Sprintf("%s::%s", subject, meta.Schema)
	if cached, found := d.schemaIDCache.Load(cacheKey); found {
		return cached.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, subject, meta.Schema)
	if err != nil {
		return 0, fmt.Errorf("schema registry: %w", err)
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

func (d *Dispatcher) fail(ctx context.Context, ids []string, reason string) error {
	rescheduled, quarantined, err := d.source.MarkFailed(ctx, ids, reason, d.settings.Retry.MaxRetries, d.settings.Retry.Backoff)
	if err != nil {
		return err
	}
	failedCounter.WithLabelValues("rescheduled").Add(float64(rescheduled))
	failedCounter.WithLabelValues("quarantined").Add(float64(quarantined))
	if quarantined > 0 {
		d.logger.Warn("outbox events quarantined", zap.Int("events", quarantined), zap.String("reason", reason))
	}
	return nil
}

func (d *Dispatcher) refreshGauges(ctx context.Context) {
	pending, quarantined, err := d.source.OutboxStats(ctx)
	if err != nil {
		return
	}
	pendingGauge.Set(float64(pending))
	quarantinedGauge.Set(float64(quarantined))
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
