package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/plant"
)

// MessageKey keys every telemetry record so one plant stays on one
// partition.
const MessageKey = "fieldsim"

const publishBuffer = 64

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a plant observer that sends every Nth snapshot to Kafka.
// OnCycle never blocks the cycle: when the buffer is full the snapshot is
// dropped and counted.
type Publisher struct {
	w     MessageWriter
	every int
	lg    *slog.Logger

	queue   chan kafka.Message
	dropped atomic.Int64
	sent    atomic.Int64

	once sync.Once
	done chan struct{}
}

func NewPublisher(cfg config.KafkaConfig, lg *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TelemetryTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	if lg != nil {
		lg.Info("kafka telemetry writer created", "brokers", cfg.Brokers, "topic", cfg.TelemetryTopic, "every", cfg.EveryCycles)
	}
	return NewPublisherWithWriter(w, cfg.EveryCycles, lg)
}

func NewPublisherWithWriter(w MessageWriter, every int, lg *slog.Logger) *Publisher {
	if every < 1 {
		every = 1
	}
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{
		w:     w,
		every: every,
		lg:    lg,
		queue: make(chan kafka.Message, publishBuffer),
		done:  make(chan struct{}),
	}
}

// Encode builds the Kafka record for one snapshot.
func Encode(s plant.Snapshot) (kafka.Message, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(MessageKey),
		Value: body,
		Headers: []kafka.Header{
			{Key: "cycle", Value: []byte(strconv.Itoa(s.Cycle.Index))},
			{Key: "epochMs", Value: []byte(strconv.FormatInt(time.Now().UnixMilli(), 10))},
		},
	}, nil
}

// Decode parses a telemetry record.
func Decode(msg kafka.Message) (plant.Snapshot, error) {
	var s plant.Snapshot
	err := json.Unmarshal(msg.Value, &s)
	return s, err
}

func (p *Publisher) OnCycle(s plant.Snapshot) {
	if s.Cycle.Index%p.every != 0 {
		return
	}
	msg, err := Encode(s)
	if err != nil {
		p.lg.Error("telemetry encode failed", "cycle", s.Cycle.Index, "error", err)
		return
	}
	select {
	case p.queue <- msg:
	default:
		if p.dropped.Add(1)%100 == 1 {
			p.lg.Warn("telemetry buffer full, dropping", "cycle", s.Cycle.Index, "dropped", p.dropped.Load())
		}
	}
}

// Run drains the buffer into the writer until ctx is done, then flushes
// what is left with a short deadline.
func (p *Publisher) Run(ctx context.Context) error {
	defer close(p.done)
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, msg)
		case <-ctx.Done():
			flush, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			for {
				select {
				case msg := <-p.queue:
					p.write(flush, msg)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

func (p *Publisher) write(ctx context.Context, msg kafka.Message) {
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.lg.Warn("telemetry write failed", "error", err)
		return
	}
	p.sent.Add(1)
}

func (p *Publisher) Sent() int64    { return p.sent.Load() }
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Close waits for Run to return and closes the writer.
func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		<-p.done
		err = p.w.Close()
		p.lg.Info("telemetry writer closed", "sent", p.Sent(), "dropped", p.Dropped())
	})
	return err
}
