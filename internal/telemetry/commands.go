package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/san-kum/fieldsim/internal/config"
)

// Command is a point write received over Kafka.
type Command struct {
	Point string `json:"point"`
	Value any    `json:"value"`
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PointWriter accepts point writes; *plant.Plant satisfies it.
type PointWriter interface {
	Write(id string, v any) error
}

// CommandConsumer applies commands from the command topic to the plant.
// Malformed or rejected commands are logged and committed so they are not
// redelivered.
type CommandConsumer struct {
	r      MessageReader
	target PointWriter
	lg     *slog.Logger

	applied  int
	rejected int
}

func NewCommandConsumer(cfg config.KafkaConfig, target PointWriter, lg *slog.Logger) *CommandConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.CommandTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1e6,
		MaxWait:  200 * time.Millisecond,
	})
	if lg != nil {
		lg.Info("kafka command reader created", "brokers", cfg.Brokers, "topic", cfg.CommandTopic, "group", cfg.GroupID)
	}
	return NewCommandConsumerWithReader(r, target, lg)
}

func NewCommandConsumerWithReader(r MessageReader, target PointWriter, lg *slog.Logger) *CommandConsumer {
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CommandConsumer{r: r, target: target, lg: lg}
}

// DecodeCommand parses a command record. Numbers stay json.Number so the
// point table can coerce them without losing precision.
func DecodeCommand(msg kafka.Message) (Command, error) {
	return decodeCommand(msg.Value)
}

func decodeCommand(body []byte) (Command, error) {
	var cmd Command
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&cmd); err != nil {
		return cmd, err
	}
	if cmd.Point == "" {
		return cmd, errors.New("command without point")
	}
	return cmd, nil
}

func EncodeCommand(cmd Command) (kafka.Message, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(cmd.Point), Value: body}, nil
}

// Run consumes until ctx is done or the reader fails.
func (c *CommandConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch command: %w", err)
		}
		c.apply(msg)
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			c.lg.Warn("commit warning", "offset", msg.Offset, "error", err)
		}
	}
}

func (c *CommandConsumer) apply(msg kafka.Message) {
	cmd, err := DecodeCommand(msg)
	if err != nil {
		c.rejected++
		c.lg.Error("bad command json", "offset", msg.Offset, "error", err)
		return
	}
	if err := c.target.Write(cmd.Point, cmd.Value); err != nil {
		c.rejected++
		c.lg.Warn("command rejected", "point", cmd.Point, "value", cmd.Value, "error", err)
		return
	}
	c.applied++
	c.lg.Info("command applied", "point", cmd.Point, "value", cmd.Value)
}

// Counts reports applied and rejected commands. Only valid after Run
// returns.
func (c *CommandConsumer) Counts() (applied, rejected int) {
	return c.applied, c.rejected
}

func (c *CommandConsumer) Close() error {
	return c.r.Close()
}
