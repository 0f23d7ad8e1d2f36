package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/plant"
)

const mqttTimeout = 5 * time.Second

// MQTTClient is the part of mqtt.Client the bridge uses.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTBridge publishes every Nth snapshot to the telemetry topic and applies
// commands from the command topic, like the Kafka pair but over one broker
// connection.
type MQTTBridge struct {
	c      MQTTClient
	cfg    config.MQTTConfig
	target PointWriter
	lg     *slog.Logger

	queue    chan []byte
	sent     atomic.Int64
	dropped  atomic.Int64
	applied  atomic.Int64
	rejected atomic.Int64

	once sync.Once
	done chan struct{}
}

func NewMQTTBridge(cfg config.MQTTConfig, target PointWriter, lg *slog.Logger) *MQTTBridge {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttTimeout)
	return NewMQTTBridgeWithClient(mqtt.NewClient(opts), cfg, target, lg)
}

func NewMQTTBridgeWithClient(c MQTTClient, cfg config.MQTTConfig, target PointWriter, lg *slog.Logger) *MQTTBridge {
	if cfg.EveryCycles < 1 {
		cfg.EveryCycles = 1
	}
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MQTTBridge{
		c:      c,
		cfg:    cfg,
		target: target,
		lg:     lg,
		queue:  make(chan []byte, publishBuffer),
		done:   make(chan struct{}),
	}
}

func wait(t mqtt.Token, what string) error {
	if !t.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("mqtt %s: timed out", what)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("mqtt %s: %w", what, err)
	}
	return nil
}

func (b *MQTTBridge) OnCycle(s plant.Snapshot) {
	if s.Cycle.Index%b.cfg.EveryCycles != 0 {
		return
	}
	body, err := json.Marshal(s)
	if err != nil {
		b.lg.Error("mqtt encode failed", "cycle", s.Cycle.Index, "error", err)
		return
	}
	select {
	case b.queue <- body:
	default:
		if b.dropped.Add(1)%100 == 1 {
			b.lg.Warn("mqtt buffer full, dropping", "cycle", s.Cycle.Index, "dropped", b.dropped.Load())
		}
	}
}

func (b *MQTTBridge) onCommand(_ mqtt.Client, msg mqtt.Message) {
	cmd, err := decodeCommand(msg.Payload())
	if err != nil {
		b.rejected.Add(1)
		b.lg.Error("bad command json", "topic", msg.Topic(), "error", err)
		return
	}
	if err := b.target.Write(cmd.Point, cmd.Value); err != nil {
		b.rejected.Add(1)
		b.lg.Warn("command rejected", "point", cmd.Point, "value", cmd.Value, "error", err)
		return
	}
	b.applied.Add(1)
	b.lg.Info("command applied", "point", cmd.Point, "value", cmd.Value)
}

// Run connects, subscribes to the command topic and publishes queued
// snapshots until ctx is done.
func (b *MQTTBridge) Run(ctx context.Context) error {
	defer close(b.done)
	if err := wait(b.c.Connect(), "connect"); err != nil {
		return err
	}
	b.lg.Info("mqtt connected", "broker", b.cfg.Broker, "client_id", b.cfg.ClientID)

	if b.cfg.CommandTopic != "" {
		if err := wait(b.c.Subscribe(b.cfg.CommandTopic, b.cfg.QoS, b.onCommand), "subscribe"); err != nil {
			b.c.Disconnect(250)
			return err
		}
		b.lg.Info("mqtt subscribed", "topic", b.cfg.CommandTopic)
	}

	for {
		select {
		case body := <-b.queue:
			b.publish(body)
		case <-ctx.Done():
			for {
				select {
				case body := <-b.queue:
					b.publish(body)
				default:
					b.c.Disconnect(250)
					b.lg.Info("mqtt disconnected", "sent", b.Sent(), "dropped", b.Dropped())
					return ctx.Err()
				}
			}
		}
	}
}

func (b *MQTTBridge) publish(body []byte) {
	if err := wait(b.c.Publish(b.cfg.TelemetryTopic, b.cfg.QoS, false, body), "publish"); err != nil {
		b.lg.Warn("mqtt publish failed", "error", err)
		return
	}
	b.sent.Add(1)
}

func (b *MQTTBridge) Sent() int64    { return b.sent.Load() }
func (b *MQTTBridge) Dropped() int64 { return b.dropped.Load() }

func (b *MQTTBridge) Counts() (applied, rejected int64) {
	return b.applied.Load(), b.rejected.Load()
}

// Close waits for Run to return.
func (b *MQTTBridge) Close() error {
	b.once.Do(func() { <-b.done })
	return nil
}
