package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/dynamo"
	"github.com/san-kum/fieldsim/internal/plant"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
func (t doneToken) Error() error { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeMQTT struct {
	mu           sync.Mutex
	connectErr   error
	published    [][]byte
	subscribed   string
	handler      mqtt.MessageHandler
	disconnected bool
}

func (c *fakeMQTT) Connect() mqtt.Token { return doneToken{c.connectErr} }

func (c *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, payload.([]byte))
	return doneToken{}
}

func (c *fakeMQTT) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed, c.handler = topic, cb
	return doneToken{}
}

func (c *fakeMQTT) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

type recordingWriter struct {
	mu     sync.Mutex
	writes map[string]any
}

func (w *recordingWriter) Write(id string, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id == "separator.pressure" {
		return dynamo.ErrReadOnly
	}
	if w.writes == nil {
		w.writes = map[string]any{}
	}
	w.writes[id] = v
	return nil
}

func testMQTTConfig() config.MQTTConfig {
	cfg := config.DefaultConfig().MQTT
	cfg.Broker = "tcp://localhost:1883"
	cfg.EveryCycles = 2
	return cfg
}

func TestMQTTBridgePublishesEveryNth(t *testing.T) {
	c := &fakeMQTT{}
	b := NewMQTTBridgeWithClient(c, testMQTTConfig(), &recordingWriter{}, nil)
	for i := 1; i <= 6; i++ {
		b.OnCycle(plant.Snapshot{Cycle: dynamo.Cycle{Index: i}})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	b.Close()

	if len(c.published) != 3 {
		t.Fatalf("published %d snapshots, want 3", len(c.published))
	}
	var s plant.Snapshot
	if err := json.Unmarshal(c.published[2], &s); err != nil {
		t.Fatal(err)
	}
	if s.Cycle.Index != 6 {
		t.Errorf("last published cycle %d, want 6", s.Cycle.Index)
	}
	if !c.disconnected {
		t.Error("client not disconnected")
	}
	if c.subscribed != "fieldsim/commands" {
		t.Errorf("subscribed to %q", c.subscribed)
	}
}

func TestMQTTBridgeCommands(t *testing.T) {
	c := &fakeMQTT{}
	w := &recordingWriter{}
	b := NewMQTTBridgeWithClient(c, testMQTTConfig(), w, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- b.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bridge never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	c.handler(nil, fakeMessage{topic: "fieldsim/commands", payload: []byte(`{"point":"valve.control_signal","value":40}`)})
	c.handler(nil, fakeMessage{topic: "fieldsim/commands", payload: []byte(`{"point":"separator.pressure","value":1}`)})
	c.handler(nil, fakeMessage{topic: "fieldsim/commands", payload: []byte(`not json`)})

	cancel()
	<-errc

	applied, rejected := b.Counts()
	if applied != 1 || rejected != 2 {
		t.Errorf("applied=%d rejected=%d, want 1 and 2", applied, rejected)
	}
	if v, ok := w.writes["valve.control_signal"].(json.Number); !ok || v.String() != "40" {
		t.Errorf("control_signal write = %#v", w.writes["valve.control_signal"])
	}
}

func TestMQTTBridgeConnectFailure(t *testing.T) {
	c := &fakeMQTT{connectErr: errors.New("refused")}
	b := NewMQTTBridgeWithClient(c, testMQTTConfig(), &recordingWriter{}, nil)
	if err := b.Run(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
}
