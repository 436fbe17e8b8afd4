package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kilianp07/multisend/core/events"
	coremqtt "github.com/kilianp07/multisend/core/mqtt"
	"github.com/kilianp07/multisend/infra/logger"
	"github.com/kilianp07/multisend/internal/eventbus"
)

// Forwarder republishes dispatcher notifications from the event bus to
// <prefix>/<topic> as JSON envelopes.
type Forwarder struct {
	pub    coremqtt.Publisher
	prefix string
	log    logger.Logger
}

// NewForwarder returns a forwarder publishing under prefix.
func NewForwarder(pub coremqtt.Publisher, prefix string) *Forwarder {
	return &Forwarder{pub: pub, prefix: strings.TrimSuffix(prefix, "/"), log: logger.New("mqtt_forwarder")}
}

// Topic returns the broker topic an event is published to.
func (f *Forwarder) Topic(ev events.Event) string {
	return f.prefix + "/" + ev.Topic()
}

// Forward publishes a single event.
func (f *Forwarder) Forward(ev events.Event) error {
	payload, err := json.Marshal(ev.Envelope())
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Topic(), err)
	}
	return f.pub.Publish(f.Topic(ev), payload)
}

// Run subscribes to bus and forwards events until ctx is done or the bus
// is closed. Values that are not dispatcher events are ignored.
func (f *Forwarder) Run(ctx context.Context, bus eventbus.EventBus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub:
			if !ok {
				return
			}
			ev, ok := v.(events.Event)
			if !ok {
				continue
			}
			if err := f.Forward(ev); err != nil {
				f.log.Errorf("forward %s: %v", ev.Topic(), err)
			}
		}
	}
}

// MockPublisher records published messages. It is used in tests and when
// MQTT is disabled but a publisher is still required.
type MockPublisher struct {
	Messages []Message
	FailAll  bool
	mu       sync.Mutex
}

// Message is a payload recorded by MockPublisher.
type Message struct {
	Topic   string
	Payload []byte
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

// Publish records the message or fails if configured to.
func (m *MockPublisher) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return fmt.Errorf("publish failed")
	}
	m.Messages = append(m.Messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

// Published returns a copy of the recorded messages.
func (m *MockPublisher) Published() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Messages...)
}
