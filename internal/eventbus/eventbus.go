// Package eventbus fans dispatcher notifications out to in-process
// consumers such as the MQTT forwarder and the websocket stream.
package eventbus

// Event is any value published on a Bus.
type Event interface{}

// EventBus is the publishing side seen by the dispatcher and the
// subscribing side seen by consumers.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus carries untyped events.
type Bus = TypedBus[Event]

// DefaultBuffer is the per-subscriber queue length. A batch publishes one
// notification per failed recipient, so it is sized well above a typical
// batch.
const DefaultBuffer = 256

type Option func(*options)

type options struct{ buffer int }

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

func New(opts ...Option) *Bus { return NewTyped[Event](opts...) }
