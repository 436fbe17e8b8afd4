package mqtt

// Publisher delivers notification payloads to a message broker.
type Publisher interface {
	// Publish sends payload to topic, retrying according to the
	// implementation's policy.
	Publish(topic string, payload []byte) error
}
