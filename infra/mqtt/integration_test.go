//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/multisend/core/events"
)

// TestForwarderWithMosquitto publishes through a real broker and reads the
// envelope back with a plain subscriber.
func TestForwarderWithMosquitto(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("sub"))
	if tok := sub.Connect(); tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
		t.Fatalf("subscriber connect: %v", tok.Error())
	}
	defer sub.Disconnect(250)
	got := make(chan []byte, 1)
	if tok := sub.Subscribe("it/transfer_multi_sent", 1, func(_ paho.Client, m paho.Message) {
		got <- m.Payload()
	}); tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	var cli *PahoClient
	for i := 0; i < 5; i++ {
		cli, err = NewPahoClient(Config{Broker: broker, ClientID: "pub", TopicPrefix: "it", QoS: 1})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("publisher connect: %v", err)
	}
	defer cli.Disconnect()

	f := NewForwarder(cli, "it")
	if err := f.Forward(events.TransferMultiSent{BatchID: "b1", Successes: 2, Time: time.Now()}); err != nil {
		t.Fatalf("forward: %v", err)
	}

	select {
	case payload := <-got:
		var env events.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.BatchID != "b1" || env.Successes != 2 {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}
