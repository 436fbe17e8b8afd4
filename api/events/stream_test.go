package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreevents "github.com/kilianp07/multisend/core/events"
	"github.com/kilianp07/multisend/internal/eventbus"
)

func start(t *testing.T, token string) (*Stream, *eventbus.Bus, string) {
	t.Helper()
	s := NewStream(token)
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx, bus)
	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		cancel()
		s.Close()
		srv.Close()
		bus.Close()
	})
	return s, bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// readOne keeps publishing evs until the client has subscribed and
// received something, since subscription happens after the handshake.
func readOne(t *testing.T, conn *websocket.Conn, bus *eventbus.Bus, evs ...coreevents.Event) coreevents.Envelope {
	t.Helper()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				for _, ev := range evs {
					bus.Publish(ev)
				}
			}
		}
	}()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env coreevents.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestStreamDeliversEnvelopes(t *testing.T) {
	_, bus, url := start(t, "")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	env := readOne(t, conn, bus, coreevents.TransferMultiSent{BatchID: "b1", Successes: 3, Time: time.Now()})
	assert.Equal(t, coreevents.TopicTransferMultiSent, env.Type)
	assert.Equal(t, "b1", env.BatchID)
	assert.Equal(t, 3, env.Successes)
}

func TestStreamTopicFilter(t *testing.T) {
	_, bus, url := start(t, "")
	conn, _, err := websocket.DefaultDialer.Dial(url+"?topic=config_changed", nil)
	require.NoError(t, err)
	defer conn.Close()

	env := readOne(t, conn, bus,
		coreevents.TransferMultiSent{BatchID: "skip"},
		coreevents.ConfigChanged{Operation: "pause"},
	)
	assert.Equal(t, coreevents.TopicConfigChanged, env.Type)
	assert.Equal(t, "pause", env.Operation)
}

func TestStreamAuth(t *testing.T) {
	_, bus, url := start(t, "tok")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer tok"}})
	require.NoError(t, err)
	defer conn.Close()
	env := readOne(t, conn, bus, coreevents.ConfigChanged{Operation: "unpause"})
	assert.Equal(t, "unpause", env.Operation)

	conn2, _, err := websocket.DefaultDialer.Dial(url+"?token=tok", nil)
	require.NoError(t, err)
	conn2.Close()
}

func TestStreamCloseDisconnectsClients(t *testing.T) {
	s, bus, url := start(t, "")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	readOne(t, conn, bus, coreevents.ConfigChanged{Operation: "pause"})

	s.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
			return
		}
	}
}
