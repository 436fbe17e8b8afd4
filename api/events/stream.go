// Package events streams dispatcher notifications to websocket clients.
package events

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	coreevents "github.com/kilianp07/multisend/core/events"
	"github.com/kilianp07/multisend/infra/logger"
	"github.com/kilianp07/multisend/internal/eventbus"
)

const writeTimeout = 5 * time.Second

// Stream fans dispatcher events out to websocket clients as JSON envelopes.
// Slow clients miss events rather than blocking the dispatcher.
type Stream struct {
	hub      *eventbus.TypedBus[coreevents.Envelope]
	upgrader websocket.Upgrader
	token    string
	log      logger.Logger
}

// NewStream returns a stream. When token is non-empty clients must present
// it as a bearer token or a token query parameter.
func NewStream(token string) *Stream {
	return &Stream{
		hub:   eventbus.NewTyped[coreevents.Envelope](),
		token: token,
		log:   logger.New("events_stream"),
	}
}

// Run copies dispatcher events from bus to connected clients until ctx is
// done or bus is closed.
func (s *Stream) Run(ctx context.Context, bus eventbus.EventBus) {
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
			if ev, ok := v.(coreevents.Event); ok {
				s.hub.Publish(ev.Envelope())
			}
		}
	}
}

// Close disconnects every client.
func (s *Stream) Close() { s.hub.Close() }

func (s *Stream) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.token || r.URL.Query().Get("token") == s.token
}

// ServeHTTP upgrades the connection. The optional topic query parameter
// holds a comma separated list of event types to receive.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	topics := map[string]bool{}
	if t := r.URL.Query().Get("topic"); t != "" {
		for _, name := range strings.Split(t, ",") {
			topics[strings.TrimSpace(name)] = true
		}
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	// Reads only detect the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case env, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeTimeout))
				return
			}
			if len(topics) > 0 && !topics[env.Type] {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(env); err != nil {
				s.log.Debugf("websocket write: %v", err)
				return
			}
		}
	}
}
