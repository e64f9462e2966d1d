package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedPingInterval = 30 * time.Second
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is public read-only data; cross-origin dashboards may
	// subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type feedInitMessage struct {
	Type      string `json:"type"`
	Listeners int    `json:"listeners"`
}

// HandleFeed upgrades the connection to a WebSocket and streams newly
// published versions until the client disconnects. Events missed while the
// client's buffer is full are dropped, not replayed.
func (s *Server) HandleFeed(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Feed unavailable", "The live feed is not enabled")
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error.
		s.logger.Debugf("feed upgrade failed: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Debugf("closing feed connection: %v", err)
		}
	}()

	id, events := s.hub.Register()
	defer s.hub.Unregister(id)

	init := feedInitMessage{Type: "init", Listeners: s.hub.Size()}
	if err := s.writeFeedMessage(conn, init); err != nil {
		return
	}

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice disconnects and answer control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeFeedMessage(conn, event); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(feedWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeFeedMessage(conn *websocket.Conn, v interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
