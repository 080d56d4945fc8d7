package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/voltroute/planner/core/events"
	"github.com/voltroute/planner/core/navigation"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type streamMessage struct {
	Type string `json:"type"`
	// Session carries the full view on the initial snapshot message.
	Session *navigation.View `json:"session,omitempty"`
	From    string           `json:"from,omitempty"`
	To      string           `json:"to,omitempty"`
	Time    time.Time        `json:"time,omitempty"`
}

// handleStream pushes the session's state transitions over a websocket. The
// first message is a snapshot of the current state; the stream ends when the
// session reaches a terminal state or the client disconnects.
func (s *Server) handleStream(c *gin.Context) {
	if s.bus == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "streaming disabled"})
		return
	}
	id := c.Param("id")
	view, err := s.nav.Get(id)
	if err != nil {
		c.JSON(navErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	if err := writeStream(conn, streamMessage{Type: "snapshot", Session: &view}); err != nil {
		return
	}

	// Reader goroutine: its only job is to notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			tr, ok := ev.(events.SessionTransitioned)
			if !ok || tr.SessionID != id {
				continue
			}
			msg := streamMessage{Type: "transition", From: tr.From, To: tr.To, Time: tr.Time}
			if err := writeStream(conn, msg); err != nil {
				return
			}
			if tr.To == "arrived" || tr.To == "aborted" {
				return
			}
		}
	}
}

func writeStream(conn *websocket.Conn, msg streamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(msg)
}
