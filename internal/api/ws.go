package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// clientMessage is the only shape clients may send. Anything else is
// silently ignored.
type clientMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

// websocket upgrades the connection and bridges the hub to the client:
// subscribe/unsubscribe messages adjust the client's job-id subscriptions,
// and matching job events are pushed as they are published. Disconnect drops
// the subscriber from every job it was attached to.
func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	hub := s.manager.Hub()
	sub := hub.NewSubscriber()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}
			var msg clientMessage
			if jsonErr := json.Unmarshal(payload, &msg); jsonErr != nil || msg.JobID == "" {
				continue
			}
			switch msg.Type {
			case "subscribe":
				hub.Subscribe(msg.JobID, sub)
			case "unsubscribe":
				hub.Unsubscribe(msg.JobID, sub)
			}
		}
	}()

	defer func() {
		hub.Drop(sub)
		_ = conn.Close()
	}()

	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if writeErr := conn.WriteJSON(evt); writeErr != nil {
				return
			}
		case <-done:
			return
		}
	}
}
