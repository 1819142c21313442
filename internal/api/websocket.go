package api

import (
	"net/http"

	"strategy-lab/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamTopics are forwarded to websocket clients.
var streamTopics = []events.Event{
	events.EventLiveSignal,
	events.EventTraderLog,
	events.EventOrderFilled,
	events.EventOrderRejected,
	events.EventOptimizationDone,
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.SubscribeMany(100, streamTopics...)
	defer unsub()

	// Reader goroutine notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				s.Logger.Debug("ws write failed", zap.Error(err))
				return
			}
		}
	}
}
