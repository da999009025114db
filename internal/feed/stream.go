package feed

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// wsReadLimit bounds a single stream message.
	wsReadLimit = 64 << 10
	// wsPongWait is how long a connection may stay silent before the
	// read deadline drops it.
	wsPongWait = 60 * time.Second
	// wsPingInterval must be shorter than wsPongWait.
	wsPingInterval = 30 * time.Second
	// wsWriteWait is the per-write deadline for acks and pings.
	wsWriteWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Detectors are machine clients; there is no browser origin to check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades to WebSocket and ingests one candidate per text
// message, answering each with an ack frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Printf("ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("ws read: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		ack := s.ingest(r.Context(), msg)
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(ack); err != nil {
			s.logger.Printf("ws write: %v", err)
			return
		}
	}
}

// ingest decodes and submits one stream message.
func (s *Server) ingest(ctx context.Context, msg []byte) streamAck {
	p, err := decodeCandidate(msg)
	if err != nil {
		return ackRejected(err.Error())
	}

	c := p.toDomain(s.clock)
	if err := s.engine.Submit(ctx, c); err != nil {
		_, reason := submitStatus(err)
		return streamAck{Status: "rejected", Address: c.Address, Reason: reason}
	}
	return streamAck{Status: "accepted", Address: c.Address}
}

// pingLoop keeps the connection alive. WriteControl is safe to call
// concurrently with the ack writer.
func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
