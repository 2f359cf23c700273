package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 4096
	wsSendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEnvelope is every server to client message.
type wsEnvelope struct {
	Type     string `json:"type"`
	Data     any    `json:"data,omitempty"`
	Ping     int64  `json:"ping,omitempty"`
	ServerTs int64  `json:"server_ts,omitempty"`
}

type wsRequest struct {
	Type string `json:"type"`
	Ping int64  `json:"ping"`
}

// wsClient is one websocket peer. Only writePump writes to conn.
type wsClient struct {
	conn   *websocket.Conn
	send   chan wsEnvelope
	server *Server
}

// handleWS streams price snapshots over a websocket and answers "ping" and "state" requests.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Prices == nil {
		http.Error(w, "price stream not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan wsEnvelope, wsSendBuffer), server: s}
	prices := s.deps.Prices.Subscribe()
	defer s.deps.Prices.Unsubscribe(prices)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(ctx, prices)
	}()

	s.logger.Debug("ws client connected", zap.String("remote", r.RemoteAddr))
	c.readPump()
	cancel()
	<-done
	s.logger.Debug("ws client disconnected", zap.String("remote", r.RemoteAddr))
}

func (c *wsClient) writePump(ctx context.Context, prices <-chan domain.PriceSnapshot) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if err := c.write(wsEnvelope{Type: "prices", Data: c.server.deps.Oracle.Prices()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case snapshot, open := <-prices:
			if !open {
				return
			}
			if err := c.write(wsEnvelope{Type: "prices", Data: snapshot}); err != nil {
				return
			}
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump returns when the peer goes away or the connection is closed by writePump.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.server.logger.Debug("ws read", zap.Error(err))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.enqueue(wsEnvelope{Type: "error", Data: "invalid json"})
			continue
		}

		switch req.Type {
		case "ping":
			c.enqueue(wsEnvelope{Type: "pong", Ping: req.Ping, ServerTs: time.Now().UnixMilli()})
		case "state":
			c.enqueue(wsEnvelope{Type: "state", Data: c.server.state()})
		default:
			c.enqueue(wsEnvelope{Type: "error", Data: fmt.Sprintf("unknown request type %q", req.Type)})
		}
	}
}

func (c *wsClient) enqueue(msg wsEnvelope) {
	select {
	case c.send <- msg:
	default:
		c.server.logger.Debug("ws reply dropped", zap.String("type", msg.Type))
	}
}

func (c *wsClient) write(msg wsEnvelope) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(msg)
}
