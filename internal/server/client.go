package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/pedrabranca/geoquest/pkg/protocol"
)

const (
	sendChSize     = 256
	maxMessageSize = 16 * 1024
)

// client owns one player's WebSocket. All writes go through a single
// write goroutine fed by sendCh.
type client struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once

	writeWait time.Duration
	pongWait  time.Duration

	logger *slog.Logger
}

func newClient(conn *ws.Conn, writeWait, pongWait time.Duration, logger *slog.Logger) *client {
	return &client{
		conn:      conn,
		sendCh:    make(chan []byte, sendChSize),
		done:      make(chan struct{}),
		writeWait: writeWait,
		pongWait:  pongWait,
		logger:    logger,
	}
}

// Send implements game.Notifier. Non-blocking; drops if the channel is full.
func (c *client) Send(msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		c.logger.Error("Failed to encode message", "type", msgType, "error", err)
		return
	}
	c.push(data)
}

func (c *client) ack(forType string) {
	data, _ := json.Marshal(protocol.AckMessage{Type: protocol.TypeAck, For: forType})
	c.push(data)
}

func (c *client) sendError(forType string, err error) {
	c.Send(protocol.TypeError, protocol.ErrorPayload{For: forType, Message: err.Error()})
}

func (c *client) push(data []byte) {
	select {
	case <-c.done:
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// writeLoop drains sendCh and pings the peer. It returns on write error or
// when the client is closed, sending a close frame in the latter case.
func (c *client) writeLoop() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			_ = c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.close()
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				c.logger.Debug("WebSocket ping failed", "error", err)
				c.close()
				return
			}
		}
	}
}

// readLoop hands every text message to handle until the connection fails.
func (c *client) readLoop(handle func([]byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				c.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
		if msgType != ws.TextMessage {
			c.logger.Debug("Ignoring non-text message", "type", msgType)
			continue
		}
		handle(data)
	}
}

// close stops the write loop. Safe to call more than once.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}
