package practice

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20
	sendBuffer     = 256
)

// wsClient is one websocket connection. All writes go through send and the
// writePump goroutine.
type wsClient struct {
	lessonID string
	conn     *websocket.Conn
	send     chan []byte
	log      *zap.Logger

	mu     sync.Mutex
	closed bool
}

// clientMessage is the union of every JSON frame a browser sends.
type clientMessage struct {
	Type string `json:"type"`

	// segments session
	ID    string  `json:"id,omitempty"`
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
	Label string  `json:"label,omitempty"`

	// practice session
	Action      string  `json:"action,omitempty"`
	Time        float64 `json:"time,omitempty"`
	SegmentID   string  `json:"segmentId,omitempty"`
	CurrentTime float64 `json:"currentTime,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Playing     bool    `json:"playing,omitempty"`
	Rate        float64 `json:"rate,omitempty"`
	Granted     bool    `json:"granted,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	MimeType    string  `json:"mimeType,omitempty"`
	SampleRate  int     `json:"sampleRate,omitempty"`
	Channels    int     `json:"channels,omitempty"`
}

func newWSClient(conn *websocket.Conn, lessonID string, log *zap.Logger) *wsClient {
	return &wsClient{
		lessonID: lessonID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		log:      log,
	}
}

func (c *wsClient) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error("marshal ws message", zap.Error(err))
		return
	}
	c.enqueue(b)
}

// enqueue queues b for writing. A client that cannot keep up is
// disconnected.
func (c *wsClient) enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		c.log.Warn("ws send buffer full, dropping client")
		c.closed = true
		close(c.send)
		return false
	}
}

// shutdown stops writePump, which closes the connection.
func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames until the connection fails. JSON text frames go to
// onText, binary frames to onBinary.
func (c *wsClient) readPump(onText func(clientMessage), onBinary func([]byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) || websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("ws read ended", zap.Error(err))
			}
			return
		}
		// any frame proves the peer is alive
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch kind {
		case websocket.BinaryMessage:
			if onBinary != nil {
				onBinary(data)
			}
		case websocket.TextMessage:
			var m clientMessage
			if err := json.Unmarshal(data, &m); err != nil || m.Type == "" {
				c.sendJSON(map[string]any{"type": "error", "message": "invalid message"})
				continue
			}
			onText(m)
		}
	}
}
