package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"waveanalyzer/logger"
	"waveanalyzer/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// WebSocket upgrader with CORS support
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are already filtered by the CORS middleware
		return true
	},
}

// Client represents a WebSocket client connection. Lifecycle messages queue
// on send; seeker and spectrum frames only keep the newest of each kind.
type Client struct {
	hub       Hub
	conn      *websocket.Conn
	send      chan types.FrameMessage
	sessionID string

	framesMu sync.Mutex
	seeker   *types.FrameMessage
	spectrum *types.FrameMessage
	wake     chan struct{}
}

// NewClient creates a new WebSocket client
func NewClient(hub Hub, conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan types.FrameMessage, 256),
		sessionID: sessionID,
		wake:      make(chan struct{}, 1),
	}
}

// offerFrame replaces any unsent frame of the same kind
func (c *Client) offerFrame(msg types.FrameMessage) {
	c.framesMu.Lock()
	switch msg.Type {
	case types.MessageSeeker:
		c.seeker = &msg
	case types.MessageSpectrum:
		c.spectrum = &msg
	}
	c.framesMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// takeFrames returns the pending frames, seeker first, and clears them
func (c *Client) takeFrames() []types.FrameMessage {
	c.framesMu.Lock()
	defer c.framesMu.Unlock()

	var out []types.FrameMessage
	if c.seeker != nil {
		out = append(out, *c.seeker)
		c.seeker = nil
	}
	if c.spectrum != nil {
		out = append(out, *c.spectrum)
		c.spectrum = nil
	}
	return out
}

// SessionID returns the session the client follows
func (c *Client) SessionID() string {
	return c.sessionID
}

// StartPumps starts the read and write pumps for the client
func (c *Client) StartPumps() {
	go c.writePump()
	go c.readPump()
}

// readPump handles reading from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnf("WebSocket error on session %s: %v", c.sessionID, err)
			}
			break
		}
	}
}

// writePump handles writing to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logger.Warnf("WebSocket write error on session %s: %v", c.sessionID, err)
				return
			}

		case <-c.wake:
			for _, frame := range c.takeFrames() {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteJSON(frame); err != nil {
					logger.Warnf("WebSocket write error on session %s: %v", c.sessionID, err)
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GetUpgrader returns the WebSocket upgrader
func GetUpgrader() websocket.Upgrader {
	return upgrader
}
