package websocket

import (
	"sync"
	"time"

	"waveanalyzer/logger"
	"waveanalyzer/types"
)

// AllSessions is the subscription key for clients following every session
const AllSessions = "all"

// Hub interface defines the methods for managing WebSocket connections
type Hub interface {
	Run()
	Stop()
	Publish(msg types.FrameMessage)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
	ClientCount(sessionID string) int
}

// hub maintains the set of active clients and broadcasts frames to them
type hub struct {
	// Registered clients mapped by session ID
	clients map[string]map[*Client]bool

	// Frames waiting to be fanned out
	broadcast chan types.FrameMessage

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan types.FrameMessage, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop
func (h *hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.sessionID] == nil {
				h.clients[client.sessionID] = make(map[*Client]bool)
			}
			h.clients[client.sessionID][client] = true
			h.mu.Unlock()
			logger.Debugf("WebSocket client connected for session %s", client.sessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			logger.Debugf("WebSocket client disconnected for session %s", client.sessionID)

		case message := <-h.broadcast:
			h.mu.Lock()
			// Frame updates stay with their session; lifecycle messages also
			// reach "all" subscribers
			if isFrameUpdate(message) {
				h.offerLocked(message.SessionID, message)
			} else {
				h.sendLocked(message.SessionID, message)
				h.sendLocked(AllSessions, message)
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends the event loop
func (h *hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *hub) sendLocked(key string, message types.FrameMessage) {
	clients, ok := h.clients[key]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- message:
		default:
			// Slow client: drop it rather than stall every session
			close(client.send)
			delete(clients, client)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, key)
	}
}

func isFrameUpdate(message types.FrameMessage) bool {
	return message.Type == types.MessageSeeker || message.Type == types.MessageSpectrum
}

// offerLocked hands a frame update to each client; a client that has not
// written the previous one yet only sees the newer frame
func (h *hub) offerLocked(key string, message types.FrameMessage) {
	for client := range h.clients[key] {
		client.offerFrame(message)
	}
}

func (h *hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.send)
		if len(clients) == 0 {
			delete(h.clients, client.sessionID)
		}
	}
}

// Publish queues a frame for its session's clients without blocking the
// frame loop that produced it
func (h *hub) Publish(msg types.FrameMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	select {
	case h.broadcast <- msg:
	default:
		logger.Warnf("WebSocket broadcast channel full, dropping %s message for session %s", msg.Type, msg.SessionID)
	}
}

// RegisterClient registers a new client with the hub
func (h *hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// UnregisterClient unregisters a client from the hub
func (h *hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of clients subscribed to sessionID
func (h *hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}
