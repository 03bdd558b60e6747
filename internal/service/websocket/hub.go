package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"detectserver/internal/logger"
)

const (
	// broadcastQueue bounds how many events may wait for the hub.
	broadcastQueue = 64
	// sendQueue bounds how many events may wait for one viewer. A viewer
	// whose queue is full is dropped.
	sendQueue = 16
	// writeWait is the time allowed to write one message to a viewer.
	writeWait = 10 * time.Second
)

// viewer is one connection and the queue its write pump drains.
type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// writePump is the only writer on the connection. It returns when send is
// closed or a write fails, closing the connection either way.
func (v *viewer) writePump(logger *logger.Logger) {
	defer v.conn.Close()

	for message := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Warning("Error sending message: %v", err)
			return
		}
	}
	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// HubService fans prediction events out to connected viewers.
type HubService struct {
	clients    map[*websocket.Conn]*viewer
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*viewer),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every remaining connection. Run must be called at most once.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn, v := range h.clients {
				close(v.send)
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.register:
			v := &viewer{conn: conn, send: make(chan []byte, sendQueue)}
			go v.writePump(h.logger)

			h.mutex.Lock()
			h.clients[conn] = v
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case conn := <-h.unregister:
			h.mutex.Lock()
			if v, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				close(v.send)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for conn, v := range h.clients {
				select {
				case v.send <- message:
				default:
					h.logger.Warning("Viewer %s is not reading - dropping it", conn.RemoteAddr())
					delete(h.clients, conn)
					close(v.send)
					// Unblocks a write pump stuck on a full socket.
					conn.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds a viewer. After Run has returned the connection is closed
// instead.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a viewer and closes its connection. It returns
// immediately once Run has returned.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer. When the queue is full the
// message is dropped so publishers never block.
func (h *HubService) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("Broadcast queue full - dropping event")
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
