package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer events may wait for one connection before it is dropped.
	sendBuffer = 32
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscriber struct {
	conn Conn
	send chan []byte
}

// Hub keeps the websocket connections of this process, grouped by board.
// Each connection has its own writer goroutine fed through a bounded queue.
type Hub struct {
	connections map[uuid.UUID]map[Conn]*subscriber
	mutex       sync.Mutex
	log         *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]map[Conn]*subscriber),
		log:         log,
	}
}

func (h *Hub) Register(boardID uuid.UUID, conn Conn) {
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mutex.Lock()
	h.remove(boardID, conn)
	if h.connections[boardID] == nil {
		h.connections[boardID] = make(map[Conn]*subscriber)
	}
	h.connections[boardID][conn] = sub
	h.mutex.Unlock()

	go h.writeLoop(boardID, sub)
}

func (h *Hub) Unregister(boardID uuid.UUID, conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.remove(boardID, conn)
}

// Subscribers returns the number of connections watching boardID.
func (h *Hub) Subscribers(boardID uuid.UUID) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[boardID])
}

// Notify queues ev for every connection on ev.BoardID and returns without
// waiting for the writes. A connection whose queue is full is closed and
// dropped.
func (h *Hub) Notify(_ context.Context, ev Event) error {
	message, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, sub := range h.connections[ev.BoardID] {
		select {
		case sub.send <- message:
		default:
			h.log.Warn("dropping slow websocket subscriber", "board_id", ev.BoardID)
			h.remove(ev.BoardID, conn)
			conn.Close()
		}
	}
	return nil
}

func (h *Hub) writeLoop(boardID uuid.UUID, sub *subscriber) {
	for message := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.Warn("dropping websocket subscriber", "board_id", boardID, "error", err)
			h.mutex.Lock()
			if h.connections[boardID][sub.conn] == sub {
				h.remove(boardID, sub.conn)
			}
			h.mutex.Unlock()
			sub.conn.Close()
			return
		}
	}
}

// remove must be called with the mutex held.
func (h *Hub) remove(boardID uuid.UUID, conn Conn) {
	conns := h.connections[boardID]
	sub, ok := conns[conn]
	if !ok {
		return
	}
	delete(conns, conn)
	close(sub.send)
	if len(conns) == 0 {
		delete(h.connections, boardID)
	}
}
