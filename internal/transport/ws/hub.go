package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/alexdean/worst-idea/internal/store"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgGameUpdated  MessageType = "game_updated"
	MsgGameDeleted  MessageType = "game_deleted"
	MsgPlayerJoined MessageType = "player_joined"
	MsgPlayerLeft   MessageType = "player_left"
	MsgError        MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans committed game-document changes out to connected projectors and
// players. Each game gets one store subscription no matter how many sockets
// watch it, so fan-out cost stays independent of audience size.
type Hub struct {
	docs store.DocumentStore

	// gameID -> connections
	projectorConns map[string]map[*Connection]struct{}
	playerConns    map[string]map[string]*Connection // gameID -> principalID -> conn
	watchCancels   map[string]func()

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
}

// Connection represents a WebSocket connection
type Connection struct {
	GameID      string
	PrincipalID string // empty for projector connections
	IsProjector bool
	Send        chan []byte
	Hub         *Hub
}

// BroadcastMessage is a message to broadcast to one game's connections
type BroadcastMessage struct {
	GameID  string
	Message *Message
}

// NewHub creates a new WebSocket hub
func NewHub(docs store.DocumentStore) *Hub {
	h := &Hub{
		docs:           docs,
		projectorConns: make(map[string]map[*Connection]struct{}),
		playerConns:    make(map[string]map[string]*Connection),
		watchCancels:   make(map[string]func()),
		register:       make(chan *Connection),
		unregister:     make(chan *Connection),
		broadcast:      make(chan *BroadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if conn.IsProjector {
				if h.projectorConns[conn.GameID] == nil {
					h.projectorConns[conn.GameID] = make(map[*Connection]struct{})
				}
				h.projectorConns[conn.GameID][conn] = struct{}{}
				log.Printf("Projector connected to game %s", conn.GameID)
			} else {
				if h.playerConns[conn.GameID] == nil {
					h.playerConns[conn.GameID] = make(map[string]*Connection)
				}
				h.playerConns[conn.GameID][conn.PrincipalID] = conn
				log.Printf("Player %s connected to game %s", conn.PrincipalID, conn.GameID)
				h.notify(conn.GameID, MsgPlayerJoined, conn.PrincipalID)
			}
			h.ensureWatch(conn.GameID)
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conn.IsProjector {
				if _, ok := h.projectorConns[conn.GameID][conn]; ok {
					delete(h.projectorConns[conn.GameID], conn)
					close(conn.Send)
					log.Printf("Projector disconnected from game %s", conn.GameID)
				}
			} else {
				if existing, ok := h.playerConns[conn.GameID][conn.PrincipalID]; ok && existing == conn {
					delete(h.playerConns[conn.GameID], conn.PrincipalID)
					close(conn.Send)
					log.Printf("Player %s disconnected from game %s", conn.PrincipalID, conn.GameID)
					h.notify(conn.GameID, MsgPlayerLeft, conn.PrincipalID)
				}
			}
			h.releaseWatchIfIdle(conn.GameID)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.Message)
			for conn := range h.projectorConns[msg.GameID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			for _, conn := range h.playerConns[msg.GameID] {
				select {
				case conn.Send <- data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ensureWatch starts the single store subscription for a game. Callers hold
// the hub lock.
func (h *Hub) ensureWatch(gameID string) {
	if _, ok := h.watchCancels[gameID]; ok {
		return
	}
	ch, cancel := h.docs.Subscribe(store.GameRef(gameID))
	h.watchCancels[gameID] = cancel
	go func() {
		for doc := range ch {
			if doc == nil {
				h.Broadcast(gameID, MsgGameDeleted, nil)
				continue
			}
			h.Broadcast(gameID, MsgGameUpdated, doc)
		}
	}()
}

// releaseWatchIfIdle drops the store subscription once nothing is connected
// for the game. Callers hold the hub lock.
func (h *Hub) releaseWatchIfIdle(gameID string) {
	if len(h.projectorConns[gameID]) > 0 || len(h.playerConns[gameID]) > 0 {
		return
	}
	if cancel, ok := h.watchCancels[gameID]; ok {
		cancel()
		delete(h.watchCancels, gameID)
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Broadcast sends a message to every connection watching a game.
func (h *Hub) Broadcast(gameID string, msgType MessageType, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		GameID: gameID,
		Message: &Message{
			Type:    msgType,
			Payload: data,
		},
	}
}

// notify pushes a join/leave event to the game's projectors. Callers hold the
// hub lock.
func (h *Hub) notify(gameID string, msgType MessageType, principalID string) {
	data, _ := json.Marshal(&Message{
		Type:    msgType,
		Payload: json.RawMessage(`{"principalId":"` + principalID + `"}`),
	})
	for conn := range h.projectorConns[gameID] {
		select {
		case conn.Send <- data:
		default:
		}
	}
}
