// Package relay is the room-scoped signaling relay. Every frame a client
// sends is forwarded to the other clients of the same room; caption frames
// are normalized and kept in a per-room transcript.
package relay

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"interview_room/native/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512 * 1024
	sendQueueSize  = 256

	// DefaultTranscriptLimit caps the lines kept per room.
	DefaultTranscriptLimit = 1000

	unknownSender = "Unknown"
)

// Hub tracks the clients of every room.
type Hub struct {
	transcriptLimit int

	mu          sync.RWMutex
	rooms       map[string]map[*client]struct{}
	transcripts map[string][]domain.CaptionLine
}

// NewHub creates an empty hub. A non-positive limit uses
// DefaultTranscriptLimit.
func NewHub(transcriptLimit int) *Hub {
	if transcriptLimit <= 0 {
		transcriptLimit = DefaultTranscriptLimit
	}
	return &Hub{
		transcriptLimit: transcriptLimit,
		rooms:           make(map[string]map[*client]struct{}),
		transcripts:     make(map[string][]domain.CaptionLine),
	}
}

type client struct {
	id   string
	room string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Join registers conn in room and starts its pumps. It returns
// immediately.
func (h *Hub) Join(room string, conn *websocket.Conn) {
	c := &client{
		id:   uuid.NewString(),
		room: domain.NormalizeRoom(room),
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		hub:  h,
	}

	h.mu.Lock()
	peers, ok := h.rooms[c.room]
	if !ok {
		peers = make(map[*client]struct{})
		h.rooms[c.room] = peers
	}
	peers[c] = struct{}{}
	n := len(peers)
	h.mu.Unlock()

	log.Printf("[relay] client %s joined room %q (%d connected)", c.id, c.room, n)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	peers := h.rooms[c.room]
	if _, ok := peers[c]; ok {
		delete(peers, c)
		close(c.send)
	}
	if len(peers) == 0 {
		delete(h.rooms, c.room)
	}
	h.mu.Unlock()

	log.Printf("[relay] client %s left room %q", c.id, c.room)
}

// broadcast queues data to every client of room except from. A client
// whose queue is full is skipped for this frame.
func (h *Hub) broadcast(room string, data []byte, from *client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for peer := range h.rooms[room] {
		if peer == from {
			continue
		}
		select {
		case peer.send <- data:
		default:
			log.Printf("[relay] client %s send queue full, dropping frame", peer.id)
		}
	}
}

// Rooms returns the number of rooms with at least one client.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Clients returns the number of clients in room.
func (h *Hub) Clients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[domain.NormalizeRoom(room)])
}

// Transcript returns a copy of the caption lines recorded for room.
func (h *Hub) Transcript(room string) []domain.CaptionLine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	lines := h.transcripts[domain.NormalizeRoom(room)]
	out := make([]domain.CaptionLine, len(lines))
	copy(out, lines)
	return out
}

func (h *Hub) record(room string, line domain.CaptionLine) {
	h.mu.Lock()
	lines := append(h.transcripts[room], line)
	if over := len(lines) - h.transcriptLimit; over > 0 {
		lines = append([]domain.CaptionLine(nil), lines[over:]...)
	}
	h.transcripts[room] = lines
	h.mu.Unlock()
}

type captionFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// route decides what to forward for one inbound frame. Caption frames are
// re-encoded with a trimmed text; empty captions are dropped. Everything
// else, including frames that are not JSON, is forwarded verbatim.
func (h *Hub) route(c *client, data []byte) {
	var head struct {
		Type   string `json:"type"`
		Text   any    `json:"text"`
		Sender any    `json:"sender"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Type != string(domain.MsgTypeCaption) {
		h.broadcast(c.room, data, c)
		return
	}

	text := strings.TrimSpace(stringify(head.Text))
	if text == "" {
		return
	}
	sender := unknownSender
	if s, ok := head.Sender.(string); ok && s != "" {
		sender = s
	}

	h.record(c.room, domain.CaptionLine{Sender: domain.Role(sender), Text: text})

	out, err := json.Marshal(captionFrame{Type: string(domain.MsgTypeCaption), Text: text, Sender: sender})
	if err != nil {
		log.Printf("[relay] encode caption: %v", err)
		return
	}
	h.broadcast(c.room, out, c)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[relay] client %s read error: %v", c.id, err)
			}
			return
		}
		// Any inbound frame proves the client is alive.
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.route(c, data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
