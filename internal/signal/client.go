package signal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"interview_room/native/internal/domain"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Compile-time interface check.
var _ domain.Transport = (*Client)(nil)

// Client is the signaling transport of one room. Messages sent before the
// socket is open are queued and flushed in order exactly once when it
// opens. Inbound frames are handed to the message handler one at a time,
// in arrival order.
type Client struct {
	url          string
	dialer       *websocket.Dialer
	pingInterval time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	open    bool
	pending [][]byte

	onMessage func(domain.Message)
	onOpen    []func()
	onClose   []func(error)

	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient creates a transport for the room socket at wsURL. A zero
// pingInterval disables keep-alive pings.
func NewClient(wsURL string, pingInterval time.Duration) *Client {
	return &Client{
		url:          wsURL,
		dialer:       websocket.DefaultDialer,
		pingInterval: pingInterval,
		closed:       make(chan struct{}),
	}
}

// RoomURL derives the room socket URL from the server base URL. http and
// https bases map to ws and wss.
func RoomURL(serverURL, room string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL: %q", serverURL)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	room = domain.NormalizeRoom(room)
	u.Path = "/ws/" + room
	u.RawPath = "/ws/" + url.PathEscape(room)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// OnMessage sets the inbound message handler. It must be set before Connect.
func (c *Client) OnMessage(handler func(domain.Message)) {
	c.mu.Lock()
	c.onMessage = handler
	c.mu.Unlock()
}

// OnOpen registers a handler fired once the socket is open and the queue
// has been flushed.
func (c *Client) OnOpen(handler func()) {
	c.mu.Lock()
	c.onOpen = append(c.onOpen, handler)
	c.mu.Unlock()
}

// OnClose registers a handler fired once when the transport closes. The
// error is nil for a local Close.
func (c *Client) OnClose(handler func(error)) {
	c.mu.Lock()
	c.onClose = append(c.onClose, handler)
	c.mu.Unlock()
}

// Connect dials the room socket in the background and starts the read loop.
func (c *Client) Connect(ctx context.Context) {
	go c.run(ctx)
}

func (c *Client) run(ctx context.Context) {
	log.Printf("[signal] connecting to %s", c.url)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.shutdown(fmt.Errorf("%w: websocket dial: %v", domain.ErrTransportClosed, err))
		return
	}

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		conn.Close()
		return
	default:
	}
	c.conn = conn
	for len(c.pending) > 0 {
		data := c.pending[0]
		c.pending = c.pending[1:]
		if err := c.write(data); err != nil {
			c.mu.Unlock()
			c.shutdown(fmt.Errorf("%w: flush: %v", domain.ErrTransportClosed, err))
			return
		}
	}
	c.pending = nil
	c.open = true
	handlers := append([]func(){}, c.onOpen...)
	c.mu.Unlock()

	log.Printf("[signal] connected")
	for _, h := range handlers {
		h()
	}

	if c.pingInterval > 0 {
		go c.pingLoop()
	}
	c.readLoop()
}

// Send writes a message, or queues it if the socket is not open yet.
func (c *Client) Send(msg domain.Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		log.Printf("[signal] dropping %s after close", msg.Type)
		return domain.ErrTransportClosed
	default:
	}

	if !c.open {
		log.Printf("[signal] queueing %s until open", msg.Type)
		c.pending = append(c.pending, data)
		return nil
	}

	log.Printf("[signal] >>> %s", msg.Type)
	if err := c.write(data); err != nil {
		log.Printf("[signal] write error: %v", err)
		return fmt.Errorf("%w: %v", domain.ErrTransportClosed, err)
	}
	return nil
}

// write must be called with c.mu held.
func (c *Client) write(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			log.Printf("[signal] read error: %v", err)
			c.shutdown(fmt.Errorf("%w: %v", domain.ErrTransportClosed, err))
			return
		}

		msg, err := Decode(data)
		if err != nil {
			log.Printf("[signal] dropping frame: %v", err)
			continue
		}
		log.Printf("[signal] <<< %s", msg.Type)

		c.mu.Lock()
		handler := c.onMessage
		c.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				select {
				case <-c.closed:
				default:
					log.Printf("[signal] ping error: %v", err)
				}
				return
			}
		}
	}
}

// Close shuts the socket down. Safe to call more than once.
func (c *Client) Close() {
	c.shutdown(nil)
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		c.open = false
		c.pending = nil
		conn := c.conn
		if conn != nil && cause == nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(writeWait))
		}
		handlers := append([]func(error){}, c.onClose...)
		c.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if cause != nil && !errors.Is(cause, context.Canceled) {
			log.Printf("[signal] closed: %v", cause)
		} else {
			log.Printf("[signal] closed")
		}
		for _, h := range handlers {
			h(cause)
		}
	})
}
