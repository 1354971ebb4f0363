package shiftio

import (
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const streamBufferSize = 64
const streamWriteTimeout = 2 * time.Second

type StreamEvent struct {
	Name  string    `json:"name"`
	Kind  Kind      `json:"kind"`
	State bool      `json:"state"`
	Time  time.Time `json:"time"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan StreamEvent
}

// StreamHub pushes state changes to websocket clients. A new client first
// gets one event per line with its current state. Slow clients lose events
// instead of holding up the tick.
type StreamHub struct {
	upgrader websocket.Upgrader
	snapshot func() []LineStatus
	logger   *log.Logger

	lock    sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

func NewStreamHub(snapshot func() []LineStatus) *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: streamWriteTimeout,
		},
		snapshot: snapshot,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "stream: ",
			Level:  log.GetLevel(),
		}),
		clients: map[*streamClient]struct{}{},
	}
}

func (h *StreamHub) StateChanged(name string, kind Kind, state bool) {
	h.broadcast(StreamEvent{Name: name, Kind: kind, State: state, Time: time.Now()})
}

func (h *StreamHub) broadcast(ev StreamEvent) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.logger.Warn("client too slow, dropping event", "line", ev.Name)
		}
	}
}

func (h *StreamHub) register(c *streamClient) bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *StreamHub) unregister(c *streamClient) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, found := h.clients[c]; found {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *StreamHub) writer(c *streamClient) {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		err := c.conn.WriteJSON(ev)
		if err != nil {
			h.logger.Debug("write failed", "err", err)
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	c.conn.Close()
}

func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "err", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	c := &streamClient{conn: conn, send: make(chan StreamEvent, streamBufferSize)}
	now := time.Now()
	for _, st := range h.snapshot() {
		c.send <- StreamEvent{Name: st.Name, Kind: st.Kind, State: st.State, Time: now}
		if len(c.send) == cap(c.send) {
			break
		}
	}

	if !h.register(c) {
		conn.Close()
		return
	}
	go h.writer(c)

	// clients only listen, reading just detects the close
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	h.unregister(c)
}

// Close disconnects every client and refuses new ones.
func (h *StreamHub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

func (h *StreamHub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()

	return len(h.clients)
}
