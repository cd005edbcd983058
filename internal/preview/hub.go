package preview

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/Iron-Ham/tandem/internal/event"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/metrics"
)

const (
	writeWait    = 5 * time.Second
	maxReadBytes = 4096
)

// connectedMessage is sent to every client right after the upgrade.
var connectedMessage = []byte(`{"type":"connected"}`)

type client struct {
	id   string
	conn *websocket.Conn

	// gorilla connections allow one concurrent writer
	mu sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// hub tracks the browser clients connected to the reload channel.
type hub struct {
	clients  cmap.ConcurrentMap[string, *client]
	upgrader websocket.Upgrader
	logger   *logging.Logger
	bus      *event.Bus
	metrics  *metrics.Metrics
}

func newHub(logger *logging.Logger, bus *event.Bus, m *metrics.Metrics) *hub {
	h := &hub{
		clients: cmap.New[*client](),
		logger:  logger,
		bus:     bus,
		metrics: m,
	}
	// Preview pages may be loaded from the app shell's own origin.
	h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	return h
}

// ServeHTTP upgrades the request and keeps the client registered until its
// connection closes.
func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxReadBytes)

	c := &client{id: uuid.NewString(), conn: conn}
	h.clients.Set(c.id, c)
	h.metrics.SetClients(h.clients.Count())
	h.bus.Publish(event.NewPreviewConnectionEvent(c.id, true))
	h.logger.Debug("client connected", "client_id", c.id, "remote", r.RemoteAddr)

	if err := c.write(websocket.TextMessage, connectedMessage); err != nil {
		h.remove(c)
		return
	}

	// Clients never send anything meaningful; reading surfaces the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

// broadcast writes data to every client and returns how many received it.
// Clients that fail the write are dropped.
func (h *hub) broadcast(data []byte) int {
	delivered := 0
	for _, c := range h.clients.Items() {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.logger.Debug("dropping client after failed write", "client_id", c.id, "error", err)
			h.remove(c)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *hub) count() int {
	return h.clients.Count()
}

func (h *hub) remove(c *client) {
	if _, ok := h.clients.Pop(c.id); !ok {
		return
	}
	_ = c.conn.Close()
	h.metrics.SetClients(h.clients.Count())
	h.bus.Publish(event.NewPreviewConnectionEvent(c.id, false))
	h.logger.Debug("client disconnected", "client_id", c.id)
}

// closeAll sends a going-away close frame to every client and drops it.
func (h *hub) closeAll() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing")
	for _, c := range h.clients.Items() {
		_ = c.write(websocket.CloseMessage, msg)
		h.remove(c)
	}
}
