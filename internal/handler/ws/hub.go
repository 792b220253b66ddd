// Package ws implements the push side of the dual-channel interface: a
// per-topic WebSocket hub that fans tagged envelopes out to subscribers.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const sendBuffer = 32

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// Hub tracks subscribers per topic and pushes envelopes to them. A slow
// subscriber is disconnected rather than allowed to stall the fan-out; it can
// resubscribe and meanwhile falls back to polling.
type Hub struct {
	logger   *logger.Logger
	metrics  domrepo.Metrics
	upgrader websocket.Upgrader

	mu     sync.Mutex
	topics map[string]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(l *logger.Logger, m domrepo.Metrics) *Hub {
	return &Hub{
		logger:  l,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		topics: make(map[string]map[*client]struct{}),
	}
}

// RegisterRoutes mounts the push endpoints.
func (h *Hub) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/ws")
	g.GET("/live-prices", func(c echo.Context) error {
		return h.serve(c, "live-prices")
	})
	g.GET("/backtests", func(c echo.Context) error {
		return h.serve(c, "backtests")
	})
	g.GET("/importance", func(c echo.Context) error {
		return h.serve(c, "importance")
	})
	g.GET("/predict/:symbol", func(c echo.Context) error {
		return h.serve(c, "predict/"+util.UpperSymbol(c.Param("symbol")))
	})
}

// Broadcast pushes one envelope to every subscriber of the topic.
func (h *Hub) Broadcast(topic string, env *models.StreamEnvelope) {
	b, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("hub marshal failed", logger.String("topic", topic), logger.Error(err))
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.topics[topic] {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.topics[topic], c)
	}
	h.mu.Unlock()

	for _, c := range slow {
		c.close()
		h.metrics.RecordError("hub_slow_client")
	}
}

// Subscribers returns the current subscriber count for a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

func (h *Hub) serve(c echo.Context, topic string) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(topic, cl)
	h.logger.Debug("hub subscriber attached", logger.String("topic", topic))

	go h.writePump(cl)
	h.readPump(topic, cl)
	return nil
}

func (h *Hub) add(topic string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*client]struct{})
	}
	h.topics[topic][cl] = struct{}{}
}

func (h *Hub) remove(topic string, cl *client) {
	h.mu.Lock()
	delete(h.topics[topic], cl)
	h.mu.Unlock()
	cl.close()
}

func (h *Hub) writePump(cl *client) {
	for b := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

// readPump drains the connection until the peer goes away. Inbound content is
// ignored; the push channel is one-way.
func (h *Hub) readPump(topic string, cl *client) {
	defer h.remove(topic, cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
