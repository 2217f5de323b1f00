package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/repository"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	tickers map[string]struct{} // empty means every ticker
	once    sync.Once
}

func (c *client) wants(ticker string) bool {
	if len(c.tickers) == 0 {
		return true
	}
	_, ok := c.tickers[ticker]
	return ok
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub pushes live signal events to websocket subscribers. Slow subscribers whose
// send buffer fills up are disconnected instead of blocking the publisher.
type Hub struct {
	mu           sync.RWMutex
	clients      map[*client]struct{}
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	sendBuffer   int
	log          *applogger.Logger
}

var _ domrepo.SignalPublisher = (*Hub)(nil)

func NewHub(writeTimeout time.Duration, sendBuffer int, l *applogger.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Hub{
		clients:      make(map[*client]struct{}),
		upgrader:     websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		writeTimeout: writeTimeout,
		sendBuffer:   sendBuffer,
		log:          l,
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/ws", h.Subscribe)
}

// Subscribe upgrades the request. The optional tickers query parameter
// (comma separated) restricts which results the client receives.
func (h *Hub) Subscribe(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	cl := &client{conn: conn, send: make(chan []byte, h.sendBuffer), tickers: map[string]struct{}{}}
	for _, t := range util.SplitTickers(c.QueryParam("tickers")) {
		cl.tickers[t] = struct{}{}
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("websocket subscriber joined", applogger.Int("subscribers", h.Len()))

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		cl.close()
	}
	h.mu.Unlock()
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.remove(cl)
		_ = cl.conn.Close()
	}()
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// PublishSignal broadcasts r to every interested subscriber without blocking.
func (h *Hub) PublishSignal(_ context.Context, r *models.FinalResult) error {
	b, err := json.Marshal(repository.NewSignalEvent(r))
	if err != nil {
		return err
	}
	var slow []*client
	h.mu.RLock()
	for cl := range h.clients {
		if !cl.wants(r.Ticker) {
			continue
		}
		select {
		case cl.send <- b:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.log.Warn("dropping slow websocket subscriber")
		h.remove(cl)
	}
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		delete(h.clients, cl)
		cl.close()
	}
	return nil
}
