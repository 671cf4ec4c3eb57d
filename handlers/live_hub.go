package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-dalal/services"
	"github.com/fenilmodi00/ipo-dalal/shared"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var liveJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *liveClient) close() {
	c.once.Do(func() { close(c.send) })
}

// LiveHub pushes change notifications to websocket subscribers. Clients whose
// send buffer fills up are dropped.
type LiveHub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	sendBuffer   int

	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

func NewLiveHub(cfg shared.LiveConfig) *LiveHub {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	return &LiveHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		writeTimeout: cfg.WriteTimeout,
		sendBuffer:   cfg.SendBuffer,
		clients:      make(map[*liveClient]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the client subscribed until it
// disconnects
func (h *LiveHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("Live feed upgrade failed")
		return
	}

	client := &liveClient{conn: conn, send: make(chan []byte, h.sendBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	logrus.WithFields(logrus.Fields{"component": "live", "clients": count}).Info("Live client connected")

	go h.writePump(client)
	h.readPump(client)
}

// readPump discards inbound frames and notices disconnects
func (h *LiveHub) readPump(client *liveClient) {
	defer h.remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHub) writePump(client *liveClient) {
	defer client.conn.Close()
	for msg := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(client)
			return
		}
	}
	_ = client.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *LiveHub) remove(client *liveClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	client.close()
	if ok {
		logrus.WithFields(logrus.Fields{"component": "live", "clients": count}).Info("Live client disconnected")
	}
}

// OnChange broadcasts a committed mutation to every connected client
func (h *LiveHub) OnChange(_ context.Context, event services.ChangeEvent) {
	msg, err := liveJSON.Marshal(event)
	if err != nil {
		logrus.WithError(err).Warn("Failed to encode live event")
		return
	}

	h.mu.Lock()
	var slow []*liveClient
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.Unlock()

	for _, client := range slow {
		logrus.WithField("component", "live").Warn("Dropping slow live client")
		h.remove(client)
	}
}

func (h *LiveHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *LiveHub) Close() {
	h.mu.Lock()
	clients := make([]*liveClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*liveClient]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}
