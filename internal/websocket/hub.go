package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/models"
)

const (
	broadcastBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var (
	ErrHubStopped    = errors.New("websocket hub is stopped")
	ErrBroadcastFull = errors.New("websocket broadcast buffer is full")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub рассылает in_app оповещения подключенным клиентам
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает подключения до отмены ctx, затем закрывает все соединения
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Infof("Alert subscriber connected. Total: %d", total)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.writeAll(websocket.TextMessage, message)

		case <-ticker.C:
			h.writeAll(websocket.PingMessage, nil)
		}
	}
}

func (h *Hub) writeAll(messageType int, message []byte) {
	h.mutex.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(messageType, message); err != nil {
			h.logger.WithError(err).Warn("Error sending message to alert subscriber")
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *websocket.Conn) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	total := len(h.clients)
	h.mutex.Unlock()

	if ok {
		client.Close()
		h.logger.Infof("Alert subscriber disconnected. Total: %d", total)
	}
}

func (h *Hub) closeAll() {
	close(h.done)
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		_ = client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		client.Close()
		delete(h.clients, client)
	}
}

// ClientCount возвращает число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Notify ставит оповещение в очередь рассылки и не ждет медленных подписчиков.
// Если буфер рассылки заполнен, оповещение отбрасывается с ErrBroadcastFull.
func (h *Hub) Notify(_ context.Context, alert *models.Alert) error {
	message, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert for websocket: %w", err)
	}

	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- message:
		return nil
	default:
		h.logger.WithField("alert_id", alert.ID).Warn("Alert broadcast buffer full, alert dropped")
		return ErrBroadcastFull
	}
}

// ServeWS переводит запрос в websocket и держит соединение до отключения клиента
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Клиенты ничего не присылают, чтение нужно только чтобы заметить отключение
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}
