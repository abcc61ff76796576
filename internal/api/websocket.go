// internal/api/websocket.go
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/SocialGenius/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// WebSocketClient is one browser following a reel session
type WebSocketClient struct {
	conn        *websocket.Conn
	sessionID   string
	connectedAt time.Time
}

// WebSocketManager tracks open progress sockets per reel session
type WebSocketManager struct {
	upgrader    websocket.Upgrader
	connections map[string]map[*WebSocketClient]struct{}
	mutex       sync.RWMutex
	logger      *utils.Logger
}

// NewWebSocketManager accepts upgrades from allowedOrigins; "*" allows any
func NewWebSocketManager(allowedOrigins []string) *WebSocketManager {
	allowAll := len(allowedOrigins) == 0
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = true
	}

	return &WebSocketManager{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || origins[origin]
			},
		},
		connections: make(map[string]map[*WebSocketClient]struct{}),
		logger:      utils.GetLogger().WithComponent("websocket"),
	}
}

func (m *WebSocketManager) register(client *WebSocketClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.connections[client.sessionID] == nil {
		m.connections[client.sessionID] = make(map[*WebSocketClient]struct{})
	}
	m.connections[client.sessionID][client] = struct{}{}
}

func (m *WebSocketManager) unregister(client *WebSocketClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if clients, ok := m.connections[client.sessionID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(m.connections, client.sessionID)
		}
	}
}

// Status reports the number of open sockets per session
func (m *WebSocketManager) Status() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	sessions := make(map[string]int, len(m.connections))
	total := 0
	for id, clients := range m.connections {
		sessions[id] = len(clients)
		total += len(clients)
	}
	return map[string]interface{}{
		"total_connections": total,
		"sessions":          sessions,
	}
}

// CloseAll sends a close frame to every open socket
func (m *WebSocketManager) CloseAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, clients := range m.connections {
		for client := range clients {
			client.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			client.conn.Close()
		}
	}
	m.connections = make(map[string]map[*WebSocketClient]struct{})
}

// ReelWebSocket streams ProgressUpdates of one reel session as JSON messages.
// The first message is the current state of the session.
func (h *Handler) ReelWebSocket(m *WebSocketManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := h.ReelService.GetSession(id); err != nil {
			h.Response.ServiceError(c, err)
			return
		}

		conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			m.logger.Warn("WebSocket upgrade failed", map[string]interface{}{"session_id": id, "error": err.Error()})
			return
		}

		client := &WebSocketClient{conn: conn, sessionID: id, connectedAt: time.Now()}
		m.register(client)
		defer func() {
			m.unregister(client)
			conn.Close()
			m.logger.Debug("WebSocket closed", map[string]interface{}{
				"session_id": id,
				"duration":   time.Since(client.connectedAt).String(),
			})
		}()

		tracker := h.ReelService.Progress().Tracker(id)
		updates := tracker.Subscribe()
		defer tracker.Unsubscribe(updates)

		closed := make(chan struct{})
		go readUntilClosed(conn, closed)

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				return
			case update, ok := <-updates:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				if err := conn.WriteJSON(update); err != nil {
					m.logger.Debug("WebSocket write failed", map[string]interface{}{"session_id": id, "error": err.Error()})
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

// readUntilClosed drains client frames so pongs and close frames are handled
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// GetWebSocketStatus reports open progress sockets
func (h *Handler) GetWebSocketStatus(m *WebSocketManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.Response.Success(c, m.Status())
	}
}
