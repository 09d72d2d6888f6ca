package watch

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/motiz88/parcel/internal/diagnostics"
)

// ReloadServer manages WebSocket connections for live reload
type ReloadServer struct {
	connections map[*websocket.Conn]bool
	broadcast   chan *ReloadMessage
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	done        chan struct{}
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// ReloadMessage represents a reload message sent to browsers
type ReloadMessage struct {
	Type      string     `json:"type"` // "reload", "error", "building", "success"
	Timestamp int64      `json:"timestamp"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Files     []string   `json:"files,omitempty"`
	// Bundles lists the output names touched by the rebuild so clients can
	// hot-swap instead of reloading everything
	Bundles  []string `json:"bundles,omitempty"`
	Duration float64  `json:"duration,omitempty"` // Milliseconds
}

// ErrorInfo holds detailed error information
type ErrorInfo struct {
	Message  string `json:"message"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Code     string `json:"code,omitempty"`
	Phase    string `json:"phase,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// errorInfoFromDiagnostic converts a build diagnostic for the wire
func errorInfoFromDiagnostic(d diagnostics.Diagnostic) *ErrorInfo {
	return &ErrorInfo{
		Message:  d.Message,
		File:     d.Location.File,
		Line:     d.Location.Line,
		Column:   d.Location.Column,
		Code:     d.Code,
		Phase:    d.Phase,
		Severity: d.Severity.String(),
	}
}

// NewReloadServer creates a new reload server
func NewReloadServer(logger *zap.Logger) *ReloadServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	rs := &ReloadServer{
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan *ReloadMessage, 256),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Allow no origin (same-origin)
					return true
				}
				// Allow localhost only for security
				return strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "https://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1") ||
					strings.HasPrefix(origin, "https://127.0.0.1")
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	go rs.run()

	return rs
}

// run handles the WebSocket connection lifecycle
func (rs *ReloadServer) run() {
	for {
		select {
		case <-rs.done:
			rs.logger.Debug("shutting down reload server")
			return

		case conn := <-rs.register:
			rs.mutex.Lock()
			rs.connections[conn] = true
			total := len(rs.connections)
			rs.mutex.Unlock()
			rs.logger.Debug("reload client connected", zap.Int("total", total))

		case conn := <-rs.unregister:
			rs.mutex.Lock()
			if _, ok := rs.connections[conn]; ok {
				delete(rs.connections, conn)
				conn.Close()
			}
			total := len(rs.connections)
			rs.mutex.Unlock()
			rs.logger.Debug("reload client disconnected", zap.Int("total", total))

		case message := <-rs.broadcast:
			rs.sendToAll(message)
		}
	}
}

// sendToAll sends a message to all connected clients
func (rs *ReloadServer) sendToAll(message *ReloadMessage) {
	messageJSON, err := json.Marshal(message)
	if err != nil {
		rs.logger.Error("failed to marshal reload message", zap.Error(err))
		return
	}

	// Collect failed connections while holding read lock
	rs.mutex.RLock()
	var failedConns []*websocket.Conn
	for conn := range rs.connections {
		err := conn.WriteMessage(websocket.TextMessage, messageJSON)
		if err != nil {
			rs.logger.Warn("failed to send reload message", zap.Error(err))
			failedConns = append(failedConns, conn)
		}
	}
	rs.mutex.RUnlock()

	// Remove failed connections with write lock
	if len(failedConns) > 0 {
		rs.mutex.Lock()
		for _, conn := range failedConns {
			if _, ok := rs.connections[conn]; ok {
				conn.Close()
				delete(rs.connections, conn)
			}
		}
		rs.mutex.Unlock()
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket
func (rs *ReloadServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := rs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rs.logger.Warn("failed to upgrade reload connection", zap.Error(err))
		return
	}

	rs.register <- conn

	// Read loop keeps the connection alive and detects disconnects
	go rs.readMessages(conn)
}

// readMessages reads messages from the client (for keepalive)
func (rs *ReloadServer) readMessages(conn *websocket.Conn) {
	defer func() {
		rs.unregister <- conn
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				rs.logger.Warn("reload websocket error", zap.Error(err))
			}
			break
		}
	}
}

// NotifyBuilding sends a "building" message to clients
func (rs *ReloadServer) NotifyBuilding(files []string) {
	rs.broadcast <- &ReloadMessage{
		Type:      "building",
		Timestamp: time.Now().Unix(),
		Files:     files,
	}
}

// NotifySuccess sends a "success" message to clients
func (rs *ReloadServer) NotifySuccess(duration time.Duration) {
	rs.broadcast <- &ReloadMessage{
		Type:      "success",
		Timestamp: time.Now().Unix(),
		Duration:  float64(duration.Milliseconds()),
	}
}

// NotifyReload tells clients to reload, listing the rebuilt bundle names
func (rs *ReloadServer) NotifyReload(bundles []string) {
	rs.broadcast <- &ReloadMessage{
		Type:      "reload",
		Bundles:   bundles,
		Timestamp: time.Now().Unix(),
	}
}

// NotifyError sends an error message to clients
func (rs *ReloadServer) NotifyError(errorInfo *ErrorInfo) {
	rs.broadcast <- &ReloadMessage{
		Type:      "error",
		Timestamp: time.Now().Unix(),
		Error:     errorInfo,
	}
}

// NotifyDiagnostics sends build diagnostics to clients. The first error
// carries full details; the rest are summarized client side.
func (rs *ReloadServer) NotifyDiagnostics(list *diagnostics.List) {
	for _, d := range list.All() {
		if d.Severity >= diagnostics.Error {
			rs.broadcast <- &ReloadMessage{
				Type:      "error",
				Timestamp: time.Now().Unix(),
				Error:     errorInfoFromDiagnostic(d),
			}
			return
		}
	}
}

// ConnectionCount returns the number of active connections
func (rs *ReloadServer) ConnectionCount() int {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return len(rs.connections)
}

// Close closes all connections and stops the server
func (rs *ReloadServer) Close() {
	close(rs.done)

	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	for conn := range rs.connections {
		conn.Close()
	}
	rs.connections = make(map[*websocket.Conn]bool)
}
