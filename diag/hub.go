package diag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/opd-ai/hearmix/control"
	"github.com/sirupsen/logrus"
)

// Message types sent to viewers.
const (
	MessageHello  = "hello"
	MessageStatus = "status"
)

// viewerQueue is the number of status messages buffered per viewer.
const viewerQueue = 16

// writeTimeout bounds one websocket write.
const writeTimeout = time.Second

// Message is the JSON envelope sent to viewers.
type Message struct {
	Type     string          `json:"type"`
	BootID   string          `json:"boot_id"`
	ViewerID string          `json:"viewer_id,omitempty"`
	Status   *control.Status `json:"status,omitempty"`
}

type viewer struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	closeMu sync.Once
}

func (v *viewer) close() {
	v.closeMu.Do(func() {
		close(v.send)
	})
}

// Hub fans control loop Status out to websocket viewers.
//
// Each boot gets a random ID so a viewer can tell a restart from a gap in
// the stream. Slow viewers lose messages rather than stall the loop.
type Hub struct {
	bootID   string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	viewers map[string]*viewer
	last    *control.Status
	closed  bool
	dropped uint64
}

// NewHub creates a hub with a fresh boot ID.
func NewHub() (*Hub, error) {
	bootID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate boot id: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewHub",
		"boot_id":  bootID,
	}).Info("Diagnostic hub created")

	return &Hub{
		bootID:  bootID,
		viewers: make(map[string]*viewer),
	}, nil
}

// BootID returns the identifier of this run.
func (h *Hub) BootID() string { return h.bootID }

// ViewerCount returns the number of connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Dropped returns the number of messages discarded for slow viewers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Handler returns the hub's routes: "/ws" streams messages and "/status"
// returns the last Status as JSON.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/status", h.serveStatus)
	return mux
}

// ServeHTTP upgrades the request and streams messages until the viewer
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Hub.ServeHTTP",
			"remote_addr": r.RemoteAddr,
			"error":       err.Error(),
		}).Error("Websocket upgrade failed")
		return
	}

	v, err := h.register(conn)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()))
		_ = conn.Close()
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Hub.ServeHTTP",
		"viewer_id":   v.id,
		"remote_addr": r.RemoteAddr,
	}).Info("Viewer connected")

	go h.writeLoop(v)
	h.readLoop(v)
}

func (h *Hub) register(conn *websocket.Conn) (*viewer, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate viewer id: %w", err)
	}

	v := &viewer{
		id:   id,
		conn: conn,
		send: make(chan []byte, viewerQueue),
	}

	hello, err := json.Marshal(Message{Type: MessageHello, BootID: h.bootID, ViewerID: id})
	if err != nil {
		return nil, err
	}
	v.send <- hello

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	if h.last != nil {
		if data, err := h.encodeStatus(*h.last); err == nil {
			v.send <- data
		}
	}
	h.viewers[id] = v
	return v, nil
}

// readLoop discards inbound messages and detects disconnects.
func (h *Hub) readLoop(v *viewer) {
	defer h.unregister(v)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithFields(logrus.Fields{
					"function":  "Hub.readLoop",
					"viewer_id": v.id,
					"error":     err.Error(),
				}).Debug("Viewer read ended")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(v *viewer) {
	defer v.conn.Close()
	for data := range v.send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Hub.writeLoop",
				"viewer_id": v.id,
				"error":     err.Error(),
			}).Warn("Viewer write failed")
			h.unregister(v)
			return
		}
	}
	_ = v.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(writeTimeout))
}

func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	_, ok := h.viewers[v.id]
	delete(h.viewers, v.id)
	h.mu.Unlock()

	v.close()
	if ok {
		logrus.WithFields(logrus.Fields{
			"function":  "Hub.unregister",
			"viewer_id": v.id,
		}).Info("Viewer disconnected")
	}
}

func (h *Hub) encodeStatus(s control.Status) ([]byte, error) {
	return json.Marshal(Message{Type: MessageStatus, BootID: h.bootID, Status: &s})
}

// Broadcast queues s for every viewer. It never blocks; a viewer whose
// queue is full misses this message.
func (h *Hub) Broadcast(s control.Status) {
	data, err := h.encodeStatus(s)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Hub.Broadcast",
			"error":    err.Error(),
		}).Error("Failed to encode status")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = &s
	for _, v := range h.viewers {
		select {
		case v.send <- data:
		default:
			h.dropped++
			logrus.WithFields(logrus.Fields{
				"function":  "Hub.Broadcast",
				"viewer_id": v.id,
				"cycle":     s.Cycle,
			}).Warn("Dropping status for slow viewer")
		}
	}
}

func (h *Hub) serveStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	var last *control.Status
	if h.last != nil {
		s := *h.last
		last = &s
	}
	h.mu.Unlock()

	if last == nil {
		http.Error(w, "no status yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Message{Type: MessageStatus, BootID: h.bootID, Status: last})
}

// Serve listens on addr and serves Handler until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"function": "Hub.Serve",
		"addr":     listener.Addr().String(),
		"boot_id":  h.bootID,
	}).Info("Diagnostic server listening")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.Close()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close disconnects all viewers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	viewers := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.viewers = make(map[string]*viewer)
	h.mu.Unlock()

	for _, v := range viewers {
		v.close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "Hub.Close",
		"viewers":  len(viewers),
	}).Info("Diagnostic hub closed")
}
