package devserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	gosync "sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// hub tracks open WebSocket connections per user.
type hub struct {
	logger *slog.Logger

	mu    gosync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

func newHub(logger *slog.Logger) *hub {
	return &hub{logger: logger, conns: make(map[string]map[*websocket.Conn]struct{})}
}

// serve accepts a connection and holds it until the client leaves.
// Inbound frames are read and discarded.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger.Warn("websocket accept failed", slog.Any("error", err))
		return
	}
	defer conn.CloseNow()

	h.add(userID, conn)
	defer h.remove(userID, conn)
	h.logger.Info("websocket connected", slog.String("user_id", userID))

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			h.logger.Info("websocket closed", slog.String("user_id", userID), slog.Any("error", err))
			return
		}
	}
}

func (h *hub) add(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][c] = struct{}{}
}

func (h *hub) remove(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], c)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

func (h *hub) snapshot(userID string) []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*websocket.Conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		out = append(out, c)
	}
	return out
}

func (h *hub) count(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID])
}

func (h *hub) publish(userID string, frame any) int {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("encoding frame", slog.Any("error", err))
		return 0
	}

	sent := 0
	for _, c := range h.snapshot(userID) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.logger.Warn("websocket write failed", slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent
}

func (h *hub) drop(userID string) {
	for _, c := range h.snapshot(userID) {
		c.Close(websocket.StatusGoingAway, "dropped")
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*websocket.Conn
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		c.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
