// Package devserver is an in-memory backend implementing the REST and
// WebSocket endpoints the client consumes. It backs `notifyctl devserver`
// and the end-to-end tests.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	gosync "sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nhle/notifycore/internal/model"
)

// DefaultVAPIDKey is the web push public key served until rotated.
const DefaultVAPIDKey = "BDevServerVapidPublicKey0000000000000000000000000000000000000000000000000000000000000"

// Config configures a Server.
type Config struct {
	// Secret signs and verifies session tokens.
	Secret   []byte
	VAPIDKey string
	Logger   *slog.Logger
}

// registration is a stored push registration.
type registration struct {
	model.Subscription
	UserID   string
	Endpoint string
	Token    string
	DeviceID string
}

// Server holds the in-memory backend state.
type Server struct {
	router  *gin.Engine
	handler http.Handler
	secret  []byte
	logger  *slog.Logger
	hub     *hub

	mu            gosync.Mutex
	messages      []model.Message
	notifications []model.SystemNotification
	registrations []registration
	vapidKey      string
}

// New creates a Server with empty state.
func New(cfg Config) (*Server, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("creating dev server: secret is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	key := cfg.VAPIDKey
	if key == "" {
		key = DefaultVAPIDKey
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	s := &Server{
		router:   router,
		secret:   cfg.Secret,
		logger:   logger,
		hub:      newHub(logger),
		vapidKey: key,
	}
	s.setupRoutes()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.Handle("/", router)
	s.handler = mux
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dev server starting", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	}

	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("dev server stopped")
	return nil
}

// IssueToken signs a session token for userID valid for a day.
func (s *Server) IssueToken(userID string) (string, error) {
	return IssueToken(s.secret, userID, 24*time.Hour)
}

// AddMessage stores a direct message and pushes NEW_MESSAGE to the
// receiver. Missing id and timestamp are filled in.
func (s *Server) AddMessage(m model.Message) model.Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()

	s.Publish(m.ReceiverID, map[string]any{
		"type": "NEW_MESSAGE",
		"message": map[string]any{
			"id":       m.ID,
			"senderId": m.SenderID,
			"content":  m.Content,
		},
	})
	return m
}

// AddNotification stores a system notification and pushes NOTIFICATION
// to its user.
func (s *Server) AddNotification(n model.SystemNotification) model.SystemNotification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.notifications = append(s.notifications, n)
	s.mu.Unlock()

	s.Publish(n.UserID, map[string]any{
		"type":         "NOTIFICATION",
		"notification": n,
	})
	return n
}

// RotateVAPIDKey replaces the web push key and drops every web
// registration, as a real key rotation invalidates them.
func (s *Server) RotateVAPIDKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vapidKey = key
	kept := s.registrations[:0]
	for _, r := range s.registrations {
		if r.Platform != model.PlatformWeb {
			kept = append(kept, r)
		}
	}
	s.registrations = kept
}

// Publish sends frame as JSON to every open connection of userID and
// returns the number of connections reached.
func (s *Server) Publish(userID string, frame any) int {
	return s.hub.publish(userID, frame)
}

// DropConnections closes every open connection of userID.
func (s *Server) DropConnections(userID string) {
	s.hub.drop(userID)
}

// Connections returns the number of open connections of userID.
func (s *Server) Connections(userID string) int {
	return s.hub.count(userID)
}
