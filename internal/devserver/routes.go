package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nhle/notifycore/internal/model"
)

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.GET("/api/push/vapid-public-key", s.handleVAPIDKey)

	api := s.router.Group("/api")
	api.Use(jwtAuth(s.secret))
	{
		api.GET("/messages/:userId", s.handleListMessages)
		api.PATCH("/messages/:id/read", s.handleMarkMessageRead)

		api.GET("/notifications", s.handleListNotifications)
		api.POST("/notifications/read-all", s.handleMarkAllRead)
		api.POST("/notifications/:id/read", s.handleMarkNotificationRead)

		push := api.Group("/push")
		push.GET("/subscriptions", s.handleListSubscriptions)
		push.POST("/subscribe", s.handleSubscribeWeb)
		push.POST("/register-native", s.handleRegisterNative)
		push.POST("/unregister", s.handleUnregister)
	}

	dev := s.router.Group("/dev")
	{
		dev.POST("/token", s.handleIssueToken)
		dev.POST("/messages", s.handleCreateMessage)
		dev.POST("/notifications", s.handleCreateNotification)
		dev.POST("/vapid-key", s.handleRotateKey)
	}
}

// handleWebSocket accepts /ws?userId=. A bearer token, when sent, must
// belong to the same user. It is mounted beside the gin engine rather
// than on it: the upgrade needs a writer nothing has written to yet.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("userId")
	status := http.StatusSwitchingProtocols
	defer func() {
		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
		)
	}()

	if uid == "" {
		status = http.StatusBadRequest
		writeJSONError(w, status, "userId is required")
		return
	}
	if header := r.Header.Get("Authorization"); header != "" {
		tokenUser, err := parseBearer(s.secret, header)
		if err != nil {
			status = http.StatusUnauthorized
			writeJSONError(w, status, err.Error())
			return
		}
		if tokenUser != uid {
			status = http.StatusForbidden
			writeJSONError(w, status, "token does not match userId")
			return
		}
	}
	s.hub.serve(w, r, uid)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(gin.H{"error": msg})
}

func (s *Server) handleVAPIDKey(c *gin.Context) {
	s.mu.Lock()
	key := s.vapidKey
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"publicKey": key})
}

func (s *Server) handleListMessages(c *gin.Context) {
	uid := c.Param("userId")
	if uid != userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot read another user's messages"})
		return
	}

	s.mu.Lock()
	out := make([]model.Message, 0)
	for _, m := range s.messages {
		if m.SenderID == uid || m.ReceiverID == uid {
			out = append(out, m)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b model.Message) int { return b.CreatedAt.Compare(a.CreatedAt) })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleMarkMessageRead(c *gin.Context) {
	id, uid := c.Param("id"), userID(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id && s.messages[i].ReceiverID == uid {
			s.messages[i].IsRead = true
			c.JSON(http.StatusOK, s.messages[i])
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
}

func (s *Server) handleListNotifications(c *gin.Context) {
	uid := userID(c)

	s.mu.Lock()
	out := make([]model.SystemNotification, 0)
	for _, n := range s.notifications {
		if n.UserID == uid {
			out = append(out, n)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b model.SystemNotification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	id, uid := c.Param("id"), userID(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == uid {
			s.notifications[i].IsRead = true
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	uid := userID(c)

	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].UserID == uid {
			s.notifications[i].IsRead = true
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleListSubscriptions(c *gin.Context) {
	uid := userID(c)

	s.mu.Lock()
	out := make([]model.Subscription, 0)
	for _, r := range s.registrations {
		if r.UserID == uid {
			out = append(out, r.Subscription)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

type webSubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

func (s *Server) handleSubscribeWeb(c *gin.Context) {
	var req webSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription: " + err.Error()})
		return
	}
	s.upsertRegistration(registration{
		Subscription: model.Subscription{Platform: model.PlatformWeb},
		UserID:       userID(c),
		Endpoint:     req.Endpoint,
	})
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

type nativeRegisterRequest struct {
	Token      string `json:"token" binding:"required"`
	Platform   string `json:"platform" binding:"required,oneof=ios android"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

func (s *Server) handleRegisterNative(c *gin.Context) {
	var req nativeRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration: " + err.Error()})
		return
	}
	s.upsertRegistration(registration{
		Subscription: model.Subscription{
			Platform:   model.Platform(req.Platform),
			DeviceName: req.DeviceName,
		},
		UserID:   userID(c),
		Token:    req.Token,
		DeviceID: req.DeviceID,
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type unregisterRequest struct {
	Token    string `json:"token" binding:"required_without=Endpoint"`
	Endpoint string `json:"endpoint" binding:"required_without=Token"`
}

func (s *Server) handleUnregister(c *gin.Context) {
	var req unregisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token or endpoint is required"})
		return
	}
	uid := userID(c)

	s.mu.Lock()
	before := len(s.registrations)
	s.registrations = slices.DeleteFunc(s.registrations, func(r registration) bool {
		if r.UserID != uid {
			return false
		}
		return (req.Token != "" && r.Token == req.Token) || (req.Endpoint != "" && r.Endpoint == req.Endpoint)
	})
	removed := len(s.registrations) < before
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": removed})
}

// upsertRegistration replaces a registration with the same token,
// endpoint or device id.
func (s *Server) upsertRegistration(r registration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.NewString()
	r.EndpointFingerprint = r.Endpoint
	if r.Token != "" {
		r.EndpointFingerprint = r.Token
	}
	r.RegisteredAt = time.Now().UTC()

	for i, existing := range s.registrations {
		same := (r.Token != "" && existing.Token == r.Token) ||
			(r.Endpoint != "" && existing.Endpoint == r.Endpoint) ||
			(r.DeviceID != "" && existing.DeviceID == r.DeviceID)
		if same {
			r.ID = existing.ID
			s.registrations[i] = r
			return
		}
	}
	s.registrations = append(s.registrations, r)
}

type tokenRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (s *Server) handleIssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	token, err := s.IssueToken(req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type createMessageRequest struct {
	SenderID   string `json:"senderId" binding:"required"`
	ReceiverID string `json:"receiverId" binding:"required"`
	Content    string `json:"content" binding:"required"`
	ListingID  string `json:"listingId"`
}

func (s *Server) handleCreateMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m := s.AddMessage(model.Message{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		ListingID:  req.ListingID,
	})
	c.JSON(http.StatusCreated, m)
}

type createNotificationRequest struct {
	UserID    string `json:"userId" binding:"required"`
	Type      string `json:"type" binding:"required"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	LinkURL   string `json:"linkUrl"`
	RelatedID string `json:"relatedId"`
}

func (s *Server) handleCreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n := s.AddNotification(model.SystemNotification{
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		LinkURL:   req.LinkURL,
		RelatedID: req.RelatedID,
	})
	c.JSON(http.StatusCreated, n)
}

type rotateKeyRequest struct {
	PublicKey string `json:"publicKey" binding:"required"`
}

func (s *Server) handleRotateKey(c *gin.Context) {
	var req rotateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "publicKey is required"})
		return
	}
	s.RotateVAPIDKey(req.PublicKey)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
