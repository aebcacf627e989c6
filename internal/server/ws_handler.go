package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/taskdeck-dev/taskdeck/internal/models"
	"github.com/taskdeck-dev/taskdeck/internal/realtime"
)

const (
	wsSendBuffer   = 16
	wsWriteTimeout = 10 * time.Second
)

type notificationFrame struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification"`
}

type wsClient struct {
	userID uint
	conn   *websocket.Conn
	send   chan []byte
}

// hub tracks open notification sockets per user
type hub struct {
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[uint]map[*wsClient]struct{}
}

func newHub(logger zerolog.Logger) *hub {
	return &hub{
		logger:  logger,
		clients: make(map[uint]map[*wsClient]struct{}),
	}
}

func (h *hub) add(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
	wsConnections.Inc()
}

func (h *hub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[client.userID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	wsConnections.Dec()
}

// push queues a notification frame for every socket of its recipient. Slow
// clients that have a full buffer miss the frame.
func (h *hub) push(n *models.Notification) {
	data, err := json.Marshal(notificationFrame{Type: realtime.TypeNotification, Notification: n})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode notification frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[n.RecipientID] {
		select {
		case client.send <- data:
			notificationsPushedTotal.Inc()
		default:
			h.logger.Warn().Uint("user_id", n.RecipientID).Msg("Dropping notification for slow websocket client")
		}
	}
}

// closeAll disconnects every client
func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*wsClient
	for _, set := range h.clients {
		for client := range set {
			all = append(all, client)
		}
	}
	h.mu.Unlock()

	for _, client := range all {
		client.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// originPatterns turns the CORS origins into host patterns for the websocket handshake
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

// notificationSocket upgrades to a websocket authenticated by the token query parameter
func (s *Server) notificationSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respondWithError(c, s.logger, http.StatusUnauthorized, ErrEmptyToken, "Missing token")
		return
	}

	user, err := authenticate(s.issuer, s.db, token)
	if err != nil {
		respondWithError(c, s.logger, http.StatusUnauthorized, err, "Invalid or expired token")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.config.CORSOrigins),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket handshake failed")
		return
	}
	conn.SetReadLimit(1 << 16)

	client := &wsClient{
		userID: user.ID,
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
	}
	s.hub.add(client)
	s.logger.Info().Uint("user_id", user.ID).Msg("Notification socket connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go s.writeLoop(ctx, client)
	s.readLoop(ctx, client)

	s.hub.remove(client)
	conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Info().Uint("user_id", user.ID).Msg("Notification socket disconnected")
}

func (s *Server) writeLoop(ctx context.Context, client *wsClient) {
	for data := range client.send {
		writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err := client.conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Uint("user_id", client.userID).Msg("Websocket write failed")
			client.conn.CloseNow()
			return
		}
	}
}

// readLoop handles client frames until the socket closes
func (s *Server) readLoop(ctx context.Context, client *wsClient) {
	for {
		var frame realtime.MarkRead
		if err := wsjson.Read(ctx, client.conn, &frame); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				s.logger.Debug().Err(err).Uint("user_id", client.userID).Msg("Websocket read failed")
			}
			return
		}

		switch frame.Type {
		case realtime.TypeMarkRead:
			if frame.NotificationID <= 0 {
				continue
			}
			if err := s.markRead(client.userID, uint(frame.NotificationID)); err != nil {
				s.logger.Warn().Err(err).Int64("notification_id", frame.NotificationID).Msg("Failed to mark notification read")
			}
		default:
			s.logger.Debug().Str("type", frame.Type).Msg("Ignoring websocket frame")
		}
	}
}
