// Package realtime keeps a WebSocket connection to the notification channel
// open and delivers incoming notification frames to a handler.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/taskdeck-dev/taskdeck/internal/tokenstore"
)

const (
	// TypeNotification is the frame type carrying a notification
	TypeNotification = "notification"
	// TypeMarkRead is the client frame marking a notification as read
	TypeMarkRead = "mark_read"

	DefaultMaxReconnects  = 5
	DefaultReconnectDelay = 3 * time.Second

	maxReadBytes = 1 << 20
	writeTimeout = 10 * time.Second
)

var (
	ErrNoAccessToken = errors.New("cannot connect to notifications: no access token")
	ErrNotConnected  = errors.New("notification channel is not connected")
	ErrGaveUp        = errors.New("max reconnect attempts reached")
)

// Message is one frame received from the server
type Message struct {
	Type         string          `json:"type"`
	Notification json.RawMessage `json:"notification,omitempty"`
}

// DecodeNotification unmarshals the notification payload into v
func (m Message) DecodeNotification(v any) error {
	if len(m.Notification) == 0 {
		return fmt.Errorf("%s frame has no notification payload", m.Type)
	}
	return json.Unmarshal(m.Notification, v)
}

// MarkRead is the frame sent to mark a notification as read
type MarkRead struct {
	Type           string `json:"type"`
	NotificationID int64  `json:"notification_id"`
}

// NewMarkRead builds a mark_read frame
func NewMarkRead(id int64) MarkRead {
	return MarkRead{Type: TypeMarkRead, NotificationID: id}
}

// Handler receives notification frames
type Handler func(Message)

// Option configures a Listener
type Option func(*Listener)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithReconnect overrides the reconnect policy
func WithReconnect(maxAttempts int, delay time.Duration) Option {
	return func(l *Listener) {
		l.maxReconnects = maxAttempts
		l.reconnectDelay = delay
	}
}

// Listener maintains the notification channel connection
type Listener struct {
	url            string
	store          tokenstore.Store
	handler        Handler
	logger         zerolog.Logger
	maxReconnects  int
	reconnectDelay time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed bool
}

// New creates a listener for wsURL that authenticates with the stored access token
func New(wsURL string, store tokenstore.Store, handler Handler, opts ...Option) *Listener {
	l := &Listener{
		url:            wsURL,
		store:          store,
		handler:        handler,
		logger:         zerolog.Nop(),
		maxReconnects:  DefaultMaxReconnects,
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run connects and reads until the server closes normally, Close is called or
// ctx is done. Abnormal disconnects are retried up to the configured number of
// attempts; a successful connect resets the count.
func (l *Listener) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.cancel = cancel
	l.mu.Unlock()

	attempts := 0
	for {
		err := l.session(ctx, &attempts)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrNoAccessToken):
			return err
		case l.isClosed():
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}

		if attempts >= l.maxReconnects {
			l.logger.Error().Err(err).Int("attempts", attempts).Msg("Giving up on notification channel")
			return fmt.Errorf("%w: %w", ErrGaveUp, err)
		}
		attempts++
		l.logger.Info().Err(err).Int("attempt", attempts).Msg("Notification channel reconnecting")

		select {
		case <-ctx.Done():
			if l.isClosed() {
				return nil
			}
			return ctx.Err()
		case <-time.After(l.reconnectDelay):
		}
	}
}

// session dials once and reads until the connection ends. A nil return means
// the server closed normally.
func (l *Listener) session(ctx context.Context, attempts *int) error {
	target, err := l.dialURL()
	if err != nil {
		return err
	}

	conn, resp, err := websocket.Dial(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	conn.SetReadLimit(maxReadBytes)

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	*attempts = 0
	l.logger.Debug().Msg("Notification channel connected")

	defer func() {
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
		_ = conn.CloseNow()
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				l.logger.Debug().Msg("Notification channel closed")
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			l.logger.Warn().Err(err).Msg("Ignoring malformed notification frame")
			continue
		}
		if msg.Type != TypeNotification {
			l.logger.Debug().Str("type", msg.Type).Msg("Ignoring frame")
			continue
		}
		if l.handler != nil {
			l.handler(msg)
		}
	}
}

func (l *Listener) dialURL() (string, error) {
	access, err := l.store.AccessToken()
	if err != nil {
		return "", fmt.Errorf("failed to load access token: %w", err)
	}
	if access == "" {
		return "", ErrNoAccessToken
	}

	u, err := url.Parse(l.url)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("token", access)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send writes v as a JSON text frame
func (l *Listener) Send(ctx context.Context, v any) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Connected reports whether a connection is currently open
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Close disconnects with a normal closure and stops Run
func (l *Listener) Close() error {
	l.mu.Lock()
	l.closed = true
	conn := l.conn
	cancel := l.cancel
	l.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "Disconnecting manually")
	}
	if cancel != nil {
		cancel()
	}
	return err
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
