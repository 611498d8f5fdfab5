package push

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	mrand "math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"nhooyr.io/websocket"

	"pulse-chat/go-client/internal/app"
	"pulse-chat/go-client/pkg/models"
)

// ErrNotConnected is returned when an outbound broadcast is attempted with no
// live connection. The synchronizer treats broadcast failures as non-fatal,
// so a dropped connection never blocks a send.
var ErrNotConnected = errors.New("push: not connected")

// Options configures the socket. URL is required; everything else has a
// working default.
type Options struct {
	URL                  string
	Token                string
	Logger               *slog.Logger
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	HeartbeatInterval    time.Duration
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.MaxReconnectAttempts == 0 {
		o.MaxReconnectAttempts = 10
	}
	if o.ReconnectBaseDelay == 0 {
		o.ReconnectBaseDelay = time.Second
	}
	if o.ReconnectMaxDelay == 0 {
		o.ReconnectMaxDelay = 30 * time.Second
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = 25 * time.Second
	}
}

// Socket is a websocket-backed push channel. It reconnects with jittered
// exponential backoff and drops its own echoed broadcasts by session id.
type Socket struct {
	opts    Options
	logger  *slog.Logger
	session string
	recon   *reconnector

	mu      sync.Mutex
	conn    *websocket.Conn
	handler func(app.InboundEvent)
	closed  bool
	cancel  context.CancelFunc
}

func NewSocket(opts Options) *Socket {
	opts.defaults()
	return &Socket{
		opts:    opts,
		logger:  opts.Logger,
		session: newSessionID(),
		recon:   newReconnector(opts),
	}
}

// newSessionID returns a short random id identifying this connection's
// origin on the relay.
func newSessionID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base58.Encode(buf)
}

// Connect dials the relay and starts the read and heartbeat loops. The
// context governs the connection's whole lifetime.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.closed = false
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()
	s.recon.markConnected()

	go s.readLoop(loopCtx)
	go s.heartbeatLoop(loopCtx)
	return nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("push: parse url: %w", err)
	}
	q := u.Query()
	if s.opts.Token != "" {
		q.Set("token", s.opts.Token)
	}
	q.Set("session", s.session)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("push: dial: %w", err)
	}
	return conn, nil
}

// Close shuts the connection down and suppresses reconnection.
func (s *Socket) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client shutdown")
	}
	return nil
}

// Subscribe registers the inbound event handler. Only one handler is live at
// a time; subscribing again replaces it.
func (s *Socket) Subscribe(handler func(app.InboundEvent)) (func(), error) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if s.handler != nil {
			s.handler = nil
		}
		s.mu.Unlock()
	}, nil
}

// BroadcastNewMessage announces a persisted message to the recipient.
func (s *Socket) BroadcastNewMessage(ctx context.Context, msg models.Message, recipientID string, sender *models.User) error {
	return s.send(ctx, eventNewMessage, newMessagePayload{
		Message:     msg,
		RecipientID: recipientID,
		Sender:      sender,
	})
}

// BroadcastReadReceipts announces a batch of messages that became read here.
func (s *Socket) BroadcastReadReceipts(ctx context.Context, messages []models.Message, conversationID string) error {
	return s.send(ctx, eventReadMessages, readMessagesPayload{
		Messages:       messages,
		ConversationID: conversationID,
	})
}

func (s *Socket) send(ctx context.Context, eventType string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("push: marshal %s: %w", eventType, err)
	}
	data, err := json.Marshal(envelope{Type: eventType, Origin: s.session, Payload: raw})
	if err != nil {
		return fmt.Errorf("push: marshal envelope: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("push: write %s: %w", eventType, err)
	}
	return nil
}

func (s *Socket) readLoop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			if closed || ctx.Err() != nil {
				return
			}
			s.logger.Warn("push connection lost", "error", err)
			if s.opts.AutoReconnect {
				s.reconnect(ctx)
			}
			return
		}
		s.dispatch(data)
	}
}

func (s *Socket) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("push envelope unreadable", "error", err)
		return
	}
	if env.Origin != "" && env.Origin == s.session {
		return
	}

	ev, err := decodeEvent(env)
	if err != nil {
		s.logger.Warn("push event dropped", "type", env.Type, "error", err)
		return
	}
	if ev == nil {
		s.logger.Debug("push event ignored", "type", env.Type)
		return
	}

	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (s *Socket) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				return
			}
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}

func (s *Socket) reconnect(ctx context.Context) {
	for s.recon.shouldReconnect() {
		delay := s.recon.nextDelay()
		s.logger.Info("push reconnecting", "attempt", s.recon.attempt, "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}

		err := s.Connect(ctx)
		if err == nil {
			return
		}
		s.logger.Warn("push reconnect failed", "attempt", s.recon.attempt, "error", err)
	}
	s.logger.Error("push reconnect attempts exhausted")
}

// reconnector tracks backoff state across connection losses. A connection
// that stayed up for a minute resets the attempt count.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(opts Options) *reconnector {
	return &reconnector{
		baseDelay:   opts.ReconnectBaseDelay,
		maxDelay:    opts.ReconnectMaxDelay,
		maxAttempts: opts.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts < 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > time.Minute {
		r.attempt = 0
	}
	jitter := time.Duration(mrand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}
