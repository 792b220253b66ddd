package livesync

import (
	"context"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Conn is one established push-channel connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer establishes push-channel connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct{}

// WebSocketDialer returns a Dialer backed by gorilla/websocket.
func WebSocketDialer() Dialer { return wsDialer{} }

func (wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &TransportError{Op: "dial " + url, Err: err}
	}
	return wsConn{conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, b, err := c.conn.ReadMessage()
	return b, err
}

func (c wsConn) Close() error { return c.conn.Close() }

// StreamSource is what a supervisor needs from its push channel.
type StreamSource interface {
	Start(ctx context.Context)
	Payloads() <-chan *models.TopicPayload
	State() ChannelState
	Close() error
}

// StreamChannel owns one push connection for one topic. It decodes envelopes,
// tracks connection state, and reconnects itself after any loss not initiated
// by its owner. Reconnection retries indefinitely at a fixed delay.
type StreamChannel struct {
	topic          string
	url            string
	dialer         Dialer
	clock          Clock
	reconnectDelay time.Duration
	logger         *logger.Logger
	metrics        repository.Metrics
	onState        func(ChannelState)

	mu     sync.Mutex
	state  ChannelState
	conn   Conn
	closed bool

	payloads chan *models.TopicPayload
	done     chan struct{}
}

// StreamOption configures StreamChannel.
type StreamOption func(*StreamChannel)

// WithDialer overrides the transport dialer.
func WithDialer(d Dialer) StreamOption {
	return func(s *StreamChannel) { s.dialer = d }
}

// WithStreamClock overrides the clock.
func WithStreamClock(c Clock) StreamOption {
	return func(s *StreamChannel) { s.clock = c }
}

// WithReconnectDelay sets the fixed delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) StreamOption {
	return func(s *StreamChannel) {
		if d > 0 {
			s.reconnectDelay = d
		}
	}
}

// WithStateListener registers a callback invoked on every state transition.
func WithStateListener(fn func(ChannelState)) StreamOption {
	return func(s *StreamChannel) { s.onState = fn }
}

// NewStreamChannel creates a channel for one topic. Start must be called to
// begin connecting.
func NewStreamChannel(topic, url string, l *logger.Logger, m repository.Metrics, opts ...StreamOption) *StreamChannel {
	s := &StreamChannel{
		topic:          topic,
		url:            url,
		dialer:         wsDialer{},
		clock:          RealClock(),
		reconnectDelay: 3 * time.Second,
		logger:         l,
		metrics:        m,
		state:          StateConnecting,
		payloads:       make(chan *models.TopicPayload, 16),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Payloads delivers decoded messages. Malformed frames are dropped, never
// delivered.
func (s *StreamChannel) Payloads() <-chan *models.TopicPayload {
	return s.payloads
}

// State returns the current channel state.
func (s *StreamChannel) State() ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start runs the connect/read/reconnect loop until Close or ctx cancellation.
func (s *StreamChannel) Start(ctx context.Context) {
	go s.run(ctx)
}

// Close is the owner-initiated teardown. The channel moves to Closed and no
// further reconnect attempt is made.
func (s *StreamChannel) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.setState(StateClosed)
	close(s.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *StreamChannel) run(ctx context.Context) {
	for {
		if s.isClosed() {
			return
		}
		s.setState(StateConnecting)

		conn, err := s.dialer.Dial(ctx, s.url)
		if err != nil {
			if s.isClosed() {
				return
			}
			s.logger.Warn("stream connect failed",
				logger.String("topic", s.topic), logger.Error(err))
			s.metrics.RecordError("stream_connect")
			if !s.waitReconnect(ctx) {
				return
			}
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()

		s.setState(StateOpen)
		s.logger.Info("stream open", logger.String("topic", s.topic))

		if !s.readLoop(ctx, conn) {
			return
		}
		if !s.waitReconnect(ctx) {
			return
		}
	}
}

// readLoop reads until transport failure. Returns false when the owner closed
// the channel, true when a reconnect should follow.
func (s *StreamChannel) readLoop(ctx context.Context, conn Conn) bool {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() || ctx.Err() != nil {
				return false
			}
			// Closure not initiated by the owner
			s.logger.Warn("stream read failed",
				logger.String("topic", s.topic), logger.Error(err))
			s.metrics.RecordError("stream_read")
			_ = conn.Close()
			return true
		}

		payload, derr := models.DecodeEnvelope(raw)
		if derr != nil {
			// Bad frame: stay connected but flag the channel so the
			// supervisor falls back to polling.
			s.logger.Warn("stream frame dropped",
				logger.String("topic", s.topic), logger.Error(&DecodeError{Op: s.topic, Err: derr}))
			s.metrics.RecordError("stream_decode")
			s.setState(StateDegraded)
			continue
		}

		// A valid frame restores Open from Degraded
		s.setState(StateOpen)

		select {
		case s.payloads <- payload:
		case <-s.done:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// waitReconnect sits out the fixed delay in Reconnecting state. Returns false
// when the owner closed the channel meanwhile.
func (s *StreamChannel) waitReconnect(ctx context.Context) bool {
	s.setState(StateReconnecting)
	t := s.clock.NewTimer(s.reconnectDelay)
	defer t.Stop()
	select {
	case <-t.C():
		return !s.isClosed()
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *StreamChannel) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *StreamChannel) setState(next ChannelState) {
	s.mu.Lock()
	if s.closed && next != StateClosed {
		s.mu.Unlock()
		return
	}
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	onState := s.onState
	s.mu.Unlock()

	s.metrics.RecordChannelState(s.topic, int(next))
	if onState != nil {
		onState(next)
	}
}
