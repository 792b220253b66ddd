package livesync

import (
	"context"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"
)

// Source identifies which channel produced an update.
type Source int

const (
	SourceStream Source = iota
	SourcePoll
)

func (s Source) String() string {
	if s == SourceStream {
		return "stream"
	}
	return "poll"
}

// Update is one merged, display-ready value for a topic. Payload is treated
// as immutable by all consumers.
type Update struct {
	Topic   string
	Payload *models.TopicPayload
	Source  Source
	Seq     uint64
	At      time.Time
}

// ChannelFactory builds the stream source for a topic when the first
// subscriber attaches. onState receives every channel state transition.
type ChannelFactory func(topic string, onState func(ChannelState)) StreamSource

// Supervisor presents one consistent, continuously-updated value per topic.
// While the stream channel is Open, streamed messages are authoritative.
// Otherwise it polls the snapshot fetcher on a fixed interval. The channel
// and poll timer exist only while at least one subscriber is attached.
type Supervisor struct {
	topic        string
	fetcher      Fetcher
	newChannel   ChannelFactory
	pollInterval time.Duration
	clock        Clock
	logger       *logger.Logger
	metrics      repository.Metrics

	mu        sync.Mutex
	subs      map[int]chan Update
	nextSubID int
	seq       uint64
	current   *Update
	chanState ChannelState
	channel   StreamSource
	cancel    context.CancelFunc
	alive     bool
}

// SupervisorOption configures Supervisor.
type SupervisorOption func(*Supervisor)

// WithPollInterval sets the fallback polling cadence.
func WithPollInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithClock overrides the clock.
func WithClock(c Clock) SupervisorOption {
	return func(s *Supervisor) { s.clock = c }
}

// NewSupervisor creates a supervisor for one topic. Nothing runs until the
// first Subscribe call.
func NewSupervisor(topic string, fetcher Fetcher, factory ChannelFactory, l *logger.Logger, m repository.Metrics, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		topic:        topic,
		fetcher:      fetcher,
		newChannel:   factory,
		pollInterval: 30 * time.Second,
		clock:        RealClock(),
		logger:       l,
		metrics:      m,
		subs:         make(map[int]chan Update),
		chanState:    StateConnecting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Topic returns the topic this supervisor owns.
func (s *Supervisor) Topic() string { return s.topic }

// Current returns the last merged value, or nil if none was received yet.
// "Never received any valid value" is the only empty state consumers see.
func (s *Supervisor) Current() *Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ChannelState returns the state of the underlying stream channel.
func (s *Supervisor) ChannelState() ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chanState
}

// Subscribe attaches a consumer. The first subscriber acquires the stream
// channel and poll timer; an immediate poll is issued so the view is never
// empty while the handshake completes. The returned cancel function detaches
// the consumer; when the last one detaches, channel and timer are torn down.
func (s *Supervisor) Subscribe() (<-chan Update, func()) {
	s.mu.Lock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Update, 16)
	s.subs[id] = ch

	if s.current != nil {
		ch <- *s.current
	}

	first := len(s.subs) == 1
	if first {
		s.acquireLocked()
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { s.unsubscribe(id) })
	}
	return ch, cancel
}

// acquireLocked starts the stream channel and the poll loop. Caller holds mu.
func (s *Supervisor) acquireLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.alive = true
	s.chanState = StateConnecting

	s.channel = s.newChannel(s.topic, s.onChannelState)
	s.channel.Start(ctx)

	go s.consumeStream(ctx, s.channel)
	go s.pollLoop(ctx)
	go s.poll(ctx) // immediate poll on attach
}

func (s *Supervisor) unsubscribe(id int) {
	s.mu.Lock()
	delete(s.subs, id)
	last := len(s.subs) == 0 && s.alive
	var channel StreamSource
	var cancel context.CancelFunc
	if last {
		s.alive = false
		channel = s.channel
		cancel = s.cancel
		s.channel = nil
		s.cancel = nil
	}
	s.mu.Unlock()

	if !last {
		return
	}
	// Scoped release: stop timers first, then close the transport. Anything
	// already in flight completes but its result is discarded via the alive
	// flag.
	cancel()
	if channel != nil {
		_ = channel.Close()
	}
	s.logger.Info("topic released", logger.String("topic", s.topic))
}

func (s *Supervisor) onChannelState(state ChannelState) {
	s.mu.Lock()
	s.chanState = state
	s.mu.Unlock()
}

func (s *Supervisor) consumeStream(ctx context.Context, channel StreamSource) {
	payloads := channel.Payloads()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-payloads:
			if !ok {
				return
			}
			if p == nil {
				continue
			}
			s.apply(p, SourceStream)
		}
	}
}

func (s *Supervisor) pollLoop(ctx context.Context) {
	for {
		t := s.clock.NewTimer(s.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C():
		}

		s.mu.Lock()
		streaming := s.chanState.Streaming()
		s.mu.Unlock()
		if streaming {
			// Stream is authoritative; no poll this cycle.
			continue
		}
		s.poll(ctx)
	}
}

// poll issues one snapshot fetch and applies the result unless it raced with
// a fresher update.
func (s *Supervisor) poll(ctx context.Context) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	issuedAt := s.seq
	s.mu.Unlock()

	payload, err := s.fetcher.Fetch(ctx, s.topic, nil)
	if err != nil {
		// Last good value stays on display; this cycle just had no update.
		if ctx.Err() == nil {
			s.logger.Warn("poll failed", logger.String("topic", s.topic), logger.Error(err))
		}
		s.metrics.RecordPoll(s.topic, "error")
		return
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	if s.seq != issuedAt {
		// Something fresher was applied while this poll was in flight.
		s.mu.Unlock()
		s.metrics.RecordPoll(s.topic, "stale")
		s.logger.Debug("poll discarded", logger.String("topic", s.topic), logger.Error(ErrStaleData))
		return
	}
	s.applyLocked(payload, SourcePoll)
	s.mu.Unlock()
	s.metrics.RecordPoll(s.topic, "ok")
}

func (s *Supervisor) apply(payload *models.TopicPayload, src Source) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.applyLocked(payload, src)
	s.mu.Unlock()
}

// applyLocked advances the sequence counter and fans the update out.
// Caller holds mu.
func (s *Supervisor) applyLocked(payload *models.TopicPayload, src Source) {
	s.seq++
	u := Update{
		Topic:   s.topic,
		Payload: payload,
		Source:  src,
		Seq:     s.seq,
		At:      s.clock.Now(),
	}
	s.current = &u

	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
			// Slow consumer: drop rather than block the merge path.
		}
	}
}
