package livesync

import (
	"context"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}

// --- fake clock ---

type fakeTimer struct {
	ch chan time.Time
}

func (f fakeTimer) C() <-chan time.Time { return f.ch }
func (f fakeTimer) Stop() bool          { return true }

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.timers = append(c.timers, ch)
	return fakeTimer{ch: ch}
}

// fire triggers the oldest pending timer, waiting for one to be created if
// necessary.
func (c *fakeClock) fire(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.timers) > 0 {
			ch := c.timers[0]
			c.timers = c.timers[1:]
			now := c.now
			c.mu.Unlock()
			ch <- now
			return
		}
		c.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no timer to fire")
}

func (c *fakeClock) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// --- fake metrics ---

type fakeMetrics struct {
	mu     sync.Mutex
	polls  []string // topic:outcome
	errors []string
	states []int
}

func (m *fakeMetrics) RecordChannelState(topic string, state int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *fakeMetrics) RecordPoll(topic, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls = append(m.polls, outcome)
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func (m *fakeMetrics) RecordLastPrice(symbol string, price float64)   {}
func (m *fakeMetrics) RecordStaleness(symbol string, seconds float64) {}
func (m *fakeMetrics) RecordLatency(op string, seconds float64)       {}

func (m *fakeMetrics) pollOutcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.polls))
	copy(out, m.polls)
	return out
}

// --- fake fetcher ---

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	payload *models.TopicPayload
	err     error
	gate    chan struct{} // when non-nil, Fetch blocks until closed
}

func (f *fakeFetcher) Fetch(ctx context.Context, topic string, vars map[string]interface{}) (*models.TopicPayload, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	payload, err := f.payload, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return payload, err
}

func (f *fakeFetcher) set(p *models.TopicPayload, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payload, f.err = p, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- fake stream source ---

type fakeStream struct {
	payloads chan *models.TopicPayload

	mu      sync.Mutex
	started bool
	closed  bool
	onState func(ChannelState)
	state   ChannelState
}

func newFakeStream() *fakeStream {
	return &fakeStream{payloads: make(chan *models.TopicPayload, 16), state: StateConnecting}
}

func (f *fakeStream) Start(ctx context.Context) {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
}

func (f *fakeStream) Payloads() <-chan *models.TopicPayload { return f.payloads }

func (f *fakeStream) State() ChannelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// setState drives the channel state as a real stream would.
func (f *fakeStream) setState(s ChannelState) {
	f.mu.Lock()
	f.state = s
	onState := f.onState
	f.mu.Unlock()
	if onState != nil {
		onState(s)
	}
}

func quotesPayload(symbol string) *models.TopicPayload {
	return &models.TopicPayload{Quotes: map[string]models.Quote{symbol: {Symbol: symbol}}}
}
