package livesync

import (
	"errors"
	"testing"
	"time"
)

func newTestSupervisor(t *testing.T, fetcher Fetcher, clock Clock) (*Supervisor, *fakeStream, *fakeMetrics) {
	t.Helper()
	stream := newFakeStream()
	metrics := &fakeMetrics{}
	factory := func(topic string, onState func(ChannelState)) StreamSource {
		stream.mu.Lock()
		stream.onState = onState
		stream.mu.Unlock()
		return stream
	}
	s := NewSupervisor(TopicLivePrices, fetcher, factory, testLogger(t), metrics, WithClock(clock))
	return s, stream, metrics
}

func recvUpdate(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatalf("no update delivered")
		return Update{}
	}
}

func TestSupervisorImmediatePollOnSubscribe(t *testing.T) {
	fetcher := &fakeFetcher{payload: quotesPayload("AAPL")}
	s, stream, _ := newTestSupervisor(t, fetcher, newFakeClock())

	ch, cancel := s.Subscribe()
	defer cancel()

	u := recvUpdate(t, ch)
	if u.Source != SourcePoll {
		t.Fatalf("expected poll update, got %v", u.Source)
	}
	if u.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", u.Seq)
	}
	if u.Payload.Quotes["AAPL"].Symbol != "AAPL" {
		t.Fatalf("unexpected payload %+v", u.Payload)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("expected exactly one immediate poll, got %d", fetcher.callCount())
	}

	eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return stream.started
	}, "stream channel started")
}

func TestSupervisorStreamAuthoritativeWhileOpen(t *testing.T) {
	fetcher := &fakeFetcher{payload: quotesPayload("AAPL")}
	clock := newFakeClock()
	s, stream, _ := newTestSupervisor(t, fetcher, clock)

	ch, cancel := s.Subscribe()
	defer cancel()
	recvUpdate(t, ch) // immediate poll

	stream.setState(StateOpen)
	stream.payloads <- quotesPayload("MSFT")

	u := recvUpdate(t, ch)
	if u.Source != SourceStream || u.Payload.Quotes["MSFT"].Symbol != "MSFT" {
		t.Fatalf("expected stream update, got %+v", u)
	}
	if u.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", u.Seq)
	}

	// The poll cycle fires while the stream is Open: no fetch is issued.
	clock.fire(t)
	eventually(t, func() bool { return clock.pendingTimers() >= 1 }, "poll loop re-armed")
	if fetcher.callCount() != 1 {
		t.Fatalf("poll must be skipped while streaming, got %d fetches", fetcher.callCount())
	}
}

func TestSupervisorPollsWhileNotStreaming(t *testing.T) {
	fetcher := &fakeFetcher{payload: quotesPayload("AAPL")}
	clock := newFakeClock()
	s, stream, _ := newTestSupervisor(t, fetcher, clock)

	ch, cancel := s.Subscribe()
	defer cancel()
	recvUpdate(t, ch)

	stream.setState(StateDegraded)
	clock.fire(t)

	u := recvUpdate(t, ch)
	if u.Source != SourcePoll {
		t.Fatalf("expected fallback poll update, got %+v", u)
	}
	if fetcher.callCount() != 2 {
		t.Fatalf("expected 2 fetches, got %d", fetcher.callCount())
	}
}

func TestSupervisorDiscardsStalePoll(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{payload: quotesPayload("AAPL"), gate: gate}
	s, stream, metrics := newTestSupervisor(t, fetcher, newFakeClock())

	ch, cancel := s.Subscribe()
	defer cancel()

	// The immediate poll is now in flight, parked on the gate.
	eventually(t, func() bool { return fetcher.callCount() == 1 }, "poll in flight")

	stream.setState(StateOpen)
	stream.payloads <- quotesPayload("MSFT")
	u := recvUpdate(t, ch)
	if u.Source != SourceStream || u.Seq != 1 {
		t.Fatalf("expected stream update first, got %+v", u)
	}

	// The poll completes after the stream already advanced the sequence; its
	// result must be dropped, not rolled back onto the display.
	close(gate)
	eventually(t, func() bool {
		for _, o := range metrics.pollOutcomes() {
			if o == "stale" {
				return true
			}
		}
		return false
	}, "stale poll recorded")

	select {
	case extra := <-ch:
		t.Fatalf("stale poll must not be delivered, got %+v", extra)
	default:
	}
	cur := s.Current()
	if cur == nil || cur.Source != SourceStream || cur.Payload.Quotes["MSFT"].Symbol != "MSFT" {
		t.Fatalf("current value regressed: %+v", cur)
	}
}

func TestSupervisorPollErrorKeepsLastValue(t *testing.T) {
	fetcher := &fakeFetcher{payload: quotesPayload("AAPL")}
	clock := newFakeClock()
	s, _, metrics := newTestSupervisor(t, fetcher, clock)

	ch, cancel := s.Subscribe()
	defer cancel()
	first := recvUpdate(t, ch)

	fetcher.set(nil, errors.New("backend down"))
	clock.fire(t)

	eventually(t, func() bool {
		for _, o := range metrics.pollOutcomes() {
			if o == "error" {
				return true
			}
		}
		return false
	}, "poll error recorded")

	select {
	case extra := <-ch:
		t.Fatalf("failed poll must not produce an update, got %+v", extra)
	default:
	}
	cur := s.Current()
	if cur == nil || cur.Seq != first.Seq {
		t.Fatalf("last good value lost: %+v", cur)
	}
}

func TestSupervisorScopedAcquireRelease(t *testing.T) {
	fetcher := &fakeFetcher{payload: quotesPayload("AAPL")}
	s, stream, _ := newTestSupervisor(t, fetcher, newFakeClock())

	ch1, cancel1 := s.Subscribe()
	recvUpdate(t, ch1)
	ch2, cancel2 := s.Subscribe()

	// A late subscriber sees the current value immediately.
	u := recvUpdate(t, ch2)
	if u.Payload.Quotes["AAPL"].Symbol != "AAPL" {
		t.Fatalf("late subscriber got %+v", u)
	}

	cancel1()
	if stream.isClosed() {
		t.Fatalf("channel closed while a subscriber remains")
	}

	cancel2()
	eventually(t, stream.isClosed, "channel closed on last unsubscribe")

	// Repeated cancel is a no-op.
	cancel2()

	// Nothing polls after release.
	calls := fetcher.callCount()
	time.Sleep(20 * time.Millisecond)
	if fetcher.callCount() != calls {
		t.Fatalf("poll survived teardown")
	}
}

func TestSupervisorReacquiresAfterRelease(t *testing.T) {
	fetcher := &fakeFetcher{payload: quotesPayload("AAPL")}
	s, stream, _ := newTestSupervisor(t, fetcher, newFakeClock())

	ch, cancel := s.Subscribe()
	recvUpdate(t, ch)
	cancel()
	eventually(t, stream.isClosed, "released")

	calls := fetcher.callCount()
	ch2, cancel2 := s.Subscribe()
	defer cancel2()
	recvUpdate(t, ch2)
	eventually(t, func() bool { return fetcher.callCount() == calls+1 },
		"fresh immediate poll on reacquire")
}

func TestSupervisorCurrentNilBeforeFirstValue(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("backend down")}
	s, _, _ := newTestSupervisor(t, fetcher, newFakeClock())

	if s.Current() != nil {
		t.Fatalf("expected nil before any value")
	}

	ch, cancel := s.Subscribe()
	defer cancel()
	select {
	case u := <-ch:
		t.Fatalf("no valid value exists yet, got %+v", u)
	case <-time.After(20 * time.Millisecond):
	}
	if s.Current() != nil {
		t.Fatalf("failed poll must not populate current")
	}
}

func TestManagerOneSupervisorPerTopic(t *testing.T) {
	fetcher := &fakeFetcher{}
	factory := func(topic string, onState func(ChannelState)) StreamSource { return newFakeStream() }
	m := NewManager(fetcher, factory, testLogger(t), &fakeMetrics{})

	a := m.Topic(TopicLivePrices)
	b := m.Topic(TopicLivePrices)
	if a != b {
		t.Fatalf("expected one supervisor per topic")
	}
	if c := m.Topic(TopicBacktests); c == a {
		t.Fatalf("topics must not share supervisors")
	}
}

func TestTopicPath(t *testing.T) {
	if got := topicPath(TopicLivePrices); got != "live-prices" {
		t.Fatalf("unexpected path %q", got)
	}
	if got := topicPath(PredictionTopic("aapl")); got != "predict/AAPL" {
		t.Fatalf("unexpected path %q", got)
	}
}
