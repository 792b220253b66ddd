package livesync

import (
	"strings"
	"sync"

	"MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/logger"
)

// Manager hands out exactly one supervisor per topic for a client session.
// Supervisors are created lazily and stay idle until subscribed.
type Manager struct {
	fetcher Fetcher
	factory ChannelFactory
	logger  *logger.Logger
	metrics repository.Metrics
	opts    []SupervisorOption

	mu   sync.Mutex
	sups map[string]*Supervisor
}

// NewManager creates a supervisor registry.
func NewManager(fetcher Fetcher, factory ChannelFactory, l *logger.Logger, m repository.Metrics, opts ...SupervisorOption) *Manager {
	return &Manager{
		fetcher: fetcher,
		factory: factory,
		logger:  l,
		metrics: m,
		opts:    opts,
		sups:    make(map[string]*Supervisor),
	}
}

// Topic returns the supervisor owning the given topic, creating it on first
// use.
func (m *Manager) Topic(topic string) *Supervisor {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sups[topic]; ok {
		return s
	}
	s := NewSupervisor(topic, m.fetcher, m.factory, m.logger, m.metrics, m.opts...)
	m.sups[topic] = s
	return s
}

// WebSocketFactory builds stream channels that dial baseURL with the topic
// encoded in the path, e.g. ws://host/ws/live-prices or ws://host/ws/predict/AAPL.
func WebSocketFactory(baseURL string, l *logger.Logger, m repository.Metrics, opts ...StreamOption) ChannelFactory {
	return func(topic string, onState func(ChannelState)) StreamSource {
		url := strings.TrimRight(baseURL, "/") + "/" + topicPath(topic)
		all := append([]StreamOption{WithStateListener(onState)}, opts...)
		return NewStreamChannel(topic, url, l, m, all...)
	}
}

func topicPath(topic string) string {
	if symbol, ok := PredictionSymbol(topic); ok {
		return "predict/" + symbol
	}
	return topic
}
