package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type nopMetrics struct{}

func (nopMetrics) RecordChannelState(topic string, state int)     {}
func (nopMetrics) RecordPoll(topic, outcome string)               {}
func (nopMetrics) RecordError(kind string)                        {}
func (nopMetrics) RecordLastPrice(symbol string, price float64)   {}
func (nopMetrics) RecordStaleness(symbol string, seconds float64) {}
func (nopMetrics) RecordLatency(op string, seconds float64)       {}

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	h := NewHub(l, nopMetrics{})
	e := echo.New()
	h.RegisterRoutes(e)
	return h, httptest.NewServer(e)
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func waitSubscribers(t *testing.T, h *Hub, topic string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Subscribers(topic) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("topic %s never reached %d subscribers", topic, want)
}

func TestHubBroadcastsToTopicSubscribers(t *testing.T) {
	h, srv := newTestHub(t)
	defer srv.Close()

	conn := dial(t, srv, "/ws/live-prices")
	defer conn.Close()
	waitSubscribers(t, h, "live-prices", 1)

	env, err := models.NewEnvelope(models.EnvelopeLivePrices, map[string]models.Quote{"AAPL": {Symbol: "AAPL"}})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	h.Broadcast("live-prices", env)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	payload, err := models.DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode pushed frame: %v", err)
	}
	if payload.Quotes["AAPL"].Symbol != "AAPL" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestHubScopesBroadcastsByTopic(t *testing.T) {
	h, srv := newTestHub(t)
	defer srv.Close()

	prices := dial(t, srv, "/ws/live-prices")
	defer prices.Close()
	predict := dial(t, srv, "/ws/predict/aapl")
	defer predict.Close()
	waitSubscribers(t, h, "live-prices", 1)
	waitSubscribers(t, h, "predict/AAPL", 1)

	env, err := models.NewEnvelope(models.EnvelopePrediction, &models.PredictionBundle{Symbol: "AAPL"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	h.Broadcast("predict/AAPL", env)

	_ = predict.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := predict.ReadMessage(); err != nil {
		t.Fatalf("prediction subscriber got nothing: %v", err)
	}

	// The live-prices subscriber must not see prediction frames.
	_ = prices.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := prices.ReadMessage(); err == nil {
		t.Fatalf("live-prices subscriber received a prediction frame")
	}
}

func TestHubDropsDepartedSubscriber(t *testing.T) {
	h, srv := newTestHub(t)
	defer srv.Close()

	conn := dial(t, srv, "/ws/backtests")
	waitSubscribers(t, h, "backtests", 1)

	conn.Close()
	waitSubscribers(t, h, "backtests", 0)

	// Broadcasting into an empty topic is a no-op.
	env, _ := models.NewEnvelope(models.EnvelopeMetrics, []models.MetricSnapshot{})
	h.Broadcast("backtests", env)
}
