// Command watch is the client counterpart of cmd/app: it attaches to the
// dashboard backend over the dual-channel sync layer and logs every merged
// update it receives, falling back to polling whenever the stream degrades.
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"MarketPulse/internal/freshness"
	"MarketPulse/internal/livesync"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	topicsFlag := flag.String("topics", livesync.TopicLivePrices,
		"comma-separated topics: live-prices, backtests, importance, predict:SYMBOL")
	flag.Parse()

	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		stdlog.Fatalf("config load failed: %v", err)
	}

	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		stdlog.Fatalf("logger init failed: %v", err)
	}

	topics := parseTopics(*topicsFlag)
	if len(topics) == 0 {
		stdlog.Fatalf("no topics to watch")
	}

	m := metrics.New()
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Sync.FetchTimeout))
	fetcher := livesync.NewSnapshotFetcher(client, cfg.Sync.PullURL, cfg.Sync.HealthURL, l)
	factory := livesync.WebSocketFactory(cfg.Sync.StreamURL, l, m,
		livesync.WithReconnectDelay(cfg.Sync.ReconnectDelay))
	manager := livesync.NewManager(fetcher, factory, l, m,
		livesync.WithPollInterval(cfg.Sync.PollInterval))
	monitor := freshness.NewMonitor(fetcher, cfg.Sync.HealthInterval, livesync.RealClock(), l, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)

	for _, topic := range topics {
		updates, unsubscribe := manager.Topic(topic).Subscribe()
		defer unsubscribe()
		go watch(ctx, l, monitor, updates)
		l.Info("watching", logger.String("topic", topic))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("shutting down")
}

func watch(ctx context.Context, l *logger.Logger, monitor *freshness.Monitor, updates <-chan livesync.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			fields := []logger.Field{
				logger.String("topic", u.Topic),
				logger.String("source", u.Source.String()),
				logger.Int64("seq", int64(u.Seq)),
			}
			if report := monitor.Last(); report != nil {
				fields = append(fields, logger.String("backend", report.Status))
			}
			l.Info("update", fields...)
		}
	}
}

// parseTopics splits the -topics flag and normalizes prediction topics to
// their canonical uppercase-symbol form.
func parseTopics(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		topic := strings.TrimSpace(part)
		if topic == "" {
			continue
		}
		if symbol, ok := livesync.PredictionSymbol(topic); ok {
			topic = livesync.PredictionTopic(symbol)
		}
		out = append(out, topic)
	}
	return out
}
