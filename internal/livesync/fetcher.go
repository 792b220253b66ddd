package livesync

import (
	"context"
	"strings"

	"MarketPulse/internal/domain/models"
	xhttp "MarketPulse/pkg/http"
	"MarketPulse/pkg/logger"
)

// Well-known topics. A prediction topic carries its symbol after the colon.
const (
	TopicLivePrices = "live-prices"
	TopicBacktests  = "backtests"
	TopicImportance = "importance"

	predictionPrefix = "predict:"
)

// PredictionTopic names the prediction feed for one symbol.
func PredictionTopic(symbol string) string {
	return predictionPrefix + strings.ToUpper(symbol)
}

// PredictionSymbol extracts the symbol from a prediction topic, if any.
func PredictionSymbol(topic string) (string, bool) {
	if strings.HasPrefix(topic, predictionPrefix) {
		return topic[len(predictionPrefix):], true
	}
	return "", false
}

// Fetcher issues a single pull query for a topic. No internal retry: the
// retry policy belongs to the caller.
type Fetcher interface {
	Fetch(ctx context.Context, topic string, vars map[string]interface{}) (*models.TopicPayload, error)
}

// QueryRequest is the pull-channel request envelope.
type QueryRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// QueryResponse is the pull-channel response envelope. A non-empty Errors
// list makes the whole response a protocol failure.
type QueryResponse struct {
	Data   *models.TopicPayload `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// SnapshotFetcher implements Fetcher over the HTTP pull endpoint.
type SnapshotFetcher struct {
	client    *xhttp.Client
	pullURL   string
	healthURL string
	logger    *logger.Logger
}

// NewSnapshotFetcher creates a fetcher against the pull and health endpoints.
func NewSnapshotFetcher(client *xhttp.Client, pullURL, healthURL string, l *logger.Logger) *SnapshotFetcher {
	return &SnapshotFetcher{client: client, pullURL: pullURL, healthURL: healthURL, logger: l}
}

// Fetch runs one query attempt. Transport failures, malformed responses, and
// application errors are reported as typed errors, never panics; callers
// treat any failure as "no update this cycle".
func (f *SnapshotFetcher) Fetch(ctx context.Context, topic string, vars map[string]interface{}) (*models.TopicPayload, error) {
	req := &QueryRequest{Query: queryForTopic(topic), Variables: vars}
	if symbol, ok := PredictionSymbol(topic); ok {
		if req.Variables == nil {
			req.Variables = map[string]interface{}{}
		}
		req.Variables["symbol"] = symbol
	}

	var resp QueryResponse
	err := f.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    f.pullURL,
		Body:   req,
	}, &resp)
	if err != nil {
		return nil, &TransportError{Op: "fetch " + topic, Err: err}
	}

	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return nil, &ProtocolError{Messages: msgs}
	}
	if resp.Data == nil {
		return nil, &DecodeError{Op: "fetch " + topic, Err: errNoData}
	}

	return resp.Data, nil
}

// FetchHealth pulls the health endpoint directly (plain GET, no envelope).
func (f *SnapshotFetcher) FetchHealth(ctx context.Context) (*models.HealthReport, error) {
	var report models.HealthReport
	err := f.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    f.healthURL,
	}, &report)
	if err != nil {
		return nil, &TransportError{Op: "fetch health", Err: err}
	}
	return &report, nil
}

func queryForTopic(topic string) string {
	switch {
	case topic == TopicLivePrices:
		return "query { quotes { symbol price changePercent observedAt } }"
	case topic == TopicBacktests:
		return "query { backtests { timestamp metrics { name value } } }"
	case topic == TopicImportance:
		return "query { importance { timestamp metrics { name value } } }"
	case strings.HasPrefix(topic, predictionPrefix):
		return "query ($symbol: String!) { prediction(symbol: $symbol) { actual predicted } }"
	default:
		return "query { quotes { symbol price changePercent observedAt } }"
	}
}
