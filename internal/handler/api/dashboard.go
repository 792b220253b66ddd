// Package api exposes the pull side of the dual-channel interface: the query
// endpoint the snapshot fetcher polls, the health endpoint, and a small REST
// surface for dashboards.
package api

import (
	"net/http"
	"strings"
	"time"

	"MarketPulse/internal/compose"
	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/freshness"
	"MarketPulse/internal/trend"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

const historyWindow = 120 * 24 * time.Hour

// DashboardHandler serves pull queries, health, and dashboard REST routes.
type DashboardHandler struct {
	logger    *xlogger.Logger
	quotes    domrepo.QuoteStore
	history   domrepo.HistoryStore
	hub       domrepo.Broadcaster
	metrics   domrepo.Metrics
	symbols   []string
	trendTopK int
	startedAt time.Time
}

// NewDashboardHandler creates the handler.
func NewDashboardHandler(l *xlogger.Logger, quotes domrepo.QuoteStore, history domrepo.HistoryStore, hub domrepo.Broadcaster, metrics domrepo.Metrics, symbols []string, trendTopK int) *DashboardHandler {
	return &DashboardHandler{
		logger:    l,
		quotes:    quotes,
		history:   history,
		hub:       hub,
		metrics:   metrics,
		symbols:   symbols,
		trendTopK: trendTopK,
		startedAt: time.Now(),
	}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/query", h.Query)
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/prices", h.Prices)
	g.GET("/history/:symbol", h.History)
	g.GET("/predictions/:symbol", h.PredictionBundle)
	g.GET("/predictions/:symbol/continuous", h.PredictionContinuous)
	g.GET("/trends/:kind", h.Trends)
	g.POST("/predictions", h.IngestPrediction)
	g.POST("/snapshots/:kind", h.IngestSnapshots)
}

// --- pull channel ---

type queryRequest struct {
	Query     string                 `json:"query" validate:"required"`
	Variables map[string]interface{} `json:"variables"`
}

type queryError struct {
	Message string `json:"message"`
}

type queryResponse struct {
	Data   *models.TopicPayload `json:"data"`
	Errors []queryError         `json:"errors,omitempty"`
}

// Query is the pull endpoint. Failures are reported in-band through the
// errors list; the HTTP status stays 200 so the fetcher can distinguish
// application errors from transport ones.
func (h *DashboardHandler) Query(c echo.Context) error {
	req := &queryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	start := time.Now()
	resp := &queryResponse{}

	switch {
	case strings.Contains(req.Query, "prediction"):
		symbol, _ := req.Variables["symbol"].(string)
		if symbol == "" {
			resp.Errors = append(resp.Errors, queryError{Message: "prediction query requires a symbol"})
			break
		}
		bundle, err := h.predictionBundle(c, symbol)
		if err != nil {
			resp.Errors = append(resp.Errors, queryError{Message: err.Error()})
			break
		}
		resp.Data = &models.TopicPayload{Prediction: bundle}

	case strings.Contains(req.Query, "backtests"):
		snaps, err := h.quotes.Snapshots(ctx, "backtests")
		if err != nil {
			resp.Errors = append(resp.Errors, queryError{Message: err.Error()})
			break
		}
		resp.Data = &models.TopicPayload{Snapshots: snaps}

	case strings.Contains(req.Query, "importance"):
		snaps, err := h.quotes.Snapshots(ctx, "importance")
		if err != nil {
			resp.Errors = append(resp.Errors, queryError{Message: err.Error()})
			break
		}
		resp.Data = &models.TopicPayload{Snapshots: snaps}

	default:
		quotes, err := h.quotes.Quotes(ctx, h.symbols)
		if err != nil {
			resp.Errors = append(resp.Errors, queryError{Message: err.Error()})
			break
		}
		resp.Data = &models.TopicPayload{Quotes: quotes}
	}

	h.metrics.RecordLatency("query", time.Since(start).Seconds())
	return c.JSON(http.StatusOK, resp)
}

// Health reports uptime and per-symbol freshness. This endpoint never fails:
// a broken store shows up as a degraded status, not an error status code.
func (h *DashboardHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	now := time.Now().UTC()

	report := &models.HealthReport{
		Status:        "ok",
		ServerTime:    now,
		UptimeSeconds: now.Sub(h.startedAt).Seconds(),
	}
	if err := h.history.Health(ctx); err != nil {
		report.Status = "degraded"
	}

	for _, symbol := range h.symbols {
		last, err := h.quotes.LastUpdate(ctx, symbol)
		if err != nil {
			report.Status = "degraded"
			last = nil
		}
		rec := freshness.Record(util.UpperSymbol(symbol), last, now)
		report.Freshness = append(report.Freshness, rec)
		if rec.AgeSeconds != nil {
			h.metrics.RecordStaleness(rec.Symbol, *rec.AgeSeconds)
		}
		if last != nil && (report.LastIngestAt == nil || last.After(*report.LastIngestAt)) {
			report.LastIngestAt = last
		}
	}

	return c.JSON(http.StatusOK, report)
}

// --- dashboard REST ---

func (h *DashboardHandler) Prices(c echo.Context) error {
	quotes, err := h.quotes.Quotes(c.Request().Context(), h.symbols)
	if err != nil {
		h.logger.Error("prices query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, quotes)
}

// History serves the chartable close series for a symbol. from/to accept
// RFC3339 timestamps, plain dates, or unix seconds.
func (h *DashboardHandler) History(c echo.Context) error {
	symbol := util.UpperSymbol(c.Param("symbol"))
	now := time.Now().UTC()
	from := util.ParseTimeDefault(c.QueryParam("from"), now.Add(-historyWindow))
	to := util.ParseTimeDefault(c.QueryParam("to"), now)
	limit := util.ParseIntDefault(c.QueryParam("limit"), 500)

	series, err := h.history.Series(c.Request().Context(), symbol, from, to, limit)
	if err != nil {
		h.logger.Error("history query failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, series)
}

func (h *DashboardHandler) PredictionBundle(c echo.Context) error {
	bundle, err := h.predictionBundle(c, c.Param("symbol"))
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, bundle)
}

// PredictionContinuous returns the forecast spliced onto its last actual
// observation, ready for charting.
func (h *DashboardHandler) PredictionContinuous(c echo.Context) error {
	bundle, err := h.predictionBundle(c, c.Param("symbol"))
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	series := compose.Bundle(bundle)
	if series == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no actual history for %s", bundle.Symbol))
	}
	return xhttp.SuccessResponse(c, series)
}

// Trends projects the top-ranked metrics of a snapshot kind into per-metric
// series.
func (h *DashboardHandler) Trends(c echo.Context) error {
	kind := c.Param("kind")
	if kind != "backtests" && kind != "importance" {
		return xhttp.BadRequestResponse(c, "unknown snapshot kind: "+kind)
	}
	snaps, err := h.quotes.Snapshots(c.Request().Context(), kind)
	if err != nil {
		h.logger.Error("trend query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	k := util.ParseIntDefault(c.QueryParam("k"), h.trendTopK)
	names := trend.TopKeys(snaps, k)
	return xhttp.SuccessResponse(c, trend.Project(snaps, names))
}

// IngestPrediction stores a model run's forecast and pushes it to stream
// subscribers of the symbol.
func (h *DashboardHandler) IngestPrediction(c echo.Context) error {
	bundle := &models.PredictionBundle{}
	if verr := xhttp.ReadAndValidateRequest(c, bundle); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if bundle.Symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol is required")
	}
	if err := bundle.Validate(); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	bundle.Symbol = util.UpperSymbol(bundle.Symbol)

	if err := h.quotes.SavePrediction(c.Request().Context(), bundle); err != nil {
		h.logger.Error("prediction save failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.push("predict/"+bundle.Symbol, models.EnvelopePrediction, bundle)
	return xhttp.SuccessResponse(c, bundle.Symbol)
}

// IngestSnapshots appends metric snapshots for a kind and pushes the updated
// window to its stream subscribers.
func (h *DashboardHandler) IngestSnapshots(c echo.Context) error {
	kind := c.Param("kind")
	if kind != "backtests" && kind != "importance" {
		return xhttp.BadRequestResponse(c, "unknown snapshot kind: "+kind)
	}
	var snaps []models.MetricSnapshot
	if err := c.Bind(&snaps); err != nil {
		return xhttp.BadRequestResponse(c, "malformed snapshot list")
	}

	ctx := c.Request().Context()
	if err := h.quotes.SaveSnapshots(ctx, kind, snaps); err != nil {
		h.logger.Error("snapshot save failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	window, err := h.quotes.Snapshots(ctx, kind)
	if err == nil {
		h.push(kind, models.EnvelopeMetrics, window)
	}
	return xhttp.SuccessResponse(c, len(snaps))
}

// predictionBundle loads the stored forecast, backfilling actual history from
// the tick archive when the bundle arrived without one.
func (h *DashboardHandler) predictionBundle(c echo.Context, symbol string) (*models.PredictionBundle, error) {
	ctx := c.Request().Context()
	symbol = util.UpperSymbol(symbol)

	bundle, err := h.quotes.Prediction(ctx, symbol)
	if err != nil {
		h.logger.Error("prediction query failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return nil, err
	}
	if bundle == nil {
		return nil, xhttp.NotFoundErrorf("no prediction for %s", symbol)
	}

	if bundle.Actual.Len() == 0 {
		now := time.Now().UTC()
		actual, err := h.history.Series(ctx, symbol, now.Add(-historyWindow), now, 500)
		if err != nil {
			h.logger.Warn("history backfill failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		} else {
			bundle.Actual = actual
		}
	}
	return bundle, nil
}

func (h *DashboardHandler) push(topic, envType string, payload interface{}) {
	if h.hub == nil {
		return
	}
	env, err := models.NewEnvelope(envType, payload)
	if err != nil {
		h.logger.Error("envelope encode failed", xlogger.String("topic", topic), xlogger.Error(err))
		return
	}
	h.hub.Broadcast(topic, env)
}
