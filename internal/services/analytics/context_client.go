package analytics

import (
	"context"
	"net/url"
	"strings"
	"time"

	"TradeLens/internal/domain/models"
	"TradeLens/pkg/config"
	"TradeLens/pkg/logger"
)

const statusInsufficientData = "insufficient_data"

// ContextClient calls GET /context. The service owns the history; only
// symbol and timeframe are sent.
type ContextClient struct {
	*HTTPServiceBase
}

func NewContextClient(cfg *config.Config, log *logger.Logger) *ContextClient {
	return &ContextClient{HTTPServiceBase: NewHTTPServiceBase(cfg, "analytics-context", cfg.Analytics.RemoteTimeout, log)}
}

type contextResponse struct {
	models.AnalysisResult
	Status string `json:"status"`
	Error  string `json:"error"`
}

// AnalyzeContext returns ErrInsufficientData when the service explicitly
// reports that it lacks history for the pair.
func (c *ContextClient) AnalyzeContext(ctx context.Context, symbol, timeframe string) (models.AnalysisResult, error) {
	start := time.Now()
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)

	var resp contextResponse
	if err := c.GetJSON(ctx, "/context", q, &resp); err != nil {
		return models.AnalysisResult{}, err
	}
	if insufficient(resp) {
		return models.AnalysisResult{}, ErrInsufficientData
	}
	return finish(resp.AnalysisResult, symbol, timeframe, models.SourceBackend, start), nil
}

func insufficient(resp contextResponse) bool {
	if resp.Status == statusInsufficientData || string(resp.MarketState) == statusInsufficientData {
		return true
	}
	if strings.Contains(strings.ToLower(resp.Error), "insufficient") {
		return true
	}
	return resp.HasFlag(models.FlagInsufficientData)
}

// finish stamps tier metadata and enforces the value invariants.
func finish(r models.AnalysisResult, symbol, timeframe string, src models.Source, start time.Time) models.AnalysisResult {
	out := r.Normalize()
	if out.Symbol == "" {
		out.Symbol = symbol
	}
	if out.Timeframe == "" {
		out.Timeframe = timeframe
	}
	out.Source = src
	out.Cached = false
	out.LatencyMS = elapsedMS(start)
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	return out
}
