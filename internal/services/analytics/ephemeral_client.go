package analytics

import (
	"context"
	"fmt"
	"time"

	"TradeLens/internal/domain/models"
	"TradeLens/pkg/config"
	"TradeLens/pkg/logger"
)

// EphemeralClient ships raw candles to the stateless classification
// endpoints. Nothing sent here is persisted remotely.
type EphemeralClient struct {
	*HTTPServiceBase
	mtf *HTTPServiceBase
}

func NewEphemeralClient(cfg *config.Config, log *logger.Logger) *EphemeralClient {
	return &EphemeralClient{
		HTTPServiceBase: NewHTTPServiceBase(cfg, "analytics-ephemeral", cfg.Analytics.EphemeralTimeout, log),
		mtf:             NewHTTPServiceBase(cfg, "analytics-mtf", cfg.Analytics.MTFTimeout, log),
	}
}

type ephemeralRequest struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Candles   []models.Candle `json:"candles"`
}

type mtfRequest struct {
	Symbol     string   `json:"symbol"`
	Timeframes []string `json:"timeframes"`
}

func (c *EphemeralClient) AnalyzeEphemeral(ctx context.Context, symbol, timeframe string, candles []models.Candle) (models.AnalysisResult, error) {
	if len(candles) == 0 {
		return models.AnalysisResult{}, ErrInsufficientData
	}
	start := time.Now()
	var resp contextResponse
	err := c.PostJSON(ctx, "/analyze-ephemeral", ephemeralRequest{
		Symbol:    symbol,
		Timeframe: timeframe,
		Candles:   candles,
	}, &resp)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	if insufficient(resp) {
		return models.AnalysisResult{}, ErrInsufficientData
	}
	return finish(resp.AnalysisResult, symbol, timeframe, models.SourceEphemeral, start), nil
}

// AnalyzeMTF requests one classification per timeframe plus their alignment.
func (c *EphemeralClient) AnalyzeMTF(ctx context.Context, symbol string, timeframes []string) (models.MTFResult, error) {
	if len(timeframes) == 0 {
		return models.MTFResult{}, fmt.Errorf("analyze mtf: no timeframes")
	}
	start := time.Now()
	var resp models.MTFResult
	if err := c.mtf.PostJSON(ctx, "/analyze-mtf", mtfRequest{Symbol: symbol, Timeframes: timeframes}, &resp); err != nil {
		return models.MTFResult{}, err
	}
	if resp.Symbol == "" {
		resp.Symbol = symbol
	}
	for tf, r := range resp.Timeframes {
		resp.Timeframes[tf] = finish(r, resp.Symbol, tf, models.SourceEphemeral, start)
	}
	if resp.Confidence < 0 {
		resp.Confidence = 0
	}
	if resp.Confidence > 100 {
		resp.Confidence = 100
	}
	resp.LatencyMS = elapsedMS(start)
	return resp, nil
}
