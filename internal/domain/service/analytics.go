package service

import (
	"context"

	"TradeLens/internal/domain/models"
)

// ContextAnalyzer asks the remote analytics service for a context analysis.
// The service owns its history; only symbol and timeframe are sent.
type ContextAnalyzer interface {
	AnalyzeContext(ctx context.Context, symbol, timeframe string) (models.AnalysisResult, error)
}

// EphemeralAnalyzer runs the remote classification over caller-supplied
// candles without persisting them.
type EphemeralAnalyzer interface {
	AnalyzeEphemeral(ctx context.Context, symbol, timeframe string, candles []models.Candle) (models.AnalysisResult, error)
	AnalyzeMTF(ctx context.Context, symbol string, timeframes []string) (models.MTFResult, error)
}

// BehaviorService is the remote behavioral guard rail.
type BehaviorService interface {
	Analyze(ctx context.Context, sessionID string) (models.BehaviorReport, error)
	ReportCooldown(ctx context.Context, report models.CooldownReport) error
}

// EnrichmentProvider supplies external sentiment per symbol.
type EnrichmentProvider interface {
	Enrichment(ctx context.Context, symbol string) (models.Enrichment, error)
}
