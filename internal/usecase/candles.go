package usecase

import (
	"context"
	"fmt"
	"strings"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
)

const (
	defaultCandleLimit = 300
	maxCandleLimit     = 1000
)

// CandlesUseCase serves the candle window the analysis tiers see.
type CandlesUseCase struct {
	source drepo.CandleSource
}

func NewCandlesUseCase(source drepo.CandleSource) *CandlesUseCase {
	return &CandlesUseCase{source: source}
}

type GetCandlesParams struct {
	Symbol    string
	Timeframe string
	Limit     int
}

type GetCandlesResult struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Count     int             `json:"count"`
	Candles   []models.Candle `json:"candles"`
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	tf, ok := drepo.ParseTimeframe(p.Timeframe)
	if !ok {
		return nil, errInvalidTimeframe(p.Timeframe)
	}
	if p.Limit <= 0 {
		p.Limit = defaultCandleLimit
	}
	if p.Limit > maxCandleLimit {
		p.Limit = maxCandleLimit
	}
	if uc.source == nil {
		return nil, fmt.Errorf("get candles: %w", ErrTierUnavailable)
	}

	candles, err := uc.source.LatestCandles(ctx, symbol, tf, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		candles = candles[len(candles)-p.Limit:]
	}

	return &GetCandlesResult{
		Symbol:    symbol,
		Timeframe: string(tf),
		Count:     len(candles),
		Candles:   candles,
	}, nil
}
