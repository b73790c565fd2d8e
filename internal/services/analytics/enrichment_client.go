package analytics

import (
	"context"
	"net/url"
	"time"

	"TradeLens/internal/domain/models"
	"TradeLens/pkg/config"
	"TradeLens/pkg/logger"
)

// EnrichmentClient fetches per-symbol sentiment data.
type EnrichmentClient struct {
	*HTTPServiceBase
}

func NewEnrichmentClient(cfg *config.Config, log *logger.Logger) *EnrichmentClient {
	return &EnrichmentClient{HTTPServiceBase: NewHTTPServiceBase(cfg, "analytics-enrichment", cfg.Analytics.RemoteTimeout, log)}
}

func (c *EnrichmentClient) Enrichment(ctx context.Context, symbol string) (models.Enrichment, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	var e models.Enrichment
	if err := c.GetJSON(ctx, "/enrichment", q, &e); err != nil {
		return models.Enrichment{}, err
	}
	e.Symbol = symbol
	e.Sentiment = clampUnit(e.Sentiment)
	e.NewsSentiment = clampUnit(e.NewsSentiment)
	switch e.VolumeSpike {
	case models.VolumeSpikeModerate, models.VolumeSpikeStrong:
	default:
		e.VolumeSpike = models.VolumeSpikeNone
	}
	e.FetchedAt = time.Now()
	return e, nil
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
