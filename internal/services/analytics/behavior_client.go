package analytics

import (
	"context"
	"net/url"

	"TradeLens/internal/domain/models"
	"TradeLens/pkg/config"
	"TradeLens/pkg/logger"
)

// BehaviorClient talks to the behavioral guard-rail endpoints.
type BehaviorClient struct {
	*HTTPServiceBase
}

func NewBehaviorClient(cfg *config.Config, log *logger.Logger) *BehaviorClient {
	return &BehaviorClient{HTTPServiceBase: NewHTTPServiceBase(cfg, "analytics-behavior", cfg.Analytics.BehaviorTimeout, log)}
}

func (c *BehaviorClient) Analyze(ctx context.Context, sessionID string) (models.BehaviorReport, error) {
	q := url.Values{}
	q.Set("session_id", sessionID)
	var rep models.BehaviorReport
	if err := c.GetJSON(ctx, "/behavior/analyze", q, &rep); err != nil {
		return models.BehaviorReport{}, err
	}
	return rep, nil
}

// ReportCooldown notifies the service of a cooldown start or end.
func (c *BehaviorClient) ReportCooldown(ctx context.Context, report models.CooldownReport) error {
	return c.PostJSON(ctx, "/behavior/cooldown", report, nil)
}
