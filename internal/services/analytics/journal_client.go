package analytics

import (
	"context"

	"TradeLens/internal/domain/models"
	"TradeLens/pkg/config"
	"TradeLens/pkg/logger"
)

// JournalClient is the primary journal sink (POST /journal).
type JournalClient struct {
	*HTTPServiceBase
}

func NewJournalClient(cfg *config.Config, log *logger.Logger) *JournalClient {
	return &JournalClient{HTTPServiceBase: NewHTTPServiceBase(cfg, "analytics-journal", cfg.Analytics.BehaviorTimeout, log)}
}

// Submit delivers one batch. Any non-2xx answer is a failed flush.
func (c *JournalClient) Submit(ctx context.Context, sessionID string, events []models.JournalEvent) error {
	if len(events) == 0 {
		return nil
	}
	return c.PostJSON(ctx, "/journal", models.JournalBatch{SessionID: sessionID, Events: events}, nil)
}
