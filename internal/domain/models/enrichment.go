package models

import "time"

// Volume spike levels.
const (
	VolumeSpikeNone     = "none"
	VolumeSpikeModerate = "moderate"
	VolumeSpikeStrong   = "strong"
)

// Enrichment is per-symbol external data fed into the scorer.
// Sentiment and NewsSentiment are in [-1, 1].
type Enrichment struct {
	Symbol        string    `json:"symbol"`
	Sentiment     float64   `json:"sentiment"`
	NewsSentiment float64   `json:"news_sentiment"`
	VolumeSpike   string    `json:"volume_spike"`
	FetchedAt     time.Time `json:"fetched_at"`
}
