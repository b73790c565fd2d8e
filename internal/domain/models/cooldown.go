package models

import "time"

// Cooldown origins.
const (
	CooldownByUser     = "user"
	CooldownByBehavior = "behavior"
)

// CooldownState is an active trading pause. A nil state means idle.
type CooldownState struct {
	Active           bool      `json:"active"`
	EndsAt           time.Time `json:"ends_at"`
	Reason           string    `json:"reason"`
	Origin           string    `json:"origin"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

// Remaining returns the time left at now, never negative.
func (s *CooldownState) Remaining(now time.Time) time.Duration {
	if s == nil || !s.Active {
		return 0
	}
	d := s.EndsAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports whether now has reached EndsAt.
func (s *CooldownState) Expired(now time.Time) bool {
	return s == nil || !s.Active || !now.Before(s.EndsAt)
}

// BehaviorReport is the remote behavioral service verdict.
type BehaviorReport struct {
	InCooldown      bool     `json:"in_cooldown"`
	CooldownEndsAt  string   `json:"cooldown_ends_at"`
	CooldownMinutes int      `json:"cooldown_minutes"`
	Reason          string   `json:"reason"`
	RiskScore       float64  `json:"risk_score"`
	Patterns        []string `json:"patterns"`
}

// CooldownReport is sent to the behavioral service on start and end.
type CooldownReport struct {
	SessionID string    `json:"session_id"`
	Action    string    `json:"action"`
	Minutes   int       `json:"minutes,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	EndsAt    time.Time `json:"ends_at,omitempty"`
}
