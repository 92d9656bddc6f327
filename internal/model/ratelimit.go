package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionVote      = "vote"
	ActionQuestion  = "question"
	ActionAnswer    = "answer"
	ActionCloseVote = "close_vote"
)

// RateLimitAction rows are a sliding-window counter source; pruned after 30 days.
type RateLimitAction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_rate_actions,priority:1" json:"user_id"`
	ActionType string    `gorm:"size:30;not null;index:idx_rate_actions,priority:2" json:"action_type"`
	CreatedAt  time.Time `gorm:"index:idx_rate_actions,priority:3" json:"created_at"`
}

// RateLimitConfig: multiple windows per action type may apply to the same
// reputation bracket; every applicable window must pass.
type RateLimitConfig struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ActionType        string    `gorm:"size:30;not null;index" json:"action_type"`
	MinReputation     int       `gorm:"not null;default:0" json:"min_reputation"`
	MaxReputation     *int      `json:"max_reputation,omitempty"` // nil = no upper bound
	MaxActions        int       `gorm:"not null" json:"max_actions"`
	TimeWindowMinutes int       `gorm:"not null" json:"time_window_minutes"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}
