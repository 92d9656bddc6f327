package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TierBronze = "bronze"
	TierSilver = "silver"
	TierGold   = "gold"

	TagActivityUpvote         = "upvote"
	TagActivityAcceptedAnswer = "accepted_answer"
	TagActivityBounty         = "bounty"
)

// UserTagScore accumulates monotonically; vote reversals do not subtract
// (scores only accumulate, by product decision).
type UserTagScore struct {
	UserID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	TagID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"tag_id"`
	TotalScore           int       `gorm:"default:0;not null" json:"total_score"`
	AcceptedAnswersCount int       `gorm:"default:0;not null" json:"accepted_answers_count"`
	LastActivityAt       time.Time `gorm:"autoUpdateTime" json:"last_activity_at"`
}

// UserTagBadge holds at most one row per tier per (user,tag). Only gold is
// subject to freshness decay; bronze and silver are permanent once earned.
type UserTagBadge struct {
	ID                       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                   uuid.UUID  `gorm:"type:uuid;not null;index:idx_user_tag_badges_unique,unique,priority:1" json:"user_id"`
	TagID                    uuid.UUID  `gorm:"type:uuid;not null;index:idx_user_tag_badges_unique,unique,priority:2" json:"tag_id"`
	Tag                      Tag        `gorm:"constraint:OnDelete:CASCADE" json:"tag,omitempty"`
	Tier                     string     `gorm:"size:20;not null;index:idx_user_tag_badges_unique,unique,priority:3" json:"tier"`
	EarnedAt                 time.Time  `gorm:"autoCreateTime" json:"earned_at"`
	IsActive                 bool       `gorm:"default:true;not null;index" json:"is_active"`
	LastFreshnessCheck       *time.Time `json:"last_freshness_check,omitempty"`
	FreshnessScoreSinceCheck int        `gorm:"default:0;not null" json:"freshness_score_since_check"`
	MarkedInactiveAt         *time.Time `json:"marked_inactive_at,omitempty"`
}

func (b *UserTagBadge) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID, err = uuid.NewV7()
	}
	return
}

// TagBadgeActivity is an append-only event log feeding the freshness window.
type TagBadgeActivity struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_tag_activity,priority:1" json:"user_id"`
	TagID        uuid.UUID  `gorm:"type:uuid;not null;index:idx_tag_activity,priority:2" json:"tag_id"`
	ActivityType string     `gorm:"size:30;not null" json:"activity_type"` // 'upvote', 'accepted_answer', 'bounty'
	PointsEarned int        `gorm:"not null" json:"points_earned"`
	QuestionID   *uuid.UUID `gorm:"type:uuid" json:"question_id,omitempty"`
	AnswerID     *uuid.UUID `gorm:"type:uuid" json:"answer_id,omitempty"`
	CreatedAt    time.Time  `gorm:"index:idx_tag_activity,priority:3" json:"created_at"`
}

// TagBadgeTierConfig holds the threshold per tier plus the gold freshness rules.
type TagBadgeTierConfig struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	Tier               string `gorm:"size:20;uniqueIndex;not null" json:"tier"`
	MinScore           int    `gorm:"not null" json:"min_score"`
	MinAcceptedAnswers int    `gorm:"not null" json:"min_accepted_answers"`
	FreshnessDays      int    `gorm:"default:0" json:"freshness_days"`   // 0 = no decay
	FreshnessPoints    int    `gorm:"default:0" json:"freshness_points"` // points required per window
}
