package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CloseReasonDuplicate  = "duplicate"
	CloseReasonOffTopic   = "off_topic"
	CloseReasonLowQuality = "low_quality"
	CloseReasonSpam       = "spam"
	CloseReasonOpinion    = "opinion_based"
)

type CloseReason struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"size:50;uniqueIndex;not null" json:"key"`
	Label       string    `gorm:"size:100;not null" json:"label"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// QuestionCloseVote: one active vote per user per question. Deactivated votes
// never count toward a future closure episode.
type QuestionCloseVote struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null;index" json:"question_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	ReasonKey  string    `gorm:"size:50;not null" json:"reason_key"`
	Details    string    `gorm:"type:text" json:"details"`
	IsActive   bool      `gorm:"default:true;not null;index" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (v *QuestionCloseVote) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID, err = uuid.NewV7()
	}
	return
}

type QuestionReopenVote struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null;index" json:"question_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	IsActive   bool      `gorm:"default:true;not null;index" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (v *QuestionReopenVote) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID, err = uuid.NewV7()
	}
	return
}

type ClosureConfig struct {
	ID                      uint `gorm:"primaryKey" json:"id"`
	CloseVotesRequired      int  `gorm:"not null;default:3" json:"close_votes_required"`
	ReopenVotesRequired     int  `gorm:"not null;default:3" json:"reopen_votes_required"`
	GoldBadgeHammerEnabled  bool `gorm:"not null;default:true" json:"gold_badge_hammer_enabled"`
	AutoCloseEnabled        bool `gorm:"not null;default:true" json:"auto_close_enabled"`
	AutoCloseScoreThreshold int  `gorm:"not null;default:-5" json:"auto_close_score_threshold"`
	CloseVoteAgingDays      int  `gorm:"not null;default:14" json:"close_vote_aging_days"`
}

// AutoCloseLog is the audit trail for automatic low-score closures.
type AutoCloseLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	QuestionID     uuid.UUID `gorm:"type:uuid;not null;index" json:"question_id"`
	ScoreAtClosure int       `gorm:"not null" json:"score_at_closure"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
