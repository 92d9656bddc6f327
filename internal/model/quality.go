package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StrikeTypeDownvote = "downvote"
	StrikeTypeClosed   = "closed"
	StrikeTypeDeleted  = "deleted"

	BanLevelNone      = ""
	BanLevelWarning   = "warning"
	BanLevelWeek      = "week"
	BanLevelMonth     = "month"
	BanLevelPermanent = "permanent"

	BanTypeQuestion = "question_ban"
)

// QualityStrike is unique per (user, question, type); re-recording reactivates
// and updates the existing row instead of duplicating.
type QualityStrike struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_strikes_unique,unique,priority:1" json:"user_id"`
	QuestionID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_strikes_unique,unique,priority:2" json:"question_id"`
	StrikeType  string     `gorm:"size:20;not null;index:idx_strikes_unique,unique,priority:3" json:"strike_type"`
	StrikeValue float64    `gorm:"not null" json:"strike_value"`
	Reason      string     `gorm:"size:255" json:"reason"`
	IsActive    bool       `gorm:"default:true;not null;index" json:"is_active"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RemovedAt   *time.Time `json:"removed_at,omitempty"`
}

func (s *QualityStrike) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID, err = uuid.NewV7()
	}
	return
}

// QuestionQualityMetrics is the per-question vote tally the improvement check
// reads; net quality score = upvotes - downvotes.
type QuestionQualityMetrics struct {
	QuestionID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"question_id"`
	Upvotes      int       `gorm:"default:0;not null" json:"upvotes"`
	Downvotes    int       `gorm:"default:0;not null" json:"downvotes"`
	QualityScore int       `gorm:"default:0;not null" json:"quality_score"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// QualityBan: at most one active ban per (user, ban type). Level only escalates
// outside the explicit improvement path.
type QualityBan struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	BanType       string     `gorm:"size:30;not null;default:'question_ban'" json:"ban_type"`
	BanLevel      string     `gorm:"size:20;not null" json:"ban_level"`
	TotalStrikes  float64    `gorm:"not null" json:"total_strikes"`
	ActiveStrikes float64    `gorm:"not null" json:"active_strikes"`
	IsActive      bool       `gorm:"default:true;not null;index" json:"is_active"`
	BannedAt      time.Time  `gorm:"autoCreateTime" json:"banned_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"` // nil for warning and permanent
	BanReason     string     `gorm:"size:255" json:"ban_reason"`
	LiftedAt      *time.Time `json:"lifted_at,omitempty"`
	LiftReason    *string    `gorm:"size:255" json:"lift_reason,omitempty"`
}

func (b *QualityBan) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID, err = uuid.NewV7()
	}
	return
}

// QualityBanConfig carries the strike weights and the four escalation
// thresholds. Strike values are floats so fractional weights compare exactly
// as configured.
type QualityBanConfig struct {
	ID                  uint    `gorm:"primaryKey" json:"id"`
	DownvoteStrikeValue float64 `gorm:"not null;default:0.5" json:"downvote_strike_value"`
	ClosedStrikeValue   float64 `gorm:"not null;default:2" json:"closed_strike_value"`
	DeletedStrikeValue  float64 `gorm:"not null;default:3" json:"deleted_strike_value"`
	WarningThreshold    float64 `gorm:"not null;default:3" json:"warning_threshold"`
	WeekThreshold       float64 `gorm:"not null;default:5" json:"week_threshold"`
	MonthThreshold      float64 `gorm:"not null;default:8" json:"month_threshold"`
	PermanentThreshold  float64 `gorm:"not null;default:12" json:"permanent_threshold"`
	ImprovementMinScore int     `gorm:"not null;default:0" json:"improvement_min_score"`
}
