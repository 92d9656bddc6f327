package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BadgeAyubowan     = "Ayubowan"
	BadgeFirstLanding = "First Landing"
	BadgeRiceAndCurry = "Rice & Curry"
	BadgeSnapshot     = "Snapshot"
	BadgePearlDiver   = "Pearl Diver"
)

type Badge struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Tier        string    `gorm:"size:20;default:'bronze'" json:"tier"` // 'bronze', 'silver', 'gold'
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (b *Badge) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID, err = uuid.NewV7()
	}
	return
}

// UserBadge rows are awarded once and never revoked.
type UserBadge struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_user_badges_unique,unique,priority:1" json:"user_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	BadgeID   uuid.UUID `gorm:"type:uuid;not null;index:idx_user_badges_unique,unique,priority:2" json:"badge_id"`
	Badge     Badge     `gorm:"constraint:OnDelete:CASCADE" json:"badge,omitempty"`
	EarnedAt  time.Time `gorm:"autoCreateTime" json:"earned_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ub *UserBadge) BeforeCreate(tx *gorm.DB) (err error) {
	if ub.ID == uuid.Nil {
		ub.ID, err = uuid.NewV7()
	}
	return
}

// BadgeProgress tracks cumulative progress toward count-based badges.
type BadgeProgress struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	BadgeID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"badge_id"`
	Progress  int       `gorm:"default:0;not null" json:"progress"`
	Target    int       `gorm:"not null" json:"target"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
