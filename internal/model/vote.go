package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	VoteTypeUp   = "up"
	VoteTypeDown = "down"

	VotableQuestion = "question"
	VotableAnswer   = "answer"
)

type Vote struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_votes_unique,unique,priority:1" json:"user_id"`
	User        User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	VotableType string    `gorm:"size:20;not null;index:idx_votes_unique,unique,priority:2;index:idx_votes_lookup,priority:1" json:"votable_type"` // 'question', 'answer'
	VotableID   uuid.UUID `gorm:"type:uuid;not null;index:idx_votes_unique,unique,priority:3;index:idx_votes_lookup,priority:2" json:"votable_id"`
	VoteType    string    `gorm:"size:10;not null" json:"vote_type"` // 'up', 'down'
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID, err = uuid.NewV7()
	}
	return
}
