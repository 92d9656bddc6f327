package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Tag struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID, err = uuid.NewV7()
	}
	return
}

type Question struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User           User       `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Title          string     `gorm:"size:255;not null" json:"title"`
	Slug           string     `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Body           string     `gorm:"type:text;not null" json:"body"`
	Score          int        `gorm:"default:0;not null" json:"score"`
	Views          int        `gorm:"default:0" json:"views"`
	Tags           []Tag      `gorm:"many2many:question_tags" json:"tags,omitempty"`
	IsClosed       bool       `gorm:"default:false;not null;index" json:"is_closed"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CloseReasonKey *string    `gorm:"size:50" json:"close_reason,omitempty"`
	CloseDetails   *string    `gorm:"type:text" json:"close_details,omitempty"`
	ClosedByUserID *uuid.UUID `gorm:"type:uuid" json:"closed_by_user_id,omitempty"`
	LastEditedAt   *time.Time `json:"last_edited_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ID == uuid.Nil {
		q.ID, err = uuid.NewV7()
	}
	return
}

type Answer struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID uuid.UUID  `gorm:"type:uuid;not null;index" json:"question_id"`
	Question   Question   `gorm:"constraint:OnDelete:CASCADE" json:"question,omitempty"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User       User       `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Body       string     `gorm:"type:text;not null" json:"body"`
	Score      int        `gorm:"default:0;not null" json:"score"`
	IsAccepted bool       `gorm:"default:false;not null" json:"is_accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID, err = uuid.NewV7()
	}
	return
}
