package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Notification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"` // User who receives the notification
	ActorID    uuid.UUID `gorm:"type:uuid;not null" json:"actor_id"`      // User who triggered the notification
	EntityID   uuid.UUID `gorm:"type:uuid;not null" json:"entity_id"`     // ID of the question/answer/badge/ban
	EntityType string    `gorm:"type:varchar(50);not null" json:"entity_type"`
	Type       string    `gorm:"type:varchar(50);not null" json:"type"` // 'badge', 'tag_badge', 'quality_ban', 'question_closed', 'question_reopened', 'vote'
	Message    string    `gorm:"type:text" json:"message"`
	IsRead     bool      `gorm:"default:false" json:"is_read"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Associations - using pointers to avoid recursion if User has Notifications
	User  *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Actor *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID, err = uuid.NewV7()
	}
	return
}
