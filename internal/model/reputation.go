package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RefTypeQuestion          = "question"
	RefTypeAnswer            = "answer"
	RefTypeAcceptedAnswer    = "accepted_answer"
	RefTypeEmailVerification = "email_verification"
	RefTypeVote              = "vote"
	RefTypeDownvote          = "downvote"
)

// ReputationEntry is append-only; the sum over a user's entries is the
// canonical reputation value denormalized onto users.reputation.
type ReputationEntry struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index:idx_rep_user_date,priority:1" json:"user_id"`
	User          User       `gorm:"foreignKey:UserID" json:"-"`
	ChangeAmount  int        `gorm:"not null" json:"change_amount"`
	Reason        string     `gorm:"size:255;not null" json:"reason"`
	ReferenceType string     `gorm:"size:50;not null" json:"reference_type"`
	ReferenceID   *uuid.UUID `gorm:"type:uuid" json:"reference_id,omitempty"`
	CreatedAt     time.Time  `gorm:"index:idx_rep_user_date,priority:2" json:"created_at"`
}
