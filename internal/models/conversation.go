package models

import (
	"time"

	"gorm.io/gorm"
)

// DirectConversation is a two-party direct-message thread. It owns its
// participants and messages; "leaving" is a per-participant flag, the
// conversation itself is never deleted.
type DirectConversation struct {
	gorm.Model
	CreatedByID *uint `gorm:"index"`

	CreatedBy    *User                           `gorm:"foreignKey:CreatedByID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Participants []DirectConversationParticipant `gorm:"foreignKey:ConversationID"`
	Messages     []DirectMessage                 `gorm:"foreignKey:ConversationID"`
}

// DirectConversationParticipant ties a user to a conversation.
// The composite primary key keeps one row per (conversation, user).
type DirectConversationParticipant struct {
	ConversationID uint `gorm:"primaryKey"`
	UserID         uint `gorm:"primaryKey"`
	IsDeleted      bool `gorm:"not null;default:false"`
	LastReadAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// DirectMessage is a message inside a conversation. Each side can hide the
// message for itself; neither flag removes the row.
type DirectMessage struct {
	gorm.Model
	ConversationID      uint   `gorm:"not null;index"`
	SenderID            uint   `gorm:"not null;index"`
	Content             string
	ImageURL            string `gorm:"size:512"`
	EditedAt            *time.Time
	DeletedForSender    bool `gorm:"not null;default:false"`
	DeletedForRecipient bool `gorm:"not null;default:false"`

	Sender User `gorm:"foreignKey:SenderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
