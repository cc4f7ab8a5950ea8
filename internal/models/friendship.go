package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// FriendRequestStatus defines the lifecycle state of a friend request.
type FriendRequestStatus string

const (
	// RequestPending means the request has been sent but not yet answered.
	RequestPending FriendRequestStatus = "pending"

	// RequestAccepted, RequestRejected and RequestCancelled are terminal:
	// a request reaches one of them exactly once and never changes again.
	RequestAccepted  FriendRequestStatus = "accepted"
	RequestRejected  FriendRequestStatus = "rejected"
	RequestCancelled FriendRequestStatus = "cancelled"
)

// FriendRequest represents a directional friend request between two users.
type FriendRequest struct {
	gorm.Model
	FromUserID  uint                `gorm:"not null;index"`
	ToUserID    uint                `gorm:"not null;index"`
	Status      FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	RespondedAt *time.Time

	FromUser User `gorm:"foreignKey:FromUserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	ToUser   User `gorm:"foreignKey:ToUserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// ErrSamePairUser is returned when both sides of a friendship are the same user.
var ErrSamePairUser = errors.New("friendship pair requires two distinct users")

// Friendship represents a symmetric friendship edge. The pair is stored
// canonically with User1ID < User2ID so a single row represents each pair.
type Friendship struct {
	gorm.Model
	User1ID uint `gorm:"not null;uniqueIndex:idx_friendship_pair"`
	User2ID uint `gorm:"not null;uniqueIndex:idx_friendship_pair"`

	User1 User `gorm:"foreignKey:User1ID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	User2 User `gorm:"foreignKey:User2ID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// BeforeCreate normalizes the pair ordering at the write boundary.
func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.User1ID == f.User2ID {
		return ErrSamePairUser
	}
	if f.User1ID > f.User2ID {
		f.User1ID, f.User2ID = f.User2ID, f.User1ID
	}
	return nil
}
