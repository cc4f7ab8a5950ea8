package messaging

import (
	"context"
	"errors"
	"time"

	"playgrid/backend/internal/friendship"
	"playgrid/backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrNotFriends       = errors.New("users must be friends to start a conversation")
	ErrNotParticipant   = errors.New("user is not part of the conversation")
	ErrEmptyMessage     = errors.New("message text or photo is required")
)

// Service implements two-party direct-message threads gated by friendship.
// Participant rows carry a per-user soft-leave flag; messages carry per-side
// delete flags. Nothing in this package removes rows.
type Service struct {
	db      *gorm.DB
	friends *friendship.Service
}

func NewService(db *gorm.DB, friends *friendship.Service) *Service {
	return &Service{db: db, friends: friends}
}

// findBetween returns the conversation that has both users as participants,
// regardless of their soft-leave state, or nil.
func (s *Service) findBetween(ctx context.Context, db *gorm.DB, userA, userB uint) (*models.DirectConversation, error) {
	var ids []uint
	err := db.WithContext(ctx).Model(&models.DirectConversationParticipant{}).
		Where("user_id IN ?", []uint{userA, userB}).
		Group("conversation_id").
		Having("COUNT(DISTINCT user_id) = 2").
		Limit(1).
		Pluck("conversation_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var conversation models.DirectConversation
	if err := db.WithContext(ctx).First(&conversation, ids[0]).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// GetOrCreateConversation returns the conversation between two friends,
// creating it on first use. A pair of users shares at most one conversation
// over time: if both had left, their participant rows are revived instead of
// a duplicate thread being created.
func (s *Service) GetOrCreateConversation(ctx context.Context, userA, userB, createdBy uint) (*models.DirectConversation, error) {
	if userA == userB {
		return nil, ErrSelfConversation
	}
	areFriends, err := s.friends.AreFriends(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if !areFriends {
		return nil, ErrNotFriends
	}

	var conversation *models.DirectConversation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findBetween(ctx, tx, userA, userB)
		if err != nil {
			return err
		}
		if existing != nil {
			conversation = existing
			return tx.Model(&models.DirectConversationParticipant{}).
				Where("conversation_id = ? AND user_id IN ?", existing.ID, []uint{userA, userB}).
				Update("is_deleted", false).Error
		}

		if createdBy == 0 {
			createdBy = userA
		}
		conversation = &models.DirectConversation{CreatedByID: &createdBy}
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		participants := []models.DirectConversationParticipant{
			{ConversationID: conversation.ID, UserID: userA},
			{ConversationID: conversation.ID, UserID: userB},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// EnsureParticipant verifies membership and revives a soft-left row. A user
// with no participant row at all gets a permission error.
func (s *Service) EnsureParticipant(ctx context.Context, conversationID, userID uint) (*models.DirectConversationParticipant, error) {
	return s.ensureParticipant(ctx, s.db, conversationID, userID)
}

func (s *Service) ensureParticipant(ctx context.Context, db *gorm.DB, conversationID, userID uint) (*models.DirectConversationParticipant, error) {
	var participant models.DirectConversationParticipant
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, err
	}

	if participant.IsDeleted {
		err = db.WithContext(ctx).Model(&models.DirectConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Update("is_deleted", false).Error
		if err != nil {
			return nil, err
		}
		participant.IsDeleted = false
	}
	return &participant, nil
}

// SendMessage stores a message from a participant. Sending revives every
// participant's membership, so the thread reappears for a party who had
// hidden it.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID uint, content, imageURL string) (*models.DirectMessage, error) {
	if content == "" && imageURL == "" {
		return nil, ErrEmptyMessage
	}

	var message *models.DirectMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ensureParticipant(ctx, tx, conversationID, senderID); err != nil {
			return err
		}

		message = &models.DirectMessage{
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        content,
			ImageURL:       imageURL,
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DirectConversationParticipant{}).
			Where("conversation_id = ?", conversationID).
			Update("is_deleted", false).Error; err != nil {
			return err
		}
		return tx.Preload("Sender").First(message, message.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// UserConversations lists conversations where the user's participation is
// active, ordered by latest activity. A conversation the user left stays out
// of the listing until something revives the membership.
func (s *Service) UserConversations(ctx context.Context, userID uint) ([]models.DirectConversation, error) {
	var conversations []models.DirectConversation
	err := s.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Joins("JOIN direct_conversation_participants p ON p.conversation_id = direct_conversations.id").
		Where("p.user_id = ? AND p.is_deleted = ?", userID, false).
		Order("COALESCE((SELECT MAX(m.created_at) FROM direct_messages m WHERE m.conversation_id = direct_conversations.id), direct_conversations.created_at) DESC").
		Find(&conversations).Error
	return conversations, err
}

// Conversation fetches a conversation with its participants.
func (s *Service) Conversation(ctx context.Context, id uint) (*models.DirectConversation, error) {
	var conversation models.DirectConversation
	err := s.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		First(&conversation, id).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// VisibleMessages returns the conversation's messages as seen by one viewer,
// oldest first. A message is hidden from its sender when deleted_for_sender is
// set, and from everyone else when deleted_for_recipient is set.
func (s *Service) VisibleMessages(ctx context.Context, conversationID, viewerID uint) ([]models.DirectMessage, error) {
	var messages []models.DirectMessage
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Where("NOT (sender_id = ? AND deleted_for_sender = ?)", viewerID, true).
		Where("NOT (sender_id <> ? AND deleted_for_recipient = ?)", viewerID, true).
		Order("created_at, id").
		Find(&messages).Error
	return messages, err
}

// Message fetches a single message by ID.
func (s *Service) Message(ctx context.Context, id uint) (*models.DirectMessage, error) {
	var message models.DirectMessage
	if err := s.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// DeleteMessageForViewer hides a message from the viewer's side only. The
// caller must have verified the viewer's membership.
func (s *Service) DeleteMessageForViewer(ctx context.Context, message *models.DirectMessage, viewerID uint) error {
	column := "deleted_for_recipient"
	if message.SenderID == viewerID {
		column = "deleted_for_sender"
	}
	err := s.db.WithContext(ctx).Model(message).Update(column, true).Error
	if err != nil {
		return err
	}
	if message.SenderID == viewerID {
		message.DeletedForSender = true
	} else {
		message.DeletedForRecipient = true
	}
	return nil
}

// MarkRead records that the participant has seen the conversation up to now.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID uint) error {
	participant, err := s.EnsureParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	now := time.Now()
	err = s.db.WithContext(ctx).Model(&models.DirectConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", now).Error
	if err != nil {
		return err
	}
	participant.LastReadAt = &now
	return nil
}

// UnreadCount counts messages from the other side that arrived after the
// participant's last read mark and are still visible to them.
func (s *Service) UnreadCount(ctx context.Context, conversationID, userID uint) (int64, error) {
	var participant models.DirectConversationParticipant
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotParticipant
	}
	if err != nil {
		return 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("conversation_id = ? AND sender_id <> ? AND deleted_for_recipient = ?", conversationID, userID, false)
	if participant.LastReadAt != nil {
		query = query.Where("created_at > ?", *participant.LastReadAt)
	}

	var count int64
	err = query.Count(&count).Error
	return count, err
}

// LeaveConversation sets the participant's soft-leave flag. The conversation
// and its messages are untouched.
func (s *Service) LeaveConversation(ctx context.Context, conversationID, userID uint) error {
	var participant models.DirectConversationParticipant
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotParticipant
	}
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(&models.DirectConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("is_deleted", true).Error
}
