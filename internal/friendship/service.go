package friendship

import (
	"context"
	"errors"
	"time"

	"playgrid/backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrSelfRequest       = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends    = errors.New("users are already friends")
	ErrRequestPending    = errors.New("a pending friend request already exists between these users")
	ErrRequestNotPending = errors.New("friend request is not pending")
	ErrSamePair          = errors.New("cannot use the same user in a friendship pair")
)

// Service implements the friendship state machine: directional requests and
// the symmetric, canonically ordered friendship edge they produce.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// orderedPair normalizes two user IDs so the lower one always comes first.
func orderedPair(a, b uint) (uint, uint, error) {
	if a == b {
		return 0, 0, ErrSamePair
	}
	if a > b {
		a, b = b, a
	}
	return a, b, nil
}

// AreFriends reports whether a canonical friendship row exists for the pair.
func (s *Service) AreFriends(ctx context.Context, userA, userB uint) (bool, error) {
	u1, u2, err := orderedPair(userA, userB)
	if err != nil {
		return false, err
	}
	var count int64
	err = s.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		Count(&count).Error
	return count > 0, err
}

// Friendship returns the friendship row for the pair, or nil if none exists.
func (s *Service) Friendship(ctx context.Context, userA, userB uint) (*models.Friendship, error) {
	u1, u2, err := orderedPair(userA, userB)
	if err != nil {
		return nil, err
	}
	var friendship models.Friendship
	err = s.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&friendship).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &friendship, nil
}

// SendRequest creates a pending friend request from one user to another.
// It fails if the users are the same, already friends, or a pending request
// already exists in either direction.
func (s *Service) SendRequest(ctx context.Context, fromID, toID uint) (*models.FriendRequest, error) {
	if fromID == toID {
		return nil, ErrSelfRequest
	}

	already, err := s.AreFriends(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, ErrAlreadyFriends
	}

	var pending int64
	err = s.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)) AND status = ?",
			fromID, toID, toID, fromID, models.RequestPending).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrRequestPending
	}

	request := &models.FriendRequest{
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     models.RequestPending,
	}
	if err := s.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// Accept marks a pending request accepted and creates the friendship edge.
// Both writes happen in one transaction. Ownership (only the recipient may
// accept) is the caller's check.
func (s *Service) Accept(ctx context.Context, request *models.FriendRequest) (*models.Friendship, error) {
	if request.Status != models.RequestPending {
		return nil, ErrRequestNotPending
	}

	friendship := &models.Friendship{
		User1ID: request.FromUserID,
		User2ID: request.ToUserID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(friendship).Error; err != nil {
			return err
		}

		now := time.Now()
		request.Status = models.RequestAccepted
		request.RespondedAt = &now
		return tx.Model(request).
			Select("status", "responded_at").
			Updates(models.FriendRequest{Status: models.RequestAccepted, RespondedAt: &now}).Error
	})
	if err != nil {
		return nil, err
	}
	return friendship, nil
}

// Reject marks a pending request rejected. Performed by the recipient;
// the ownership check belongs to the caller.
func (s *Service) Reject(ctx context.Context, request *models.FriendRequest) error {
	return s.finish(ctx, request, models.RequestRejected)
}

// Cancel marks a pending request cancelled. Performed by the sender;
// the ownership check belongs to the caller.
func (s *Service) Cancel(ctx context.Context, request *models.FriendRequest) error {
	return s.finish(ctx, request, models.RequestCancelled)
}

func (s *Service) finish(ctx context.Context, request *models.FriendRequest, status models.FriendRequestStatus) error {
	if request.Status != models.RequestPending {
		return ErrRequestNotPending
	}
	now := time.Now()
	err := s.db.WithContext(ctx).Model(request).
		Select("status", "responded_at").
		Updates(models.FriendRequest{Status: status, RespondedAt: &now}).Error
	if err != nil {
		return err
	}
	request.Status = status
	request.RespondedAt = &now
	return nil
}

// RemoveFriendship deletes the friendship row for the pair if present and
// returns it. The row is removed outright so the pair stops occupying the
// unique index and can become friends again. Removing an absent friendship
// is not an error.
func (s *Service) RemoveFriendship(ctx context.Context, userA, userB uint) (*models.Friendship, error) {
	friendship, err := s.Friendship(ctx, userA, userB)
	if err != nil || friendship == nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Unscoped().Delete(friendship).Error; err != nil {
		return nil, err
	}
	return friendship, nil
}

// FriendIDs returns the IDs of every friend of the user.
func (s *Service) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var friendships []models.Friendship
	err := s.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Find(&friendships).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(friendships))
	for _, f := range friendships {
		if f.User1ID == userID {
			ids = append(ids, f.User2ID)
		} else {
			ids = append(ids, f.User1ID)
		}
	}
	return ids, nil
}

// Friends returns the user's friends ordered by nickname.
func (s *Service) Friends(ctx context.Context, userID uint) ([]models.User, error) {
	ids, err := s.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	var friends []models.User
	err = s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("nickname").
		Find(&friends).Error
	return friends, err
}

// FriendMap builds, with a single query over every friendship row touching any
// of the given users, a mapping from each user ID to the set of their friend
// IDs. Used to annotate a batch of feed posts without per-row lookups.
func (s *Service) FriendMap(ctx context.Context, userIDs []uint) (map[uint]map[uint]bool, error) {
	friendMap := make(map[uint]map[uint]bool, len(userIDs))
	if len(userIDs) == 0 {
		return friendMap, nil
	}
	for _, id := range userIDs {
		if _, ok := friendMap[id]; !ok && id != 0 {
			friendMap[id] = make(map[uint]bool)
		}
	}

	var friendships []models.Friendship
	err := s.db.WithContext(ctx).
		Where("user1_id IN ? OR user2_id IN ?", userIDs, userIDs).
		Find(&friendships).Error
	if err != nil {
		return nil, err
	}

	for _, f := range friendships {
		if set, ok := friendMap[f.User1ID]; ok {
			set[f.User2ID] = true
		}
		if set, ok := friendMap[f.User2ID]; ok {
			set[f.User1ID] = true
		}
	}
	return friendMap, nil
}

// PendingIncoming lists pending requests addressed to the user, newest first.
func (s *Service) PendingIncoming(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := s.db.WithContext(ctx).Preload("FromUser").Preload("ToUser").
		Where("to_user_id = ? AND status = ?", userID, models.RequestPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// PendingOutgoing lists pending requests the user has sent, newest first.
func (s *Service) PendingOutgoing(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := s.db.WithContext(ctx).Preload("FromUser").Preload("ToUser").
		Where("from_user_id = ? AND status = ?", userID, models.RequestPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// Request fetches a friend request by ID.
func (s *Service) Request(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var request models.FriendRequest
	if err := s.db.WithContext(ctx).First(&request, id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}
