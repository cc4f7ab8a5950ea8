package friendship

import (
	"context"
	"fmt"
	"testing"

	"playgrid/backend/internal/database"
	"playgrid/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewService(db), db
}

func seedUser(t *testing.T, db *gorm.DB, nickname string) *models.User {
	t.Helper()
	user := &models.User{
		Nickname:     nickname,
		Email:        nickname + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestSendRequest(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	t.Run("RejectsSelf", func(t *testing.T) {
		_, err := svc.SendRequest(ctx, alice.ID, alice.ID)
		assert.ErrorIs(t, err, ErrSelfRequest)
	})

	t.Run("CreatesPending", func(t *testing.T) {
		request, err := svc.SendRequest(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestPending, request.Status)
		assert.Nil(t, request.RespondedAt)
	})

	t.Run("RejectsDuplicateInEitherDirection", func(t *testing.T) {
		_, err := svc.SendRequest(ctx, alice.ID, bob.ID)
		assert.ErrorIs(t, err, ErrRequestPending)

		_, err = svc.SendRequest(ctx, bob.ID, alice.ID)
		assert.ErrorIs(t, err, ErrRequestPending)
	})
}

func TestAccept(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	// Send from the higher ID so accepting has to normalize the pair.
	request, err := svc.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	friendship, err := svc.Accept(ctx, request)
	require.NoError(t, err)

	t.Run("StoresCanonicalPair", func(t *testing.T) {
		assert.Equal(t, alice.ID, friendship.User1ID)
		assert.Equal(t, bob.ID, friendship.User2ID)
	})

	t.Run("SymmetricLookup", func(t *testing.T) {
		got, err := svc.AreFriends(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, got)

		got, err = svc.AreFriends(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("RecordsResponse", func(t *testing.T) {
		assert.Equal(t, models.RequestAccepted, request.Status)
		assert.NotNil(t, request.RespondedAt)

		var stored models.FriendRequest
		require.NoError(t, db.First(&stored, request.ID).Error)
		assert.Equal(t, models.RequestAccepted, stored.Status)
		assert.NotNil(t, stored.RespondedAt)
	})

	t.Run("TerminalRequestCannotBeReused", func(t *testing.T) {
		_, err := svc.Accept(ctx, request)
		assert.ErrorIs(t, err, ErrRequestNotPending)
		assert.ErrorIs(t, svc.Reject(ctx, request), ErrRequestNotPending)
		assert.ErrorIs(t, svc.Cancel(ctx, request), ErrRequestNotPending)
	})

	t.Run("FriendsCannotRequestAgain", func(t *testing.T) {
		_, err := svc.SendRequest(ctx, alice.ID, bob.ID)
		assert.ErrorIs(t, err, ErrAlreadyFriends)
	})
}

func TestRejectAllowsNewRequest(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	request, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Reject(ctx, request))
	assert.Equal(t, models.RequestRejected, request.Status)
	assert.NotNil(t, request.RespondedAt)

	friends, err := svc.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, friends)

	// A rejected request no longer blocks either direction.
	_, err = svc.SendRequest(ctx, bob.ID, alice.ID)
	assert.NoError(t, err)
}

func TestCancel(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	request, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, request))
	assert.Equal(t, models.RequestCancelled, request.Status)

	_, err = svc.SendRequest(ctx, alice.ID, bob.ID)
	assert.NoError(t, err)
}

func TestRemoveFriendship(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	request, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, request)
	require.NoError(t, err)

	removed, err := svc.RemoveFriendship(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, removed)

	friends, err := svc.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, friends)

	// Removing again is a no-op, not an error.
	removed, err = svc.RemoveFriendship(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, removed)
}

func TestRefriendAfterRemoval(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	request, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, request)
	require.NoError(t, err)

	_, err = svc.RemoveFriendship(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	// The row must be gone outright; a lingering row would keep the pair
	// occupied in the unique index and block accepting ever again.
	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Friendship{}).Count(&count).Error)
	assert.Zero(t, count)

	request, err = svc.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	friendship, err := svc.Accept(ctx, request)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, friendship.User1ID)

	friends, err := svc.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, friends)
}

func TestFriendshipCreateNormalizesPair(t *testing.T) {
	_, db := newTestService(t)

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	friendship := &models.Friendship{User1ID: bob.ID, User2ID: alice.ID}
	require.NoError(t, db.Create(friendship).Error)
	assert.Equal(t, alice.ID, friendship.User1ID)
	assert.Equal(t, bob.ID, friendship.User2ID)

	err := db.Create(&models.Friendship{User1ID: alice.ID, User2ID: alice.ID}).Error
	assert.ErrorIs(t, err, models.ErrSamePairUser)
}

func TestFriendsOrderedByNickname(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	zoe := seedUser(t, db, "zoe")
	bob := seedUser(t, db, "bob")

	for _, friend := range []*models.User{zoe, bob} {
		require.NoError(t, db.Create(&models.Friendship{User1ID: alice.ID, User2ID: friend.ID}).Error)
	}

	friends, err := svc.Friends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, "bob", friends[0].Nickname)
	assert.Equal(t, "zoe", friends[1].Nickname)
}

func TestFriendMap(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")
	dave := seedUser(t, db, "dave")

	require.NoError(t, db.Create(&models.Friendship{User1ID: alice.ID, User2ID: bob.ID}).Error)
	require.NoError(t, db.Create(&models.Friendship{User1ID: bob.ID, User2ID: carol.ID}).Error)

	friendMap, err := svc.FriendMap(ctx, []uint{alice.ID, bob.ID, dave.ID})
	require.NoError(t, err)

	assert.True(t, friendMap[alice.ID][bob.ID])
	assert.True(t, friendMap[bob.ID][alice.ID])
	assert.True(t, friendMap[bob.ID][carol.ID])
	assert.False(t, friendMap[alice.ID][carol.ID])
	assert.Empty(t, friendMap[dave.ID])
}

func TestPendingListings(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	_, err := svc.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	outgoing, err := svc.SendRequest(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	incoming, err := svc.PendingIncoming(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, bob.ID, incoming[0].FromUserID)
	assert.Equal(t, "bob", incoming[0].FromUser.Nickname)
	assert.Equal(t, "alice", incoming[0].ToUser.Nickname)

	sent, err := svc.PendingOutgoing(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, carol.ID, sent[0].ToUserID)
	assert.Equal(t, "alice", sent[0].FromUser.Nickname)
	assert.Equal(t, "carol", sent[0].ToUser.Nickname)

	// Finished requests drop out of both listings.
	require.NoError(t, svc.Cancel(ctx, outgoing))
	sent, err = svc.PendingOutgoing(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, sent)
}
