package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"playgrid/backend/internal/database"
	"playgrid/backend/internal/friendship"
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
	return NewService(db, friendship.NewService(db)), db
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

func makeFriends(t *testing.T, db *gorm.DB, a, b *models.User) {
	t.Helper()
	require.NoError(t, db.Create(&models.Friendship{User1ID: a.ID, User2ID: b.ID}).Error)
}

func seedPost(t *testing.T, db *gorm.DB, author *models.User, content string, createdAt time.Time) *models.Post {
	t.Helper()
	post := &models.Post{
		AuthorID: author.ID,
		Content:  content,
		Topic:    models.TopicNonGame,
	}
	post.CreatedAt = createdAt
	require.NoError(t, db.Create(post).Error)
	return post
}

func TestCreatePost(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, db, "alice")

	t.Run("EmptyTopicDefaults", func(t *testing.T) {
		post, err := svc.CreatePost(ctx, author.ID, "hello", "", "")
		require.NoError(t, err)
		assert.Equal(t, models.TopicNonGame, post.Topic)
	})

	t.Run("KnownTopic", func(t *testing.T) {
		post, err := svc.CreatePost(ctx, author.ID, "clutch round", "cs2", "")
		require.NoError(t, err)
		assert.Equal(t, models.TopicCS2, post.Topic)
	})

	t.Run("UnknownTopicRejected", func(t *testing.T) {
		_, err := svc.CreatePost(ctx, author.ID, "hello", "chess", "")
		assert.ErrorIs(t, err, ErrInvalidTopic)
	})
}

func TestFeedVisibility(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	viewer := seedUser(t, db, "alice")
	friend := seedUser(t, db, "bob")
	stranger := seedUser(t, db, "carol")
	makeFriends(t, db, viewer, friend)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	own := seedPost(t, db, viewer, "mine", base)
	friendPost := seedPost(t, db, friend, "from a friend", base.Add(time.Minute))
	deleted := seedPost(t, db, friend, "gone", base.Add(2*time.Minute))
	seedPost(t, db, stranger, "not for you", base.Add(3*time.Minute))
	require.NoError(t, svc.SoftDeletePost(ctx, deleted))

	posts, err := svc.Feed(ctx, viewer.ID, FeedOptions{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, friendPost.ID, posts[0].ID)
	assert.Equal(t, own.ID, posts[1].ID)
}

func TestFeedOrdering(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	viewer := seedUser(t, db, "alice")
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	first := seedPost(t, db, viewer, "first", at)
	second := seedPost(t, db, viewer, "second", at) // same timestamp, higher ID
	later := seedPost(t, db, viewer, "later", at.Add(time.Hour))

	t.Run("NewestFirstBreaksTiesByID", func(t *testing.T) {
		posts, err := svc.Feed(ctx, viewer.ID, FeedOptions{})
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, later.ID, posts[0].ID)
		assert.Equal(t, second.ID, posts[1].ID)
		assert.Equal(t, first.ID, posts[2].ID)
	})

	t.Run("OldestFirst", func(t *testing.T) {
		posts, err := svc.Feed(ctx, viewer.ID, FeedOptions{Order: OrderOldestFirst})
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, first.ID, posts[0].ID)
		assert.Equal(t, later.ID, posts[2].ID)
	})
}

func TestFeedFilters(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	viewer := seedUser(t, db, "alice")
	friend := seedUser(t, db, "bob")
	stranger := seedUser(t, db, "carol")
	makeFriends(t, db, viewer, friend)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seedPost(t, db, viewer, "mine", base)
	friendPost := seedPost(t, db, friend, "friend post", base.Add(time.Minute))
	seedPost(t, db, stranger, "hidden", base.Add(2*time.Minute))

	cs2, err := svc.CreatePost(ctx, viewer.ID, "ranked grind", "cs2", "")
	require.NoError(t, err)

	t.Run("FriendAuthorFilter", func(t *testing.T) {
		posts, err := svc.Feed(ctx, viewer.ID, FeedOptions{AuthorID: friend.ID})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, friendPost.ID, posts[0].ID)
	})

	t.Run("StrangerAuthorFilterIgnored", func(t *testing.T) {
		posts, err := svc.Feed(ctx, viewer.ID, FeedOptions{AuthorID: stranger.ID})
		require.NoError(t, err)
		assert.Len(t, posts, 3)
	})

	t.Run("TopicFilter", func(t *testing.T) {
		posts, err := svc.Feed(ctx, viewer.ID, FeedOptions{Topic: "cs2"})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, cs2.ID, posts[0].ID)
	})

	t.Run("UnknownTopicFilterIgnored", func(t *testing.T) {
		posts, err := svc.Feed(ctx, viewer.ID, FeedOptions{Topic: "chess"})
		require.NoError(t, err)
		assert.Len(t, posts, 3)
	})
}

func TestTopicPosts(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, db, "alice")

	post, err := svc.CreatePost(ctx, author.ID, "dota night", "dota2", "")
	require.NoError(t, err)

	posts, err := svc.TopicPosts(ctx, "dota2")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, post.ID, posts[0].ID)

	_, err = svc.TopicPosts(ctx, "chess")
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestToggleLike(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	author := seedUser(t, db, "alice")
	liker := seedUser(t, db, "bob")
	post, err := svc.CreatePost(ctx, author.ID, "like me", "", "")
	require.NoError(t, err)

	liked, err := svc.ToggleLike(ctx, post, liker.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = svc.ToggleLike(ctx, post, liker.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	var count int64
	require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, svc.SoftDeletePost(ctx, post))
	_, err = svc.ToggleLike(ctx, post, liker.ID)
	assert.ErrorIs(t, err, ErrPostDeleted)
}

func TestToggleLikeAbsorbsCompetingInsert(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	author := seedUser(t, db, "alice")
	liker := seedUser(t, db, "bob")
	post, err := svc.CreatePost(ctx, author.ID, "fastest finger", "", "")
	require.NoError(t, err)

	// Land a competing insert between the existence check and the create,
	// the way a second toggle racing on the same pair would.
	raced := false
	err = db.Callback().Create().Before("gorm:create").Register("competing_like", func(tx *gorm.DB) {
		if raced {
			return
		}
		if _, ok := tx.Statement.Dest.(*models.Like); !ok {
			return
		}
		raced = true
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("INSERT INTO likes (post_id, user_id, created_at) VALUES (?, ?, ?)",
				post.ID, liker.ID, time.Now())
	})
	require.NoError(t, err)

	liked, err := svc.ToggleLike(ctx, post, liker.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.True(t, raced)

	var count int64
	require.NoError(t, db.Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", post.ID, liker.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAddComment(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	author := seedUser(t, db, "alice")
	commenter := seedUser(t, db, "bob")
	post, err := svc.CreatePost(ctx, author.ID, "discuss", "", "")
	require.NoError(t, err)

	_, err = svc.AddComment(ctx, post, commenter.ID, "", "")
	assert.ErrorIs(t, err, ErrEmptyComment)

	comment, err := svc.AddComment(ctx, post, commenter.ID, "nice one", "")
	require.NoError(t, err)

	t.Run("DeletedCommentHiddenFromListings", func(t *testing.T) {
		require.NoError(t, svc.SoftDeleteComment(ctx, comment))
		posts, err := svc.UserPosts(ctx, author.ID)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Empty(t, posts[0].Comments)

		_, err = svc.Comment(ctx, comment.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("DeletedPostRefusesComments", func(t *testing.T) {
		require.NoError(t, svc.SoftDeletePost(ctx, post))
		_, err := svc.AddComment(ctx, post, commenter.ID, "too late", "")
		assert.ErrorIs(t, err, ErrPostDeleted)
	})
}

func TestSoftDeletePostKeepsRow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	author := seedUser(t, db, "alice")
	post, err := svc.CreatePost(ctx, author.ID, "ephemeral", "", "")
	require.NoError(t, err)
	require.NoError(t, svc.SoftDeletePost(ctx, post))

	posts, err := svc.UserPosts(ctx, author.ID)
	require.NoError(t, err)
	assert.Empty(t, posts)

	// The row survives for direct fetches, flagged deleted.
	stored, err := svc.Post(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)
}

func TestMarkLikes(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	author := seedUser(t, db, "alice")
	viewer := seedUser(t, db, "bob")

	likedPost, err := svc.CreatePost(ctx, author.ID, "liked", "", "")
	require.NoError(t, err)
	otherPost, err := svc.CreatePost(ctx, author.ID, "not liked", "", "")
	require.NoError(t, err)

	_, err = svc.ToggleLike(ctx, likedPost, viewer.ID)
	require.NoError(t, err)

	posts, err := svc.UserPosts(ctx, author.ID)
	require.NoError(t, err)

	liked, err := svc.MarkLikes(ctx, posts, viewer.ID)
	require.NoError(t, err)
	assert.True(t, liked[likedPost.ID])
	assert.False(t, liked[otherPost.ID])
}

func TestFriendCommentFlags(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	author := seedUser(t, db, "alice")
	friend := seedUser(t, db, "bob")
	stranger := seedUser(t, db, "carol")
	makeFriends(t, db, author, friend)

	post, err := svc.CreatePost(ctx, author.ID, "flags", "", "")
	require.NoError(t, err)

	friendComment, err := svc.AddComment(ctx, post, friend.ID, "from a friend", "")
	require.NoError(t, err)
	strangerComment, err := svc.AddComment(ctx, post, stranger.ID, "from a stranger", "")
	require.NoError(t, err)
	ownComment, err := svc.AddComment(ctx, post, author.ID, "from the author", "")
	require.NoError(t, err)

	posts, err := svc.UserPosts(ctx, author.ID)
	require.NoError(t, err)

	flags, err := svc.FriendCommentFlags(ctx, posts)
	require.NoError(t, err)
	assert.True(t, flags[friendComment.ID])
	assert.False(t, flags[strangerComment.ID])
	assert.False(t, flags[ownComment.ID])
}
