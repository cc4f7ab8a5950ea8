package feed

import (
	"context"
	"errors"

	"playgrid/backend/internal/friendship"
	"playgrid/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPostDeleted  = errors.New("post has been deleted")
	ErrEmptyComment = errors.New("comment content is required")
	ErrInvalidTopic = errors.New("unknown post topic")
)

// Order values accepted by Feed.
const (
	OrderNewestFirst = "new"
	OrderOldestFirst = "old"
)

// FeedOptions narrows a feed listing. Zero values mean "no filter".
// Unrecognized topic or author filters silently reset to "show all".
type FeedOptions struct {
	Topic    string
	AuthorID uint
	Order    string
}

// Service implements posts, comments, likes and feed visibility. Soft-deleted
// rows stay in storage; every read path here filters them out.
type Service struct {
	db      *gorm.DB
	friends *friendship.Service
}

func NewService(db *gorm.DB, friends *friendship.Service) *Service {
	return &Service{db: db, friends: friends}
}

// baseQuery loads active posts with authors, likes and active comments.
func (s *Service) baseQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Post{}).
		Preload("Author").
		Preload("Likes").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_deleted = ?", false).Order("created_at")
		}).
		Preload("Comments.Author").
		Where("is_deleted = ?", false)
}

// CreatePost creates a post for the author. An empty topic defaults to the
// non-game category.
func (s *Service) CreatePost(ctx context.Context, authorID uint, content, topic, imageURL string) (*models.Post, error) {
	if topic == "" {
		topic = string(models.TopicNonGame)
	}
	if !models.ValidTopic(topic) {
		return nil, ErrInvalidTopic
	}

	post := &models.Post{
		AuthorID: authorID,
		Content:  content,
		Topic:    models.PostTopic(topic),
		ImageURL: imageURL,
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost edits a post's content, topic and image. The caller is
// responsible for having loaded a non-deleted post owned by the editor.
func (s *Service) UpdatePost(ctx context.Context, post *models.Post, content, topic, imageURL string) error {
	if post.IsDeleted {
		return ErrPostDeleted
	}
	if topic == "" {
		topic = string(post.Topic)
	}
	if !models.ValidTopic(topic) {
		return ErrInvalidTopic
	}

	post.Content = content
	post.Topic = models.PostTopic(topic)
	if imageURL != "" {
		post.ImageURL = imageURL
	}
	return s.db.WithContext(ctx).Model(post).
		Select("content", "topic", "image_url").
		Updates(models.Post{Content: post.Content, Topic: post.Topic, ImageURL: post.ImageURL}).Error
}

// Feed returns posts authored by the user or any current friend, excluding
// soft-deleted posts. Default order is newest first with the ID breaking
// timestamp ties.
func (s *Service) Feed(ctx context.Context, userID uint, opts FeedOptions) ([]models.Post, error) {
	friendIDs, err := s.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := s.baseQuery(ctx)
	if len(friendIDs) > 0 {
		query = query.Where("author_id = ? OR author_id IN ?", userID, friendIDs)
	} else {
		query = query.Where("author_id = ?", userID)
	}

	// Author filter only applies to the viewer or a current friend;
	// anything else resets to "show all".
	if opts.AuthorID != 0 {
		allowed := opts.AuthorID == userID
		for _, id := range friendIDs {
			if id == opts.AuthorID {
				allowed = true
				break
			}
		}
		if allowed {
			query = query.Where("author_id = ?", opts.AuthorID)
		}
	}

	if opts.Topic != "" && models.ValidTopic(opts.Topic) {
		query = query.Where("topic = ?", opts.Topic)
	}

	if opts.Order == OrderOldestFirst {
		query = query.Order("created_at, id")
	} else {
		query = query.Order("created_at DESC, id DESC")
	}

	var posts []models.Post
	err = query.Find(&posts).Error
	return posts, err
}

// TopicPosts returns every active post filed under the topic, newest first.
func (s *Service) TopicPosts(ctx context.Context, topic string) ([]models.Post, error) {
	if !models.ValidTopic(topic) {
		return nil, ErrInvalidTopic
	}
	var posts []models.Post
	err := s.baseQuery(ctx).
		Where("topic = ?", topic).
		Order("created_at DESC, id DESC").
		Find(&posts).Error
	return posts, err
}

// UserPosts returns the author's active posts, newest first.
func (s *Service) UserPosts(ctx context.Context, authorID uint) ([]models.Post, error) {
	var posts []models.Post
	err := s.baseQuery(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC, id DESC").
		Find(&posts).Error
	return posts, err
}

// Post fetches a single post by ID, deleted or not. Visibility checks are the
// caller's concern.
func (s *Service) Post(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// Comment fetches a single active comment by ID.
func (s *Service) Comment(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ToggleLike flips the like state of a post for a user and reports the
// resulting state: true for liked, false for unliked. If a concurrent insert
// already created the like, the conflicting insert is a no-op and the call
// still reports liked.
func (s *Service) ToggleLike(ctx context.Context, post *models.Post, userID uint) (bool, error) {
	if post.IsDeleted {
		return false, ErrPostDeleted
	}

	liked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Like
		err := tx.Where("post_id = ? AND user_id = ?", post.ID, userID).First(&existing).Error
		if err == nil {
			liked = false
			return tx.Where("post_id = ? AND user_id = ?", post.ID, userID).Delete(&models.Like{}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// A concurrent toggle may insert the row between the check and the
		// create. The conflict clause absorbs that without failing the
		// statement; the outcome is "liked" either way.
		liked = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Like{PostID: post.ID, UserID: userID}).Error
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}

// AddComment adds a comment to a post. Commenting on a deleted post fails.
func (s *Service) AddComment(ctx context.Context, post *models.Post, authorID uint, content, attachmentURL string) (*models.Comment, error) {
	if post.IsDeleted {
		return nil, ErrPostDeleted
	}
	if content == "" {
		return nil, ErrEmptyComment
	}

	comment := &models.Comment{
		PostID:        post.ID,
		AuthorID:      authorID,
		Content:       content,
		AttachmentURL: attachmentURL,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// SoftDeletePost hides a post from every listing. The row and its comments
// stay in storage.
func (s *Service) SoftDeletePost(ctx context.Context, post *models.Post) error {
	post.IsDeleted = true
	return s.db.WithContext(ctx).Model(post).Update("is_deleted", true).Error
}

// SoftDeleteComment hides a comment. The row stays in storage.
func (s *Service) SoftDeleteComment(ctx context.Context, comment *models.Comment) error {
	comment.IsDeleted = true
	return s.db.WithContext(ctx).Model(comment).Update("is_deleted", true).Error
}

// MarkLikes returns the set of post IDs among posts the user has liked,
// resolved with one query.
func (s *Service) MarkLikes(ctx context.Context, posts []models.Post, userID uint) (map[uint]bool, error) {
	liked := make(map[uint]bool, len(posts))
	if len(posts) == 0 || userID == 0 {
		return liked, nil
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	var likes []models.Like
	err := s.db.WithContext(ctx).
		Where("post_id IN ? AND user_id = ?", postIDs, userID).
		Find(&likes).Error
	if err != nil {
		return nil, err
	}
	for _, l := range likes {
		liked[l.PostID] = true
	}
	return liked, nil
}

// FriendCommentFlags reports, for each active comment under each post, whether
// the comment's author is a friend of that post's author. The friendships for
// every author in the batch are resolved with a single query.
func (s *Service) FriendCommentFlags(ctx context.Context, posts []models.Post) (map[uint]bool, error) {
	authorIDs := make([]uint, 0, len(posts))
	seen := make(map[uint]bool, len(posts))
	for _, p := range posts {
		if !seen[p.AuthorID] {
			seen[p.AuthorID] = true
			authorIDs = append(authorIDs, p.AuthorID)
		}
	}

	friendMap, err := s.friends.FriendMap(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	flags := make(map[uint]bool)
	for _, p := range posts {
		authorFriends := friendMap[p.AuthorID]
		for _, c := range p.Comments {
			flags[c.ID] = authorFriends[c.AuthorID]
		}
	}
	return flags, nil
}
