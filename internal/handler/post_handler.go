package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"playgrid/backend/internal/database"
	"playgrid/backend/internal/feed"
	"playgrid/backend/internal/models"
	"playgrid/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// CommentResponse describes one active comment under a post.
type CommentResponse struct {
	ID             uint               `json:"id"`
	Author         PublicUserResponse `json:"author"`
	Content        string             `json:"content"`
	AttachmentURL  string             `json:"attachment_url,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	FriendOfAuthor bool               `json:"friend_of_author"`
}

// PostResponse describes one feed post with its likes and active comments.
type PostResponse struct {
	ID         uint               `json:"id"`
	Author     PublicUserResponse `json:"author"`
	Content    string             `json:"content"`
	ImageURL   string             `json:"image_url,omitempty"`
	Topic      string             `json:"topic"`
	TopicLabel string             `json:"topic_label"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	LikeCount  int                `json:"like_count"`
	LikedByMe  bool               `json:"liked_by_me"`
	Comments   []CommentResponse  `json:"comments"`
}

// TopicResponse describes one post topic.
type TopicResponse struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
}

// endregion

// PostHandler serves the feed, posts, comments and likes.
type PostHandler struct {
	svc   *feed.Service
	store *storage.BlobStore
}

func NewPostHandler(svc *feed.Service, store *storage.BlobStore) *PostHandler {
	return &PostHandler{svc: svc, store: store}
}

// GetFeed godoc
// @Summary      Get the feed
// @Description  Returns posts by the authenticated user and their friends. Unknown topic or friend filters silently reset to "all".
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        order  query  string  false  "Sort order (new or old)"  default(new)
// @Param        topic  query  string  false  "Topic filter"
// @Param        friend query  int     false  "Only posts by this friend"
// @Success      200  {array}   PostResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /feed [get]
func (h *PostHandler) GetFeed(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	opts := feed.FeedOptions{
		Topic: c.Query("topic"),
		Order: c.DefaultQuery("order", feed.OrderNewestFirst),
	}
	if friendParam := c.Query("friend"); friendParam != "" && friendParam != "all" {
		if friendID, err := strconv.ParseUint(friendParam, 10, 32); err == nil {
			opts.AuthorID = uint(friendID)
		}
	}

	posts, err := h.svc.Feed(c.Request.Context(), viewerID.(uint), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch feed"})
		return
	}

	h.respondPosts(c, posts, viewerID.(uint))
}

// GetTopics godoc
// @Summary      List post topics
// @Description  Returns the fixed set of post topics with display labels.
// @Tags         posts
// @Produce      json
// @Success      200  {array}  TopicResponse
// @Router       /topics [get]
func (h *PostHandler) GetTopics(c *gin.Context) {
	topics := make([]TopicResponse, 0, len(models.TopicLabels))
	for _, t := range models.TopicLabels {
		topics = append(topics, TopicResponse{Slug: string(t.Topic), Label: t.Label})
	}
	c.JSON(http.StatusOK, topics)
}

// GetTopicPosts godoc
// @Summary      List posts by topic
// @Description  Returns every active post filed under the topic, newest first.
// @Tags         posts
// @Produce      json
// @Param        slug  path  string  true  "Topic slug"
// @Success      200  {array}   PostResponse
// @Failure      404  {object}  ErrorResponse "Topic not found"
// @Router       /topics/{slug}/posts [get]
func (h *PostHandler) GetTopicPosts(c *gin.Context) {
	viewerID := uint(0)
	if id, exists := c.Get("userID"); exists {
		viewerID = id.(uint)
	}

	posts, err := h.svc.TopicPosts(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, feed.ErrInvalidTopic) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	h.respondPosts(c, posts, viewerID)
}

// GetUserPosts godoc
// @Summary      List a user's posts
// @Description  Returns the user's active posts, newest first.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "User ID"
// @Success      200  {array}   PostResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/{id}/posts [get]
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	authorID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	posts, err := h.svc.UserPosts(c.Request.Context(), uint(authorID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	h.respondPosts(c, posts, viewerID.(uint))
}

// CreatePost godoc
// @Summary      Create a post
// @Description  Creates a post with content, an optional topic and an optional image.
// @Tags         posts
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        content formData string true  "Post content"
// @Param        topic   formData string false "Topic slug"
// @Param        image   formData file   false "Image"
// @Success      201  {object}  map[string]uint "{"id": 1}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /posts [post]
func (h *PostHandler) CreatePost(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	content := c.PostForm("content")
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content is required"})
		return
	}

	imageURL, ok := h.uploadIfPresent(c, "image", "posts")
	if !ok {
		return
	}

	post, err := h.svc.CreatePost(c.Request.Context(), viewerID.(uint), content, c.PostForm("topic"), imageURL)
	if errors.Is(err, feed.ErrInvalidTopic) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown topic"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": post.ID})
}

// UpdatePost godoc
// @Summary      Edit a post
// @Description  Updates content, topic and image of the authenticated user's own post.
// @Tags         posts
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id      path     int    true  "Post ID"
// @Param        content formData string true  "Post content"
// @Param        topic   formData string false "Topic slug"
// @Param        image   formData file   false "Image"
// @Success      200  {object}  map[string]string "{"message": "Post updated"}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Post not found"
// @Router       /posts/{id} [put]
func (h *PostHandler) UpdatePost(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	post, ok := h.ownActivePost(c, viewerID.(uint))
	if !ok {
		return
	}

	content := c.PostForm("content")
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content is required"})
		return
	}

	imageURL, ok := h.uploadIfPresent(c, "image", "posts")
	if !ok {
		return
	}

	err := h.svc.UpdatePost(c.Request.Context(), post, content, c.PostForm("topic"), imageURL)
	switch {
	case errors.Is(err, feed.ErrInvalidTopic):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown topic"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Post updated"})
	}
}

// DeletePost godoc
// @Summary      Delete a post
// @Description  Soft-deletes the authenticated user's own post. The row is kept; it simply stops appearing in listings.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Post ID"
// @Success      200  {object}  map[string]string "{"message": "Post deleted"}"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Post not found"
// @Router       /posts/{id} [delete]
func (h *PostHandler) DeletePost(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	post, ok := h.ownActivePost(c, viewerID.(uint))
	if !ok {
		return
	}

	if err := h.svc.SoftDeletePost(c.Request.Context(), post); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// AdminDeletePost godoc
// @Summary      Moderate a post
// @Description  Soft-deletes any post. Admin only.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Post ID"
// @Success      200  {object}  map[string]string "{"message": "Post deleted"}"
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/posts/{id} [delete]
func (h *PostHandler) AdminDeletePost(c *gin.Context) {
	postID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	post, err := h.svc.Post(c.Request.Context(), uint(postID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if err := h.svc.SoftDeletePost(c.Request.Context(), post); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// ToggleLike godoc
// @Summary      Toggle a like
// @Description  Likes the post if not yet liked, otherwise removes the like. Reports the resulting state.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Post ID"
// @Success      200  {object}  map[string]bool "{"liked": true}"
// @Failure      400  {object}  ErrorResponse "Post deleted"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Post not found"
// @Router       /posts/{id}/like [post]
func (h *PostHandler) ToggleLike(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	postID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	post, err := h.svc.Post(c.Request.Context(), uint(postID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	liked, err := h.svc.ToggleLike(c.Request.Context(), post, viewerID.(uint))
	switch {
	case errors.Is(err, feed.ErrPostDeleted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot like a deleted post"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle like"})
	default:
		c.JSON(http.StatusOK, gin.H{"liked": liked})
	}
}

// AddComment godoc
// @Summary      Comment on a post
// @Description  Adds a comment with optional attachment to an active post.
// @Tags         posts
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id         path     int    true  "Post ID"
// @Param        content    formData string true  "Comment content"
// @Param        attachment formData file   false "Attachment"
// @Success      201  {object}  map[string]uint "{"id": 1}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Post not found"
// @Router       /posts/{id}/comments [post]
func (h *PostHandler) AddComment(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	postID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	post, err := h.svc.Post(c.Request.Context(), uint(postID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	attachmentURL, ok := h.uploadIfPresent(c, "attachment", "comment_attachments")
	if !ok {
		return
	}

	comment, err := h.svc.AddComment(c.Request.Context(), post, viewerID.(uint), c.PostForm("content"), attachmentURL)
	switch {
	case errors.Is(err, feed.ErrPostDeleted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot comment on a deleted post"})
	case errors.Is(err, feed.ErrEmptyComment):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content is required"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add comment"})
	default:
		c.JSON(http.StatusCreated, gin.H{"id": comment.ID})
	}
}

// DeleteComment godoc
// @Summary      Delete a comment
// @Description  Soft-deletes the authenticated user's own comment.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Comment ID"
// @Success      200  {object}  map[string]string "{"message": "Comment removed"}"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Comment not found"
// @Router       /comments/{id} [delete]
func (h *PostHandler) DeleteComment(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	commentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return
	}

	var comment models.Comment
	if err := database.DB.Where("id = ? AND author_id = ? AND is_deleted = ?",
		uint(commentID), viewerID, false).First(&comment).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}

	if err := h.svc.SoftDeleteComment(c.Request.Context(), &comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove comment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment removed"})
}

// AdminDeleteComment godoc
// @Summary      Moderate a comment
// @Description  Soft-deletes any comment. Admin only.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Comment ID"
// @Success      200  {object}  map[string]string "{"message": "Comment removed"}"
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/comments/{id} [delete]
func (h *PostHandler) AdminDeleteComment(c *gin.Context) {
	commentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return
	}

	comment, err := h.svc.Comment(c.Request.Context(), uint(commentID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}

	if err := h.svc.SoftDeleteComment(c.Request.Context(), comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove comment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment removed"})
}

// region --- Helpers ---

// ownActivePost loads a non-deleted post owned by the viewer.
func (h *PostHandler) ownActivePost(c *gin.Context, viewerID uint) (*models.Post, bool) {
	postID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return nil, false
	}

	var post models.Post
	if err := database.DB.Where("id = ? AND author_id = ? AND is_deleted = ?",
		uint(postID), viewerID, false).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return nil, false
	}
	return &post, true
}

// uploadIfPresent pushes an optional multipart file to the blob store.
// The second return value is false when a response has already been written.
func (h *PostHandler) uploadIfPresent(c *gin.Context, field, prefix string) (string, bool) {
	file, err := c.FormFile(field)
	if err != nil || h.store == nil {
		return "", true
	}

	url, err := h.store.Upload(c.Request.Context(), prefix, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return "", false
	}
	return url, true
}

// respondPosts annotates a post batch with like marks and friend-comment
// flags, then renders it.
func (h *PostHandler) respondPosts(c *gin.Context, posts []models.Post, viewerID uint) {
	ctx := c.Request.Context()

	liked, err := h.svc.MarkLikes(ctx, posts, viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve likes"})
		return
	}
	friendFlags, err := h.svc.FriendCommentFlags(ctx, posts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve comment flags"})
		return
	}

	responses := make([]PostResponse, 0, len(posts))
	for _, post := range posts {
		comments := make([]CommentResponse, 0, len(post.Comments))
		for _, comment := range post.Comments {
			comments = append(comments, CommentResponse{
				ID: comment.ID,
				Author: PublicUserResponse{
					ID:          comment.Author.ID,
					Nickname:    comment.Author.Nickname,
					DisplayName: comment.Author.DisplayName,
					AvatarURL:   comment.Author.AvatarURL,
				},
				Content:        comment.Content,
				AttachmentURL:  comment.AttachmentURL,
				CreatedAt:      comment.CreatedAt,
				FriendOfAuthor: friendFlags[comment.ID],
			})
		}

		responses = append(responses, PostResponse{
			ID: post.ID,
			Author: PublicUserResponse{
				ID:          post.Author.ID,
				Nickname:    post.Author.Nickname,
				DisplayName: post.Author.DisplayName,
				AvatarURL:   post.Author.AvatarURL,
			},
			Content:    post.Content,
			ImageURL:   post.ImageURL,
			Topic:      string(post.Topic),
			TopicLabel: models.TopicLabel(post.Topic),
			CreatedAt:  post.CreatedAt,
			UpdatedAt:  post.UpdatedAt,
			LikeCount:  len(post.Likes),
			LikedByMe:  liked[post.ID],
			Comments:   comments,
		})
	}

	c.JSON(http.StatusOK, responses)
}

// endregion
