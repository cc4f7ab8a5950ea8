package handler

import (
	"errors"
	"net/http"
	"strconv"

	"playgrid/backend/internal/database"
	"playgrid/backend/internal/friendship"
	"playgrid/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// FriendRequestResponse describes one pending friend request.
type FriendRequestResponse struct {
	ID        uint               `json:"id"`
	FromUser  PublicUserResponse `json:"from_user"`
	ToUser    PublicUserResponse `json:"to_user"`
	Status    string             `json:"status"`
	CreatedAt string             `json:"created_at"`
}

// FriendHandler serves friendship requests and the friends list.
type FriendHandler struct {
	svc *friendship.Service
}

func NewFriendHandler(svc *friendship.Service) *FriendHandler {
	return &FriendHandler{svc: svc}
}

// GetFriends godoc
// @Summary      List friends
// @Description  Lists the authenticated user's friends ordered by nickname.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   PublicUserResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /friends [get]
func (h *FriendHandler) GetFriends(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	friends, err := h.svc.Friends(c.Request.Context(), viewerID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch friends"})
		return
	}

	responses := make([]PublicUserResponse, 0, len(friends))
	for _, friend := range friends {
		responses = append(responses, PublicUserResponse{
			ID:          friend.ID,
			Nickname:    friend.Nickname,
			DisplayName: friend.DisplayName,
			AvatarURL:   friend.AvatarURL,
			IsFriend:    true,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// GetIncomingRequests godoc
// @Summary      List incoming friend requests
// @Description  Lists pending friend requests addressed to the authenticated user.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   FriendRequestResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /friend-requests/incoming [get]
func (h *FriendHandler) GetIncomingRequests(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	requests, err := h.svc.PendingIncoming(c.Request.Context(), viewerID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch friend requests"})
		return
	}
	c.JSON(http.StatusOK, buildRequestResponses(requests))
}

// GetOutgoingRequests godoc
// @Summary      List outgoing friend requests
// @Description  Lists pending friend requests the authenticated user has sent.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   FriendRequestResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /friend-requests/outgoing [get]
func (h *FriendHandler) GetOutgoingRequests(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	requests, err := h.svc.PendingOutgoing(c.Request.Context(), viewerID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sent requests"})
		return
	}
	c.JSON(http.StatusOK, buildRequestResponses(requests))
}

// SendRequest godoc
// @Summary      Send friend request
// @Description  Sends a friend request to another user.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Target User ID"
// @Success      201  {object}  map[string]string "{"message": "Friend request sent"}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Target user not found"
// @Failure      409  {object}  ErrorResponse "Already friends or request pending"
// @Router       /users/{id}/request [post]
func (h *FriendHandler) SendRequest(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetUserID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user ID"})
		return
	}

	var target models.User
	if err := database.DB.First(&target, uint(targetUserID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	_, err = h.svc.SendRequest(c.Request.Context(), viewerID.(uint), uint(targetUserID))
	switch {
	case errors.Is(err, friendship.ErrSelfRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot send friend request to yourself"})
	case errors.Is(err, friendship.ErrAlreadyFriends):
		c.JSON(http.StatusConflict, gin.H{"error": "Already friends with this user"})
	case errors.Is(err, friendship.ErrRequestPending):
		c.JSON(http.StatusConflict, gin.H{"error": "A pending friend request already exists"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send friend request"})
	default:
		c.JSON(http.StatusCreated, gin.H{"message": "Friend request sent"})
	}
}

// AcceptRequest godoc
// @Summary      Accept friend request
// @Description  Accepts a pending friend request addressed to the authenticated user.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  map[string]string "{"message": "Friend request accepted"}"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Request not found"
// @Failure      409  {object}  ErrorResponse "Request not pending"
// @Router       /friend-requests/{id}/accept [post]
func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	request, ok := h.ownRequest(c, "to_user_id")
	if !ok {
		return
	}

	_, err := h.svc.Accept(c.Request.Context(), request)
	switch {
	case errors.Is(err, friendship.ErrRequestNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Friend request is not pending"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept friend request"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Friend request accepted"})
	}
}

// RejectRequest godoc
// @Summary      Reject friend request
// @Description  Rejects a pending friend request addressed to the authenticated user.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  map[string]string "{"message": "Friend request rejected"}"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Request not found"
// @Failure      409  {object}  ErrorResponse "Request not pending"
// @Router       /friend-requests/{id}/reject [post]
func (h *FriendHandler) RejectRequest(c *gin.Context) {
	request, ok := h.ownRequest(c, "to_user_id")
	if !ok {
		return
	}

	err := h.svc.Reject(c.Request.Context(), request)
	switch {
	case errors.Is(err, friendship.ErrRequestNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Friend request is not pending"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject friend request"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Friend request rejected"})
	}
}

// CancelRequest godoc
// @Summary      Cancel friend request
// @Description  Cancels a pending friend request the authenticated user has sent.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  map[string]string "{"message": "Friend request cancelled"}"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Request not found"
// @Failure      409  {object}  ErrorResponse "Request not pending"
// @Router       /friend-requests/{id}/cancel [post]
func (h *FriendHandler) CancelRequest(c *gin.Context) {
	request, ok := h.ownRequest(c, "from_user_id")
	if !ok {
		return
	}

	err := h.svc.Cancel(c.Request.Context(), request)
	switch {
	case errors.Is(err, friendship.ErrRequestNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Friend request is not pending"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel friend request"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Friend request cancelled"})
	}
}

// RemoveFriend godoc
// @Summary      Remove friend
// @Description  Removes the friendship between the authenticated user and another user. Removing an absent friendship succeeds.
// @Tags         friendship
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Friend User ID"
// @Success      200  {object}  map[string]string "{"message": "Friend removed"}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/{id}/remove [post]
func (h *FriendHandler) RemoveFriend(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetUserID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user ID"})
		return
	}

	_, err = h.svc.RemoveFriendship(c.Request.Context(), viewerID.(uint), uint(targetUserID))
	switch {
	case errors.Is(err, friendship.ErrSamePair):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid operation"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove friend"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Friend removed"})
	}
}

// ownRequest loads the friend request addressed to or sent by the viewer,
// depending on ownerColumn. Ownership lives here, not in the engine.
func (h *FriendHandler) ownRequest(c *gin.Context, ownerColumn string) (*models.FriendRequest, bool) {
	viewerID, _ := c.Get("userID")
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return nil, false
	}

	var request models.FriendRequest
	if err := database.DB.Where("id = ? AND "+ownerColumn+" = ?", uint(requestID), viewerID).
		First(&request).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Friend request not found"})
		return nil, false
	}
	return &request, true
}

func buildRequestResponses(requests []models.FriendRequest) []FriendRequestResponse {
	responses := make([]FriendRequestResponse, 0, len(requests))
	for _, r := range requests {
		responses = append(responses, FriendRequestResponse{
			ID: r.ID,
			FromUser: PublicUserResponse{
				ID:          r.FromUser.ID,
				Nickname:    r.FromUser.Nickname,
				DisplayName: r.FromUser.DisplayName,
				AvatarURL:   r.FromUser.AvatarURL,
			},
			ToUser: PublicUserResponse{
				ID:          r.ToUser.ID,
				Nickname:    r.ToUser.Nickname,
				DisplayName: r.ToUser.DisplayName,
				AvatarURL:   r.ToUser.AvatarURL,
			},
			Status:    string(r.Status),
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return responses
}
