package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"playgrid/backend/internal/hub"
	"playgrid/backend/internal/messaging"
	"playgrid/backend/internal/models"
	"playgrid/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// MessageResponse describes one direct message as seen by the viewer.
type MessageResponse struct {
	ID        uint               `json:"id"`
	Sender    PublicUserResponse `json:"sender"`
	Content   string             `json:"content"`
	ImageURL  string             `json:"image_url,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	EditedAt  *time.Time         `json:"edited_at,omitempty"`
	Mine      bool               `json:"mine"`
}

// ConversationResponse describes one conversation in the viewer's listing.
type ConversationResponse struct {
	ID          uint               `json:"id"`
	With        PublicUserResponse `json:"with"`
	CreatedAt   time.Time          `json:"created_at"`
	UnreadCount int64              `json:"unread_count"`
}

// endregion

// MessageHandler serves direct conversations and their messages.
type MessageHandler struct {
	svc    *messaging.Service
	store  *storage.BlobStore
	events *hub.Hub
}

func NewMessageHandler(svc *messaging.Service, store *storage.BlobStore, events *hub.Hub) *MessageHandler {
	return &MessageHandler{svc: svc, store: store, events: events}
}

// ListConversations godoc
// @Summary      List conversations
// @Description  Lists conversations where the authenticated user is an active participant, latest activity first.
// @Tags         messaging
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   ConversationResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /conversations [get]
func (h *MessageHandler) ListConversations(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	conversations, err := h.svc.UserConversations(c.Request.Context(), viewerID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	responses := make([]ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		response := ConversationResponse{
			ID:        conversation.ID,
			CreatedAt: conversation.CreatedAt,
		}
		for _, p := range conversation.Participants {
			if p.UserID != viewerID.(uint) {
				response.With = PublicUserResponse{
					ID:          p.User.ID,
					Nickname:    p.User.Nickname,
					DisplayName: p.User.DisplayName,
					AvatarURL:   p.User.AvatarURL,
				}
			}
		}
		if unread, err := h.svc.UnreadCount(c.Request.Context(), conversation.ID, viewerID.(uint)); err == nil {
			response.UnreadCount = unread
		}
		responses = append(responses, response)
	}

	c.JSON(http.StatusOK, responses)
}

// StartConversation godoc
// @Summary      Start a conversation
// @Description  Returns the conversation with another user, creating or reviving it. The users must be friends.
// @Tags         messaging
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Other User ID"
// @Success      200  {object}  map[string]uint "{"id": 1}"
// @Failure      400  {object}  ErrorResponse "Self or non-friend"
// @Failure      401  {object}  ErrorResponse
// @Router       /users/{id}/conversation [post]
func (h *MessageHandler) StartConversation(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetUserID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user ID"})
		return
	}

	conversation, err := h.svc.GetOrCreateConversation(c.Request.Context(), viewerID.(uint), uint(targetUserID), viewerID.(uint))
	switch {
	case errors.Is(err, messaging.ErrSelfConversation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot start a conversation with yourself"})
	case errors.Is(err, messaging.ErrNotFriends):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Users must be friends to start a conversation"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start conversation"})
	default:
		c.JSON(http.StatusOK, gin.H{"id": conversation.ID})
	}
}

// GetConversation godoc
// @Summary      Get a conversation
// @Description  Returns the messages visible to the viewer, oldest first, and marks the conversation read.
// @Tags         messaging
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Conversation ID"
// @Success      200  {array}   MessageResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Not a participant"
// @Router       /conversations/{id} [get]
func (h *MessageHandler) GetConversation(c *gin.Context) {
	viewerID, conversationID, ok := h.participantGate(c)
	if !ok {
		return
	}

	messages, err := h.svc.VisibleMessages(c.Request.Context(), conversationID, viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), conversationID, viewerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark conversation read"})
		return
	}

	responses := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		responses = append(responses, buildMessageResponse(m, viewerID))
	}
	c.JSON(http.StatusOK, responses)
}

// SendMessage godoc
// @Summary      Send a message
// @Description  Sends a message with text and/or a photo. Sending revives every participant's membership.
// @Tags         messaging
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id      path     int    true  "Conversation ID"
// @Param        content formData string false "Message text"
// @Param        image   formData file   false "Photo"
// @Success      201  {object}  MessageResponse
// @Failure      400  {object}  ErrorResponse "Empty message"
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Not a participant"
// @Router       /conversations/{id}/messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	viewerID, conversationID, ok := h.participantGate(c)
	if !ok {
		return
	}

	imageURL := ""
	if file, err := c.FormFile("image"); err == nil && h.store != nil {
		url, err := h.store.Upload(c.Request.Context(), "dm_photos", file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
			return
		}
		imageURL = url
	}

	message, err := h.svc.SendMessage(c.Request.Context(), conversationID, viewerID, c.PostForm("content"), imageURL)
	switch {
	case errors.Is(err, messaging.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message text or photo is required"})
		return
	case errors.Is(err, messaging.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not part of this conversation"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	response := buildMessageResponse(*message, viewerID)
	h.events.Broadcast(conversationID, hub.Event{Type: "message", Payload: response})
	c.JSON(http.StatusCreated, response)
}

// DeleteMessage godoc
// @Summary      Delete a message for me
// @Description  Hides a message from the viewer's side only; the other side still sees it.
// @Tags         messaging
// @Produce      json
// @Security     BearerAuth
// @Param        id        path  int  true  "Conversation ID"
// @Param        messageID path  int  true  "Message ID"
// @Success      200  {object}  map[string]string "{"message": "Message hidden"}"
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Not a participant"
// @Failure      404  {object}  ErrorResponse "Message not found"
// @Router       /conversations/{id}/messages/{messageID} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	viewerID, conversationID, ok := h.participantGate(c)
	if !ok {
		return
	}

	messageID, err := strconv.ParseUint(c.Param("messageID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	message, err := h.svc.Message(c.Request.Context(), uint(messageID))
	if err != nil || message.ConversationID != conversationID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	if err := h.svc.DeleteMessageForViewer(c.Request.Context(), message, viewerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hide message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message hidden"})
}

// LeaveConversation godoc
// @Summary      Leave a conversation
// @Description  Hides the conversation from the viewer's listing. The thread and its messages are untouched and reappear if a message arrives.
// @Tags         messaging
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Conversation ID"
// @Success      200  {object}  map[string]string "{"message": "Conversation hidden"}"
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Not a participant"
// @Router       /conversations/{id}/leave [post]
func (h *MessageHandler) LeaveConversation(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	conversationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	err = h.svc.LeaveConversation(c.Request.Context(), uint(conversationID), viewerID.(uint))
	switch {
	case errors.Is(err, messaging.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not part of this conversation"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave conversation"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Conversation hidden"})
	}
}

// StreamConversation godoc
// @Summary      Stream conversation events
// @Description  Server-sent events stream of new messages in the conversation.
// @Tags         messaging
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        id   path  int  true  "Conversation ID"
// @Success      200
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Not a participant"
// @Router       /conversations/{id}/events [get]
func (h *MessageHandler) StreamConversation(c *gin.Context) {
	_, conversationID, ok := h.participantGate(c)
	if !ok {
		return
	}

	client := make(hub.Client, 16)
	h.events.Subscribe(conversationID, client)
	defer h.events.Unsubscribe(conversationID, client)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case data, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// participantGate parses the conversation ID and verifies the viewer's
// membership, reviving a soft-left row on the way in.
func (h *MessageHandler) participantGate(c *gin.Context) (viewerID, conversationID uint, ok bool) {
	viewer, _ := c.Get("userID")
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return 0, 0, false
	}

	if _, err := h.svc.EnsureParticipant(c.Request.Context(), uint(id), viewer.(uint)); err != nil {
		if errors.Is(err, messaging.ErrNotParticipant) {
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not part of this conversation"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify participation"})
		}
		return 0, 0, false
	}
	return viewer.(uint), uint(id), true
}

func buildMessageResponse(m models.DirectMessage, viewerID uint) MessageResponse {
	return MessageResponse{
		ID: m.ID,
		Sender: PublicUserResponse{
			ID:          m.Sender.ID,
			Nickname:    m.Sender.Nickname,
			DisplayName: m.Sender.DisplayName,
			AvatarURL:   m.Sender.AvatarURL,
		},
		Content:   m.Content,
		ImageURL:  m.ImageURL,
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
		Mine:      m.SenderID == viewerID,
	}
}
