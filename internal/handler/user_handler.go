package handler

import (
	"net/http"
	"strconv"

	"playgrid/backend/internal/database"
	"playgrid/backend/internal/friendship"
	"playgrid/backend/internal/models"
	"playgrid/backend/internal/storage"
	"playgrid/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// region --- DTOs ---

// RegisterInput defines the structure for user registration.
type RegisterInput struct {
	Nickname string `json:"nickname" binding:"required" example:"testuser"`
	Email    string `json:"email" binding:"required,email" example:"test@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"password123"`
}

// LoginInput defines the structure for user login.
type LoginInput struct {
	Login    string `json:"login" binding:"required" example:"testuser"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// PublicUserResponse defines the structure for a user's public profile.
type PublicUserResponse struct {
	ID                 uint   `json:"id" example:"1"`
	Nickname           string `json:"nickname" example:"testuser"`
	DisplayName        string `json:"display_name,omitempty"`
	Bio                string `json:"bio,omitempty"`
	AvatarURL          string `json:"avatar_url,omitempty"`
	IsFriend           bool   `json:"is_friend"`
	HasPendingSent     bool   `json:"has_pending_sent"`
	HasPendingReceived bool   `json:"has_pending_received"`
	SentRequestID      uint   `json:"sent_request_id,omitempty"`
	ReceivedRequestID  uint   `json:"received_request_id,omitempty"`
}

// PrivateUserResponse defines the structure for the authenticated user's own profile.
type PrivateUserResponse struct {
	ID          uint   `json:"id" example:"1"`
	Nickname    string `json:"nickname" example:"testuser"`
	Email       string `json:"email" example:"test@example.com"`
	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// endregion

// UserHandler serves authentication, profiles and user search.
type UserHandler struct {
	friends *friendship.Service
	store   *storage.BlobStore
}

func NewUserHandler(friends *friendship.Service, store *storage.BlobStore) *UserHandler {
	return &UserHandler{friends: friends, store: store}
}

// RegisterUser godoc
// @Summary      Register a new user
// @Description  Creates a new user and returns an authentication token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  map[string]string "{"token": "..."}"
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existingUser models.User
	if err := database.DB.Where("nickname = ? OR email = ?", input.Nickname, input.Email).First(&existingUser).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Nickname or email already exists"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Nickname:     input.Nickname,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
	}
	if err := database.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// LoginUser godoc
// @Summary      Log in a user
// @Description  Authenticates a user with nickname/email and password, and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  map[string]string "{"token": "..."}"
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      404  {object}  ErrorResponse "User not found"
// @Router       /auth/login [post]
func (h *UserHandler) LoginUser(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.DB.Where("nickname = ? OR email = ?", input.Login, input.Login).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// GetMe godoc
// @Summary      Get current user's info
// @Description  Retrieves the private profile for the currently authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PrivateUserResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	var user models.User
	if err := database.DB.First(&user, viewerID.(uint)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, PrivateUserResponse{
		ID:          user.ID,
		Nickname:    user.Nickname,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		AvatarURL:   user.AvatarURL,
	})
}

// UpdateMe godoc
// @Summary      Update profile
// @Description  Updates the authenticated user's display name, bio and avatar.
// @Tags         users
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        display_name formData string false "Display name"
// @Param        bio          formData string false "Bio"
// @Param        avatar       formData file   false "Avatar image"
// @Success      200  {object}  PrivateUserResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /users/me [put]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	var user models.User
	if err := database.DB.First(&user, viewerID.(uint)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.DisplayName = c.PostForm("display_name")
	user.Bio = c.PostForm("bio")

	if file, err := c.FormFile("avatar"); err == nil && h.store != nil {
		url, err := h.store.Upload(c.Request.Context(), "avatars", file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload avatar"})
			return
		}
		user.AvatarURL = url
	}

	if err := database.DB.Model(&user).
		Select("display_name", "bio", "avatar_url").
		Updates(models.User{DisplayName: user.DisplayName, Bio: user.Bio, AvatarURL: user.AvatarURL}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, PrivateUserResponse{
		ID:          user.ID,
		Nickname:    user.Nickname,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		AvatarURL:   user.AvatarURL,
	})
}

// GetUserByID godoc
// @Summary      Get user by ID
// @Description  Retrieves the public profile for a specific user, including friendship state relative to the viewer.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  PublicUserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) GetUserByID(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetUserID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if viewerID.(uint) == uint(targetUserID) {
		h.GetMe(c)
		return
	}

	var targetUser models.User
	if err := database.DB.First(&targetUser, uint(targetUserID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	response, err := h.buildPublicUserResponse(c, targetUser, viewerID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve friendship state"})
		return
	}
	c.JSON(http.StatusOK, response)
}

// SearchUsers godoc
// @Summary      Search for users
// @Description  Searches for users by nickname with pagination.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        q     query     string  false  "Search query for nickname"
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page" default(20)
// @Success      200   {object}  PaginatedResponse[PublicUserResponse]
// @Failure      401   {object}  ErrorResponse
// @Router       /users [get]
func (h *UserHandler) SearchUsers(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	searchQuery := c.Query("q")
	page, limit := ParsePageParams(c)

	query := database.DB.Model(&models.User{}).Where("id <> ?", viewerID)
	if searchQuery != "" {
		query = query.Where("nickname ILIKE ?", "%"+searchQuery+"%")
	}

	result, err := Paginate[models.User](query, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve users"})
		return
	}

	userResponses := make([]PublicUserResponse, 0, len(result.Data))
	for _, user := range result.Data {
		response, err := h.buildPublicUserResponse(c, user, viewerID.(uint))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve friendship state"})
			return
		}
		userResponses = append(userResponses, response)
	}

	c.JSON(http.StatusOK, PaginatedResponse[PublicUserResponse]{
		Data: userResponses,
		Meta: result.Meta,
	})
}

func (h *UserHandler) buildPublicUserResponse(c *gin.Context, targetUser models.User, viewerID uint) (PublicUserResponse, error) {
	ctx := c.Request.Context()

	response := PublicUserResponse{
		ID:          targetUser.ID,
		Nickname:    targetUser.Nickname,
		DisplayName: targetUser.DisplayName,
		Bio:         targetUser.Bio,
		AvatarURL:   targetUser.AvatarURL,
	}

	isFriend, err := h.friends.AreFriends(ctx, viewerID, targetUser.ID)
	if err != nil {
		return response, err
	}
	response.IsFriend = isFriend

	var sent, received models.FriendRequest
	if err := database.DB.Where("from_user_id = ? AND to_user_id = ? AND status = ?",
		viewerID, targetUser.ID, models.RequestPending).First(&sent).Error; err == nil {
		response.HasPendingSent = true
		response.SentRequestID = sent.ID
	}
	if err := database.DB.Where("from_user_id = ? AND to_user_id = ? AND status = ?",
		targetUser.ID, viewerID, models.RequestPending).First(&received).Error; err == nil {
		response.HasPendingReceived = true
		response.ReceivedRequestID = received.ID
	}

	return response, nil
}
