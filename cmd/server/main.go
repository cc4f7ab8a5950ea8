package main

import (
	"fmt"
	"log"
	"net/http"

	"playgrid/backend/internal/auth"
	"playgrid/backend/internal/config"
	"playgrid/backend/internal/database"
	"playgrid/backend/internal/feed"
	"playgrid/backend/internal/friendship"
	"playgrid/backend/internal/handler"
	"playgrid/backend/internal/hub"
	"playgrid/backend/internal/messaging"
	"playgrid/backend/internal/storage"

	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "playgrid/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           Playgrid API
// @version         1.0
// @description     This is the API for the Playgrid social service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)

	// Blob store for post images, comment attachments and DM photos.
	var blobStore *storage.BlobStore
	if config.AppConfig.MinioEndpoint != "" {
		var err error
		blobStore, err = storage.NewBlobStore(
			config.AppConfig.MinioEndpoint,
			config.AppConfig.MinioAccessKey,
			config.AppConfig.MinioSecretKey,
			config.AppConfig.MinioBucket,
		)
		if err != nil {
			log.Fatalf("Failed to connect to blob store: %v", err)
		}
		log.Println("Blob store connection established.")
	} else {
		log.Println("Warning: MINIO_ENDPOINT not set, uploads are disabled")
	}

	// Engines
	friendSvc := friendship.NewService(database.DB)
	feedSvc := feed.NewService(database.DB, friendSvc)
	messagingSvc := messaging.NewService(database.DB, friendSvc)

	// Handlers
	userHandler := handler.NewUserHandler(friendSvc, blobStore)
	friendHandler := handler.NewFriendHandler(friendSvc)
	postHandler := handler.NewPostHandler(feedSvc, blobStore)
	messageHandler := handler.NewMessageHandler(messagingSvc, blobStore, hub.GlobalHub)

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", userHandler.RegisterUser)
			authRoutes.POST("/login", userHandler.LoginUser)
		}

		// Public topic directory
		topicRoutes := apiV1.Group("/topics")
		topicRoutes.Use(auth.OptionalAuthMiddleware())
		{
			topicRoutes.GET("", postHandler.GetTopics)
			topicRoutes.GET("/:slug/posts", postHandler.GetTopicPosts)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("", userHandler.SearchUsers) // Must be before /:id
			userRoutes.GET("/me", userHandler.GetMe)
			userRoutes.PUT("/me", userHandler.UpdateMe)
			userRoutes.GET("/:id", userHandler.GetUserByID)
			userRoutes.GET("/:id/posts", postHandler.GetUserPosts)

			// Friendship routes
			userRoutes.POST("/:id/request", friendHandler.SendRequest)
			userRoutes.POST("/:id/remove", friendHandler.RemoveFriend)

			// Messaging entry point
			userRoutes.POST("/:id/conversation", messageHandler.StartConversation)
		}

		// Friendship routes (protected)
		friendRoutes := apiV1.Group("/friends")
		friendRoutes.Use(auth.AuthMiddleware())
		{
			friendRoutes.GET("", friendHandler.GetFriends)
		}
		requestRoutes := apiV1.Group("/friend-requests")
		requestRoutes.Use(auth.AuthMiddleware())
		{
			requestRoutes.GET("/incoming", friendHandler.GetIncomingRequests)
			requestRoutes.GET("/outgoing", friendHandler.GetOutgoingRequests)
			requestRoutes.POST("/:id/accept", friendHandler.AcceptRequest)
			requestRoutes.POST("/:id/reject", friendHandler.RejectRequest)
			requestRoutes.POST("/:id/cancel", friendHandler.CancelRequest)
		}

		// Feed and post routes (protected)
		feedRoutes := apiV1.Group("/feed")
		feedRoutes.Use(auth.AuthMiddleware())
		{
			feedRoutes.GET("", postHandler.GetFeed)
		}
		postRoutes := apiV1.Group("/posts")
		postRoutes.Use(auth.AuthMiddleware())
		{
			postRoutes.POST("", postHandler.CreatePost)
			postRoutes.PUT("/:id", postHandler.UpdatePost)
			postRoutes.DELETE("/:id", postHandler.DeletePost)
			postRoutes.POST("/:id/like", postHandler.ToggleLike)
			postRoutes.POST("/:id/comments", postHandler.AddComment)
		}
		commentRoutes := apiV1.Group("/comments")
		commentRoutes.Use(auth.AuthMiddleware())
		{
			commentRoutes.DELETE("/:id", postHandler.DeleteComment)
		}

		// Messaging routes (protected)
		conversationRoutes := apiV1.Group("/conversations")
		conversationRoutes.Use(auth.AuthMiddleware())
		{
			conversationRoutes.GET("", messageHandler.ListConversations)
			conversationRoutes.GET("/:id", messageHandler.GetConversation)
			conversationRoutes.GET("/:id/events", messageHandler.StreamConversation)
			conversationRoutes.POST("/:id/messages", messageHandler.SendMessage)
			conversationRoutes.DELETE("/:id/messages/:messageID", messageHandler.DeleteMessage)
			conversationRoutes.POST("/:id/leave", messageHandler.LeaveConversation)
		}

		// Admin routes (protected by auth and admin check)
		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			adminRoutes.DELETE("/posts/:id", postHandler.AdminDeletePost)
			adminRoutes.DELETE("/comments/:id", postHandler.AdminDeleteComment)
		}
	}

	fmt.Printf("Server is running on %s\n", config.AppConfig.ServerAddr)
	fmt.Println("Swagger UI is available at http://localhost:8080/swagger/index.html")
	log.Fatal(router.Run(config.AppConfig.ServerAddr))
}
