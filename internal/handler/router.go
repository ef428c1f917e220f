package handler

import (
	"net/http"

	"fitbuddy/backend/internal/auth"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewRouter wires every route onto a gin engine.
func NewRouter(h *Handler, jwtSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	requireAuth := auth.AuthMiddleware(jwtSecret)
	optionalAuth := auth.OptionalAuthMiddleware(jwtSecret)

	apiV1 := router.Group("/api/v1")
	{
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(requireAuth)
		{
			userRoutes.GET("/me", h.GetMe)
			userRoutes.PUT("/me", h.UpdateMe)
			userRoutes.GET("/:id", h.GetUserByID)
		}

		connectionRoutes := apiV1.Group("/connections")
		connectionRoutes.Use(requireAuth)
		{
			connectionRoutes.POST("", h.CreateConnection)
			connectionRoutes.GET("", h.ListConnections)
			connectionRoutes.GET("/:id", h.GetConnection)
			connectionRoutes.POST("/:id/respond", h.RespondConnection)
			connectionRoutes.DELETE("/:id", h.DeleteConnection)
		}

		// Public catalog
		apiV1.GET("/sports", h.GetSports)

		eventRoutes := apiV1.Group("/events")
		{
			eventRoutes.GET("", optionalAuth, h.ListEvents)
			eventRoutes.GET("/:id", optionalAuth, h.GetEvent)

			hostRoutes := eventRoutes.Group("")
			hostRoutes.Use(requireAuth)
			{
				hostRoutes.POST("", h.CreateEvent)
				hostRoutes.PUT("/:id", h.UpdateEvent)
				hostRoutes.POST("/:id/cancel", h.CancelEvent)
				hostRoutes.POST("/:id/rsvp", h.RSVPEvent)
				hostRoutes.DELETE("/:id/rsvp", h.WithdrawRSVP)
				hostRoutes.GET("/:id/rsvps", h.ListRSVPs)
				hostRoutes.GET("/:id/participants", h.ListParticipants)
				hostRoutes.POST("/:id/rsvps/:userID/approve", h.ApproveRSVP)
				hostRoutes.POST("/:id/rsvps/:userID/reject", h.RejectRSVP)
				hostRoutes.DELETE("/:id/participants/:userID", h.RemoveParticipant)
			}
		}

		groupRoutes := apiV1.Group("/groups")
		groupRoutes.Use(requireAuth)
		{
			groupRoutes.POST("", h.CreateGroup)
			groupRoutes.GET("", h.ListGroups)
			groupRoutes.GET("/:id", h.GetGroup)
			groupRoutes.PUT("/:id", h.UpdateGroup)
			groupRoutes.POST("/:id/members", h.AddGroupMembers)
			groupRoutes.DELETE("/:id/members/:userID", h.RemoveGroupMember)
			groupRoutes.POST("/:id/leave", h.LeaveGroup)
		}

		messageRoutes := apiV1.Group("/messages")
		messageRoutes.Use(requireAuth)
		{
			messageRoutes.POST("", h.SendMessage)
			messageRoutes.GET("/:kind/:id", h.ListMessages)
			messageRoutes.POST("/:id/read", h.MarkRead)
		}

		conversationRoutes := apiV1.Group("/conversations")
		conversationRoutes.Use(requireAuth)
		{
			conversationRoutes.GET("", h.GetConversations)
			conversationRoutes.GET("/unread", h.GetUnreadCount)
			conversationRoutes.POST("/direct/:id/read", h.MarkConversationRead)
		}
	}

	return router
}
