// Package api exposes the HTTP surface: document upload and management,
// chats with blocking and streaming answers, and a health probe.
package api

import "github.com/gin-gonic/gin"

// NewRouter assembles the gin engine with every route registered.
func NewRouter(documents *DocumentsAPI, chats *ChatsAPI, health gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", health)

	docs := router.Group("/documents")
	{
		docs.POST("/upload", documents.UploadHandler)
		docs.GET("", documents.ListHandler)
		docs.GET("/:id", documents.GetHandler)
		docs.DELETE("/:id", documents.DeleteHandler)
	}

	chatRoutes := router.Group("/chats")
	{
		chatRoutes.POST("", chats.CreateHandler)
		chatRoutes.GET("/:id", chats.GetHandler)
		chatRoutes.GET("/document/:documentId", chats.ListByDocumentHandler)
		chatRoutes.POST("/:id/messages", chats.AskHandler)
		chatRoutes.POST("/:id/stream", chats.StreamHandler)
	}

	return router
}
