package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/internal/nlusync"
	"github.com/intentdesk/IntentDesk/pkg/cache"
	"github.com/intentdesk/IntentDesk/pkg/nlu"
	"github.com/intentdesk/IntentDesk/pkg/response"
	"gorm.io/gorm"
)

// Handlers carries the shared dependencies for all HTTP handlers. The NLU
// provider is injected at construction; nil means detection and sync run
// against an unconfigured provider.
type Handlers struct {
	db       *gorm.DB
	engine   *nlusync.Engine
	provider nlu.Provider
	cache    cache.Cache
}

func NewHandlers(db *gorm.DB, engine *nlusync.Engine, provider nlu.Provider, c cache.Cache) *Handlers {
	return &Handlers{db: db, engine: engine, provider: provider, cache: c}
}

// Register mounts all routes under the API prefix.
func (h *Handlers) Register(r *gin.Engine, prefix string) {
	api := r.Group(prefix)

	intents := api.Group("/intents")
	{
		intents.POST("", h.CreateIntent)
		intents.GET("", h.ListIntents)
		intents.GET("/categories", h.IntentCategories)
		intents.GET("/:id", h.GetIntent)
		intents.PUT("/:id", h.UpdateIntent)
		intents.DELETE("/:id", h.DeleteIntent)
		intents.POST("/:id/phrases", h.AddTrainingPhrase)
		intents.POST("/:id/responses", h.AddIntentResponse)
	}

	conversations := api.Group("/conversations")
	{
		conversations.POST("", h.StartConversation)
		conversations.GET("", h.ListConversations)
		conversations.GET("/:sessionId", h.GetConversation)
		conversations.POST("/:sessionId/messages", h.AppendMessage)
		conversations.POST("/:sessionId/detect", h.DetectMessage)
		conversations.POST("/:sessionId/end", h.EndConversation)
		conversations.POST("/:sessionId/feedback", h.AddFeedback)
		conversations.POST("/:sessionId/notes", h.AddAdminNote)
		conversations.POST("/:sessionId/review", h.MarkReviewed)
	}

	analytics := api.Group("/analytics")
	{
		analytics.GET("/overview", h.ConversationOverview)
		analytics.GET("/intents/popular", h.PopularIntents)
		analytics.GET("/intents/failed", h.FailedIntents)
		analytics.GET("/intents/trend", h.IntentCreationTrend)
	}

	sync := api.Group("/sync")
	{
		sync.POST("/run", h.RunSync)
		sync.GET("/status", h.SyncStatus)
		sync.POST("/retrain", h.Retrain)
	}
}

// failFromError maps domain errors onto HTTP statuses.
func failFromError(c *gin.Context, err error) {
	switch {
	case models.IsNotFound(err):
		response.FailWithStatus(c, http.StatusNotFound, err.Error(), nil)
	case models.IsValidation(err):
		response.Fail(c, err.Error(), nil)
	default:
		response.FailWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
