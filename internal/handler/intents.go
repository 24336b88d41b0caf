package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/pkg/response"
)

// CreateIntentRequest Create intent request
type CreateIntentRequest struct {
	Name            string                    `json:"name" binding:"required"`
	DisplayName     string                    `json:"displayName"`
	Description     string                    `json:"description"`
	Category        string                    `json:"category"`
	TrainingPhrases models.TrainingPhraseList `json:"trainingPhrases"`
	Responses       models.ResponseList       `json:"responses"`
	Parameters      models.ParameterList      `json:"parameters"`
	InputContexts   models.StringList         `json:"inputContexts"`
	OutputContexts  models.OutputContextList  `json:"outputContexts"`
	Events          models.StringList         `json:"events"`
	Webhook         models.WebhookConfig      `json:"webhook"`
	Tags            models.StringList         `json:"tags"`
}

// CreateIntent Create a new intent
func (h *Handlers) CreateIntent(c *gin.Context) {
	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	intent := &models.Intent{
		Name:            req.Name,
		DisplayName:     req.DisplayName,
		Description:     req.Description,
		Category:        req.Category,
		TrainingPhrases: req.TrainingPhrases,
		Responses:       req.Responses,
		Parameters:      req.Parameters,
		InputContexts:   req.InputContexts,
		OutputContexts:  req.OutputContexts,
		Events:          req.Events,
		Webhook:         req.Webhook,
		Tags:            req.Tags,
	}
	if err := models.CreateIntent(h.db, intent); err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, "Intent created", intent)
}

// ListIntents List intents with filters and pagination
func (h *Handlers) ListIntents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := models.IntentQuery{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	}
	intents, total, err := models.ListIntents(h.db, query)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, "Query successful", gin.H{
		"list":     intents,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetIntent Get intent details
func (h *Handlers) GetIntent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Fail(c, "Parameter error", "Invalid intent ID")
		return
	}

	intent, err := models.GetIntent(h.db, id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Query successful", intent)
}

// UpdateIntent Apply a partial update to an intent
func (h *Handlers) UpdateIntent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Fail(c, "Parameter error", "Invalid intent ID")
		return
	}

	var patch models.IntentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	intent, err := models.UpdateIntent(h.db, id, patch)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Intent updated", intent)
}

// DeleteIntent Delete an intent locally, then clean up the provider copy
// best-effort in the background
func (h *Handlers) DeleteIntent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Fail(c, "Parameter error", "Invalid intent ID")
		return
	}

	remoteID, err := models.DeleteIntent(h.db, id)
	if err != nil {
		failFromError(c, err)
		return
	}
	if remoteID != "" {
		// Detached from the request context so cleanup outlives the response.
		go h.engine.DeleteRemote(context.Background(), remoteID)
	}

	response.Success(c, "Intent deleted", nil)
}

// AddPhraseRequest Add training phrase request
type AddPhraseRequest struct {
	Text     string                    `json:"text" binding:"required"`
	Entities []models.EntityAnnotation `json:"entities"`
}

// AddTrainingPhrase Append one training phrase to an intent
func (h *Handlers) AddTrainingPhrase(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Fail(c, "Parameter error", "Invalid intent ID")
		return
	}

	var req AddPhraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	intent, err := models.AddTrainingPhrase(h.db, id, req.Text, req.Entities)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Training phrase added", intent)
}

// AddIntentResponse Append one response variant to an intent
func (h *Handlers) AddIntentResponse(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Fail(c, "Parameter error", "Invalid intent ID")
		return
	}

	var resp models.Response
	if err := c.ShouldBindJSON(&resp); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	intent, err := models.AddIntentResponse(h.db, id, resp)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Response added", intent)
}

// IntentCategories Break the catalog down by category
func (h *Handlers) IntentCategories(c *gin.Context) {
	rows, err := models.CountIntentsByCategory(h.db)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Query successful", rows)
}
