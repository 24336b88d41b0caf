package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/pkg/nlu"
	"github.com/intentdesk/IntentDesk/pkg/response"
)

// StartConversationRequest Start conversation request
type StartConversationRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Language  string `json:"language"`
}

// StartConversation Open a new chat session
func (h *Handlers) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	meta := models.SessionMetadata{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Language:  req.Language,
	}
	conv, err := models.StartConversation(h.db, req.SessionID, req.UserID, meta)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Conversation started", conv)
}

// ListConversations List sessions with filters and pagination
func (h *Handlers) ListConversations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := models.ConversationQuery{
		Status: c.Query("status"),
		UserID: c.Query("userId"),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	if v := c.Query("needsReview"); v != "" {
		needsReview := v == "true"
		query.NeedsReview = &needsReview
	}
	if v := c.Query("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			query.Since = &t
		}
	}
	if v := c.Query("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			query.Until = &t
		}
	}

	convs, total, err := models.ListConversations(h.db, query)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Query successful", gin.H{
		"list":     convs,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetConversation Get one session with its full message log
func (h *Handlers) GetConversation(c *gin.Context) {
	conv, err := models.GetConversation(h.db, c.Param("sessionId"))
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Query successful", conv)
}

// AppendMessage Append one turn to a session
func (h *Handlers) AppendMessage(c *gin.Context) {
	var msg models.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	conv, err := models.AppendMessage(h.db, c.Param("sessionId"), msg)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Message recorded", conv)
}

// DetectRequest Detect intent request
type DetectRequest struct {
	Text         string `json:"text" binding:"required"`
	ResponseTime int64  `json:"responseTime"`
}

// DetectMessage Run a user utterance through the NLU provider and record
// the turn with the detection attached
func (h *Handlers) DetectMessage(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}
	if h.provider == nil {
		response.Fail(c, "Detection unavailable", nlu.ErrNotConfigured.Error())
		return
	}

	sessionID := c.Param("sessionId")
	msg := models.Message{
		Role:         models.RoleUser,
		Text:         req.Text,
		ResponseTime: req.ResponseTime,
	}

	result, err := h.provider.DetectIntent(c.Request.Context(), sessionID, req.Text)
	if err != nil {
		msg.Error = &models.MessageError{Code: "detect_failed", Message: err.Error()}
	} else {
		if result.IntentName != "" {
			msg.DetectedIntent = &models.DetectedIntent{
				Name:        result.IntentName,
				DisplayName: result.DisplayName,
				Confidence:  result.Confidence,
			}
		}
		// The answer delivered for this turn goes into the log too, so a
		// curator reviewing the session sees what the bot said.
		if result.FulfillmentText != "" {
			msg.BotResponse = &models.BotResponse{Type: "text", Text: result.FulfillmentText}
			if len(result.Parameters) > 0 {
				if payload, err := json.Marshal(result.Parameters); err == nil {
					msg.BotResponse.Payload = string(payload)
				}
			}
		}
	}

	conv, err := models.AppendMessage(h.db, sessionID, msg)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Message recorded", gin.H{
		"conversation": conv,
		"detection":    result,
	})
}

// EndConversation Close a session and fix its duration
func (h *Handlers) EndConversation(c *gin.Context) {
	conv, err := models.EndConversation(h.db, c.Param("sessionId"))
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Conversation ended", conv)
}

// FeedbackRequest End-user feedback request
type FeedbackRequest struct {
	Rating  int      `json:"rating" binding:"required"`
	Comment string   `json:"comment"`
	Issues  []string `json:"issues"`
}

// AddFeedback Record the end-user rating for a session
func (h *Handlers) AddFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	conv, err := models.AddFeedback(h.db, c.Param("sessionId"), req.Rating, req.Comment, req.Issues)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Feedback recorded", conv)
}

// NoteRequest Admin note request
type NoteRequest struct {
	Text   string `json:"text" binding:"required"`
	Author string `json:"author"`
}

// AddAdminNote Append a moderation note to a session
func (h *Handlers) AddAdminNote(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	conv, err := models.AddAdminNote(h.db, c.Param("sessionId"), req.Text, req.Author)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Note added", conv)
}

// ReviewRequest Mark reviewed request
type ReviewRequest struct {
	Reviewer string `json:"reviewer"`
}

// MarkReviewed Clear the needs-review flag on a session
func (h *Handlers) MarkReviewed(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	conv, err := models.MarkReviewed(h.db, c.Param("sessionId"), req.Reviewer)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Conversation reviewed", conv)
}
