package models

import (
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/intentdesk/IntentDesk/pkg/events"
	"github.com/intentdesk/IntentDesk/pkg/metrics"
	"github.com/mssola/user_agent"
	"gorm.io/gorm"
)

// Conversation status.
const (
	ConversationActive    = "active"
	ConversationEnded     = "ended"
	ConversationAbandoned = "abandoned"
)

// Message roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// A user turn counts as successful when the detected confidence is strictly
// above this threshold; turns without a detected intent count as failed.
const successConfidenceThreshold = 0.5

// DetectedIntent is the NLU match attached to a user turn.
type DetectedIntent struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// BotResponse is the reply delivered for a turn.
type BotResponse struct {
	Type    string `json:"type,omitempty"`
	Text    string `json:"text,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// MessageError records a delivery or processing failure on a turn.
type MessageError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Message is one turn of a conversation.
type Message struct {
	ID             string          `json:"id"`
	Role           string          `json:"role"`
	Text           string          `json:"text"`
	Timestamp      time.Time       `json:"timestamp"`
	ResponseTime   int64           `json:"responseTime,omitempty"` // milliseconds
	DetectedIntent *DetectedIntent `json:"detectedIntent,omitempty"`
	BotResponse    *BotResponse    `json:"botResponse,omitempty"`
	Error          *MessageError   `json:"error,omitempty"`
}

type MessageList []Message

func (l MessageList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return jsonValue(l)
}

func (l *MessageList) Scan(value interface{}) error {
	return jsonScan(l, value)
}

// AdminNote is a moderation note on a conversation.
type AdminNote struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type NoteList []AdminNote

func (l NoteList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return jsonValue(l)
}

func (l *NoteList) Scan(value interface{}) error {
	return jsonScan(l, value)
}

// SessionMetadata is transport-supplied session context. The recorder only
// derives DeviceClass and Platform from the raw user agent; everything else
// passes through untouched.
type SessionMetadata struct {
	IP          string `json:"ip,omitempty" gorm:"size:64"`
	UserAgent   string `json:"userAgent,omitempty" gorm:"size:500"`
	DeviceClass string `json:"deviceClass,omitempty" gorm:"size:20"`
	Platform    string `json:"platform,omitempty" gorm:"size:100"`
	Language    string `json:"language,omitempty" gorm:"size:20"`
}

// ConversationStats are derived counters, always a pure function of the
// message list at computation time.
type ConversationStats struct {
	TotalMessages     int     `json:"totalMessages"`
	UserMessages      int     `json:"userMessages"`
	BotMessages       int     `json:"botMessages"`
	SuccessfulIntents int     `json:"successfulIntents"`
	FailedIntents     int     `json:"failedIntents"`
	AvgConfidence     float64 `json:"avgConfidence"`
	AvgResponseTime   float64 `json:"avgResponseTime"`
}

// Feedback is the end-user rating for a session; Rating 0 means none given.
type Feedback struct {
	Rating     int        `json:"rating"`
	Comment    string     `json:"comment,omitempty" gorm:"size:2000"`
	Issues     StringList `json:"issues,omitempty" gorm:"type:json"`
	FeedbackAt *time.Time `json:"feedbackAt,omitempty"`
}

// Conversation is one chat session: an append-only log of turns plus
// derived statistics and moderation state.
type Conversation struct {
	ID        int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID string `json:"sessionId" gorm:"uniqueIndex;size:200"`
	UserID    string `json:"userId,omitempty" gorm:"size:128;index"`

	Metadata SessionMetadata `json:"metadata" gorm:"embedded;embeddedPrefix:meta_"`
	Messages MessageList     `json:"messages" gorm:"type:json"`

	Status    string     `json:"status" gorm:"size:20;index"`
	StartedAt time.Time  `json:"startedAt" gorm:"index"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Duration  int64      `json:"duration,omitempty"` // seconds, set once ended

	Stats    ConversationStats `json:"stats" gorm:"embedded;embeddedPrefix:stat_"`
	Feedback Feedback          `json:"feedback" gorm:"embedded;embeddedPrefix:feedback_"`

	Tags        StringList `json:"tags,omitempty" gorm:"type:json"`
	AdminNotes  NoteList   `json:"adminNotes,omitempty" gorm:"type:json"`
	NeedsReview bool       `json:"needsReview" gorm:"index"`
	Reviewed    bool       `json:"reviewed"`
	ReviewedBy  string     `json:"reviewedBy,omitempty" gorm:"size:128"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// conversationLocks serializes appends per session. Appends to different
// sessions proceed in parallel. Entries are dropped once a session leaves
// the active state; appends reject non-active sessions, so a recreated
// entry never guards a write.
var conversationLocks sync.Map

func sessionLock(sessionID string) *sync.Mutex {
	lock, _ := conversationLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func releaseSessionLock(sessionID string) {
	conversationLocks.Delete(sessionID)
}

// StartConversation opens a new session. A missing sessionID is generated;
// device class and platform are derived from the raw user agent.
func StartConversation(db *gorm.DB, sessionID, userID string, meta SessionMetadata) (*Conversation, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if meta.UserAgent != "" {
		ua := user_agent.New(meta.UserAgent)
		if meta.DeviceClass == "" {
			switch {
			case ua.Bot():
				meta.DeviceClass = "bot"
			case ua.Mobile():
				meta.DeviceClass = "mobile"
			default:
				meta.DeviceClass = "desktop"
			}
		}
		if meta.Platform == "" {
			meta.Platform = ua.OS()
		}
	}

	conv := &Conversation{
		SessionID: sessionID,
		UserID:    userID,
		Metadata:  meta,
		Status:    ConversationActive,
		StartedAt: time.Now(),
	}
	if err := db.Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation loads a session by its public session id.
func GetConversation(db *gorm.DB, sessionID string) (*Conversation, error) {
	var conv Conversation
	if err := db.Where("session_id = ?", sessionID).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "conversation", Key: sessionID}
		}
		return nil, err
	}
	return &conv, nil
}

// AppendMessage appends one turn and recomputes the derived stats from the
// full message list. Appends against the same session are serialized so the
// recomputation never runs on a stale read.
func AppendMessage(db *gorm.DB, sessionID string, msg Message) (*Conversation, error) {
	if msg.Role != RoleUser && msg.Role != RoleBot {
		return nil, NewValidationError("message role must be 'user' or 'bot'")
	}

	lock := sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := GetConversation(db, sessionID)
	if err != nil {
		return nil, err
	}
	if conv.Status != ConversationActive {
		releaseSessionLock(sessionID)
		return nil, NewValidationError("conversation is not active")
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	conv.Messages = append(conv.Messages, msg)
	conv.Stats = ComputeConversationStats(conv.Messages)

	if err := db.Model(conv).Updates(map[string]interface{}{
		"messages":                conv.Messages,
		"stat_total_messages":     conv.Stats.TotalMessages,
		"stat_user_messages":      conv.Stats.UserMessages,
		"stat_bot_messages":       conv.Stats.BotMessages,
		"stat_successful_intents": conv.Stats.SuccessfulIntents,
		"stat_failed_intents":     conv.Stats.FailedIntents,
		"stat_avg_confidence":     conv.Stats.AvgConfidence,
		"stat_avg_response_time":  conv.Stats.AvgResponseTime,
	}).Error; err != nil {
		return nil, err
	}

	metrics.MessagesRecorded.WithLabelValues(msg.Role).Inc()
	if msg.Role == RoleUser && msg.DetectedIntent != nil {
		events.Publish(events.ConversationMessage, map[string]interface{}{
			"sessionId":  sessionID,
			"intentName": msg.DetectedIntent.Name,
			"confidence": msg.DetectedIntent.Confidence,
			"success":    msg.DetectedIntent.Confidence > successConfidenceThreshold,
		}, "recorder")
	}
	return conv, nil
}

// ComputeConversationStats derives the aggregate counters from a message
// list. Exported so counters can be rebuilt from the log after a restart.
func ComputeConversationStats(msgs MessageList) ConversationStats {
	var stats ConversationStats
	var confidenceSum float64
	var confidenceCount int
	var responseSum int64
	var responseCount int

	for _, m := range msgs {
		stats.TotalMessages++
		switch m.Role {
		case RoleUser:
			stats.UserMessages++
			if m.DetectedIntent != nil {
				confidenceSum += m.DetectedIntent.Confidence
				confidenceCount++
				if m.DetectedIntent.Confidence > successConfidenceThreshold {
					stats.SuccessfulIntents++
				} else {
					stats.FailedIntents++
				}
			} else {
				stats.FailedIntents++
			}
		case RoleBot:
			stats.BotMessages++
		}
		if m.ResponseTime > 0 {
			responseSum += m.ResponseTime
			responseCount++
		}
	}

	if confidenceCount > 0 {
		stats.AvgConfidence = confidenceSum / float64(confidenceCount)
	}
	if responseCount > 0 {
		stats.AvgResponseTime = float64(responseSum) / float64(responseCount)
	}
	return stats
}

// EndConversation closes the session and fixes its duration in whole
// seconds, clamped at zero against clock skew. The session lock is held so
// an in-flight append finishes before the session closes, then released
// for good.
func EndConversation(db *gorm.DB, sessionID string) (*Conversation, error) {
	lock := sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := GetConversation(db, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	duration := int64(now.Sub(conv.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	conv.Status = ConversationEnded
	conv.EndedAt = &now
	conv.Duration = duration

	if err := db.Model(conv).Updates(map[string]interface{}{
		"status":   ConversationEnded,
		"ended_at": &now,
		"duration": duration,
	}).Error; err != nil {
		return nil, err
	}

	releaseSessionLock(sessionID)
	events.Publish(events.ConversationEnded, map[string]interface{}{
		"sessionId": sessionID,
		"duration":  duration,
	}, "recorder")
	return conv, nil
}

// MarkAbandoned flags a session the timeout policy gave up on and drops
// its append lock.
func MarkAbandoned(db *gorm.DB, sessionID string) error {
	lock := sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := GetConversation(db, sessionID)
	if err != nil {
		return err
	}
	if conv.Status != ConversationActive {
		releaseSessionLock(sessionID)
		return nil
	}
	if err := db.Model(conv).Update("status", ConversationAbandoned).Error; err != nil {
		return err
	}
	releaseSessionLock(sessionID)
	return nil
}

// AddFeedback records the end-user rating. A rating of 2 or lower forces
// the needs-review flag; higher ratings never clear it.
func AddFeedback(db *gorm.DB, sessionID string, rating int, comment string, issues []string) (*Conversation, error) {
	if rating < 1 || rating > 5 {
		return nil, NewValidationError("rating must be between 1 and 5")
	}
	conv, err := GetConversation(db, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	conv.Feedback = Feedback{
		Rating:     rating,
		Comment:    comment,
		Issues:     issues,
		FeedbackAt: &now,
	}
	if rating <= 2 {
		conv.NeedsReview = true
	}

	if err := db.Model(conv).Updates(map[string]interface{}{
		"feedback_rating":      rating,
		"feedback_comment":     comment,
		"feedback_issues":      conv.Feedback.Issues,
		"feedback_feedback_at": &now,
		"needs_review":         conv.NeedsReview,
	}).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// AddAdminNote appends a moderation note with author and timestamp.
func AddAdminNote(db *gorm.DB, sessionID, text, author string) (*Conversation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError("note text is required")
	}
	conv, err := GetConversation(db, sessionID)
	if err != nil {
		return nil, err
	}

	conv.AdminNotes = append(conv.AdminNotes, AdminNote{
		Author:    author,
		Text:      text,
		CreatedAt: time.Now(),
	})
	if err := db.Model(conv).Update("admin_notes", conv.AdminNotes).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// MarkReviewed is the only operation that clears the needs-review flag.
func MarkReviewed(db *gorm.DB, sessionID, reviewer string) (*Conversation, error) {
	conv, err := GetConversation(db, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	conv.Reviewed = true
	conv.NeedsReview = false
	conv.ReviewedBy = reviewer
	conv.ReviewedAt = &now

	if err := db.Model(conv).Updates(map[string]interface{}{
		"reviewed":     true,
		"needs_review": false,
		"reviewed_by":  reviewer,
		"reviewed_at":  &now,
	}).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// ConversationQuery filters and pages conversation listings.
type ConversationQuery struct {
	Status      string
	UserID      string
	NeedsReview *bool
	Since       *time.Time
	Until       *time.Time
	Offset      int
	Limit       int
}

// ListConversations returns a page of sessions plus the total match count,
// newest first.
func ListConversations(db *gorm.DB, q ConversationQuery) ([]Conversation, int64, error) {
	query := db.Model(&Conversation{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.NeedsReview != nil {
		query = query.Where("needs_review = ?", *q.NeedsReview)
	}
	if q.Since != nil {
		query = query.Where("started_at >= ?", *q.Since)
	}
	if q.Until != nil {
		query = query.Where("started_at <= ?", *q.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	var convs []Conversation
	err := query.Order("started_at DESC, id DESC").Offset(q.Offset).Limit(limit).Find(&convs).Error
	return convs, total, err
}
