package models

import (
	"database/sql/driver"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Intent lifecycle status.
const (
	IntentStatusDraft    = "draft"
	IntentStatusActive   = "active"
	IntentStatusInactive = "inactive"
)

// Per-intent sync state against the NLU provider.
const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusError   = "error"
)

// EntityAnnotation marks an entity span inside a training phrase.
type EntityAnnotation struct {
	Entity string `json:"entity"`
	Value  string `json:"value"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// TrainingPhrase is one example utterance.
type TrainingPhrase struct {
	Text     string             `json:"text"`
	Entities []EntityAnnotation `json:"entities,omitempty"`
}

type TrainingPhraseList []TrainingPhrase

func (l TrainingPhraseList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return jsonValue(l)
}

func (l *TrainingPhraseList) Scan(value interface{}) error {
	return jsonScan(l, value)
}

// IntentParameter describes a slot the intent fills from the utterance.
type IntentParameter struct {
	Name       string   `json:"name"`
	EntityType string   `json:"entityType"`
	Required   bool     `json:"required"`
	Prompts    []string `json:"prompts,omitempty"`
	Default    string   `json:"default,omitempty"`
}

type ParameterList []IntentParameter

func (l ParameterList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return jsonValue(l)
}

func (l *ParameterList) Scan(value interface{}) error {
	return jsonScan(l, value)
}

// OutputContext is a context token produced by an intent match.
type OutputContext struct {
	Name       string            `json:"name"`
	Lifespan   int               `json:"lifespan"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type OutputContextList []OutputContext

func (l OutputContextList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return jsonValue(l)
}

func (l *OutputContextList) Scan(value interface{}) error {
	return jsonScan(l, value)
}

// WebhookConfig enables fulfillment via an operator webhook.
type WebhookConfig struct {
	Enabled bool              `json:"enabled"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (w WebhookConfig) Value() (driver.Value, error) {
	return jsonValue(w)
}

func (w *WebhookConfig) Scan(value interface{}) error {
	return jsonScan(w, value)
}

// IntentStats are runtime trigger counters, updated as detections happen.
type IntentStats struct {
	TriggerCount  int64      `json:"triggerCount"`
	SuccessCount  int64      `json:"successCount"`
	LastTriggered *time.Time `json:"lastTriggered,omitempty"`
	AvgConfidence float64    `json:"avgConfidence"`
}

// IntentSync tracks agreement between the local record and the provider copy.
type IntentSync struct {
	RemoteID   string     `json:"remoteId,omitempty" gorm:"size:200"`
	ProjectID  string     `json:"providerProjectId,omitempty" gorm:"size:200"`
	LastSynced *time.Time `json:"lastSynced,omitempty"`
	Status     string     `json:"syncStatus" gorm:"size:20;index"`
	Error      string     `json:"syncError,omitempty" gorm:"size:2000"`
}

// Intent is a reusable NLU training unit: trigger phrases plus response
// templates, syncable to the external provider.
type Intent struct {
	ID          int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string `json:"name" gorm:"size:200;uniqueIndex"`
	DisplayName string `json:"displayName" gorm:"size:200"`
	Description string `json:"description,omitempty" gorm:"type:text"`
	Category    string `json:"category,omitempty" gorm:"size:100;index"`
	Status      string `json:"status" gorm:"size:20;index"`

	TrainingPhrases TrainingPhraseList `json:"trainingPhrases" gorm:"type:json"`
	Responses       ResponseList       `json:"responses" gorm:"type:json"`
	Parameters      ParameterList      `json:"parameters,omitempty" gorm:"type:json"`
	InputContexts   StringList         `json:"inputContexts,omitempty" gorm:"type:json"`
	OutputContexts  OutputContextList  `json:"outputContexts,omitempty" gorm:"type:json"`
	Events          StringList         `json:"events,omitempty" gorm:"type:json"`
	Webhook         WebhookConfig      `json:"webhook" gorm:"type:json"`
	Tags            StringList         `json:"tags,omitempty" gorm:"type:json"`

	Stats IntentStats `json:"stats" gorm:"embedded;embeddedPrefix:stat_"`
	Sync  IntentSync  `json:"sync" gorm:"embedded;embeddedPrefix:sync_"`

	CreatedBy string    `json:"createdBy,omitempty" gorm:"size:128"`
	UpdatedBy string    `json:"updatedBy,omitempty" gorm:"size:128"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Intent) TableName() string {
	return "intents"
}

// CreateIntent persists a new intent. The record starts as a draft with sync
// pending; names are globally unique.
func CreateIntent(db *gorm.DB, intent *Intent) error {
	if strings.TrimSpace(intent.Name) == "" {
		return NewValidationError("intent name is required")
	}
	for _, r := range intent.Responses {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	var count int64
	if err := db.Model(&Intent{}).Where("name = ?", intent.Name).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return NewValidationError("intent with name '%s' already exists", intent.Name)
	}

	if intent.Status == "" {
		intent.Status = IntentStatusDraft
	}
	intent.Sync.Status = SyncStatusPending
	intent.Sync.Error = ""
	return db.Create(intent).Error
}

// GetIntent loads an intent by id.
func GetIntent(db *gorm.DB, id int64) (*Intent, error) {
	var intent Intent
	if err := db.First(&intent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "intent", Key: formatID(id)}
		}
		return nil, err
	}
	return &intent, nil
}

// GetIntentByName loads an intent by its unique name.
func GetIntentByName(db *gorm.DB, name string) (*Intent, error) {
	var intent Intent
	if err := db.Where("name = ?", name).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "intent", Key: name}
		}
		return nil, err
	}
	return &intent, nil
}

// IntentPatch applies only the fields that are present. Changing the name,
// training phrases or responses dirties the sync state.
type IntentPatch struct {
	Name            *string             `json:"name,omitempty"`
	DisplayName     *string             `json:"displayName,omitempty"`
	Description     *string             `json:"description,omitempty"`
	Category        *string             `json:"category,omitempty"`
	Status          *string             `json:"status,omitempty"`
	TrainingPhrases *TrainingPhraseList `json:"trainingPhrases,omitempty"`
	Responses       *ResponseList       `json:"responses,omitempty"`
	Parameters      *ParameterList      `json:"parameters,omitempty"`
	InputContexts   *StringList         `json:"inputContexts,omitempty"`
	OutputContexts  *OutputContextList  `json:"outputContexts,omitempty"`
	Events          *StringList         `json:"events,omitempty"`
	Webhook         *WebhookConfig      `json:"webhook,omitempty"`
	Tags            *StringList         `json:"tags,omitempty"`
	UpdatedBy       string              `json:"-"`
}

// UpdateIntent applies a partial update and marks the intent pending when a
// training-relevant field changed, regardless of its previous sync state.
func UpdateIntent(db *gorm.DB, id int64, patch IntentPatch) (*Intent, error) {
	intent, err := GetIntent(db, id)
	if err != nil {
		return nil, err
	}

	dirty := false
	if patch.Name != nil && *patch.Name != intent.Name {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, NewValidationError("intent name is required")
		}
		var count int64
		if err := db.Model(&Intent{}).
			Where("name = ? AND id != ?", *patch.Name, id).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, NewValidationError("intent with name '%s' already exists", *patch.Name)
		}
		intent.Name = *patch.Name
		dirty = true
	}
	if patch.DisplayName != nil {
		intent.DisplayName = *patch.DisplayName
	}
	if patch.Description != nil {
		intent.Description = *patch.Description
	}
	if patch.Category != nil {
		intent.Category = *patch.Category
	}
	if patch.Status != nil {
		intent.Status = *patch.Status
	}
	if patch.TrainingPhrases != nil {
		intent.TrainingPhrases = *patch.TrainingPhrases
		dirty = true
	}
	if patch.Responses != nil {
		for _, r := range *patch.Responses {
			if err := r.Validate(); err != nil {
				return nil, err
			}
		}
		intent.Responses = *patch.Responses
		dirty = true
	}
	if patch.Parameters != nil {
		intent.Parameters = *patch.Parameters
	}
	if patch.InputContexts != nil {
		intent.InputContexts = *patch.InputContexts
	}
	if patch.OutputContexts != nil {
		intent.OutputContexts = *patch.OutputContexts
	}
	if patch.Events != nil {
		intent.Events = *patch.Events
	}
	if patch.Webhook != nil {
		intent.Webhook = *patch.Webhook
	}
	if patch.Tags != nil {
		intent.Tags = *patch.Tags
	}
	if patch.UpdatedBy != "" {
		intent.UpdatedBy = patch.UpdatedBy
	}

	if dirty {
		intent.Sync.Status = SyncStatusPending
		intent.Sync.Error = ""
	}

	if err := db.Save(intent).Error; err != nil {
		return nil, err
	}
	return intent, nil
}

// AddTrainingPhrase appends one example utterance and marks the intent
// pending for sync.
func AddTrainingPhrase(db *gorm.DB, id int64, text string, entities []EntityAnnotation) (*Intent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError("training phrase text is required")
	}
	intent, err := GetIntent(db, id)
	if err != nil {
		return nil, err
	}
	intent.TrainingPhrases = append(intent.TrainingPhrases, TrainingPhrase{Text: text, Entities: entities})
	intent.Sync.Status = SyncStatusPending
	intent.Sync.Error = ""
	if err := db.Save(intent).Error; err != nil {
		return nil, err
	}
	return intent, nil
}

// AddIntentResponse appends one response variant and marks the intent
// pending for sync.
func AddIntentResponse(db *gorm.DB, id int64, resp Response) (*Intent, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	intent, err := GetIntent(db, id)
	if err != nil {
		return nil, err
	}
	intent.Responses = append(intent.Responses, resp)
	intent.Sync.Status = SyncStatusPending
	intent.Sync.Error = ""
	if err := db.Save(intent).Error; err != nil {
		return nil, err
	}
	return intent, nil
}

// IncrementTriggerCount records one detection against the intent. Only a
// strictly positive confidence contributes to the running mean; zero means
// "no signal" and must not perturb it. The counters update in a single SQL
// statement so concurrent detections on a pooled backend never lose an
// increment. Map keys render in sorted order, so the mean assignment comes
// before the count bump and sees the pre-increment count even on backends
// that evaluate SET left to right.
func IncrementTriggerCount(db *gorm.DB, id int64, success bool, confidence float64) (*Intent, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"stat_trigger_count":  gorm.Expr("stat_trigger_count + 1"),
		"stat_last_triggered": &now,
	}
	if success {
		updates["stat_success_count"] = gorm.Expr("stat_success_count + 1")
	}
	if confidence > 0 {
		updates["stat_avg_confidence"] = gorm.Expr(
			"(stat_avg_confidence * stat_trigger_count + ?) / (stat_trigger_count + 1)", confidence)
	}

	result := db.Model(&Intent{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, &NotFoundError{Resource: "intent", Key: formatID(id)}
	}
	return GetIntent(db, id)
}

// DeleteIntent removes the local record unconditionally and returns the
// previous remote id so the caller can attempt best-effort remote cleanup.
func DeleteIntent(db *gorm.DB, id int64) (string, error) {
	intent, err := GetIntent(db, id)
	if err != nil {
		return "", err
	}
	if err := db.Delete(&Intent{}, id).Error; err != nil {
		return "", err
	}
	return intent.Sync.RemoteID, nil
}

// IntentQuery filters and pages intent listings.
type IntentQuery struct {
	Status   string
	Category string
	Search   string
	Offset   int
	Limit    int
}

// ListIntents returns a page of intents plus the total match count. Search
// covers name, display name, description and training phrase text (phrases
// are stored as json text, so a LIKE over the column reaches them).
func ListIntents(db *gorm.DB, q IntentQuery) ([]Intent, int64, error) {
	query := db.Model(&Intent{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Search != "" {
		term := "%" + q.Search + "%"
		query = query.Where(
			"name LIKE ? OR display_name LIKE ? OR description LIKE ? OR training_phrases LIKE ?",
			term, term, term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var intents []Intent
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	err := query.Order("created_at DESC, id DESC").Offset(q.Offset).Limit(limit).Find(&intents).Error
	return intents, total, err
}

// IntentsNeedingSync returns every intent awaiting reconciliation, in
// stable id order.
func IntentsNeedingSync(db *gorm.DB) ([]Intent, error) {
	var intents []Intent
	err := db.Where("sync_status IN ?", []string{SyncStatusPending, SyncStatusError}).
		Order("id ASC").
		Find(&intents).Error
	return intents, err
}

// MarkIntentSynced records a successful push. Only the sync engine calls
// this; activate promotes a draft on its first successful create.
func MarkIntentSynced(db *gorm.DB, id int64, remoteID, projectID string, activate bool) error {
	now := time.Now()
	updates := map[string]interface{}{
		"sync_status":      SyncStatusSynced,
		"sync_last_synced": &now,
		"sync_error":       "",
	}
	if remoteID != "" {
		updates["sync_remote_id"] = remoteID
	}
	if projectID != "" {
		updates["sync_project_id"] = projectID
	}
	if activate {
		updates["status"] = IntentStatusActive
	}
	return db.Model(&Intent{}).Where("id = ?", id).Updates(updates).Error
}

// MarkIntentSyncError records a failed push without touching anything else.
func MarkIntentSyncError(db *gorm.DB, id int64, message string) error {
	return db.Model(&Intent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"sync_status": SyncStatusError,
		"sync_error":  message,
	}).Error
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
