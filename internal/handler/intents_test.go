package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/internal/nlusync"
	"github.com/intentdesk/IntentDesk/pkg/nlu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	return setupTestRouterWithProvider(t, nil)
}

func setupTestRouterWithProvider(t *testing.T, provider nlu.Provider) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	silentLogger := glog.New(
		log.New(io.Discard, "", log.LstdFlags),
		glog.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  glog.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: silentLogger})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Intent{}, &models.Conversation{}))

	engine := nlusync.New(db, provider)
	h := NewHandlers(db, engine, provider, nil)

	r := gin.New()
	h.Register(r, "/api")
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestIntentAPI_CreateAndGet(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/intents", gin.H{
		"name":        "order.status",
		"displayName": "Order status",
		"responses": []gin.H{
			{"type": "text", "text": gin.H{"text": "Checking your order."}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	id := int64(data["id"].(float64))
	assert.Equal(t, "pending", data["sync"].(map[string]interface{})["syncStatus"])

	t.Run("duplicate name is a 400", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/intents", gin.H{"name": "order.status"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get by id", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/intents/%d", id), nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/intents/99999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestIntentAPI_UpdateDirtiesSync(t *testing.T) {
	r, db := setupTestRouter(t)

	intent := &models.Intent{
		Name: "faq.hours",
		Responses: models.ResponseList{
			{Type: models.ResponseTypeText, Text: &models.TextResponse{Text: "9 to 5"}},
		},
	}
	require.NoError(t, models.CreateIntent(db, intent))
	require.NoError(t, models.MarkIntentSynced(db, intent.ID, "remote-1", "", true))

	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/intents/%d", intent.ID), gin.H{
		"trainingPhrases": []gin.H{{"text": "when do you open"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	loaded, err := models.GetIntent(db, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPending, loaded.Sync.Status)
}

func TestConversationAPI_Lifecycle(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/conversations", gin.H{"sessionId": "api-session"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/conversations/api-session/messages", gin.H{
		"role": "user",
		"text": "where is my order",
		"detectedIntent": gin.H{
			"name":       "order.track",
			"confidence": 0.9,
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	stats := data["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["successfulIntents"])

	w = doJSON(t, r, http.MethodPost, "/api/conversations/api-session/feedback", gin.H{"rating": 2})
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["needsReview"])

	w = doJSON(t, r, http.MethodPost, "/api/conversations/api-session/end", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "ended", data["status"])

	t.Run("feedback out of range", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/conversations/api-session/feedback", gin.H{"rating": 9})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncAPI(t *testing.T) {
	r, db := setupTestRouter(t)

	intent := &models.Intent{Name: "sync.me"}
	require.NoError(t, models.CreateIntent(db, intent))

	// No provider configured: the run completes with per-intent errors.
	w := doJSON(t, r, http.MethodPost, "/api/sync/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["syncedCount"])
	assert.Equal(t, float64(1), data["errorCount"])

	w = doJSON(t, r, http.MethodGet, "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["running"])
	assert.Equal(t, float64(1), data["pendingCount"])
}
