package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/pkg/nlu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDetectProvider answers every detection with a fixed result.
type fakeDetectProvider struct {
	result *nlu.DetectResult
	err    error
}

func (f *fakeDetectProvider) CreateIntent(ctx context.Context, spec nlu.IntentSpec) (string, error) {
	return "remote-1", nil
}

func (f *fakeDetectProvider) UpdateIntent(ctx context.Context, remoteID string, spec nlu.IntentSpec) error {
	return nil
}

func (f *fakeDetectProvider) DeleteIntent(ctx context.Context, remoteID string) error {
	return nil
}

func (f *fakeDetectProvider) Retrain(ctx context.Context) error {
	return nil
}

func (f *fakeDetectProvider) DetectIntent(ctx context.Context, sessionID, text string) (*nlu.DetectResult, error) {
	return f.result, f.err
}

func TestDetectMessage_RecordsDetectionAndBotResponse(t *testing.T) {
	provider := &fakeDetectProvider{
		result: &nlu.DetectResult{
			IntentName:      "order.track",
			DisplayName:     "Track order",
			Confidence:      0.9,
			FulfillmentText: "Your order ships tomorrow.",
			Parameters:      map[string]string{"order_id": "42"},
		},
	}
	r, db := setupTestRouterWithProvider(t, provider)

	w := doJSON(t, r, http.MethodPost, "/api/conversations", gin.H{"sessionId": "detect-session"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/conversations/detect-session/detect", gin.H{
		"text": "where is order 42",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The persisted turn carries both the detection and the delivered answer.
	conv, err := models.GetConversation(db, "detect-session")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	turn := conv.Messages[0]
	require.NotNil(t, turn.DetectedIntent)
	assert.Equal(t, "order.track", turn.DetectedIntent.Name)
	require.NotNil(t, turn.BotResponse)
	assert.Equal(t, "text", turn.BotResponse.Type)
	assert.Equal(t, "Your order ships tomorrow.", turn.BotResponse.Text)
	assert.Contains(t, turn.BotResponse.Payload, "order_id")
	assert.Equal(t, 1, conv.Stats.SuccessfulIntents)
}

func TestDetectMessage_ProviderFailureRecordedOnTurn(t *testing.T) {
	provider := &fakeDetectProvider{err: assert.AnError}
	r, db := setupTestRouterWithProvider(t, provider)

	w := doJSON(t, r, http.MethodPost, "/api/conversations", gin.H{"sessionId": "detect-err"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/conversations/detect-err/detect", gin.H{"text": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	conv, err := models.GetConversation(db, "detect-err")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	turn := conv.Messages[0]
	assert.Nil(t, turn.DetectedIntent)
	assert.Nil(t, turn.BotResponse)
	require.NotNil(t, turn.Error)
	assert.Equal(t, "detect_failed", turn.Error.Code)
}
