package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIntent(name string) *Intent {
	return &Intent{
		Name:        name,
		DisplayName: "Test " + name,
		Category:    "test",
		TrainingPhrases: TrainingPhraseList{
			{Text: "hello there"},
		},
		Responses: ResponseList{
			{Type: ResponseTypeText, Text: &TextResponse{Text: "hi"}},
		},
	}
}

func TestCreateIntent(t *testing.T) {
	db := setupIntentTestDB(t)

	intent := newTestIntent("order.status")
	err := CreateIntent(db, intent)
	require.NoError(t, err)
	assert.NotZero(t, intent.ID)
	assert.Equal(t, IntentStatusDraft, intent.Status)
	assert.Equal(t, SyncStatusPending, intent.Sync.Status)

	t.Run("empty name rejected", func(t *testing.T) {
		err := CreateIntent(db, &Intent{Name: "  "})
		assert.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		err := CreateIntent(db, newTestIntent("order.status"))
		assert.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("invalid response rejected", func(t *testing.T) {
		bad := newTestIntent("order.invalid")
		bad.Responses = ResponseList{{Type: ResponseTypeText}}
		err := CreateIntent(db, bad)
		assert.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestGetIntent(t *testing.T) {
	db := setupIntentTestDB(t)

	intent := newTestIntent("faq.shipping")
	require.NoError(t, CreateIntent(db, intent))

	loaded, err := GetIntent(db, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, "faq.shipping", loaded.Name)
	assert.Len(t, loaded.TrainingPhrases, 1)
	assert.Len(t, loaded.Responses, 1)

	_, err = GetIntent(db, 99999)
	assert.Error(t, err)
	assert.True(t, IsNotFound(err))

	byName, err := GetIntentByName(db, "faq.shipping")
	require.NoError(t, err)
	assert.Equal(t, intent.ID, byName.ID)
}

func TestUpdateIntent_DirtyTracking(t *testing.T) {
	db := setupIntentTestDB(t)

	intent := newTestIntent("faq.returns")
	require.NoError(t, CreateIntent(db, intent))
	require.NoError(t, MarkIntentSynced(db, intent.ID, "remote-1", "proj-1", true))

	t.Run("metadata change keeps synced state", func(t *testing.T) {
		desc := "updated description"
		updated, err := UpdateIntent(db, intent.ID, IntentPatch{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, SyncStatusSynced, updated.Sync.Status)
	})

	t.Run("responses change marks pending even from synced", func(t *testing.T) {
		responses := ResponseList{
			{Type: ResponseTypeText, Text: &TextResponse{Text: "new reply"}},
		}
		updated, err := UpdateIntent(db, intent.ID, IntentPatch{Responses: &responses})
		require.NoError(t, err)
		assert.Equal(t, SyncStatusPending, updated.Sync.Status)
		assert.Empty(t, updated.Sync.Error)
		// remote id survives so the next sync is an update, not a create
		assert.Equal(t, "remote-1", updated.Sync.RemoteID)
	})

	t.Run("rename collision rejected", func(t *testing.T) {
		require.NoError(t, CreateIntent(db, newTestIntent("faq.other")))
		name := "faq.other"
		_, err := UpdateIntent(db, intent.ID, IntentPatch{Name: &name})
		assert.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestAddTrainingPhrase(t *testing.T) {
	db := setupIntentTestDB(t)

	intent := newTestIntent("faq.hours")
	require.NoError(t, CreateIntent(db, intent))
	require.NoError(t, MarkIntentSynced(db, intent.ID, "remote-2", "", false))

	updated, err := AddTrainingPhrase(db, intent.ID, "when are you open", nil)
	require.NoError(t, err)
	assert.Len(t, updated.TrainingPhrases, 2)
	assert.Equal(t, SyncStatusPending, updated.Sync.Status)

	_, err = AddTrainingPhrase(db, intent.ID, "   ", nil)
	assert.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestIncrementTriggerCount(t *testing.T) {
	db := setupIntentTestDB(t)

	intent := newTestIntent("order.track")
	require.NoError(t, CreateIntent(db, intent))

	// First detection at 0.6
	updated, err := IncrementTriggerCount(db, intent.ID, true, 0.6)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Stats.TriggerCount)
	assert.Equal(t, int64(1), updated.Stats.SuccessCount)
	assert.InDelta(t, 0.6, updated.Stats.AvgConfidence, 1e-9)
	assert.NotNil(t, updated.Stats.LastTriggered)

	// Second detection at 0.8: mean moves to 0.7
	updated, err = IncrementTriggerCount(db, intent.ID, true, 0.8)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Stats.TriggerCount)
	assert.InDelta(t, 0.7, updated.Stats.AvgConfidence, 1e-9)

	// Zero confidence counts the trigger but leaves the mean alone
	updated, err = IncrementTriggerCount(db, intent.ID, false, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Stats.TriggerCount)
	assert.Equal(t, int64(2), updated.Stats.SuccessCount)
	assert.InDelta(t, 0.7, updated.Stats.AvgConfidence, 1e-9)

	// Stats survive a reload
	loaded, err := GetIntent(db, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded.Stats.TriggerCount)
	assert.InDelta(t, 0.7, loaded.Stats.AvgConfidence, 1e-9)

	t.Run("unknown intent", func(t *testing.T) {
		_, err := IncrementTriggerCount(db, 99999, true, 0.5)
		assert.True(t, IsNotFound(err))
	})
}

func TestDeleteIntent(t *testing.T) {
	db := setupIntentTestDB(t)

	intent := newTestIntent("faq.payment")
	require.NoError(t, CreateIntent(db, intent))
	require.NoError(t, MarkIntentSynced(db, intent.ID, "remote-3", "", false))

	remoteID, err := DeleteIntent(db, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, "remote-3", remoteID)

	_, err = GetIntent(db, intent.ID)
	assert.True(t, IsNotFound(err))

	_, err = DeleteIntent(db, intent.ID)
	assert.True(t, IsNotFound(err))
}

func TestListIntents(t *testing.T) {
	db := setupIntentTestDB(t)

	for _, name := range []string{"order.status", "order.cancel", "faq.shipping"} {
		require.NoError(t, CreateIntent(db, newTestIntent(name)))
	}
	active := IntentStatusActive
	_, err := UpdateIntent(db, 1, IntentPatch{Status: &active})
	require.NoError(t, err)

	all, total, err := ListIntents(db, IntentQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	actives, total, err := ListIntents(db, IntentQuery{Status: IntentStatusActive})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "order.status", actives[0].Name)

	found, _, err := ListIntents(db, IntentQuery{Search: "cancel"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "order.cancel", found[0].Name)

	paged, total, err := ListIntents(db, IntentQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, paged, 2)
}

func TestIntentsNeedingSync(t *testing.T) {
	db := setupIntentTestDB(t)

	a := newTestIntent("a.pending")
	b := newTestIntent("b.synced")
	c := newTestIntent("c.errored")
	require.NoError(t, CreateIntent(db, a))
	require.NoError(t, CreateIntent(db, b))
	require.NoError(t, CreateIntent(db, c))

	require.NoError(t, MarkIntentSynced(db, b.ID, "remote-b", "", true))
	require.NoError(t, MarkIntentSyncError(db, c.ID, "provider timeout"))

	pending, err := IntentsNeedingSync(db)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// stable id order
	assert.Equal(t, "a.pending", pending[0].Name)
	assert.Equal(t, "c.errored", pending[1].Name)

	errored, err := GetIntent(db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "provider timeout", errored.Sync.Error)
}

func TestMarkIntentSynced(t *testing.T) {
	db := setupIntentTestDB(t)

	intent := newTestIntent("faq.draft")
	require.NoError(t, CreateIntent(db, intent))

	require.NoError(t, MarkIntentSynced(db, intent.ID, "remote-9", "proj-9", true))

	loaded, err := GetIntent(db, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncStatusSynced, loaded.Sync.Status)
	assert.Equal(t, "remote-9", loaded.Sync.RemoteID)
	assert.Equal(t, "proj-9", loaded.Sync.ProjectID)
	assert.Equal(t, IntentStatusActive, loaded.Status)
	assert.NotNil(t, loaded.Sync.LastSynced)
}

func TestResponseValidate(t *testing.T) {
	tests := []struct {
		name    string
		resp    Response
		wantErr bool
	}{
		{
			name:    "valid text",
			resp:    Response{Type: ResponseTypeText, Text: &TextResponse{Text: "hello"}},
			wantErr: false,
		},
		{
			name:    "text missing body",
			resp:    Response{Type: ResponseTypeText},
			wantErr: true,
		},
		{
			name:    "valid card",
			resp:    Response{Type: ResponseTypeCard, Card: &CardResponse{Title: "Order"}},
			wantErr: false,
		},
		{
			name:    "card missing title",
			resp:    Response{Type: ResponseTypeCard, Card: &CardResponse{}},
			wantErr: true,
		},
		{
			name:    "valid quick replies",
			resp:    Response{Type: ResponseTypeQuickReplies, QuickReplies: &QuickRepliesResponse{Replies: []string{"yes", "no"}}},
			wantErr: false,
		},
		{
			name:    "quick replies empty",
			resp:    Response{Type: ResponseTypeQuickReplies, QuickReplies: &QuickRepliesResponse{}},
			wantErr: true,
		},
		{
			name:    "unknown type",
			resp:    Response{Type: "video"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
