package nlusync

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/pkg/nlu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	require.NoError(t, db.AutoMigrate(&models.Intent{}))
	return db
}

// fakeProvider scripts per-intent failures and records every call.
type fakeProvider struct {
	failCreates map[string]error
	failUpdates map[string]error

	createCalls  []string
	updateCalls  []string
	deleteCalls  []string
	retrainCalls int
	nextRemoteID int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		failCreates: map[string]error{},
		failUpdates: map[string]error{},
	}
}

func (f *fakeProvider) CreateIntent(ctx context.Context, spec nlu.IntentSpec) (string, error) {
	f.createCalls = append(f.createCalls, spec.Name)
	if err, ok := f.failCreates[spec.Name]; ok {
		return "", err
	}
	f.nextRemoteID++
	return "remote-" + spec.Name, nil
}

func (f *fakeProvider) UpdateIntent(ctx context.Context, remoteID string, spec nlu.IntentSpec) error {
	f.updateCalls = append(f.updateCalls, spec.Name)
	if err, ok := f.failUpdates[spec.Name]; ok {
		return err
	}
	return nil
}

func (f *fakeProvider) DeleteIntent(ctx context.Context, remoteID string) error {
	f.deleteCalls = append(f.deleteCalls, remoteID)
	return nil
}

func (f *fakeProvider) Retrain(ctx context.Context) error {
	f.retrainCalls++
	return nil
}

func (f *fakeProvider) DetectIntent(ctx context.Context, sessionID, text string) (*nlu.DetectResult, error) {
	return &nlu.DetectResult{}, nil
}

func seedIntent(t *testing.T, db *gorm.DB, name string) *models.Intent {
	intent := &models.Intent{
		Name:        name,
		DisplayName: name,
		TrainingPhrases: models.TrainingPhraseList{
			{Text: "example for " + name},
		},
		Responses: models.ResponseList{
			{Type: models.ResponseTypeText, Text: &models.TextResponse{Text: "ok"}},
		},
	}
	require.NoError(t, models.CreateIntent(db, intent))
	return intent
}

func TestReconcileAll_PartialFailure(t *testing.T) {
	db := setupTestDB(t)
	provider := newFakeProvider()
	provider.failCreates["intent.b"] = errors.New("provider rejected payload")

	a := seedIntent(t, db, "intent.a")
	b := seedIntent(t, db, "intent.b")
	c := seedIntent(t, db, "intent.c")

	engine := New(db, provider)
	result, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SyncedCount)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, b.ID, result.Errors[0].IntentID)
	assert.Contains(t, result.Errors[0].Error, "provider rejected payload")

	// A and C landed despite B failing in between.
	for _, id := range []int64{a.ID, c.ID} {
		loaded, err := models.GetIntent(db, id)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatusSynced, loaded.Sync.Status)
		assert.NotEmpty(t, loaded.Sync.RemoteID)
		assert.Equal(t, models.IntentStatusActive, loaded.Status)
	}
	errored, err := models.GetIntent(db, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, errored.Sync.Status)
	assert.Equal(t, "provider rejected payload", errored.Sync.Error)

	t.Run("second pass retries only the failure", func(t *testing.T) {
		delete(provider.failCreates, "intent.b")
		before := len(provider.createCalls)

		result, err := engine.ReconcileAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.SyncedCount)
		assert.Zero(t, result.ErrorCount)
		assert.Equal(t, before+1, len(provider.createCalls))
	})

	t.Run("clean catalog is a no-op", func(t *testing.T) {
		before := len(provider.createCalls) + len(provider.updateCalls)
		result, err := engine.ReconcileAll(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.SyncedCount)
		assert.Zero(t, result.ErrorCount)
		assert.Equal(t, before, len(provider.createCalls)+len(provider.updateCalls))
	})
}

func TestReconcileAll_ErrorListCapped(t *testing.T) {
	db := setupTestDB(t)
	provider := newFakeProvider()

	for i := 0; i < maxReportedErrors+3; i++ {
		name := "intent.fail-" + string(rune('a'+i))
		seedIntent(t, db, name)
		provider.failCreates[name] = errors.New("boom")
	}

	engine := New(db, provider)
	result, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, maxReportedErrors+3, result.ErrorCount)
	assert.Len(t, result.Errors, maxReportedErrors)
	assert.True(t, result.Truncated)
}

func TestReconcileAll_UpdatesExistingRemote(t *testing.T) {
	db := setupTestDB(t)
	provider := newFakeProvider()

	intent := seedIntent(t, db, "intent.update")
	require.NoError(t, models.MarkIntentSynced(db, intent.ID, "remote-existing", "", true))
	_, err := models.AddTrainingPhrase(db, intent.ID, "another phrase", nil)
	require.NoError(t, err)

	engine := New(db, provider)
	result, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedCount)
	assert.Empty(t, provider.createCalls)
	assert.Equal(t, []string{"intent.update"}, provider.updateCalls)

	loaded, err := models.GetIntent(db, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, loaded.Sync.Status)
	assert.Equal(t, "remote-existing", loaded.Sync.RemoteID)
}

func TestReconcileAll_InFlightGuard(t *testing.T) {
	db := setupTestDB(t)
	engine := New(db, newFakeProvider())

	engine.running.Store(true)
	_, err := engine.ReconcileAll(context.Background())
	assert.ErrorIs(t, err, ErrSyncInFlight)
	engine.running.Store(false)

	_, err = engine.ReconcileAll(context.Background())
	assert.NoError(t, err)
	assert.False(t, engine.Running())
}

func TestReconcileAll_ContextCancelled(t *testing.T) {
	db := setupTestDB(t)
	provider := newFakeProvider()
	for _, name := range []string{"intent.1", "intent.2", "intent.3"} {
		seedIntent(t, db, name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := New(db, provider)
	result, err := engine.ReconcileAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.SyncedCount)
	assert.Empty(t, provider.createCalls)

	// Untouched intents stay pending for the next run.
	pending, err := models.IntentsNeedingSync(db)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestReconcileOne_UnconfiguredProvider(t *testing.T) {
	db := setupTestDB(t)
	intent := seedIntent(t, db, "intent.offline")

	engine := New(db, nil)
	err := engine.ReconcileOne(context.Background(), intent)
	assert.ErrorIs(t, err, nlu.ErrNotConfigured)

	loaded, err := models.GetIntent(db, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, loaded.Sync.Status)
	assert.Equal(t, nlu.ErrNotConfigured.Error(), loaded.Sync.Error)
}

func TestReconcileOne_SkipsSynced(t *testing.T) {
	db := setupTestDB(t)
	provider := newFakeProvider()

	intent := seedIntent(t, db, "intent.done")
	require.NoError(t, models.MarkIntentSynced(db, intent.ID, "remote-done", "", true))
	intent, err := models.GetIntent(db, intent.ID)
	require.NoError(t, err)

	engine := New(db, provider)
	require.NoError(t, engine.ReconcileOne(context.Background(), intent))
	assert.Empty(t, provider.createCalls)
	assert.Empty(t, provider.updateCalls)
}

func TestDeleteRemote(t *testing.T) {
	db := setupTestDB(t)
	provider := newFakeProvider()
	engine := New(db, provider)

	engine.DeleteRemote(context.Background(), "remote-x")
	assert.Equal(t, []string{"remote-x"}, provider.deleteCalls)

	// No remote id, nothing to do.
	engine.DeleteRemote(context.Background(), "")
	assert.Len(t, provider.deleteCalls, 1)
}

func TestRetrain(t *testing.T) {
	db := setupTestDB(t)
	provider := newFakeProvider()
	engine := New(db, provider)

	require.NoError(t, engine.Retrain(context.Background()))
	assert.Equal(t, 1, provider.retrainCalls)

	unconfigured := New(db, nil)
	assert.ErrorIs(t, unconfigured.Retrain(context.Background()), nlu.ErrNotConfigured)
}

func TestSpecFromIntent(t *testing.T) {
	intent := &models.Intent{
		Name:        "order.track",
		DisplayName: "Track order",
		TrainingPhrases: models.TrainingPhraseList{
			{Text: "where is order 42", Entities: []models.EntityAnnotation{
				{Entity: "order_id", Value: "42", Start: 15, End: 17},
			}},
		},
		Responses: models.ResponseList{
			{Type: models.ResponseTypeText, Text: &models.TextResponse{Text: "Checking."}},
			{Type: models.ResponseTypeQuickReplies, QuickReplies: &models.QuickRepliesResponse{Replies: []string{"yes", "no"}}},
		},
		Parameters: models.ParameterList{
			{Name: "order_id", EntityType: "@sys.number", Required: true},
		},
		Webhook: models.WebhookConfig{Enabled: true},
	}

	spec := specFromIntent(intent)
	assert.Equal(t, "order.track", spec.Name)
	require.Len(t, spec.TrainingPhrases, 1)
	require.Len(t, spec.TrainingPhrases[0].Entities, 1)
	assert.Equal(t, "order_id", spec.TrainingPhrases[0].Entities[0].Entity)
	require.Len(t, spec.Responses, 2)
	assert.Equal(t, "Checking.", spec.Responses[0].Text)
	assert.NotEmpty(t, spec.Responses[1].Payload)
	require.Len(t, spec.Parameters, 1)
	assert.True(t, spec.Parameters[0].Required)
	assert.True(t, spec.WebhookEnabled)
}
