package nlusync

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/pkg/logger"
	"github.com/intentdesk/IntentDesk/pkg/metrics"
	"github.com/intentdesk/IntentDesk/pkg/nlu"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrSyncInFlight is returned when a reconciliation batch is already running.
var ErrSyncInFlight = errors.New("a sync run is already in progress")

// How many per-intent failures a batch result carries before truncating.
const maxReportedErrors = 10

// SyncFailure is one intent that failed during a batch.
type SyncFailure struct {
	IntentID int64  `json:"intentId"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

// Result summarizes one reconciliation batch.
type Result struct {
	SyncedCount int           `json:"syncedCount"`
	ErrorCount  int           `json:"errorCount"`
	Errors      []SyncFailure `json:"errors,omitempty"`
	Truncated   bool          `json:"truncated,omitempty"`
}

// Engine reconciles local intents against the external NLU provider. At most
// one batch runs at a time; individual intent failures never abort the batch.
type Engine struct {
	db       *gorm.DB
	provider nlu.Provider
	running  atomic.Bool
}

// New builds an engine. provider may be nil when no NLU configuration is
// present; intents then land in the error state without any network I/O.
func New(db *gorm.DB, provider nlu.Provider) *Engine {
	return &Engine{db: db, provider: provider}
}

// Running reports whether a batch is currently in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// ReconcileOne pushes a single intent to the provider. Already-synced intents
// are skipped so retries stay idempotent. A create stores the returned remote
// id and promotes a draft to active.
func (e *Engine) ReconcileOne(ctx context.Context, intent *models.Intent) error {
	if intent.Sync.Status == models.SyncStatusSynced {
		return nil
	}
	if e.provider == nil {
		if err := models.MarkIntentSyncError(e.db, intent.ID, nlu.ErrNotConfigured.Error()); err != nil {
			return err
		}
		return nlu.ErrNotConfigured
	}

	spec := specFromIntent(intent)

	if intent.Sync.RemoteID == "" {
		remoteID, err := e.provider.CreateIntent(ctx, spec)
		if err != nil {
			if markErr := models.MarkIntentSyncError(e.db, intent.ID, err.Error()); markErr != nil {
				return markErr
			}
			return err
		}
		activate := intent.Status == models.IntentStatusDraft
		if err := models.MarkIntentSynced(e.db, intent.ID, remoteID, "", activate); err != nil {
			return err
		}
	} else {
		if err := e.provider.UpdateIntent(ctx, intent.Sync.RemoteID, spec); err != nil {
			if markErr := models.MarkIntentSyncError(e.db, intent.ID, err.Error()); markErr != nil {
				return markErr
			}
			return err
		}
		if err := models.MarkIntentSynced(e.db, intent.ID, "", "", false); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileAll pushes every pending or errored intent, sequentially and in
// stable id order. The batch stops early on context cancellation; intents not
// yet reached keep their state and surface in the next run.
func (e *Engine) ReconcileAll(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInFlight
	}
	defer e.running.Store(false)

	intents, err := models.IntentsNeedingSync(e.db)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i := range intents {
		select {
		case <-ctx.Done():
			logger.Warn("sync batch cancelled",
				zap.Int("completed", result.SyncedCount+result.ErrorCount),
				zap.Int("remaining", len(intents)-i))
			return result, ctx.Err()
		default:
		}

		intent := &intents[i]
		if err := e.ReconcileOne(ctx, intent); err != nil {
			result.ErrorCount++
			metrics.IntentSyncTotal.WithLabelValues("error").Inc()
			if len(result.Errors) < maxReportedErrors {
				result.Errors = append(result.Errors, SyncFailure{
					IntentID: intent.ID,
					Name:     intent.Name,
					Error:    err.Error(),
				})
			} else {
				result.Truncated = true
			}
			logger.Error("intent sync failed",
				zap.Int64("intentId", intent.ID),
				zap.String("name", intent.Name),
				zap.Error(err))
			continue
		}
		result.SyncedCount++
		metrics.IntentSyncTotal.WithLabelValues("synced").Inc()
	}

	metrics.ReconcileRuns.Inc()
	logger.Info("sync batch finished",
		zap.Int("synced", result.SyncedCount),
		zap.Int("errors", result.ErrorCount))
	return result, nil
}

// DeleteRemote removes the provider copy of a deleted intent. Cleanup is
// best-effort: the local delete already happened, so failures are only logged.
func (e *Engine) DeleteRemote(ctx context.Context, remoteID string) {
	if remoteID == "" || e.provider == nil {
		return
	}
	if err := e.provider.DeleteIntent(ctx, remoteID); err != nil {
		logger.Warn("remote intent cleanup failed",
			zap.String("remoteId", remoteID),
			zap.Error(err))
	}
}

// Retrain asks the provider to rebuild its model from the synced intents.
func (e *Engine) Retrain(ctx context.Context) error {
	if e.provider == nil {
		return nlu.ErrNotConfigured
	}
	return e.provider.Retrain(ctx)
}

func specFromIntent(intent *models.Intent) nlu.IntentSpec {
	spec := nlu.IntentSpec{
		Name:           intent.Name,
		DisplayName:    intent.DisplayName,
		InputContexts:  intent.InputContexts,
		Events:         intent.Events,
		WebhookEnabled: intent.Webhook.Enabled,
	}

	for _, phrase := range intent.TrainingPhrases {
		wire := nlu.TrainingPhrase{Text: phrase.Text}
		for _, ent := range phrase.Entities {
			wire.Entities = append(wire.Entities, nlu.EntitySpan{
				Entity: ent.Entity,
				Value:  ent.Value,
				Start:  ent.Start,
				End:    ent.End,
			})
		}
		spec.TrainingPhrases = append(spec.TrainingPhrases, wire)
	}

	for _, resp := range intent.Responses {
		wire := nlu.Response{Type: resp.Type}
		switch resp.Type {
		case models.ResponseTypeText:
			wire.Text = resp.Text.Text
		case models.ResponseTypeCard:
			payload, _ := json.Marshal(resp.Card)
			wire.Payload = payload
		case models.ResponseTypeQuickReplies:
			payload, _ := json.Marshal(resp.QuickReplies)
			wire.Payload = payload
		case models.ResponseTypeCustom:
			wire.Payload = resp.Custom.Payload
		}
		spec.Responses = append(spec.Responses, wire)
	}

	for _, param := range intent.Parameters {
		spec.Parameters = append(spec.Parameters, nlu.Parameter{
			Name:       param.Name,
			EntityType: param.EntityType,
			Required:   param.Required,
			Prompts:    param.Prompts,
			Default:    param.Default,
		})
	}

	for _, out := range intent.OutputContexts {
		spec.OutputContexts = append(spec.OutputContexts, nlu.OutputContext{
			Name:       out.Name,
			Lifespan:   out.Lifespan,
			Parameters: out.Parameters,
		})
	}

	return spec
}
