package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/internal/nlusync"
	"github.com/intentdesk/IntentDesk/pkg/response"
)

// RunSync Push every pending or errored intent to the provider
func (h *Handlers) RunSync(c *gin.Context) {
	result, err := h.engine.ReconcileAll(c.Request.Context())
	if err != nil {
		if errors.Is(err, nlusync.ErrSyncInFlight) {
			response.FailWithStatus(c, http.StatusConflict, err.Error(), nil)
			return
		}
		// A cancelled batch still reports the work it completed.
		if result != nil {
			response.Success(c, "Sync interrupted", result)
			return
		}
		failFromError(c, err)
		return
	}
	response.Success(c, "Sync completed", result)
}

// SyncStatus Report whether a batch is running and how many intents wait
func (h *Handlers) SyncStatus(c *gin.Context) {
	pending, err := models.IntentsNeedingSync(h.db)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Query successful", gin.H{
		"running":      h.engine.Running(),
		"pendingCount": len(pending),
	})
}

// Retrain Ask the provider to rebuild its model
func (h *Handlers) Retrain(c *gin.Context) {
	if err := h.engine.Retrain(c.Request.Context()); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, "Retrain triggered", nil)
}
