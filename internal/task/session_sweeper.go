package task

import (
	"time"

	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// How long an active session may sit without updates before it is considered
// walked away from.
const sessionIdleTimeout = 30 * time.Minute

// StartSessionSweeper periodically marks idle active conversations abandoned.
func StartSessionSweeper(db *gorm.DB) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sweepIdleSessions(db)
	}
}

func sweepIdleSessions(db *gorm.DB) {
	cutoff := time.Now().Add(-sessionIdleTimeout)
	var sessionIDs []string
	if err := db.Model(&models.Conversation{}).
		Where("status = ? AND updated_at < ?", models.ConversationActive, cutoff).
		Pluck("session_id", &sessionIDs).Error; err != nil {
		logger.Error("session sweep failed", zap.Error(err))
		return
	}

	// Per-session so each abandon takes the append lock and releases it.
	swept := 0
	for _, sessionID := range sessionIDs {
		if err := models.MarkAbandoned(db, sessionID); err != nil {
			logger.Error("session sweep failed",
				zap.String("sessionId", sessionID),
				zap.Error(err))
			continue
		}
		swept++
	}
	if swept > 0 {
		logger.Info("idle sessions abandoned", zap.Int("count", swept))
	}
}
