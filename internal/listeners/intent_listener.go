package listeners

import (
	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/pkg/events"
	"github.com/intentdesk/IntentDesk/pkg/logger"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterIntentListeners wires conversation events into the intent trigger
// counters. Recording a turn stays decoupled from the catalog update; a
// missing intent (detected name not in the local catalog) is not an error.
func RegisterIntentListeners(db *gorm.DB) {
	events.GetBus().Subscribe(events.ConversationMessage, func(event events.Event) error {
		name := cast.ToString(event.Data["intentName"])
		if name == "" {
			return nil
		}

		intent, err := models.GetIntentByName(db, name)
		if err != nil {
			if models.IsNotFound(err) {
				logger.Debug("detected intent not in catalog", zap.String("name", name))
				return nil
			}
			return err
		}

		success := cast.ToBool(event.Data["success"])
		confidence := cast.ToFloat64(event.Data["confidence"])
		_, err = models.IncrementTriggerCount(db, intent.ID, success, confidence)
		return err
	})
}
