package bootstrap

import (
	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedService writes starter data for development and test environments.
type SeedService struct {
	db *gorm.DB
}

// SeedAll seeds everything that is missing. Seeding is idempotent: existing
// records are left alone.
func (s *SeedService) SeedAll() error {
	return s.seedStarterIntents()
}

func textResponse(text string) models.Response {
	return models.Response{
		Type: models.ResponseTypeText,
		Text: &models.TextResponse{Text: text},
	}
}

// seedStarterIntents installs a minimal small-talk catalog so a fresh
// install can answer something before any operator work.
func (s *SeedService) seedStarterIntents() error {
	starters := []models.Intent{
		{
			Name:        "smalltalk.greeting",
			DisplayName: "Greeting",
			Category:    "smalltalk",
			TrainingPhrases: models.TrainingPhraseList{
				{Text: "hello"},
				{Text: "hi there"},
				{Text: "good morning"},
			},
			Responses: models.ResponseList{
				textResponse("Hello! How can I help you today?"),
			},
		},
		{
			Name:        "smalltalk.goodbye",
			DisplayName: "Goodbye",
			Category:    "smalltalk",
			TrainingPhrases: models.TrainingPhraseList{
				{Text: "bye"},
				{Text: "goodbye"},
				{Text: "see you later"},
			},
			Responses: models.ResponseList{
				textResponse("Goodbye! Have a great day."),
			},
		},
		{
			Name:        "support.handoff",
			DisplayName: "Talk to a human",
			Category:    "support",
			TrainingPhrases: models.TrainingPhraseList{
				{Text: "talk to a human"},
				{Text: "I want to speak with an agent"},
				{Text: "connect me to support"},
			},
			Responses: models.ResponseList{
				textResponse("Connecting you to a support agent."),
			},
		},
	}

	for i := range starters {
		intent := &starters[i]
		var count int64
		if err := s.db.Model(&models.Intent{}).Where("name = ?", intent.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := models.CreateIntent(s.db, intent); err != nil {
			return err
		}
		logger.Info("seeded intent", zap.String("name", intent.Name))
	}
	return nil
}
