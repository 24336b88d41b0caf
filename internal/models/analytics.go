package models

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ConversationOverview is the high-level health snapshot for a window.
type ConversationOverview struct {
	TotalConversations int64   `json:"totalConversations"`
	ActiveCount        int64   `json:"activeCount"`
	EndedCount         int64   `json:"endedCount"`
	AvgDuration        float64 `json:"avgDuration"`
	AvgMessages        float64 `json:"avgMessages"`
	AvgConfidence      float64 `json:"avgConfidence"`
	AvgResponseTime    float64 `json:"avgResponseTime"`
	FeedbackCount      int64   `json:"feedbackCount"`
	AvgRating          float64 `json:"avgRating"`
	NeedsReviewCount   int64   `json:"needsReviewCount"`
}

// IntentUsage is one row of the popular-intents ranking.
type IntentUsage struct {
	Name          string  `json:"name"`
	DisplayName   string  `json:"displayName,omitempty"`
	Count         int64   `json:"count"`
	AvgConfidence float64 `json:"avgConfidence"`
}

// FailedUtterance is a user text that produced no confident match.
type FailedUtterance struct {
	Text  string `json:"text"`
	Count int64  `json:"count"`
}

// CategoryCount is one row of the intents-by-category breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// TrendPoint is one day of the intent creation trend.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

func windowed(db *gorm.DB, start, end time.Time) *gorm.DB {
	query := db.Model(&Conversation{})
	if !start.IsZero() {
		query = query.Where("started_at >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("started_at <= ?", end)
	}
	return query
}

// GetConversationOverview aggregates conversation health for the window.
// Averages coalesce to zero on an empty window rather than NULL.
func GetConversationOverview(db *gorm.DB, start, end time.Time) (*ConversationOverview, error) {
	var overview ConversationOverview

	if err := windowed(db, start, end).Count(&overview.TotalConversations).Error; err != nil {
		return nil, err
	}
	if err := windowed(db, start, end).
		Where("status = ?", ConversationActive).
		Count(&overview.ActiveCount).Error; err != nil {
		return nil, err
	}
	if err := windowed(db, start, end).
		Where("status = ?", ConversationEnded).
		Count(&overview.EndedCount).Error; err != nil {
		return nil, err
	}
	if err := windowed(db, start, end).
		Where("needs_review = ?", true).
		Count(&overview.NeedsReviewCount).Error; err != nil {
		return nil, err
	}

	var averages struct {
		AvgDuration     float64
		AvgMessages     float64
		AvgConfidence   float64
		AvgResponseTime float64
	}
	if err := windowed(db, start, end).
		Select("COALESCE(AVG(duration), 0) AS avg_duration, " +
			"COALESCE(AVG(stat_total_messages), 0) AS avg_messages, " +
			"COALESCE(AVG(stat_avg_confidence), 0) AS avg_confidence, " +
			"COALESCE(AVG(stat_avg_response_time), 0) AS avg_response_time").
		Scan(&averages).Error; err != nil {
		return nil, err
	}
	overview.AvgDuration = averages.AvgDuration
	overview.AvgMessages = averages.AvgMessages
	overview.AvgConfidence = averages.AvgConfidence
	overview.AvgResponseTime = averages.AvgResponseTime

	var rating struct {
		FeedbackCount int64
		AvgRating     float64
	}
	if err := windowed(db, start, end).
		Where("feedback_rating > 0").
		Select("COUNT(*) AS feedback_count, COALESCE(AVG(feedback_rating), 0) AS avg_rating").
		Scan(&rating).Error; err != nil {
		return nil, err
	}
	overview.FeedbackCount = rating.FeedbackCount
	overview.AvgRating = rating.AvgRating

	return &overview, nil
}

// PopularIntents ranks detected intents by trigger count inside the window.
// Messages live in json columns, so the flattening happens here; ties keep
// first-seen order, which is stable across runs because conversations are
// walked in id order.
func PopularIntents(db *gorm.DB, start, end time.Time, limit int) ([]IntentUsage, error) {
	convs, err := windowedConversations(db, start, end)
	if err != nil {
		return nil, err
	}

	type accum struct {
		usage         IntentUsage
		confidenceSum float64
	}
	byName := make(map[string]*accum)
	var order []string

	for _, conv := range convs {
		for _, msg := range conv.Messages {
			if msg.Role != RoleUser || msg.DetectedIntent == nil {
				continue
			}
			name := msg.DetectedIntent.Name
			entry, ok := byName[name]
			if !ok {
				entry = &accum{usage: IntentUsage{
					Name:        name,
					DisplayName: msg.DetectedIntent.DisplayName,
				}}
				byName[name] = entry
				order = append(order, name)
			}
			entry.usage.Count++
			entry.confidenceSum += msg.DetectedIntent.Confidence
		}
	}

	result := make([]IntentUsage, 0, len(order))
	for _, name := range order {
		entry := byName[name]
		entry.usage.AvgConfidence = entry.confidenceSum / float64(entry.usage.Count)
		result = append(result, entry.usage)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// FailedIntents collects user utterances that matched nothing or matched
// below the success threshold, grouped by the raw message text and ranked
// by frequency.
func FailedIntents(db *gorm.DB, start, end time.Time, limit int) ([]FailedUtterance, error) {
	convs, err := windowedConversations(db, start, end)
	if err != nil {
		return nil, err
	}

	byText := make(map[string]*FailedUtterance)
	var order []string

	for _, conv := range convs {
		for _, msg := range conv.Messages {
			if msg.Role != RoleUser {
				continue
			}
			if msg.DetectedIntent != nil && msg.DetectedIntent.Confidence > successConfidenceThreshold {
				continue
			}
			text := strings.TrimSpace(msg.Text)
			if text == "" {
				continue
			}
			entry, ok := byText[text]
			if !ok {
				entry = &FailedUtterance{Text: text}
				byText[text] = entry
				order = append(order, text)
			}
			entry.Count++
		}
	}

	result := make([]FailedUtterance, 0, len(order))
	for _, text := range order {
		result = append(result, *byText[text])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func windowedConversations(db *gorm.DB, start, end time.Time) ([]Conversation, error) {
	var convs []Conversation
	err := windowed(db, start, end).Order("id ASC").Find(&convs).Error
	return convs, err
}

// CountIntentsByCategory breaks the catalog down by category. Uncategorized
// intents group under the empty string.
func CountIntentsByCategory(db *gorm.DB) ([]CategoryCount, error) {
	var rows []CategoryCount
	err := db.Model(&Intent{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("count DESC, category ASC").
		Scan(&rows).Error
	return rows, err
}

// IntentCreationTrend buckets intent creation per day over the window,
// oldest day first. Days with no creations are absent.
func IntentCreationTrend(db *gorm.DB, start, end time.Time) ([]TrendPoint, error) {
	query := db.Model(&Intent{})
	if !start.IsZero() {
		query = query.Where("created_at >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("created_at <= ?", end)
	}

	var intents []Intent
	if err := query.Order("id ASC").Find(&intents).Error; err != nil {
		return nil, err
	}

	byDay := make(map[string]int64)
	for _, intent := range intents {
		byDay[intent.CreatedAt.Format("2006-01-02")]++
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	result := make([]TrendPoint, 0, len(days))
	for _, day := range days {
		result = append(result, TrendPoint{Date: day, Count: byDay[day]})
	}
	return result, nil
}
