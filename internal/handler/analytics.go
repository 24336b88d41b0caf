package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intentdesk/IntentDesk/internal/models"
	"github.com/intentdesk/IntentDesk/pkg/response"
)

// Analytics responses are cached briefly; dashboards poll these endpoints
// and the aggregates walk every conversation in the window.
const analyticsCacheTTL = 30 * time.Second

func (h *Handlers) window(c *gin.Context) (time.Time, time.Time) {
	var start, end time.Time
	if v := c.Query("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			start = t
		}
	}
	if v := c.Query("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			end = t
		}
	}
	if start.IsZero() && end.IsZero() {
		// Default to the trailing week.
		end = time.Now()
		start = end.AddDate(0, 0, -7)
	}
	return start, end
}

// cached serves the endpoint through the shared cache. Entries are stored as
// JSON so the redis backend works the same as the local one.
func (h *Handlers) cached(c *gin.Context, key string, load func() (interface{}, error)) {
	if h.cache != nil {
		if v, ok := h.cache.Get(c.Request.Context(), key); ok {
			if raw, ok := rawJSON(v); ok {
				response.Success(c, "Query successful", raw)
				return
			}
		}
	}

	v, err := load()
	if err != nil {
		failFromError(c, err)
		return
	}
	if h.cache != nil {
		if data, err := json.Marshal(v); err == nil {
			_ = h.cache.Set(c.Request.Context(), key, data, analyticsCacheTTL)
		}
	}
	response.Success(c, "Query successful", v)
}

func rawJSON(v interface{}) (json.RawMessage, bool) {
	switch data := v.(type) {
	case []byte:
		return json.RawMessage(data), true
	case string:
		return json.RawMessage(data), true
	default:
		return nil, false
	}
}

// ConversationOverview High-level conversation health for a window
func (h *Handlers) ConversationOverview(c *gin.Context) {
	start, end := h.window(c)
	key := fmt.Sprintf("analytics:overview:%d:%d", start.Unix(), end.Unix())
	h.cached(c, key, func() (interface{}, error) {
		return models.GetConversationOverview(h.db, start, end)
	})
}

// PopularIntents Most triggered intents in a window
func (h *Handlers) PopularIntents(c *gin.Context) {
	start, end := h.window(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	key := fmt.Sprintf("analytics:popular:%d:%d:%d", start.Unix(), end.Unix(), limit)
	h.cached(c, key, func() (interface{}, error) {
		return models.PopularIntents(h.db, start, end, limit)
	})
}

// FailedIntents Utterances that matched nothing or matched weakly
func (h *Handlers) FailedIntents(c *gin.Context) {
	start, end := h.window(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	key := fmt.Sprintf("analytics:failed:%d:%d:%d", start.Unix(), end.Unix(), limit)
	h.cached(c, key, func() (interface{}, error) {
		return models.FailedIntents(h.db, start, end, limit)
	})
}

// IntentCreationTrend Intents created per day over a window
func (h *Handlers) IntentCreationTrend(c *gin.Context) {
	start, end := h.window(c)
	key := fmt.Sprintf("analytics:trend:%d:%d", start.Unix(), end.Unix())
	h.cached(c, key, func() (interface{}, error) {
		return models.IntentCreationTrend(h.db, start, end)
	})
}
