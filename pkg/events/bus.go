package events

import (
	"sync"
	"time"

	"github.com/intentdesk/IntentDesk/pkg/logger"
	"go.uber.org/zap"
)

// Event types published by the core.
const (
	ConversationMessage = "conversation.message"
	ConversationEnded   = "conversation.ended"
	IntentSynced        = "intent.synced"
)

// Event is an in-process domain event.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Source    string                 `json:"source"`
}

// Handler processes one event.
type Handler func(event Event) error

// Bus is a simple in-process pub/sub bus. Handlers run asynchronously;
// a failing handler never affects the publisher.
type Bus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
}

var globalBus *Bus
var once sync.Once

// GetBus returns the global event bus.
func GetBus() *Bus {
	once.Do(func() {
		globalBus = &Bus{handlers: make(map[string][]Handler)}
	})
	return globalBus
}

// Subscribe registers a handler for the event type. "*" matches all events.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers the event to all matching handlers asynchronously.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := append([]Handler{}, b.handlers[event.Type]...)
	handlers = append(handlers, b.handlers["*"]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(event); err != nil {
				logger.Error("event handler failed",
					zap.String("eventType", event.Type),
					zap.Error(err))
			}
		}(handler)
	}
}

// Publish is the package-level convenience form.
func Publish(eventType string, data map[string]interface{}, source string) {
	GetBus().Publish(Event{Type: eventType, Data: data, Source: source})
}
