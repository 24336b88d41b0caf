package nlu

import "encoding/json"

// IntentSpec is the wire shape pushed to the provider when creating or
// updating an intent. It carries only the training-relevant subset of the
// local record.
type IntentSpec struct {
	Name            string           `json:"name"`
	DisplayName     string           `json:"displayName"`
	TrainingPhrases []TrainingPhrase `json:"trainingPhrases,omitempty"`
	Responses       []Response       `json:"responses,omitempty"`
	Parameters      []Parameter      `json:"parameters,omitempty"`
	InputContexts   []string         `json:"inputContexts,omitempty"`
	OutputContexts  []OutputContext  `json:"outputContexts,omitempty"`
	Events          []string         `json:"events,omitempty"`
	WebhookEnabled  bool             `json:"webhookEnabled,omitempty"`
}

// TrainingPhrase is one example utterance with optional entity spans.
type TrainingPhrase struct {
	Text     string       `json:"text"`
	Entities []EntitySpan `json:"entities,omitempty"`
}

// EntitySpan marks an entity inside a training phrase.
type EntitySpan struct {
	Entity string `json:"entity"`
	Value  string `json:"value"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Response is a provider-side response template.
type Response struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Parameter describes a slot the intent can fill.
type Parameter struct {
	Name       string   `json:"name"`
	EntityType string   `json:"entityType"`
	Required   bool     `json:"required"`
	Prompts    []string `json:"prompts,omitempty"`
	Default    string   `json:"default,omitempty"`
}

// OutputContext is a context emitted on an intent match.
type OutputContext struct {
	Name       string            `json:"name"`
	Lifespan   int               `json:"lifespan"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// DetectResult is the provider's answer for one user utterance.
type DetectResult struct {
	IntentName      string            `json:"intentName"`
	DisplayName     string            `json:"displayName"`
	Confidence      float64           `json:"confidence"`
	FulfillmentText string            `json:"fulfillmentText"`
	Parameters      map[string]string `json:"parameters,omitempty"`
	OutputContexts  []OutputContext   `json:"outputContexts,omitempty"`
}
