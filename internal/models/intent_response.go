package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Response kinds. Each Response carries exactly one populated case.
const (
	ResponseTypeText         = "text"
	ResponseTypeCard         = "card"
	ResponseTypeQuickReplies = "quick_replies"
	ResponseTypeCustom       = "custom_payload"
)

// Response is one response variant of an intent, modeled as a tagged
// union: Type selects which case pointer is set.
type Response struct {
	Type      string `json:"type"`
	Priority  int    `json:"priority"`
	Condition string `json:"condition,omitempty"`

	Text         *TextResponse         `json:"text,omitempty"`
	Card         *CardResponse         `json:"card,omitempty"`
	QuickReplies *QuickRepliesResponse `json:"quickReplies,omitempty"`
	Custom       *CustomResponse       `json:"custom,omitempty"`
}

// TextResponse is a plain text reply.
type TextResponse struct {
	Text string `json:"text"`
}

// CardResponse is a rich card with optional buttons.
type CardResponse struct {
	Title    string       `json:"title"`
	Subtitle string       `json:"subtitle,omitempty"`
	ImageURL string       `json:"imageUrl,omitempty"`
	Buttons  []CardButton `json:"buttons,omitempty"`
}

type CardButton struct {
	Text     string `json:"text"`
	Postback string `json:"postback,omitempty"`
}

// QuickRepliesResponse offers tappable reply chips.
type QuickRepliesResponse struct {
	Title   string   `json:"title,omitempty"`
	Replies []string `json:"replies"`
}

// CustomResponse carries an opaque channel-specific payload.
type CustomResponse struct {
	Payload json.RawMessage `json:"payload"`
}

// Validate checks that exactly the case matching Type is populated.
func (r Response) Validate() error {
	switch r.Type {
	case ResponseTypeText:
		if r.Text == nil || r.Text.Text == "" {
			return NewValidationError("text response requires text")
		}
	case ResponseTypeCard:
		if r.Card == nil || r.Card.Title == "" {
			return NewValidationError("card response requires a title")
		}
	case ResponseTypeQuickReplies:
		if r.QuickReplies == nil || len(r.QuickReplies.Replies) == 0 {
			return NewValidationError("quick replies response requires at least one reply")
		}
	case ResponseTypeCustom:
		if r.Custom == nil || len(r.Custom.Payload) == 0 {
			return NewValidationError("custom response requires a payload")
		}
	default:
		return NewValidationError("unknown response type: %s", r.Type)
	}
	return nil
}

// ResponseList is the json-column form of an intent's response variants.
type ResponseList []Response

func (l ResponseList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return jsonValue(l)
}

func (l *ResponseList) Scan(value interface{}) error {
	return jsonScan(l, value)
}
