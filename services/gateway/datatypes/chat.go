// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Chat request and response types for the proxy endpoints. The gateway
// does not interpret conversations; it forwards them to the deployed
// OpenAI-compatible endpoint and relays the answer.

package datatypes

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxMessageContentBytes is the maximum size of a single message
	// content. Checked in bytes, not runes, to bound memory.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in one
	// request.
	MaxMessagesPerRequest = 100
)

// validateMaxBytes enforces the per-message content size limit.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	// Role is "user", "assistant", or "system".
	Role string `json:"role" validate:"required,oneof=user assistant system"`

	// Content is the message text, capped at 32KB.
	Content string `json:"content" validate:"required,maxbytes"`
}

// ChatRequest is the POST /v1/chat body and the per-message payload on
// the WebSocket stream.
type ChatRequest struct {
	// Model is the served-model name. When empty the gateway asks the
	// endpoint what it serves and uses the first entry.
	Model string `json:"model,omitempty"`

	// Messages is the conversation so far, newest last.
	Messages []ChatMessage `json:"messages" validate:"required,min=1,max=100,dive"`
}

// Validate checks the request against its tags.
func (r *ChatRequest) Validate() error {
	return validate.Struct(r)
}

// ChatResponse is the POST /v1/chat reply.
type ChatResponse struct {
	// Model is the served-model name that answered.
	Model string `json:"model"`

	// Content is the full completion text.
	Content string `json:"content"`
}

// ChatStreamEvent is one WebSocket frame on /v1/chat/stream.
//
// Event values:
//   - "delta": Content carries the next completion fragment
//   - "done": the completion finished; Content is empty
//   - "error": Error carries what went wrong; the turn is over
type ChatStreamEvent struct {
	Event   string `json:"event"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}
