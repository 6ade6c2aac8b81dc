// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dillema-ai/dillema/services/gateway/datatypes"
	"github.com/dillema-ai/dillema/services/gateway/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendEvent(ws *websocket.Conn, event datatypes.ChatStreamEvent) error {
	err := ws.WriteJSON(event)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleChatStream upgrades the connection and serves chat turns over it.
//
// # Description
//
// Each client frame is a full ChatRequest (the client keeps its own
// history). The reply streams back as "delta" events followed by one
// "done" event; request errors produce an "error" event and keep the
// socket open for the next turn. The socket closes when the client
// disconnects.
func HandleChatStream(client ChatClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sessionID := uuid.New().String()
		slog.Info("Chat stream session started", "sessionID", sessionID)

		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.ActiveChatStreams.Inc()
			defer observability.DefaultMetrics.ActiveChatStreams.Dec()
		}

		for {
			var req datatypes.ChatRequest
			if err := ws.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Warn("Chat stream closed unexpectedly", "sessionID", sessionID, "error", err)
					observability.RecordChatError("chat_stream", observability.ErrorCodeClientDisconnect)
				}
				return
			}

			if err := req.Validate(); err != nil {
				observability.RecordChatError("chat_stream", observability.ErrorCodeValidation)
				if sendEvent(ws, datatypes.ChatStreamEvent{Event: "error", Error: err.Error()}) != nil {
					return
				}
				continue
			}

			if err := streamTurn(c, ws, client, req); err != nil {
				return
			}
		}
	}
}

// streamTurn runs one request against the endpoint and relays the
// deltas. A non-nil return means the socket itself is dead.
func streamTurn(c *gin.Context, ws *websocket.Conn, client ChatClient, req datatypes.ChatRequest) error {
	ctx := c.Request.Context()

	model, err := resolveModel(ctx, client, req.Model)
	if err != nil {
		observability.RecordChatError("chat_stream", observability.ErrorCodeUpstream)
		return sendEvent(ws, datatypes.ChatStreamEvent{Event: "error", Error: err.Error()})
	}

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(req.Messages),
		Stream:   true,
	})
	if err != nil {
		observability.RecordChatError("chat_stream", observability.ErrorCodeUpstream)
		return sendEvent(ws, datatypes.ChatStreamEvent{Event: "error", Error: err.Error()})
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			observability.RecordChatError("chat_stream", observability.ErrorCodeUpstream)
			return sendEvent(ws, datatypes.ChatStreamEvent{Event: "error", Error: err.Error()})
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.ChatTokensTotal.WithLabelValues(model).Inc()
		}
		if err := sendEvent(ws, datatypes.ChatStreamEvent{Event: "delta", Content: delta}); err != nil {
			return err
		}
	}

	return sendEvent(ws, datatypes.ChatStreamEvent{Event: "done"})
}
