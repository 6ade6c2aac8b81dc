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
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dillema-ai/dillema/pkg/validation"
	"github.com/dillema-ai/dillema/services/gateway/datatypes"
	"github.com/dillema-ai/dillema/services/gateway/observability"
)

// ChatClient is the slice of the OpenAI client the chat handlers need.
// *openai.Client satisfies it; tests point it at an httptest server.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// NewChatClient builds the OpenAI-compatible client for the deployed
// endpoint at HOST:PORT. A wildcard host is rewritten to loopback since
// the gateway runs on the serving machine.
func NewChatClient(serveEndpoint string) (ChatClient, error) {
	host, port, err := validation.SplitEndpoint(serveEndpoint)
	if err != nil {
		return nil, fmt.Errorf("bad serve endpoint %q: %w", serveEndpoint, err)
	}
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	cfg := openai.DefaultConfig("")
	cfg.BaseURL = fmt.Sprintf("http://%s:%d/v1", host, port)
	return openai.NewClientWithConfig(cfg), nil
}

// resolveModel fills an empty model name with the endpoint's first
// served model.
func resolveModel(ctx context.Context, client ChatClient, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	models, err := client.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list served models: %w", err)
	}
	if len(models.Models) == 0 {
		return "", errors.New("endpoint reports no served models")
	}
	return models.Models[0].ID, nil
}

// toOpenAIMessages converts the gateway's chat payload to the client's.
func toOpenAIMessages(messages []datatypes.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// HandleChat proxies one non-streaming completion to the deployed
// endpoint.
func HandleChat(client ChatClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			observability.RecordChatError("chat", observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			observability.RecordChatError("chat", observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		ctx := c.Request.Context()
		model, err := resolveModel(ctx, client, req.Model)
		if err != nil {
			observability.RecordChatError("chat", observability.ErrorCodeUpstream)
			c.JSON(http.StatusBadGateway, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    model,
			Messages: toOpenAIMessages(req.Messages),
		})
		if err != nil {
			observability.RecordChatError("chat", observability.ErrorCodeUpstream)
			c.JSON(http.StatusBadGateway, datatypes.ErrorResponse{Error: err.Error()})
			return
		}
		if len(resp.Choices) == 0 {
			observability.RecordChatError("chat", observability.ErrorCodeUpstream)
			c.JSON(http.StatusBadGateway, datatypes.ErrorResponse{Error: "endpoint returned no choices"})
			return
		}

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Model:   model,
			Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		})
	}
}
