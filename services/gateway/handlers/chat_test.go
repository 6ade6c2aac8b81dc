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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dillema-ai/dillema/services/gateway/datatypes"
)

// fakeEndpoint is an OpenAI-compatible httptest server: /v1/models lists
// servedModels, /v1/chat/completions answers with reply (streamed as SSE
// when the request asks for it).
type fakeEndpoint struct {
	srv          *httptest.Server
	servedModels []string
	reply        string
	failAll      bool

	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
}

func (f *fakeEndpoint) recordRequest(req openai.ChatCompletionRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeEndpoint) recorded() []openai.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]openai.ChatCompletionRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func newFakeEndpoint(t *testing.T, reply string, servedModels ...string) *fakeEndpoint {
	t.Helper()
	f := &fakeEndpoint{servedModels: servedModels, reply: reply}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		list := openai.ModelsList{}
		for _, id := range f.servedModels {
			list.Models = append(list.Models, openai.Model{ID: id})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if f.failAll {
			http.Error(w, `{"error":{"message":"engine exploded"}}`, http.StatusInternalServerError)
			return
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.recordRequest(req)

		if !req.Stream {
			resp := openai.ChatCompletionResponse{
				Model: req.Model,
				Choices: []openai.ChatCompletionChoice{{
					Message: openai.ChatCompletionMessage{
						Role:    openai.ChatMessageRoleAssistant,
						Content: f.reply,
					},
				}},
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, r := range f.reply {
			chunk := openai.ChatCompletionStreamResponse{
				Model: req.Model,
				Choices: []openai.ChatCompletionStreamChoice{{
					Delta: openai.ChatCompletionStreamChoiceDelta{Content: string(r)},
				}},
			}
			payload, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeEndpoint) client() ChatClient {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = f.srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func chatRouter(client ChatClient) *gin.Engine {
	router := gin.New()
	router.POST("/v1/chat", HandleChat(client))
	router.GET("/v1/chat/stream", HandleChatStream(client))
	return router
}

func userMessage(content string) []datatypes.ChatMessage {
	return []datatypes.ChatMessage{{Role: "user", Content: content}}
}

func TestHandleChat_ProxiesCompletion(t *testing.T) {
	endpoint := newFakeEndpoint(t, "The answer is 4.", "Llama-3.1-8B")
	router := chatRouter(endpoint.client())

	w := doJSON(router, http.MethodPost, "/v1/chat", datatypes.ChatRequest{
		Model:    "Llama-3.1-8B",
		Messages: userMessage("what is 2+2?"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Llama-3.1-8B", resp.Model)
	assert.Equal(t, "The answer is 4.", resp.Content)

	reqs := endpoint.recorded()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 1)
	assert.Equal(t, "what is 2+2?", reqs[0].Messages[0].Content)
}

func TestHandleChat_EmptyModelUsesFirstServed(t *testing.T) {
	endpoint := newFakeEndpoint(t, "hello", "Qwen2.5-7B", "other-model")
	router := chatRouter(endpoint.client())

	w := doJSON(router, http.MethodPost, "/v1/chat", datatypes.ChatRequest{
		Messages: userMessage("hi"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	reqs := endpoint.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Qwen2.5-7B", reqs[0].Model)
}

func TestHandleChat_ValidationFailsWithoutProxying(t *testing.T) {
	tests := []struct {
		name string
		body datatypes.ChatRequest
	}{
		{"no messages", datatypes.ChatRequest{}},
		{"bad role", datatypes.ChatRequest{
			Messages: []datatypes.ChatMessage{{Role: "robot", Content: "hi"}}}},
		{"empty content", datatypes.ChatRequest{
			Messages: []datatypes.ChatMessage{{Role: "user", Content: ""}}}},
		{"oversized content", datatypes.ChatRequest{
			Messages: userMessage(strings.Repeat("x", datatypes.MaxMessageContentBytes+1))}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			endpoint := newFakeEndpoint(t, "unused", "m")
			router := chatRouter(endpoint.client())

			w := doJSON(router, http.MethodPost, "/v1/chat", tc.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, endpoint.recorded())
		})
	}
}

func TestHandleChat_UpstreamFailureIs502(t *testing.T) {
	endpoint := newFakeEndpoint(t, "unused", "m")
	endpoint.failAll = true
	router := chatRouter(endpoint.client())

	w := doJSON(router, http.MethodPost, "/v1/chat", datatypes.ChatRequest{
		Model:    "m",
		Messages: userMessage("hi"),
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

// dialStream upgrades a WebSocket connection against the router.
func dialStream(t *testing.T, router *gin.Engine) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// readUntilDone collects delta fragments until a "done" or "error" frame.
func readUntilDone(t *testing.T, ws *websocket.Conn) (content string, errEvent string) {
	t.Helper()
	for {
		var event datatypes.ChatStreamEvent
		require.NoError(t, ws.ReadJSON(&event))
		switch event.Event {
		case "delta":
			content += event.Content
		case "done":
			return content, ""
		case "error":
			return content, event.Error
		default:
			t.Fatalf("unexpected event %q", event.Event)
		}
	}
}

func TestHandleChatStream_StreamsDeltasThenDone(t *testing.T) {
	endpoint := newFakeEndpoint(t, "hi there", "Llama-3.1-8B")
	ws := dialStream(t, chatRouter(endpoint.client()))

	require.NoError(t, ws.WriteJSON(datatypes.ChatRequest{
		Model:    "Llama-3.1-8B",
		Messages: userMessage("hello"),
	}))

	content, errEvent := readUntilDone(t, ws)
	assert.Empty(t, errEvent)
	assert.Equal(t, "hi there", content)
}

func TestHandleChatStream_InvalidFrameKeepsSocketOpen(t *testing.T) {
	endpoint := newFakeEndpoint(t, "ok", "m")
	ws := dialStream(t, chatRouter(endpoint.client()))

	// Bad turn: no messages.
	require.NoError(t, ws.WriteJSON(datatypes.ChatRequest{}))
	_, errEvent := readUntilDone(t, ws)
	assert.NotEmpty(t, errEvent)

	// The socket survives for the next turn.
	require.NoError(t, ws.WriteJSON(datatypes.ChatRequest{
		Model:    "m",
		Messages: userMessage("hello"),
	}))
	content, errEvent := readUntilDone(t, ws)
	assert.Empty(t, errEvent)
	assert.Equal(t, "ok", content)
}

func TestHandleChatStream_UpstreamFailureIsErrorEvent(t *testing.T) {
	endpoint := newFakeEndpoint(t, "unused", "m")
	endpoint.failAll = true
	ws := dialStream(t, chatRouter(endpoint.client()))

	require.NoError(t, ws.WriteJSON(datatypes.ChatRequest{
		Model:    "m",
		Messages: userMessage("hello"),
	}))

	_, errEvent := readUntilDone(t, ws)
	assert.NotEmpty(t, errEvent)
}
