// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestIsExitCommand(t *testing.T) {
	exits := []string{"exit", "quit", "EXIT", " Quit ", "/exit", "/quit", ":q"}
	for _, in := range exits {
		if !isExitCommand(in) {
			t.Errorf("isExitCommand(%q) = false, want true", in)
		}
	}

	stays := []string{"", "hello", "exit the building", "q", "/q", "tell me about exit codes"}
	for _, in := range stays {
		if isExitCommand(in) {
			t.Errorf("isExitCommand(%q) = true, want false", in)
		}
	}
}

func TestMockInputReader_ReplaysThenEOF(t *testing.T) {
	r := NewMockInputReader([]string{"one", "two"})

	for _, want := range []string{"one", "two"} {
		got, err := r.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine failed: %v", err)
		}
		if got != want {
			t.Errorf("ReadLine = %q, want %q", got, want)
		}
	}

	_, err := r.ReadLine()
	if err != io.EOF {
		t.Errorf("exhausted reader returned %v, want io.EOF", err)
	}
}

func TestInteractiveReader_HistoryBounded(t *testing.T) {
	r := NewInteractiveReader("> ", 3)
	for i := 0; i < 5; i++ {
		r.addToHistory(fmt.Sprintf("line-%d", i))
	}

	if len(r.history) != 3 {
		t.Fatalf("history length = %d, want the cap of 3", len(r.history))
	}
	if r.history[0] != "line-2" || r.history[2] != "line-4" {
		t.Errorf("history = %v, want the newest three lines", r.history)
	}
}

// sseChatServer speaks enough of the OpenAI streaming protocol for the
// chat loop: each request gets the scripted reply, one rune per chunk.
// Request bodies are recorded so tests can inspect the growing history.
type sseChatServer struct {
	srv      *httptest.Server
	requests []openai.ChatCompletionRequest
	replies  []string
	failNext int
}

func newSSEChatServer(t *testing.T, replies ...string) *sseChatServer {
	t.Helper()
	s := &sseChatServer{replies: replies}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.failNext > 0 {
			s.failNext--
			http.Error(w, `{"error": {"message": "engine overloaded"}}`, http.StatusServiceUnavailable)
			return
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.requests = append(s.requests, req)

		reply := "ok"
		if n := len(s.requests) - 1; n < len(s.replies) {
			reply = s.replies[n]
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, r := range reply {
			chunk := openai.ChatCompletionStreamResponse{
				Object: "chat.completion.chunk",
				Model:  req.Model,
				Choices: []openai.ChatCompletionStreamChoice{
					{Delta: openai.ChatCompletionStreamChoiceDelta{Content: string(r)}},
				},
			}
			payload, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *sseChatServer) client() *openai.Client {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = s.srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestRunChatLoop_StreamsReplyAndKeepsHistory(t *testing.T) {
	server := newSSEChatServer(t, "hello there", "still here")
	reader := NewMockInputReader([]string{"hi", "are you there?"})

	var out bytes.Buffer
	err := runChatLoop(context.Background(), server.client(), "test-model", reader, &out)
	if err != nil {
		t.Fatalf("runChatLoop failed: %v", err)
	}

	if got := out.String(); !strings.Contains(got, "hello there") || !strings.Contains(got, "still here") {
		t.Errorf("output %q missing the streamed replies", got)
	}

	if len(server.requests) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(server.requests))
	}

	// The second request must carry the whole first exchange.
	second := server.requests[1].Messages
	if len(second) != 3 {
		t.Fatalf("second request carried %d messages, want 3", len(second))
	}
	if second[0].Role != openai.ChatMessageRoleUser || second[0].Content != "hi" {
		t.Errorf("history[0] = %+v, want the first user turn", second[0])
	}
	if second[1].Role != openai.ChatMessageRoleAssistant || second[1].Content != "hello there" {
		t.Errorf("history[1] = %+v, want the first assistant reply", second[1])
	}
}

func TestRunChatLoop_ExitCommandEndsWithoutRequest(t *testing.T) {
	server := newSSEChatServer(t)
	reader := NewMockInputReader([]string{"exit"})

	var out bytes.Buffer
	if err := runChatLoop(context.Background(), server.client(), "m", reader, &out); err != nil {
		t.Fatalf("runChatLoop failed: %v", err)
	}
	if len(server.requests) != 0 {
		t.Errorf("exit still sent %d request(s)", len(server.requests))
	}
}

func TestRunChatLoop_BlankLinesSkipped(t *testing.T) {
	server := newSSEChatServer(t, "yes")
	reader := NewMockInputReader([]string{"", "   ", "real question"})

	var out bytes.Buffer
	if err := runChatLoop(context.Background(), server.client(), "m", reader, &out); err != nil {
		t.Fatalf("runChatLoop failed: %v", err)
	}
	if len(server.requests) != 1 {
		t.Errorf("server saw %d requests, want only the non-blank line", len(server.requests))
	}
}

func TestRunChatLoop_FailedTurnDroppedFromHistory(t *testing.T) {
	server := newSSEChatServer(t, "fine")
	server.failNext = 1
	reader := NewMockInputReader([]string{"first", "second"})

	var out bytes.Buffer
	if err := runChatLoop(context.Background(), server.client(), "m", reader, &out); err != nil {
		t.Fatalf("runChatLoop failed: %v", err)
	}

	// The first turn failed, so the second request must not carry it.
	last := server.requests[len(server.requests)-1].Messages
	if len(last) != 1 || last[0].Content != "second" {
		t.Errorf("history after a failed turn = %+v, want only the new turn", last)
	}
}

func TestFirstServedModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"object": "list", "data": [{"id": "Llama-3.1-8B", "object": "model"}]}`)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("")
	cfg.BaseURL = srv.URL + "/v1"
	client := openai.NewClientWithConfig(cfg)

	model, err := firstServedModel(context.Background(), client)
	if err != nil {
		t.Fatalf("firstServedModel failed: %v", err)
	}
	if model != "Llama-3.1-8B" {
		t.Errorf("model = %q, want Llama-3.1-8B", model)
	}
}
