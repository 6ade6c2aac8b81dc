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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/dillema-ai/dillema/cmd/dillema/config"
	"github.com/dillema-ai/dillema/pkg/validation"
	"github.com/dillema-ai/dillema/pkg/ux"
)

// chatCompleter is the slice of the OpenAI client the chat loop needs.
// *openai.Client satisfies it; tests point it at an httptest server.
type chatCompleter interface {
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

func isattyStdin() bool {
	return isatty.IsTerminal(os.Stdin.Fd())
}

// runChatCommand opens an interactive session against the deployed
// OpenAI-compatible endpoint. This is the post-deploy smoke test: if
// tokens stream back, the whole serving path works.
func runChatCommand(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return err
	}

	endpoint := chatEndpoint
	if endpoint == "" {
		endpoint = config.Global.Serve.Endpoint
	}
	if err := validation.ValidateEndpoint(endpoint); err != nil {
		return err
	}
	host, port, err := validation.SplitEndpoint(endpoint)
	if err != nil {
		return err
	}
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	clientCfg := openai.DefaultConfig("")
	clientCfg.BaseURL = fmt.Sprintf("http://%s:%d/v1", host, port)
	client := openai.NewClientWithConfig(clientCfg)

	ctx := cmd.Context()
	model := chatModel
	if model == "" {
		model, err = firstServedModel(ctx, client)
		if err != nil {
			return fmt.Errorf("no served model found at %s (is a deployment running?): %w",
				clientCfg.BaseURL, err)
		}
	}

	ux.Title("Chatting with " + model)
	ux.Muted("type 'exit' or press Ctrl-D to end the session")

	return runChatLoop(ctx, client, model, newChatReader(), os.Stdout)
}

// firstServedModel asks the endpoint what it serves and picks the first
// entry, which is the single model one-shot deploys create.
func firstServedModel(ctx context.Context, client chatCompleter) (string, error) {
	models, err := client.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models.Models) == 0 {
		return "", errors.New("endpoint reports no models")
	}
	return models.Models[0].ID, nil
}

// runChatLoop reads prompts, streams completions, and keeps the running
// conversation as context for the next turn.
func runChatLoop(ctx context.Context, client chatCompleter, model string, reader InputReader, out io.Writer) error {
	var history []openai.ChatCompletionMessage

	for {
		line, err := reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isExitCommand(line) {
			return nil
		}

		history = append(history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: line,
		})

		reply, err := streamCompletion(ctx, client, model, history, out)
		if err != nil {
			ux.Error(fmt.Sprintf("completion failed: %v", err))
			// Drop the failed turn so retries don't compound.
			history = history[:len(history)-1]
			continue
		}

		history = append(history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: reply,
		})
	}
}

// streamCompletion runs one streaming request, printing deltas as they
// arrive. A spinner covers the time to first token.
func streamCompletion(ctx context.Context, client chatCompleter, model string,
	history []openai.ChatCompletionMessage, out io.Writer) (string, error) {

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: history,
		Stream:   true,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	spin := ux.NewSpinner("thinking")
	spin.Start()
	firstToken := true

	var reply strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			spin.Stop()
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if firstToken {
			spin.Stop()
			firstToken = false
		}
		fmt.Fprint(out, delta)
		reply.WriteString(delta)
	}
	if firstToken {
		spin.Stop()
	}
	fmt.Fprintln(out)
	return reply.String(), nil
}
