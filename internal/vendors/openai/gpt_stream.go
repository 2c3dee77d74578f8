package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/baalimago/agentloop/internal/models"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
)

var dataPrefix = []byte("data: ")

type responseFormat struct {
	Type string `json:"type"`
}

type gptReq struct {
	Model            string           `json:"model,omitempty"`
	ResponseFormat   responseFormat   `json:"response_format,omitempty"`
	Messages         []models.Message `json:"messages,omitempty"`
	Stream           bool             `json:"stream,omitempty"`
	FrequencyPenalty float64          `json:"frequency_penalty"`
	MaxTokens        *int             `json:"max_tokens,omitempty"`
	PresencePenalty  float64          `json:"presence_penalty"`
	Temperature      float64          `json:"temperature"`
	TopP             float64          `json:"top_p"`
}

type chatCompletionChunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int      `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// StreamCompletions taking the messages as prompt conversation. Returns the
// chunks of the reply on the channel, which is closed once the reply is done.
func (g *ChatGPT) StreamCompletions(ctx context.Context, chat models.Chat) (chan models.CompletionEvent, error) {
	req, err := g.createRequest(ctx, chat)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %v, body: %v", res.Status, string(body))
	}
	return g.handleStreamResponse(ctx, res), nil
}

func (g *ChatGPT) createRequest(ctx context.Context, chat models.Chat) (*http.Request, error) {
	reqData := gptReq{
		Model:            g.Model,
		FrequencyPenalty: g.FrequencyPenalty,
		MaxTokens:        g.MaxTokens,
		PresencePenalty:  g.PresencePenalty,
		Temperature:      g.Temperature,
		TopP:             g.TopP,
		ResponseFormat:   responseFormat{Type: "text"},
		Messages:         chat.Messages,
		Stream:           true,
	}
	if g.debug {
		ancli.PrintOK(fmt.Sprintf("openai request: %v\n", debug.IndentedJsonFmt(reqData)))
	}
	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", g.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %v", g.apiKey))
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Connection", "keep-alive")
	return req, nil
}

func (g *ChatGPT) handleStreamResponse(ctx context.Context, res *http.Response) chan models.CompletionEvent {
	outChan := make(chan models.CompletionEvent)
	go func() {
		br := bufio.NewReader(res.Body)
		defer func() {
			res.Body.Close()
			close(outChan)
		}()
		send := func(ev models.CompletionEvent) bool {
			select {
			case outChan <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			token, err := br.ReadBytes('\n')
			if len(token) > 0 {
				ev, done := g.handleStreamChunk(token)
				if done {
					return
				}
				if _, isNoop := ev.(models.NoopEvent); !isNoop && !send(ev) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					send(fmt.Errorf("failed to read line: %w", err))
				}
				return
			}
		}
	}()
	return outChan
}

// handleStreamChunk decodes one server sent event line. The boolean is true
// once the stream is done.
func (g *ChatGPT) handleStreamChunk(token []byte) (models.CompletionEvent, bool) {
	token = bytes.TrimSpace(token)
	token = bytes.TrimPrefix(token, dataPrefix)
	if len(token) == 0 {
		return models.NoopEvent{}, false
	}
	if string(token) == "[DONE]" {
		return models.NoopEvent{}, true
	}
	if g.debug {
		ancli.PrintOK(fmt.Sprintf("token: %+v\n", string(token)))
	}
	var chunk chatCompletionChunk
	if err := json.Unmarshal(token, &chunk); err != nil {
		if g.debug {
			// Expect some failing unmarshalls, such as keep-alive comments
			ancli.PrintWarn(fmt.Sprintf("failed to unmarshal token: %v, err: %v\n", string(token), err))
		}
		return models.NoopEvent{}, false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return models.NoopEvent{}, false
	}
	// We don't do choices here
	return chunk.Choices[0].Delta.Content, false
}
