package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamGenerate starts one streaming chat completion in JSON mode. Tokens
// arrive on the first channel until it closes; a non-nil value on the
// second channel means the stream died mid-flight. The breaker is not
// consulted here: a stream is one long-lived call and retrying it would
// replay partial output.
func (c *Client) StreamGenerate(ctx context.Context, system, user string) (<-chan string, <-chan error, error) {
	payload := chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		Stream:         true,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal stream request: %w", err)
	}

	req, err := c.newRequest(ctx, "/v1/chat/completions", body)
	if err != nil {
		return nil, nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, wrapTemporaryIfNeeded("chat_stream", fmt.Errorf("llm stream request: %w", err))
	}
	if resp.StatusCode >= 300 {
		err := newStatusError("chat_stream", resp)
		resp.Body.Close()
		return nil, nil, wrapTemporaryIfNeeded("chat_stream", err)
	}

	tokens := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(tokens)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				if data == "[DONE]" {
					return
				}
				continue
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				errs <- fmt.Errorf("decode stream chunk: %w", err)
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case tokens <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("read stream: %w", err)
		}
	}()

	return tokens, errs, nil
}
