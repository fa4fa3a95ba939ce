package openaicompat

import (
	"context"
	"fmt"
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedQuery produces the dense vector for one question.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	payload := embedRequest{
		Model: c.embedModel,
		Input: []string{text},
	}

	var out embedResponse
	run := func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/embeddings", payload, &out, "embed")
	}

	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, "llm_embed", run, classifyLLMError)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed response has no vector")
	}
	return out.Data[0].Embedding, nil
}
