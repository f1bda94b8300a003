package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"github.com/markdave123-py/jobmatch/internal/core"
)

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	opts      Options
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)

func NewGeminiEmbedder(client *genai.Client, modelName string, opts Options) *GeminiEmbedder {
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &GeminiEmbedder{client: client, modelName: modelName, opts: opts}
}

// EmbedTexts batches all texts in one request. The result is index-aligned with texts.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()
	if err := wait(ctx, g.opts.Limiter); err != nil {
		return nil, classify("gemini batch embed", err)
	}

	em := g.client.EmbeddingModel(g.modelName)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classify("gemini batch embed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini batch embed: got %d embeddings for %d texts: %w",
			len(resp.Embeddings), len(texts), core.ErrMalformedResponse)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini batch embed: %w", core.ErrNoAnswer)
		}
		out = append(out, e.Values)
	}
	return out, nil
}
