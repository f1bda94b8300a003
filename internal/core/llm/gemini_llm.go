package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/markdave123-py/jobmatch/internal/core"
)

// NewClient opens the process-wide Gemini client shared by the embedder and the LLM.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	return genai.NewClient(ctx, option.WithAPIKey(apiKey))
}

// Options tune a Gemini wrapper. A nil Limiter disables throttling.
type Options struct {
	Limiter *rate.Limiter
	Timeout time.Duration
}

type GeminiLLM struct {
	client    *genai.Client
	modelName string
	opts      Options
}

var _ core.LLMProvider = (*GeminiLLM)(nil)

func NewGeminiLLM(client *genai.Client, modelName string, opts Options) *GeminiLLM {
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{client: client, modelName: modelName, opts: opts}
}

func (g *GeminiLLM) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()
	if err := wait(ctx, g.opts.Limiter); err != nil {
		return "", classify("gemini generate", err)
	}

	m := g.client.GenerativeModel(g.modelName)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		m.SetTemperature(*req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(req.MaxOutputTokens)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", classify("gemini generate", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", core.ErrNoAnswer
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", core.ErrNoAnswer
	}
	return b.String(), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func wait(ctx context.Context, lim *rate.Limiter) error {
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}
