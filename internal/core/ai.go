package core

import (
	"context"

	"github.com/markdave123-py/jobmatch/internal/models"
)

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerateRequest is one completion call. JSON asks the model for a bare JSON object.
type GenerateRequest struct {
	System          string
	Prompt          string
	JSON            bool
	Temperature     *float32
	MaxOutputTokens int32
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ResumeAnalyzer turns resume text into a summary, skills and job titles.
type ResumeAnalyzer interface {
	AnalyzeResume(ctx context.Context, resumeText string) (*models.ResumeAnalysis, error)
}

// MatchExplainer writes a short rationale for why a resume fits a job.
type MatchExplainer interface {
	ExplainMatch(ctx context.Context, resumeText, jobDescription string) (string, error)
}
