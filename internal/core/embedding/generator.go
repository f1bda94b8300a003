// Package embedding turns job and resume text into vectors.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/models"
)

// Generator embeds text through an EmbeddingProvider, truncating input to a
// fixed prefix.
type Generator struct {
	provider      core.EmbeddingProvider
	maxInputChars int
}

func NewGenerator(provider core.EmbeddingProvider, maxInputChars int) *Generator {
	return &Generator{provider: provider, maxInputChars: maxInputChars}
}

// Embed returns the vector for the first maxInputChars runes of text.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	text = core.Truncate(text, g.maxInputChars)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed: %w: empty input", core.ErrValidation)
	}
	vecs, err := g.provider.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed: %w", core.ErrNoAnswer)
	}
	return vecs[0], nil
}

// EmbedJob fills job.Embedding. It reports false without calling the
// provider when the job is already embedded.
func (g *Generator) EmbedJob(ctx context.Context, job *models.JobPosting) (bool, error) {
	if job.Embedding != nil {
		return false, nil
	}
	vec, err := g.Embed(ctx, JobText(job))
	if err != nil {
		return false, err
	}
	job.Embedding = vec
	return true, nil
}

// EmbedResume fills r.Embedding from its extracted text, unless already set.
func (g *Generator) EmbedResume(ctx context.Context, r *models.Resume) (bool, error) {
	if r.Embedding != nil {
		return false, nil
	}
	vec, err := g.Embed(ctx, r.ExtractedText)
	if err != nil {
		return false, err
	}
	r.Embedding = vec
	return true, nil
}

// JobText is the text embedded for a posting, flattened to one line.
func JobText(job *models.JobPosting) string {
	s := fmt.Sprintf("Title: %s\nTags: %s\nDescription: %s", job.Title, strings.Join(job.Tags, ", "), job.Description)
	return strings.ReplaceAll(s, "\n", " ")
}
