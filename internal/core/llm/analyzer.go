package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/markdave123-py/jobmatch/internal/core"
	"github.com/markdave123-py/jobmatch/internal/models"
)

const hrSystemPrompt = "You are an expert HR assistant that reads resumes and job descriptions precisely."

const resumeAnalysisPrompt = `Analyze the following resume text and return a JSON object with exactly these keys:
"professional_summary": a concise 2-3 sentence summary of the candidate,
"skills": a list of distinct technical and professional skills,
"potential_job_titles": a list of job titles the candidate is suited for.

Resume text:
---
%s
---`

const matchRationalePrompt = `In 2-3 sentences, explain why this candidate is a good match for the job.
Refer to concrete skills or experience from the resume.

Resume:
---
%s
---

Job description:
---
%s
---`

// Analyzer implements resume analysis and match explanation on top of an LLMProvider.
type Analyzer struct {
	llm               core.LLMProvider
	analysisMaxChars  int
	rationaleMaxChars int
}

var (
	_ core.ResumeAnalyzer = (*Analyzer)(nil)
	_ core.MatchExplainer = (*Analyzer)(nil)
)

func NewAnalyzer(llm core.LLMProvider, analysisMaxChars, rationaleMaxChars int) *Analyzer {
	return &Analyzer{llm: llm, analysisMaxChars: analysisMaxChars, rationaleMaxChars: rationaleMaxChars}
}

func (a *Analyzer) AnalyzeResume(ctx context.Context, resumeText string) (*models.ResumeAnalysis, error) {
	raw, err := a.llm.Generate(ctx, core.GenerateRequest{
		System: hrSystemPrompt,
		Prompt: fmt.Sprintf(resumeAnalysisPrompt, core.Truncate(resumeText, a.analysisMaxChars)),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("resume analysis: %w", err)
	}
	return parseAnalysis(raw)
}

func (a *Analyzer) ExplainMatch(ctx context.Context, resumeText, jobDescription string) (string, error) {
	temp := float32(0.3)
	out, err := a.llm.Generate(ctx, core.GenerateRequest{
		System: hrSystemPrompt,
		Prompt: fmt.Sprintf(matchRationalePrompt,
			core.Truncate(resumeText, a.rationaleMaxChars),
			core.Truncate(jobDescription, a.rationaleMaxChars)),
		Temperature:     &temp,
		MaxOutputTokens: 200,
	})
	if err != nil {
		return "", fmt.Errorf("match rationale: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", core.ErrNoAnswer
	}
	return out, nil
}

func parseAnalysis(raw string) (*models.ResumeAnalysis, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, fmt.Errorf("resume analysis: no JSON object in response: %w", core.ErrMalformedResponse)
	}
	var out models.ResumeAnalysis
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("resume analysis: %w: %v", core.ErrMalformedResponse, err)
	}
	out.ProfessionalSummary = strings.TrimSpace(out.ProfessionalSummary)
	out.Skills = normalizeTags(out.Skills)
	out.PotentialJobTitles = normalizeTags(out.PotentialJobTitles)
	if out.ProfessionalSummary == "" && len(out.Skills) == 0 && len(out.PotentialJobTitles) == 0 {
		return nil, fmt.Errorf("resume analysis: %w", core.ErrNoAnswer)
	}
	return &out, nil
}

// extractJSON strips markdown fences and surrounding prose around a JSON object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// normalizeTags trims entries and drops blanks and case-insensitive repeats, keeping first-seen order.
func normalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}
