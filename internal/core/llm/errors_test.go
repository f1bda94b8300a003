package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/jobmatch/internal/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "grpc resource exhausted", err: status.Error(codes.ResourceExhausted, "quota"), want: core.ErrQuotaExceeded},
		{name: "grpc deadline", err: status.Error(codes.DeadlineExceeded, "slow"), want: core.ErrAITimeout},
		{name: "context deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: core.ErrAITimeout},
		{name: "http 429", err: &googleapi.Error{Code: 429}, want: core.ErrQuotaExceeded},
		{name: "blocked", err: &genai.BlockedError{}, want: core.ErrNoAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("original error lost from chain: %v", got)
			}
		})
	}
}

func TestClassifyUnknown(t *testing.T) {
	orig := errors.New("boom")
	got := classify("op", orig)
	for _, sentinel := range []error{core.ErrQuotaExceeded, core.ErrAITimeout, core.ErrNoAnswer, core.ErrMalformedResponse} {
		if errors.Is(got, sentinel) {
			t.Errorf("unexpected classification %v for %v", sentinel, orig)
		}
	}
	if classify("op", nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := map[string]string{
		"{\"a\":1}":                       "{\"a\":1}",
		"```json\n{\"a\":1}\n```":         "{\"a\":1}",
		"Sure! Here it is: {\"a\":1} bye": "{\"a\":1}",
		"no json here":                    "",
	}
	for in, want := range tests {
		if got := extractJSON(in); got != want {
			t.Errorf("extractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
