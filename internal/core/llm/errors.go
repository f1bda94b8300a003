package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/jobmatch/internal/core"
)

// classify tags err with the matching core AI sentinel, keeping the original in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if kind := kindOf(err); kind != nil {
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func kindOf(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrAITimeout
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return core.ErrNoAnswer
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests:
			return core.ErrQuotaExceeded
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return core.ErrAITimeout
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return core.ErrQuotaExceeded
		case codes.DeadlineExceeded:
			return core.ErrAITimeout
		}
	}
	return nil
}
