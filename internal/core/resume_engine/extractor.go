package resume_engine

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/jobmatch/internal/core"
)

// Content types accepted for resumes.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeDoc  = "application/msword"
	ContentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var _ core.TextExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.TextExtractor using sajari/docconv.
type DocconvExtractor struct{}

func NewDocconvExtractor() *DocconvExtractor { return &DocconvExtractor{} }

// Supported reports whether contentType can be extracted.
func Supported(contentType string) bool {
	switch normalizeContentType(contentType) {
	case ContentTypePDF, ContentTypeDoc, ContentTypeDocx:
		return true
	}
	return false
}

func (e *DocconvExtractor) ExtractText(ctx context.Context, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		body string
		err  error
	)
	switch ct := normalizeContentType(contentType); ct {
	case ContentTypePDF:
		body, _, err = docconv.ConvertPDF(r)
	case ContentTypeDoc:
		body, _, err = docconv.ConvertDoc(r)
	case ContentTypeDocx:
		body, _, err = docconv.ConvertDocx(r)
	default:
		return "", fmt.Errorf("extract %q: %w", contentType, core.ErrUnsupportedContentType)
	}
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	return cleanText(body), nil
}

func normalizeContentType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// cleanText drops blank lines and trailing whitespace from extracted text.
func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
