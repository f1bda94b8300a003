package core

import (
	"context"
	"io"
)

// TextExtractor pulls plain text out of a document. Implementations pick a
// strategy by content type and return ErrUnsupportedContentType otherwise.
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, contentType string) (string, error)
}
