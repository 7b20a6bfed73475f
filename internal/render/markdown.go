package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"pdfservice/internal/domain"
)

// markdownDocument wraps goldmark's fragment output in a complete HTML5 document.
const markdownDocument = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
</head>
<body>
%s
</body>
</html>`

// MarkdownConverter turns GitHub-flavored Markdown into an HTML document.
type MarkdownConverter struct {
	md goldmark.Markdown
}

// NewMarkdownConverter returns a converter with GFM and footnotes enabled.
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{md: goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)}
}

// ToHTML converts source into a standalone HTML document.
func (c *MarkdownConverter) ToHTML(ctx context.Context, source string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if source == "" {
		return "", fmt.Errorf("%w: markdown is required", domain.ErrInvalidRequest)
	}
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("%w: markdown: %v", domain.ErrInvalidRequest, err)
	}
	return fmt.Sprintf(markdownDocument, buf.String()), nil
}
