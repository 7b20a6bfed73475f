package markup

import (
	"context"
	"fmt"

	"pdfservice/internal/domain"
)

// DefaultHeaderImageMaxDim bounds header and footer images when no bound is configured.
const DefaultHeaderImageMaxDim = 600

const templateStyle = `
#header, #footer {
  display: block !important;
  padding-left: %s !important;
  padding-right: %s !important;
}
#header {
  padding-top: 0 !important;
}
#footer {
  padding-bottom: 0 !important;
}
#header > div, #footer > div {
  zoom: 75%%;
  width: 100%%;
}
`

// Composer turns user-supplied header or footer HTML into a self-contained print template.
type Composer struct {
	inliner     *Inliner
	maxImageDim int
}

// NewComposer returns a Composer. A nil inliner leaves image references untouched.
func NewComposer(inliner *Inliner, maxImageDim int) *Composer {
	if maxImageDim <= 0 {
		maxImageDim = DefaultHeaderImageMaxDim
	}
	return &Composer{inliner: inliner, maxImageDim: maxImageDim}
}

// Compose normalizes font sizes, inlines images and prefixes the stylesheet that aligns the
// template with the page's left and right margins.
func (c *Composer) Compose(ctx context.Context, html string, margins domain.Margins) string {
	margins = margins.WithDefaults()
	body := html

	if doc, err := parseFragment(html); err == nil {
		normalizeFontSizes(doc.Selection)
		if c.inliner != nil {
			c.inliner.Inline(ctx, doc.Selection, c.maxImageDim)
		}
		if out, err := doc.Find("body").Html(); err == nil {
			body = out
		}
	}

	style := fmt.Sprintf(templateStyle, margins.Left.CSS(), margins.Right.CSS())
	return "<style>" + style + "</style><div>" + body + "</div>"
}
