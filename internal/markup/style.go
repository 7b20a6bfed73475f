package markup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Pixel values for CSS font-size keywords inside header and footer templates.
var fontSizeKeywords = map[string]string{
	"xx-small": "7px",
	"x-small":  "9px",
	"small":    "10px",
	"medium":   "12px",
	"large":    "14px",
	"x-large":  "16px",
	"xx-large": "20px",
}

// NormalizeFontSizes rewrites inline font-size keywords in html to pixel values and returns the
// resulting body fragment.
func NormalizeFontSizes(html string) string {
	doc, err := parseFragment(html)
	if err != nil {
		return html
	}
	normalizeFontSizes(doc.Selection)
	out, err := doc.Find("body").Html()
	if err != nil {
		return html
	}
	return out
}

func normalizeFontSizes(root *goquery.Selection) {
	root.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if rewritten, changed := rewriteFontSize(style); changed {
			s.SetAttr("style", rewritten)
		}
	})
}

// rewriteFontSize replaces a keyword font-size declaration, leaving every other declaration as
// written.
func rewriteFontSize(style string) (string, bool) {
	decls := splitDeclarations(style)
	changed := false
	for i, decl := range decls {
		name, value, ok := strings.Cut(decl, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "font-size") {
			continue
		}
		value = strings.TrimSpace(value)
		important := ""
		if idx := strings.Index(strings.ToLower(value), "!important"); idx >= 0 {
			important = " !important"
			value = strings.TrimSpace(value[:idx])
		}
		px, ok := fontSizeKeywords[strings.ToLower(value)]
		if !ok {
			continue
		}
		decls[i] = "font-size: " + px + important
		changed = true
	}
	if !changed {
		return style, false
	}
	return strings.Join(decls, "; ") + ";", true
}

// splitDeclarations splits a style attribute on semicolons that are outside quotes and
// parentheses. Empty declarations are dropped.
func splitDeclarations(style string) []string {
	var (
		out   []string
		depth int
		quote rune
		start int
	)
	flush := func(end int) {
		if d := strings.TrimSpace(style[start:end]); d != "" {
			out = append(out, d)
		}
	}
	for i, r := range style {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(style))
	return out
}

func parseFragment(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
