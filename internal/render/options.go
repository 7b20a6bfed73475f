package render

import "pdfservice/internal/domain"

// blankTemplate stands in for whichever of header or footer was not supplied. Chrome prints its
// own default template when one is empty.
const blankTemplate = " "

// BuildOptions maps a validated request onto engine options. Header and footer templates are
// copied verbatim; composition happens in Service.
func BuildOptions(r Request) domain.RenderOptions {
	opts := domain.RenderOptions{
		Margins:         r.Margins.WithDefaults(),
		Landscape:       r.Landscape,
		Scale:           domain.DefaultScale,
		PrintBackground: true,
	}

	if r.Format != "" {
		opts.Format, _ = domain.ParsePageFormat(r.Format)
	} else {
		opts.Width, opts.Height = r.Width, r.Height
	}

	if r.Scale != nil {
		opts.Scale = *r.Scale
	}

	if r.Header != "" || r.Footer != "" {
		opts.DisplayHeaderFooter = true
		opts.HeaderTemplate = orBlank(r.Header)
		opts.FooterTemplate = orBlank(r.Footer)
	}
	return opts
}

func orBlank(s string) string {
	if s == "" {
		return blankTemplate
	}
	return s
}
