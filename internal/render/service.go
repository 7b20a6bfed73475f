package render

import (
	"context"
	"fmt"

	"pdfservice/internal/domain"
	"pdfservice/internal/markup"
)

// Engine rasterizes HTML to PDF bytes. Failures wrap domain.ErrRender.
type Engine interface {
	Render(ctx context.Context, html string, opts domain.RenderOptions) ([]byte, error)
}

// Service validates render requests, prepares their markup and drives the engine.
type Service struct {
	engine   Engine
	composer *markup.Composer
	inliner  *markup.Inliner
}

// NewService wires a Service. composer and inliner may be nil.
func NewService(engine Engine, composer *markup.Composer, inliner *markup.Inliner) *Service {
	return &Service{engine: engine, composer: composer, inliner: inliner}
}

// Render validates r and returns the rendered PDF. No engine work happens for invalid requests.
func (s *Service) Render(ctx context.Context, r Request) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	opts := BuildOptions(r)

	if s.composer != nil {
		if r.Header != "" {
			opts.HeaderTemplate = s.composer.Compose(ctx, r.Header, opts.Margins)
		}
		if r.Footer != "" {
			opts.FooterTemplate = s.composer.Compose(ctx, r.Footer, opts.Margins)
		}
	}

	html := r.Content
	if r.InlineImages && s.inliner != nil {
		html = s.inliner.InlineHTML(ctx, html, r.ImageMaxSize)
	}

	pdf, err := s.engine.Render(ctx, html, opts)
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: engine returned no bytes", domain.ErrRender)
	}
	return pdf, nil
}
