// Package handlers implements the HTTP endpoints of the PDF service.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"pdfservice/internal/config"
	"pdfservice/internal/document"
	"pdfservice/internal/domain"
	"pdfservice/internal/infra/cache"
	"pdfservice/internal/infra/chrome"
	"pdfservice/internal/infra/logging"
	"pdfservice/internal/render"
)

// Renderer turns a render request into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, r render.Request) ([]byte, error)
}

// StatsSource reports rendering engine statistics.
type StatsSource interface {
	Stats() (chrome.Stats, error)
}

// Deps are the collaborators of a Handler. Cache and Stats may be nil.
type Deps struct {
	Config   config.Config
	Renderer Renderer
	Markdown *render.MarkdownConverter
	Codec    document.Codec
	Cache    *cache.PDFCache
	Stats    StatsSource
}

// Handler serves the PDF endpoints.
type Handler struct {
	cfg      config.Config
	renderer Renderer
	markdown *render.MarkdownConverter
	codec    document.Codec
	cache    *cache.PDFCache
	stats    StatsSource
}

// New returns a Handler. A nil Markdown converter is replaced by the default one.
func New(d Deps) *Handler {
	md := d.Markdown
	if md == nil {
		md = render.NewMarkdownConverter()
	}
	return &Handler{
		cfg:      d.Config,
		renderer: d.Renderer,
		markdown: md,
		codec:    d.Codec,
		cache:    d.Cache,
		stats:    d.Stats,
	}
}

// Root is the unauthenticated liveness endpoint of the public API.
func (h *Handler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ChromeStats exposes rendering pool occupancy.
func (h *Handler) ChromeStats(c *fiber.Ctx) error {
	if h.stats == nil {
		return c.JSON(chrome.Stats{
			PoolSizeConf: h.cfg.PDF.ChromePoolSize,
			TimeoutSecs:  h.cfg.PDF.TimeoutSecs,
		})
	}
	s, err := h.stats.Stats()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Chrome pool init failed: "+err.Error())
	}
	return c.JSON(s)
}

func (h *Handler) sendPDF(c *fiber.Ctx, pdf []byte, filename string) error {
	if limit := h.cfg.Limits.MaxPDFBytes; limit > 0 && len(pdf) > limit {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "PDF exceeds allowed size")
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, "inline; filename="+filename)
	return c.Send(pdf)
}

// toHTTPError maps pipeline errors onto HTTP statuses.
func toHTTPError(c *fiber.Ctx, op string, err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidDimension):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDocumentLoad):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		logging.Error("PDF generation timeout", "op", op, "request_id", requestID(c), "error", err)
		return fiber.NewError(fiber.StatusRequestTimeout, "PDF rendering took too long")
	case chrome.IsSessionInterrupted(err):
		logging.Error("Chrome session interrupted", "op", op, "request_id", requestID(c), "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Chrome session interrupted")
	}
	logging.Error("PDF operation failed", "op", op, "request_id", requestID(c), "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("%s failed: %v", op, err))
}

func requestID(c *fiber.Ctx) string {
	if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
