package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"pdfservice/internal/document"
	"pdfservice/internal/infra/cache"
	"pdfservice/internal/infra/logging"
	"pdfservice/internal/render"
)

// MarkdownRequest is the body of /pdf-from-markdown: the render request fields plus the
// Markdown source that replaces content.
type MarkdownRequest struct {
	Markdown string `json:"markdown"`
	render.Request
}

// FromHTML renders the JSON request body to PDF.
func (h *Handler) FromHTML(c *fiber.Ctx) error {
	var req render.Request
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	if err := h.checkHTMLSize(len(req.Content)); err != nil {
		return err
	}
	return h.renderAndSend(c, "html", req, req)
}

// FromMarkdown converts Markdown to HTML and renders it like FromHTML.
func (h *Handler) FromMarkdown(c *fiber.Ctx) error {
	var req MarkdownRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	if err := h.checkHTMLSize(len(req.Markdown)); err != nil {
		return err
	}
	html, err := h.markdown.ToHTML(c.UserContext(), req.Markdown)
	if err != nil {
		return toHTTPError(c, "markdown conversion", err)
	}
	r := req.Request
	r.Content = html
	return h.renderAndSend(c, "markdown", req, r)
}

func (h *Handler) renderAndSend(c *fiber.Ctx, kind string, keySource any, req render.Request) error {
	// Validate before the cache so that invalid requests never hit Redis.
	if err := req.Validate(); err != nil {
		return toHTTPError(c, "render", err)
	}

	var key string
	if h.cfg.Cache.PDFCacheEnabled && h.cache != nil {
		var err error
		if key, err = cache.Key(kind, keySource); err != nil {
			logging.Warn("PDF cache key failed", "error", err)
		} else if pdf, ok := h.cache.Get(c.UserContext(), key); ok {
			return h.sendPDF(c, pdf, "document.pdf")
		}
	}

	pdf, err := h.renderer.Render(c.UserContext(), req)
	if err != nil {
		return toHTTPError(c, "PDF generation", err)
	}
	if req.Manipulate != nil && !req.Manipulate.IsEmpty() {
		if pdf, err = document.Manipulate(h.codec, pdf, *req.Manipulate); err != nil {
			return toHTTPError(c, "metadata update", err)
		}
	}

	if key != "" && (h.cfg.Limits.MaxPDFBytes <= 0 || len(pdf) <= h.cfg.Limits.MaxPDFBytes) {
		h.cache.Set(c.UserContext(), key, pdf)
	}
	logging.Info("PDF generated", "kind", kind, "bytes", len(pdf), "request_id", requestID(c))
	return h.sendPDF(c, pdf, "document.pdf")
}

func (h *Handler) checkHTMLSize(n int) error {
	if limit := h.cfg.Limits.MaxHTMLBytes; limit > 0 && n > limit {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("HTML input exceeds %d bytes", limit))
	}
	return nil
}

func decodeJSON(c *fiber.Ctx, v any) error {
	if !c.Is("json") {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "JSON body expected")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body: "+err.Error())
	}
	return nil
}
