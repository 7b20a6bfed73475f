package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pdfservice/internal/document"
	"pdfservice/internal/domain"
	"pdfservice/internal/infra/logging"
)

// Merge concatenates every uploaded "file" part in upload order.
func (h *Handler) Merge(c *fiber.Ctx) error {
	form, err := multipartForm(c)
	if err != nil {
		return err
	}
	files, err := readParts(form, "file", 1)
	if err != nil {
		return err
	}
	meta, err := metadataField(form, false)
	if err != nil {
		return err
	}

	pdf, err := document.Merge(h.codec, files)
	if err != nil {
		return toHTTPError(c, "merge", err)
	}
	if pdf, err = h.applyMetadata(pdf, meta); err != nil {
		return toHTTPError(c, "metadata update", err)
	}
	logging.Info("PDFs merged", "inputs", len(files), "request_id", requestID(c))
	return h.sendPDF(c, pdf, "merged.pdf")
}

// Overlay stamps the first page of every "over" part onto each page of "main".
func (h *Handler) Overlay(c *fiber.Ctx) error {
	form, err := multipartForm(c)
	if err != nil {
		return err
	}
	mains, err := readParts(form, "main", 1)
	if err != nil {
		return err
	}
	if len(mains) != 1 {
		return fiber.NewError(fiber.StatusBadRequest, "exactly one main file expected")
	}
	overs, err := readParts(form, "over", 1)
	if err != nil {
		return err
	}
	meta, err := metadataField(form, false)
	if err != nil {
		return err
	}

	pdf, err := document.Overlay(h.codec, mains[0], overs)
	if err != nil {
		return toHTTPError(c, "overlay", err)
	}
	if pdf, err = h.applyMetadata(pdf, meta); err != nil {
		return toHTTPError(c, "metadata update", err)
	}
	logging.Info("PDF overlaid", "overlays", len(overs), "request_id", requestID(c))
	return h.sendPDF(c, pdf, "overlay.pdf")
}

// Manipulate rewrites the metadata of the single "file" part.
func (h *Handler) Manipulate(c *fiber.Ctx) error {
	form, err := multipartForm(c)
	if err != nil {
		return err
	}
	files, err := readParts(form, "file", 1)
	if err != nil {
		return err
	}
	if len(files) != 1 {
		return fiber.NewError(fiber.StatusBadRequest, "exactly one file expected")
	}
	meta, err := metadataField(form, true)
	if err != nil {
		return err
	}

	pdf, err := document.Manipulate(h.codec, files[0], meta)
	if err != nil {
		return toHTTPError(c, "metadata update", err)
	}
	return h.sendPDF(c, pdf, "document.pdf")
}

func (h *Handler) applyMetadata(pdf []byte, m domain.Metadata) ([]byte, error) {
	if m.IsEmpty() {
		return pdf, nil
	}
	return document.Manipulate(h.codec, pdf, m)
}

func multipartForm(c *fiber.Ctx) (*multipart.Form, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "multipart expected")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "multipart expected: "+err.Error())
	}
	return form, nil
}

// readParts returns the contents of every file part named field, in upload order.
func readParts(form *multipart.Form, field string, min int) ([][]byte, error) {
	headers := form.File[field]
	if len(headers) < min {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("missing %q file", field))
	}
	out := make([][]byte, 0, len(headers))
	for _, fh := range headers {
		data, err := readFile(fh)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("read %q: %v", fh.Filename, err))
		}
		out = append(out, data)
	}
	return out, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// metadataField decodes the "config" part, sent either as a form value or as a file.
func metadataField(form *multipart.Form, required bool) (domain.Metadata, error) {
	var raw []byte
	if vals := form.Value["config"]; len(vals) > 0 {
		raw = []byte(vals[0])
	} else if files := form.File["config"]; len(files) > 0 {
		data, err := readFile(files[0])
		if err != nil {
			return domain.Metadata{}, fiber.NewError(fiber.StatusBadRequest, "read config: "+err.Error())
		}
		raw = data
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		if required {
			return domain.Metadata{}, fiber.NewError(fiber.StatusBadRequest, `missing "config" field`)
		}
		return domain.Metadata{}, nil
	}

	var m domain.Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.Metadata{}, fiber.NewError(fiber.StatusBadRequest, "Invalid config: "+err.Error())
	}
	return m, nil
}
