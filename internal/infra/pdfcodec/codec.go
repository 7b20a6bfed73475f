// Package pdfcodec implements document.Codec on top of pdfcpu.
package pdfcodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdfservice/internal/document"
	"pdfservice/internal/domain"
)

// Codec loads and creates pdfcpu-backed documents. It is safe for concurrent use; every
// operation runs against its own pdfcpu configuration.
type Codec struct {
	tmpDir string
}

// New returns a Codec. Overlay pages are staged as temporary files under tmpDir, or the system
// temp directory when tmpDir is empty.
func New(tmpDir string) *Codec {
	api.DisableConfigDir()
	return &Codec{tmpDir: tmpDir}
}

func (c *Codec) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Load implements document.Codec.
func (c *Codec) Load(pdf []byte) (document.Document, error) {
	sizes, err := c.inspect(pdf)
	if err != nil {
		return nil, err
	}
	return &Document{codec: c, base: pdf, sizes: sizes}, nil
}

// Create implements document.Codec.
func (c *Codec) Create() (document.Document, error) {
	return &Document{codec: c}, nil
}

// inspect validates pdf and returns its page sizes in points.
func (c *Codec) inspect(pdf []byte) ([]document.Size, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), c.conf())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDocumentLoad, err)
	}
	if ctx.PageCount == 0 {
		return nil, nil
	}
	dims, err := api.PageDims(bytes.NewReader(pdf), c.conf())
	if err != nil {
		return nil, fmt.Errorf("%w: page dimensions: %v", domain.ErrDocumentLoad, err)
	}
	sizes := make([]document.Size, len(dims))
	for i, d := range dims {
		sizes[i] = document.Size{Width: d.Width, Height: d.Height}
	}
	return sizes, nil
}

// Metadata reads the document information of pdf, including the catalog language.
func (c *Codec) Metadata(pdf []byte) (domain.Metadata, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdf), c.conf())
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("%w: %v", domain.ErrDocumentLoad, err)
	}
	return readMetadata(ctx)
}

func merge(parts [][]byte, conf *model.Configuration) ([]byte, error) {
	switch len(parts) {
	case 0:
		return emptyPDF(), nil
	case 1:
		return parts[0], nil
	}
	rsc := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		rsc[i] = bytes.NewReader(p)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(rsc, &out, false, conf); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return out.Bytes(), nil
}
