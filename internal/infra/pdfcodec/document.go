package pdfcodec

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdfservice/internal/document"
	"pdfservice/internal/domain"
)

var errClosed = errors.New("pdfcodec: document is closed")

// Document buffers page copies, draws and metadata changes and applies them on Save.
type Document struct {
	codec *Codec

	base  []byte   // nil for a created document
	parts [][]byte // copied page runs, appended after base
	sizes []document.Size

	embedded []*embeddedPage
	draws    []drawOp
	meta     metaUpdate

	closed bool
}

type embeddedPage struct {
	owner *Document
	path  string
	size  document.Size
}

func (e *embeddedPage) Size() document.Size { return e.size }

type drawOp struct {
	page    int
	overlay *embeddedPage
	rect    document.Rect
}

// PageCount implements document.Document.
func (d *Document) PageCount() int { return len(d.sizes) }

// PageSize implements document.Document.
func (d *Document) PageSize(i int) (document.Size, error) {
	if i < 0 || i >= len(d.sizes) {
		return document.Size{}, fmt.Errorf("page %d out of range [0,%d)", i, len(d.sizes))
	}
	return d.sizes[i], nil
}

// CopyPages implements document.Document. src must come from a pdfcodec Codec.
func (d *Document) CopyPages(src document.Document, indices []int) error {
	if d.closed {
		return errClosed
	}
	s, ok := src.(*Document)
	if !ok {
		return fmt.Errorf("pdfcodec: cannot copy pages from %T", src)
	}
	if len(indices) == 0 {
		return nil
	}
	for _, i := range indices {
		if i < 0 || i >= s.PageCount() {
			return fmt.Errorf("page %d out of range [0,%d)", i, s.PageCount())
		}
	}

	data, err := s.Save()
	if err != nil {
		return err
	}

	if isIdentity(indices, s.PageCount()) {
		d.parts = append(d.parts, data)
	} else {
		for _, i := range indices {
			var out bytes.Buffer
			sel := []string{strconv.Itoa(i + 1)}
			if err := api.Trim(bytes.NewReader(data), &out, sel, d.codec.conf()); err != nil {
				return fmt.Errorf("extract page %d: %w", i, err)
			}
			d.parts = append(d.parts, out.Bytes())
		}
	}
	for _, i := range indices {
		d.sizes = append(d.sizes, s.sizes[i])
	}
	return nil
}

func isIdentity(indices []int, n int) bool {
	if len(indices) != n {
		return false
	}
	for i, v := range indices {
		if i != v {
			return false
		}
	}
	return true
}

// Embed implements document.Document. The first page of pdf is staged in a temporary file
// until Close.
func (d *Document) Embed(pdf []byte) (document.Drawable, error) {
	if d.closed {
		return nil, errClosed
	}
	sizes, err := d.codec.inspect(pdf)
	if err != nil {
		return nil, err
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("%w: overlay has no pages", domain.ErrDocumentLoad)
	}
	if sizes[0].Height <= 0 || sizes[0].Width <= 0 {
		return nil, fmt.Errorf("%w: overlay page has no extent", domain.ErrDocumentLoad)
	}

	f, err := os.CreateTemp(d.codec.tmpDir, "overlay-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("stage overlay: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(pdf); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("stage overlay: %w", err)
	}

	e := &embeddedPage{owner: d, path: f.Name(), size: sizes[0]}
	d.embedded = append(d.embedded, e)
	return e, nil
}

// Draw implements document.Document. The drawable keeps its aspect ratio; its height is
// scaled to r.Height.
func (d *Document) Draw(page int, dr document.Drawable, r document.Rect) error {
	if d.closed {
		return errClosed
	}
	e, ok := dr.(*embeddedPage)
	if !ok || e.owner != d {
		return errors.New("pdfcodec: drawable was not embedded into this document")
	}
	if page < 0 || page >= len(d.sizes) {
		return fmt.Errorf("page %d out of range [0,%d)", page, len(d.sizes))
	}
	if r.Height <= 0 {
		return fmt.Errorf("pdfcodec: draw height must be positive, got %v", r.Height)
	}
	d.draws = append(d.draws, drawOp{page: page, overlay: e, rect: r})
	return nil
}

// SetTitle implements document.Document. The title is also shown in the viewer's title bar.
func (d *Document) SetTitle(v string) {
	d.meta.title = &v
}

func (d *Document) SetAuthor(v string) {
	d.meta.author = &v
}

func (d *Document) SetSubject(v string) {
	d.meta.subject = &v
}

// SetKeywords implements document.Document. Keywords are stored space separated.
func (d *Document) SetKeywords(v []string) {
	d.meta.keywords = append([]string{}, v...)
	d.meta.keywordsSet = true
}

func (d *Document) SetCreator(v string) {
	d.meta.creator = &v
}

func (d *Document) SetProducer(v string) {
	d.meta.producer = &v
}

// SetLanguage implements document.Document by setting the catalog /Lang entry.
func (d *Document) SetLanguage(v string) {
	d.meta.language = &v
}

func (d *Document) SetCreationDate(t time.Time) {
	d.meta.created = &t
}

func (d *Document) SetModificationDate(t time.Time) {
	d.meta.modified = &t
}

// Save implements document.Document. Pages are assembled first, then overlays are stamped and
// finally metadata is appended as an incremental update.
func (d *Document) Save() ([]byte, error) {
	if d.closed {
		return nil, errClosed
	}
	parts := d.parts
	if d.base != nil {
		parts = append([][]byte{d.base}, d.parts...)
	}
	data, err := merge(parts, d.codec.conf())
	if err != nil {
		return nil, err
	}
	if data, err = d.stamp(data); err != nil {
		return nil, err
	}
	if d.meta.isEmpty() {
		return data, nil
	}
	return appendMetadata(data, d.meta, d.codec.conf())
}

type stampKey struct {
	layer   int
	overlay *embeddedPage
	x, y    float64
	scale   float64
}

// stamp applies pending draws. Draws are grouped into layers so that a page's n-th draw always
// lands above its earlier ones; within a layer, draws sharing overlay and geometry become one
// pdfcpu stamp call.
func (d *Document) stamp(data []byte) ([]byte, error) {
	if len(d.draws) == 0 {
		return data, nil
	}

	depth := map[int]int{}
	pages := map[stampKey][]string{}
	var keys []stampKey
	for _, op := range d.draws {
		k := stampKey{
			layer:   depth[op.page],
			overlay: op.overlay,
			x:       op.rect.X,
			y:       op.rect.Y,
			scale:   op.rect.Height / op.overlay.size.Height,
		}
		depth[op.page]++
		if _, ok := pages[k]; !ok {
			keys = append(keys, k)
		}
		pages[k] = append(pages[k], strconv.Itoa(op.page+1))
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].layer < keys[j].layer })

	for _, k := range keys {
		desc := fmt.Sprintf("position:bl, offset:%s %s, scalefactor:%s abs, rotation:0, opacity:1",
			formatFloat(k.x), formatFloat(k.y), formatFloat(k.scale))
		// Without a page suffix pdfcpu stamps overlay page N onto base page N.
		wm, err := api.PDFWatermark(k.overlay.path+":1", desc, true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("prepare overlay: %w", err)
		}
		var out bytes.Buffer
		if err := api.AddWatermarks(bytes.NewReader(data), &out, pages[k], wm, d.codec.conf()); err != nil {
			return nil, fmt.Errorf("draw overlay: %w", err)
		}
		data = out.Bytes()
	}
	return data, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Close removes staged overlay files. It is safe to call more than once.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	var errs []error
	for _, e := range d.embedded {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	d.embedded = nil
	return errors.Join(errs...)
}
