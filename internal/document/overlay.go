package document

import (
	"fmt"

	"pdfservice/internal/domain"
)

// Placement is where an overlay lands on a base page.
type Placement struct {
	Scale float64
	Rect  Rect
}

// Place fits overlay onto base by height alone. The overlay keeps its aspect ratio and is
// anchored at the page origin, so a narrower or wider overlay does not fill the page width.
func Place(base, overlay Size) (Placement, error) {
	if overlay.Height <= 0 || overlay.Width <= 0 {
		return Placement{}, fmt.Errorf("%w: overlay page has no extent", domain.ErrDocumentLoad)
	}
	scale := base.Height / overlay.Height
	return Placement{
		Scale: scale,
		Rect: Rect{
			Width:  overlay.Width * scale,
			Height: overlay.Height * scale,
		},
	}, nil
}

// Overlay draws the first page of every overlay onto every page of base. Overlays stack in the
// order given.
func Overlay(codec Codec, base []byte, overlays [][]byte) ([]byte, error) {
	doc, err := codec.Load(base)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	drawables := make([]Drawable, 0, len(overlays))
	for i, o := range overlays {
		d, err := doc.Embed(o)
		if err != nil {
			return nil, fmt.Errorf("overlay %d: %w", i, err)
		}
		drawables = append(drawables, d)
	}

	for page := 0; page < doc.PageCount(); page++ {
		size, err := doc.PageSize(page)
		if err != nil {
			return nil, err
		}
		for _, d := range drawables {
			p, err := Place(size, d.Size())
			if err != nil {
				return nil, err
			}
			if err := doc.Draw(page, d, p.Rect); err != nil {
				return nil, err
			}
		}
	}
	return doc.Save()
}
