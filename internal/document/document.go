// Package document composes and mutates PDF documents through a narrow codec interface:
// overlay placement, page concatenation and metadata mutation.
package document

import "time"

// Size is a page or page-content extent in PDF points.
type Size struct {
	Width  float64
	Height float64
}

// Rect is a drawing target on a page, anchored at its lower-left corner.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Drawable is embedded page content that can be drawn onto pages of the document it was
// embedded into.
type Drawable interface {
	Size() Size
}

// Document is an open, mutable PDF. Page indices are zero based.
type Document interface {
	PageCount() int
	PageSize(i int) (Size, error)
	// CopyPages appends the given pages of src, in order.
	CopyPages(src Document, indices []int) error
	// Embed makes the first page of pdf drawable in this document.
	Embed(pdf []byte) (Drawable, error)
	Draw(page int, d Drawable, r Rect) error

	SetTitle(title string)
	SetAuthor(author string)
	SetSubject(subject string)
	SetKeywords(keywords []string)
	SetCreator(creator string)
	SetProducer(producer string)
	SetLanguage(lang string)
	SetCreationDate(t time.Time)
	SetModificationDate(t time.Time)

	Save() ([]byte, error)
	Close() error
}

// Codec opens and creates documents. Load failures wrap domain.ErrDocumentLoad.
type Codec interface {
	Load(pdf []byte) (Document, error)
	Create() (Document, error)
}
