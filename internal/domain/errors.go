package domain

import "errors"

// Sentinel errors. Callers wrap them with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// ErrInvalidDimension signals a malformed page-size value such as "12pt" or "abc".
	ErrInvalidDimension = errors.New("invalid dimension")
	// ErrInvalidRequest signals a request that fails validation before any rendering work starts.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDocumentLoad signals that input bytes could not be decoded as a PDF document.
	ErrDocumentLoad = errors.New("document load failed")
	// ErrRender signals a rendering engine failure.
	ErrRender = errors.New("render failed")
	// ErrFetch signals a failed image fetch. It never leaves the image inliner.
	ErrFetch = errors.New("fetch failed")
)
