package render

import (
	"fmt"
	"math"

	"pdfservice/internal/domain"
)

// Request is the JSON body of an HTML render call.
type Request struct {
	Content      string           `json:"content"`
	Format       string           `json:"format,omitempty"`
	Width        domain.Dimension `json:"width"`
	Height       domain.Dimension `json:"height"`
	Margins      domain.Margins   `json:"margins"`
	Header       string           `json:"header,omitempty"`
	Footer       string           `json:"footer,omitempty"`
	Landscape    bool             `json:"landscape,omitempty"`
	Scale        *float64         `json:"scale,omitempty"`
	Manipulate   *domain.Metadata `json:"manipulate,omitempty"`
	InlineImages bool             `json:"inlineImages,omitempty"`
	ImageMaxSize int              `json:"imageMaxSize,omitempty"`
}

// Validate checks the request before any rendering work starts. Errors wrap
// domain.ErrInvalidRequest.
func (r Request) Validate() error {
	if r.Content == "" {
		return invalid("content is required")
	}

	if r.Scale != nil {
		s := *r.Scale
		if math.IsNaN(s) || s < domain.MinScale || s > domain.MaxScale {
			return invalid(fmt.Sprintf("scale must be between %v and %v", domain.MinScale, domain.MaxScale))
		}
	}

	explicit := !r.Width.IsZero() || !r.Height.IsZero()
	switch {
	case r.Format != "" && explicit:
		return invalid("format cannot be combined with width or height")
	case r.Format != "":
		if _, err := domain.ParsePageFormat(r.Format); err != nil {
			return err
		}
	case r.Width.IsZero() || r.Height.IsZero():
		return invalid("either format or both width and height are required")
	case r.Width.Value <= 0 || r.Height.Value <= 0:
		return invalid("width and height must be positive")
	}

	if r.ImageMaxSize < 0 {
		return invalid("imageMaxSize must not be negative")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, msg)
}
