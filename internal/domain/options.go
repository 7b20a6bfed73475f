package domain

// Scale bounds enforced at the request boundary.
const (
	MinScale     = 0.2
	MaxScale     = 2.0
	DefaultScale = 1.0
)

// DefaultMargin is applied to every margin side left unset by the caller.
var DefaultMargin = Millimeters(10)

// Margins holds the four page margins.
type Margins struct {
	Top    Dimension `json:"top"`
	Bottom Dimension `json:"bottom"`
	Left   Dimension `json:"left"`
	Right  Dimension `json:"right"`
}

// WithDefaults fills each unset side with DefaultMargin.
func (m Margins) WithDefaults() Margins {
	for _, side := range []*Dimension{&m.Top, &m.Bottom, &m.Left, &m.Right} {
		if side.IsZero() {
			*side = DefaultMargin
		}
	}
	return m
}

// RenderOptions is the full parameter set handed to the rendering engine.
// Either Format is set, or Width and Height are.
type RenderOptions struct {
	Format              PageFormat
	Width               Dimension
	Height              Dimension
	Margins             Margins
	Landscape           bool
	Scale               float64
	PrintBackground     bool
	DisplayHeaderFooter bool
	HeaderTemplate      string
	FooterTemplate      string
}

// PaperSize resolves the page size in inches, honoring the named format when present.
// Landscape is applied by the engine, not here.
func (o RenderOptions) PaperSize() (width, height float64) {
	if w, h, ok := o.Format.Size(); ok {
		return w.Inches(), h.Inches()
	}
	return o.Width.Inches(), o.Height.Inches()
}
