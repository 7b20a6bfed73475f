package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// Unit is a physical length unit accepted for page sizes and margins.
type Unit string

const (
	UnitPixel      Unit = "px"
	UnitInch       Unit = "in"
	UnitCentimeter Unit = "cm"
	UnitMillimeter Unit = "mm"
)

// CSS reference pixels per unit, matching Chrome's print pipeline.
var pixelsPerUnit = map[Unit]float64{
	UnitPixel:      1,
	UnitInch:       96,
	UnitCentimeter: 96 / 2.54,
	UnitMillimeter: 96 / 25.4,
}

var dimensionPattern = regexp.MustCompile(`^(\d+(\.\d+)?)(px|in|cm|mm)$`)

// Dimension is a length with an explicit unit.
type Dimension struct {
	Value float64
	Unit  Unit
}

// Pixels returns a dimension expressed in CSS pixels.
func Pixels(v float64) Dimension {
	return Dimension{Value: v, Unit: UnitPixel}
}

// Millimeters returns a dimension expressed in millimeters.
func Millimeters(v float64) Dimension {
	return Dimension{Value: v, Unit: UnitMillimeter}
}

// ParseDimension parses "<digits>[.<digits>](px|in|cm|mm)".
func ParseDimension(s string) (Dimension, error) {
	m := dimensionPattern.FindStringSubmatch(s)
	if m == nil {
		return Dimension{}, fmt.Errorf("%w: %q", ErrInvalidDimension, s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Dimension{}, fmt.Errorf("%w: %q: %v", ErrInvalidDimension, s, err)
	}
	return Dimension{Value: v, Unit: Unit(m[3])}, nil
}

// IsZero reports whether the dimension was never set.
func (d Dimension) IsZero() bool {
	return d.Unit == ""
}

// Inches converts the dimension to inches, the unit Chrome's PrintToPDF expects.
func (d Dimension) Inches() float64 {
	if d.Unit == UnitInch {
		return d.Value
	}
	return d.Value * pixelsPerUnit[d.Unit] / pixelsPerUnit[UnitInch]
}

// String renders the dimension back into its "<number><unit>" form. It is also valid CSS.
func (d Dimension) String() string {
	if d.IsZero() {
		return ""
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64) + string(d.Unit)
}

// UnmarshalJSON accepts either a bare number (pixels) or a "<number><unit>" string. Null and
// the empty string leave the dimension unset.
func (d *Dimension) UnmarshalJSON(b []byte) error {
	if string(b) == "null" || string(b) == `""` {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("%w: negative value %v", ErrInvalidDimension, n)
		}
		*d = Pixels(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: expected number or string", ErrInvalidDimension)
	}
	parsed, err := ParseDimension(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON writes the "<number><unit>" form.
func (d Dimension) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// CSS renders the dimension for use in a stylesheet.
func (d Dimension) CSS() string {
	return d.String()
}
