package domain

import (
	"fmt"
	"strings"
)

// PageFormat is a named paper size.
type PageFormat string

// Paper sizes in inches, as Chrome and puppeteer define them.
var pageFormats = map[PageFormat][2]float64{
	"letter":  {8.5, 11},
	"legal":   {8.5, 14},
	"tabloid": {11, 17},
	"ledger":  {17, 11},
	"a0":      {33.1, 46.8},
	"a1":      {23.4, 33.1},
	"a2":      {16.54, 23.4},
	"a3":      {11.7, 16.54},
	"a4":      {8.27, 11.7},
	"a5":      {5.83, 8.27},
	"a6":      {4.13, 5.83},
}

// ParsePageFormat validates a format name. Matching is case-insensitive.
func ParsePageFormat(s string) (PageFormat, error) {
	f := PageFormat(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := pageFormats[f]; !ok {
		return "", fmt.Errorf("%w: unsupported page format %q", ErrInvalidRequest, s)
	}
	return f, nil
}

// Size returns width and height in inches (portrait orientation as defined by the format).
func (f PageFormat) Size() (width, height Dimension, ok bool) {
	wh, ok := pageFormats[f]
	if !ok {
		return Dimension{}, Dimension{}, false
	}
	return Dimension{Value: wh[0], Unit: UnitInch}, Dimension{Value: wh[1], Unit: UnitInch}, true
}
