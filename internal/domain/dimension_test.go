package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDimension_RoundTrip(t *testing.T) {
	tests := []struct {
		in    string
		value float64
		unit  Unit
	}{
		{"10mm", 10, UnitMillimeter},
		{"0px", 0, UnitPixel},
		{"8.5in", 8.5, UnitInch},
		{"2.54cm", 2.54, UnitCentimeter},
		{"120px", 120, UnitPixel},
		{"0.75in", 0.75, UnitInch},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			d, err := ParseDimension(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.value, d.Value)
			assert.Equal(t, tc.unit, d.Unit)

			again, err := ParseDimension(d.String())
			require.NoError(t, err)
			assert.Equal(t, d, again)
		})
	}
}

func TestParseDimension_Invalid(t *testing.T) {
	for _, in := range []string{"", "10", "mm", "10pt", "-5mm", "1.mm", ".5in", "10 mm", "10mmx", "1e3px", "ten mm"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDimension(in)
			if !errors.Is(err, ErrInvalidDimension) {
				t.Fatalf("ParseDimension(%q) error = %v, want ErrInvalidDimension", in, err)
			}
		})
	}
}

func TestDimension_Inches(t *testing.T) {
	tests := []struct {
		d    Dimension
		want float64
	}{
		{Dimension{96, UnitPixel}, 1},
		{Dimension{1, UnitInch}, 1},
		{Dimension{2.54, UnitCentimeter}, 1},
		{Dimension{25.4, UnitMillimeter}, 1},
		{Millimeters(10), 10 / 25.4},
	}
	for _, tc := range tests {
		if got := tc.d.Inches(); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s.Inches() = %v, want %v", tc.d, got, tc.want)
		}
	}
}

func TestDimension_UnmarshalJSON(t *testing.T) {
	var m Margins
	err := json.Unmarshal([]byte(`{"top":12,"bottom":"1.5cm","left":null}`), &m)
	require.NoError(t, err)
	assert.Equal(t, Pixels(12), m.Top)
	assert.Equal(t, Dimension{1.5, UnitCentimeter}, m.Bottom)
	assert.True(t, m.Left.IsZero())
	assert.True(t, m.Right.IsZero())

	err = json.Unmarshal([]byte(`{"top":"12pt"}`), &m)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	err = json.Unmarshal([]byte(`{"top":true}`), &m)
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestMargins_WithDefaults(t *testing.T) {
	m := Margins{Left: Pixels(40)}.WithDefaults()
	assert.Equal(t, Pixels(40), m.Left)
	assert.Equal(t, DefaultMargin, m.Top)
	assert.Equal(t, DefaultMargin, m.Bottom)
	assert.Equal(t, DefaultMargin, m.Right)
}

func TestParsePageFormat(t *testing.T) {
	f, err := ParsePageFormat("A4")
	require.NoError(t, err)
	assert.Equal(t, PageFormat("a4"), f)

	w, h, ok := f.Size()
	require.True(t, ok)
	assert.InDelta(t, 8.27, w.Inches(), 1e-9)
	assert.InDelta(t, 11.7, h.Inches(), 1e-9)

	_, err = ParsePageFormat("b5")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRenderOptions_PaperSize(t *testing.T) {
	w, h := RenderOptions{Format: "ledger"}.PaperSize()
	assert.Equal(t, 17.0, w)
	assert.Equal(t, 11.0, h)

	w, h = RenderOptions{Width: Pixels(960), Height: Dimension{2, UnitInch}}.PaperSize()
	assert.InDelta(t, 10.0, w, 1e-9)
	assert.InDelta(t, 2.0, h, 1e-9)
}

func TestMetadata_IsEmpty(t *testing.T) {
	assert.True(t, Metadata{}.IsEmpty())
	assert.False(t, Metadata{Keywords: []string{}}.IsEmpty())
	assert.False(t, Metadata{Title: "x"}.IsEmpty())
}
