package document

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an RGB colour with channels in [0,1]
type Color struct {
	colorful.Color
}

var (
	// White is the default redaction fill
	White = Color{colorful.Color{R: 1, G: 1, B: 1}}
	// Black is the default text colour
	Black = Color{colorful.Color{R: 0, G: 0, B: 0}}
)

// RGB builds a colour from channels in [0,1]. Out of range values are clamped.
func RGB(r, g, b float64) Color {
	return Color{colorful.Color{R: r, G: g, B: b}.Clamped()}
}

// ColorFromInt decodes a packed 0xRRGGBB value as reported by most PDF
// text extractors.
func ColorFromInt(v int) Color {
	r := float64((v>>16)&0xFF) / 255.0
	g := float64((v>>8)&0xFF) / 255.0
	b := float64(v&0xFF) / 255.0
	return RGB(r, g, b)
}

// ParseColor parses a "#rrggbb" string. Unknown input yields the fallback.
func ParseColor(hex string, fallback Color) Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return fallback
	}
	return Color{c}
}

// Hex returns the "#rrggbb" form
func (c Color) Hex() string {
	return c.Color.Clamped().Hex()
}

// Decode implements envconfig.Decoder for "#rrggbb" values
func (c *Color) Decode(value string) error {
	parsed, err := colorful.Hex(value)
	if err != nil {
		return err
	}
	c.Color = parsed
	return nil
}
