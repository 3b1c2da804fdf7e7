// Package redact clears original glyphs by staging background fills over
// span rectangles.
package redact

import (
	"layout-translator/internal/document"
	"layout-translator/internal/logger"
)

// Margins expand a span rectangle before it is filled. The trailing (right)
// edge gets the largest margin so glyph overhang is covered.
type Margins struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// DefaultMargins are used when Config.Margins is zero
var DefaultMargins = Margins{Left: 1, Top: 1, Right: 3, Bottom: 1}

// DefaultFillColor is the background used when Config.FillColor is empty
const DefaultFillColor = "#ffffff"

// Config holds redactor settings
type Config struct {
	Margins Margins
	// FillColor is a hex colour such as "#ffffff"
	FillColor string
}

// Redactor stages fills on page handles
type Redactor struct {
	margins Margins
	fill    document.Color
}

// New creates a Redactor, applying defaults to zero values
func New(cfg Config) *Redactor {
	margins := cfg.Margins
	if margins == (Margins{}) {
		margins = DefaultMargins
	}
	hex := cfg.FillColor
	if hex == "" {
		hex = DefaultFillColor
	}
	return &Redactor{
		margins: margins,
		fill:    document.ParseColor(hex, document.White),
	}
}

// Margins returns the effective margins
func (r *Redactor) Margins() Margins {
	return r.margins
}

// ExpandRect grows rect by the margins and clips it to the page
func (r *Redactor) ExpandRect(rect document.Rect, page document.Size) document.Rect {
	m := r.margins
	return rect.Expand(m.Left, m.Top, m.Right, m.Bottom).Clip(page)
}

// Redact stages one fill per span belonging to the handle's page and returns
// the number staged. Spans of other pages are ignored. The fills become
// visible only after h.Materialize.
func (r *Redactor) Redact(h *document.PageHandle, spans []document.TextSpan) (int, error) {
	staged := 0
	for _, span := range spans {
		if span.PageIndex != h.Index() {
			continue
		}
		rect := r.ExpandRect(span.Rect, h.Size())
		if rect.Empty() {
			continue
		}
		if err := h.Stage(document.Fill{Rect: rect, Color: r.fill}); err != nil {
			return staged, err
		}
		staged++
	}
	logger.Debug("fills staged",
		logger.Int("page", h.Index()+1),
		logger.Int("fills", staged))
	return staged, nil
}
