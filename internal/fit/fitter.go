// Package fit chooses a font and size for translated text so that it stays
// inside its original slot without running into the next line.
package fit

import (
	"fmt"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/font"
	"golang.org/x/text/encoding/charmap"

	"layout-translator/internal/document"
	"layout-translator/internal/language"
	"layout-translator/internal/logger"
)

// Config holds the fitting heuristics. Sizes and distances are in points.
type Config struct {
	MinFontSize float64
	MaxFontSize float64

	// GapTight and GapLoose split gaps into the three height rules
	GapTight  float64
	GapLoose  float64
	HeightCap float64

	MaxWidthRatio float64
	MaxWidth      float64

	// LineHeight is the line pitch as a multiple of the font size
	LineHeight float64

	// Scales are tried in order after the baseline size
	Scales []float64

	LatinFonts []string
	CJKFonts   []string
}

// DefaultConfig returns the stock heuristics
func DefaultConfig() Config {
	return Config{
		MinFontSize:   7,
		MaxFontSize:   18,
		GapTight:      15,
		GapLoose:      25,
		HeightCap:     60,
		MaxWidthRatio: 0.8,
		MaxWidth:      500,
		LineHeight:    1.2,
		Scales:        []float64{0.8, 0.7, 0.6, 0.5},
		LatinFonts:    []string{"Helvetica", "Times-Roman", "Courier"},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinFontSize <= 0 {
		c.MinFontSize = d.MinFontSize
	}
	if c.MaxFontSize <= 0 {
		c.MaxFontSize = d.MaxFontSize
	}
	if c.GapTight <= 0 {
		c.GapTight = d.GapTight
	}
	if c.GapLoose <= 0 {
		c.GapLoose = d.GapLoose
	}
	if c.HeightCap <= 0 {
		c.HeightCap = d.HeightCap
	}
	if c.MaxWidthRatio <= 0 {
		c.MaxWidthRatio = d.MaxWidthRatio
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = d.MaxWidth
	}
	if c.LineHeight <= 0 {
		c.LineHeight = d.LineHeight
	}
	if len(c.Scales) == 0 {
		c.Scales = d.Scales
	}
	if len(c.LatinFonts) == 0 {
		c.LatinFonts = d.LatinFonts
	}
	return c
}

// Candidate is one font at one scale of the baseline size. Path is set for
// font files.
type Candidate struct {
	Font  string
	Path  string
	Scale float64
}

func (c Candidate) measureName() string {
	if c.Path != "" {
		return c.Path
	}
	return c.Font
}

// Box is the space available to a text
type Box struct {
	Width      float64
	Height     float64
	BaseSize   float64
	LineHeight float64
}

// Request describes one text to place
type Request struct {
	Text string
	Rect document.Rect
	Page document.Size
	// SpanSize is the size reported for the original span; used when the
	// rect height is unusable
	SpanSize float64
	// Gap is the vertical distance from the top of Rect to the next span,
	// or to the page bottom
	Gap    float64
	Target string
}

// Fitter selects fonts and sizes
type Fitter struct {
	config   Config
	resolver *FontResolver
	measure  Measurer
}

// New creates a Fitter. A nil measurer uses NewMeasurer; a nil resolver
// disables the external font fallback.
func New(cfg Config, resolver *FontResolver, measure Measurer) *Fitter {
	if measure == nil {
		measure = NewMeasurer()
	}
	return &Fitter{
		config:   cfg.withDefaults(),
		resolver: resolver,
		measure:  measure,
	}
}

// Config returns the effective configuration
func (f *Fitter) Config() Config {
	return f.config
}

// AllowedHeight converts the gap below a span into the height a text box
// may occupy. Tight gaps keep almost all of it; loose gaps are capped.
func (f *Fitter) AllowedHeight(gap float64) float64 {
	var h float64
	switch {
	case gap < f.config.GapTight:
		h = gap - 2
	case gap < f.config.GapLoose:
		h = gap - 3
	default:
		h = math.Min(f.config.HeightCap, gap-5)
	}
	return math.Max(0, h)
}

// AllowedWidth returns the width a text box starting at rect.X0 may use
func (f *Fitter) AllowedWidth(rect document.Rect, page document.Size) float64 {
	w := math.Min(page.Width-rect.X0, f.config.MaxWidthRatio*page.Width)
	w = math.Min(w, f.config.MaxWidth)
	return math.Max(0, w)
}

// BaselineSize estimates the original font size from the span height,
// clamped to the configured range
func (f *Fitter) BaselineSize(span document.TextSpan) float64 {
	return f.baseline(span.Rect, span.FontSize)
}

func (f *Fitter) baseline(rect document.Rect, fallback float64) float64 {
	size := rect.Height()
	if size <= 0 {
		size = fallback
	}
	return math.Min(f.config.MaxFontSize, math.Max(f.config.MinFontSize, size))
}

// Candidates lists fonts for the target language: CJK fonts first for
// zh, ja and ko, each at full size, then the whole list at every scale
func (f *Fitter) Candidates(target string) []Candidate {
	fonts := f.config.LatinFonts
	if language.IsCJK(target) {
		fonts = append(append([]string{}, f.config.CJKFonts...), f.config.LatinFonts...)
	}

	cands := make([]Candidate, 0, len(fonts)*(len(f.config.Scales)+1))
	for _, name := range fonts {
		cands = append(cands, Candidate{Font: name, Scale: 1.0})
	}
	for _, scale := range f.config.Scales {
		for _, name := range fonts {
			cands = append(cands, Candidate{Font: name, Scale: scale})
		}
	}
	return cands
}

// FirstFit returns the first candidate whose wrapped text fits the box
func FirstFit(cands []Candidate, text string, box Box, measure Measurer) (document.FitResult, bool) {
	if box.Width <= 0 || box.Height <= 0 || box.BaseSize <= 0 {
		return document.FitResult{}, false
	}
	lineHeight := box.LineHeight
	if lineHeight <= 0 {
		lineHeight = 1.2
	}

	for _, c := range cands {
		size := box.BaseSize * c.Scale
		name := c.measureName()
		lines := Wrap(text, name, size, box.Width, measure)
		if float64(len(lines))*size*lineHeight > box.Height {
			continue
		}
		if !linesFit(lines, name, size, box.Width, measure) {
			continue
		}
		return document.FitResult{
			Font:     c.Font,
			FontPath: c.Path,
			Size:     size,
			Scale:    c.Scale,
			Lines:    lines,
		}, true
	}
	return document.FitResult{}, false
}

// Drawable drops core fonts when text has runes outside their encoding
func Drawable(cands []Candidate, text string) []Candidate {
	if CoreEncodable(text) {
		return cands
	}
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Path == "" && font.IsCoreFont(c.Font) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// CoreEncodable reports whether the standard PDF fonts can draw every rune
// of text. They are limited to WinAnsiEncoding.
func CoreEncodable(text string) bool {
	for _, r := range text {
		if r == '\n' || r == '\t' {
			continue
		}
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return false
		}
	}
	return true
}

func linesFit(lines []string, name string, size, width float64, measure Measurer) bool {
	const epsilon = 1e-6
	for _, l := range lines {
		if measure.Width(l, name, size) > width+epsilon {
			return false
		}
	}
	return true
}

// Fit places req.Text. Core fonts are skipped for text they cannot encode;
// CJK targets and such text get one attempt with the resolved CJK font.
// When nothing fits it returns an ErrFitFailure error.
func (f *Fitter) Fit(req Request) (document.FitResult, error) {
	box := Box{
		Width:      f.AllowedWidth(req.Rect, req.Page),
		Height:     f.AllowedHeight(req.Gap),
		BaseSize:   f.baseline(req.Rect, req.SpanSize),
		LineHeight: f.config.LineHeight,
	}

	if strings.TrimSpace(req.Text) == "" {
		return document.FitResult{}, document.NewErrorWithDetails(document.ErrFitFailure, "nothing to place", "blank text", nil)
	}

	if res, ok := FirstFit(Drawable(f.Candidates(req.Target), req.Text), req.Text, box, f.measure); ok {
		return res, nil
	}

	if language.IsCJK(req.Target) || !CoreEncodable(req.Text) {
		if path, ok := f.resolver.Resolve(RoleCJK); ok {
			external := []Candidate{{Font: FontName(path), Path: path, Scale: 1.0}}
			if res, ok := FirstFit(external, req.Text, box, f.measure); ok {
				logger.Debug("placed with external font",
					logger.String("font", res.Font),
					logger.Float64("size", res.Size))
				return res, nil
			}
		}
	}

	return document.FitResult{}, document.NewErrorWithDetails(document.ErrFitFailure, "text does not fit",
		boxDetails(box), nil)
}

func boxDetails(b Box) string {
	return fmt.Sprintf("box %.1fx%.1f at base size %.1f", b.Width, b.Height, b.BaseSize)
}
