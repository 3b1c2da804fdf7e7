package fit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/golang/freetype/truetype"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"layout-translator/internal/logger"
)

// Measurer reports the advance width of text in points.
// font is a core font name or the path of a font file.
type Measurer interface {
	Width(text, font string, size float64) float64
}

// EmMeasurer approximates widths in ems: CJK runes are 1em, blanks 0.25em
// and everything else 0.5em.
type EmMeasurer struct{}

// Width implements Measurer
func (EmMeasurer) Width(text, _ string, size float64) float64 {
	width := 0.0
	for _, r := range text {
		width += runeEm(r) * size
	}
	return width
}

func runeEm(r rune) float64 {
	switch {
	case isCJK(r):
		return 1.0
	case r == ' ' || r == '\t':
		return 0.25
	default:
		return 0.5
	}
}

// isCJK reports runes that may be broken between when wrapping
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r) ||
		(r >= 0x3000 && r <= 0x303F) || // CJK punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // full-width forms
}

// CoreMeasurer uses the AFM metrics of the 14 standard PDF fonts.
// Runes outside Latin-1 have no core glyph and are measured in ems.
type CoreMeasurer struct{}

// coreScale is the integer size passed to pdfcpu; widths scale linearly
const coreScale = 1000

// Width implements Measurer
func (CoreMeasurer) Width(text, fontName string, size float64) float64 {
	if !font.IsCoreFont(fontName) {
		return EmMeasurer{}.Width(text, fontName, size)
	}

	var latin strings.Builder
	width := 0.0
	for _, r := range text {
		if r > 0xFF {
			width += runeEm(r) * size
			continue
		}
		latin.WriteRune(r)
	}
	if latin.Len() > 0 {
		width += font.TextWidth(latin.String(), fontName, coreScale) * size / coreScale
	}
	return width
}

// TrueTypeMeasurer measures with the glyph advances and kerning of font
// files. Parsed fonts are cached by path.
type TrueTypeMeasurer struct {
	mu    sync.Mutex
	fonts map[string]*truetype.Font
}

// NewTrueTypeMeasurer creates an empty measurer
func NewTrueTypeMeasurer() *TrueTypeMeasurer {
	return &TrueTypeMeasurer{fonts: make(map[string]*truetype.Font)}
}

// Load parses the font at path, or returns the cached copy
func (m *TrueTypeMeasurer) Load(path string) (*truetype.Font, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.fonts[path]; ok {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, err
	}
	m.fonts[path] = f
	return f, nil
}

// Width implements Measurer. Unreadable fonts fall back to ems and glyphs
// missing from the font are measured as 1em.
func (m *TrueTypeMeasurer) Width(text, path string, size float64) float64 {
	f, err := m.Load(path)
	if err != nil {
		logger.Debug("font file unusable, approximating",
			logger.String("path", path),
			logger.Err(err))
		return EmMeasurer{}.Width(text, path, size)
	}

	face := truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: xfont.HintingNone,
	})
	defer face.Close()

	var width fixed.Int26_6
	prev := rune(-1)
	for _, r := range text {
		if prev >= 0 {
			width += face.Kern(prev, r)
		}
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			adv = fixed.Int26_6(size * 64)
		}
		width += adv
		prev = r
	}
	return float64(width) / 64
}

// MultiMeasurer routes font files to truetype metrics, core fonts to AFM
// metrics and anything else to the em approximation.
type MultiMeasurer struct {
	TrueType *TrueTypeMeasurer
}

// NewMeasurer returns the default Measurer
func NewMeasurer() *MultiMeasurer {
	return &MultiMeasurer{TrueType: NewTrueTypeMeasurer()}
}

// Width implements Measurer
func (m *MultiMeasurer) Width(text, fontName string, size float64) float64 {
	switch {
	case IsFontFile(fontName):
		return m.TrueType.Width(text, fontName, size)
	case font.IsCoreFont(fontName):
		return CoreMeasurer{}.Width(text, fontName, size)
	default:
		return EmMeasurer{}.Width(text, fontName, size)
	}
}

// IsFontFile reports whether name looks like a font file path
func IsFontFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttf", ".ttc", ".otf":
		return true
	}
	return false
}

// FontName derives the display name of a font file, e.g. "wqy-microhei"
func FontName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
