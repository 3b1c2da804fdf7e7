package pdf

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	lpdf "github.com/ledongthuc/pdf"

	"layout-translator/internal/document"
)

const (
	// ascent and descent split the font size around the baseline
	ascent  = 0.8
	descent = 0.2

	// baselineTolerance is the largest baseline shift within one word
	baselineTolerance = 0.5
	// wordGap is the horizontal jump, in ems, that starts a new word
	wordGap = 0.15
)

// glyphRun accumulates consecutive glyphs of one word
type glyphRun struct {
	text strings.Builder
	x0   float64
	x1   float64
	y    float64
	size float64
}

func newRun(t lpdf.Text) *glyphRun {
	r := &glyphRun{x0: t.X, x1: t.X, y: t.Y, size: t.FontSize}
	r.add(t)
	return r
}

func (r *glyphRun) add(t lpdf.Text) {
	r.text.WriteString(t.S)
	w := t.W
	if w <= 0 {
		w = 0.5 * t.FontSize * float64(utf8.RuneCountInString(t.S))
	}
	r.x1 = math.Max(r.x1, t.X+w)
	r.size = math.Max(r.size, t.FontSize)
}

func (r *glyphRun) continues(t lpdf.Text) bool {
	if math.Abs(t.Y-r.y) > baselineTolerance {
		return false
	}
	gap := t.X - r.x1
	return gap > -wordGap*r.size && gap < wordGap*r.size
}

// token converts the run to top-left page coordinates
func (r *glyphRun) token(pageHeight float64) document.Token {
	return document.Token{
		Text: strings.TrimSpace(r.text.String()),
		Rect: document.Rect{
			X0: r.x0,
			Y0: pageHeight - r.y - ascent*r.size,
			X1: r.x1,
			Y1: pageHeight - r.y + descent*r.size,
		},
		FontSize: r.size,
		Color:    document.Black,
	}
}

// mergeGlyphs turns the glyph stream of a page into word tokens. Blank
// glyphs and horizontal jumps end a word.
func mergeGlyphs(texts []lpdf.Text, pageHeight float64) []document.Token {
	var tokens []document.Token
	var cur *glyphRun

	flush := func() {
		if cur != nil && strings.TrimSpace(cur.text.String()) != "" {
			tokens = append(tokens, cur.token(pageHeight))
		}
		cur = nil
	}

	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			flush()
			continue
		}
		if cur != nil && cur.continues(t) {
			cur.add(t)
		} else {
			flush()
			cur = newRun(t)
		}
		if strings.HasSuffix(t.S, " ") {
			flush()
		}
	}
	flush()
	return tokens
}

// readTokens extracts the word tokens of a 0-based page. Broken content
// streams make the reader panic; that is reported as an error.
func readTokens(r *lpdf.Reader, index int, pageHeight float64) (tokens []document.Token, err error) {
	page := r.Page(index + 1)
	if page.V.IsNull() {
		return nil, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			tokens = nil
			err = fmt.Errorf("malformed content stream: %v", rec)
		}
	}()

	return mergeGlyphs(page.Content().Text, pageHeight), nil
}
