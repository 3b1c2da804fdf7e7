// Package extract turns positioned tokens into line-level text spans in
// reading order.
package extract

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"layout-translator/internal/document"
	"layout-translator/internal/logger"
)

// DefaultRowTolerance is the maximum vertical origin difference, in points,
// for two tokens to share a row
const DefaultRowTolerance = 0.1

// Config holds extractor settings
type Config struct {
	// RowTolerance is compared against the row's anchor origin
	RowTolerance float64
}

// Extractor groups tokens into rows
type Extractor struct {
	config Config
}

// New creates an Extractor. A zero RowTolerance uses DefaultRowTolerance.
func New(cfg Config) *Extractor {
	if cfg.RowTolerance <= 0 {
		cfg.RowTolerance = DefaultRowTolerance
	}
	return &Extractor{config: cfg}
}

type row struct {
	anchor float64
	tokens []document.Token
}

// ExtractPage builds the spans of one page. Blank tokens are dropped and a
// page without tokens yields no spans.
func (e *Extractor) ExtractPage(page int, tokens []document.Token) []document.TextSpan {
	cleaned := make([]document.Token, 0, len(tokens))
	for _, t := range tokens {
		text := strings.TrimSpace(norm.NFC.String(t.Text))
		if text == "" {
			continue
		}
		t.Text = text
		cleaned = append(cleaned, t)
	}
	if len(cleaned) == 0 {
		return nil
	}

	sort.SliceStable(cleaned, func(i, j int) bool {
		if cleaned[i].Rect.Y0 != cleaned[j].Rect.Y0 {
			return cleaned[i].Rect.Y0 < cleaned[j].Rect.Y0
		}
		return cleaned[i].Rect.X0 < cleaned[j].Rect.X0
	})

	var rows []*row
	var current *row
	for _, t := range cleaned {
		if current != nil && t.Rect.Y0-current.anchor < e.config.RowTolerance {
			current.tokens = append(current.tokens, t)
			continue
		}
		current = &row{anchor: t.Rect.Y0, tokens: []document.Token{t}}
		rows = append(rows, current)
	}

	spans := make([]document.TextSpan, 0, len(rows))
	for _, r := range rows {
		span, ok := buildSpan(page, r)
		if !ok {
			continue
		}
		span.ReadingOrder = len(spans)
		spans = append(spans, span)
	}
	return spans
}

func buildSpan(page int, r *row) (document.TextSpan, bool) {
	sort.SliceStable(r.tokens, func(i, j int) bool {
		return r.tokens[i].Rect.X0 < r.tokens[j].Rect.X0
	})

	parts := make([]string, len(r.tokens))
	var rect document.Rect
	var size float64
	for i, t := range r.tokens {
		parts[i] = t.Text
		rect = rect.Union(t.Rect)
		if t.FontSize > size {
			size = t.FontSize
		}
	}
	if rect.Area() <= 0 {
		return document.TextSpan{}, false
	}

	return document.TextSpan{
		PageIndex:  page,
		Rect:       rect,
		FontSize:   size,
		Color:      r.tokens[0].Color,
		SourceText: strings.Join(parts, " "),
	}, true
}

// Extract builds the spans of every page of src, ordered by page and then
// reading order
func (e *Extractor) Extract(src document.Source) ([]document.TextSpan, error) {
	var spans []document.TextSpan
	for i := 0; i < src.PageCount(); i++ {
		tokens, err := src.Tokens(i)
		if err != nil {
			return nil, document.NewErrorWithPage(document.ErrInvalidInput, "failed to read page tokens", i+1, err)
		}
		pageSpans := e.ExtractPage(i, tokens)
		logger.Debug("page extracted",
			logger.Int("page", i+1),
			logger.Int("tokens", len(tokens)),
			logger.Int("spans", len(pageSpans)))
		spans = append(spans, pageSpans...)
	}
	return spans, nil
}
