package document

// Token is a raw positioned piece of text as reported by a backend
type Token struct {
	Text     string  `json:"text"`
	Rect     Rect    `json:"rect"`
	FontSize float64 `json:"font_size"`
	Color    Color   `json:"color"`
}

// TextSpan is a line-level unit of original text.
// Spans on a page are totally ordered by ReadingOrder.
type TextSpan struct {
	PageIndex    int     `json:"page_index"`
	Rect         Rect    `json:"rect"`
	FontSize     float64 `json:"font_size"`
	Color        Color   `json:"color"`
	ReadingOrder int     `json:"reading_order"`
	SourceText   string  `json:"source_text"`
}

// TranslatedSpan pairs a span with its translation.
// TranslatedText falls back to SourceText when translation failed; FitOK is
// set by the reconstructor once the text has been placed.
type TranslatedSpan struct {
	TextSpan
	TranslatedText string `json:"translated_text"`
	FitOK          bool   `json:"fit_ok"`
}

// NewTranslatedSpans builds translated spans with translations matched by
// index. Missing or blank translations fall back to the source text.
func NewTranslatedSpans(spans []TextSpan, translations []string) []TranslatedSpan {
	out := make([]TranslatedSpan, len(spans))
	for i, s := range spans {
		text := s.SourceText
		if i < len(translations) && translations[i] != "" {
			text = translations[i]
		}
		out[i] = TranslatedSpan{TextSpan: s, TranslatedText: text}
	}
	return out
}

// Texts returns the source text of every span, in order
func Texts(spans []TextSpan) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.SourceText
	}
	return out
}

// FitResult describes how a translated text was placed
type FitResult struct {
	Font     string  `json:"font"`
	FontPath string  `json:"font_path,omitempty"`
	Size     float64 `json:"size"`
	// Scale is the fraction of the baseline size that was used
	Scale float64  `json:"scale"`
	Lines []string `json:"lines,omitempty"`
}

// TextBox is a request to draw wrapped lines inside a rectangle
type TextBox struct {
	Rect     Rect
	Lines    []string
	Font     string
	FontPath string
	Size     float64
	Color    Color
}
