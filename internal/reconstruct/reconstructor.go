// Package reconstruct rebuilds documents with translated text: original
// glyphs are cleared page by page and the translations are placed in their
// slots.
package reconstruct

import (
	"sort"

	"layout-translator/internal/document"
	"layout-translator/internal/fit"
	"layout-translator/internal/logger"
	"layout-translator/internal/redact"
)

// Result summarises one reconstruction
type Result struct {
	Pages       int                       `json:"pages"`
	Placed      int                       `json:"placed"`
	FitFailures int                       `json:"fit_failures"`
	Spans       []document.TranslatedSpan `json:"-"`
}

// Reconstructor redacts, copies and refills pages
type Reconstructor struct {
	redactor *redact.Redactor
	fitter   *fit.Fitter
}

// New creates a Reconstructor
func New(redactor *redact.Redactor, fitter *fit.Fitter) *Reconstructor {
	return &Reconstructor{redactor: redactor, fitter: fitter}
}

// Reconstruct copies every source page of b into a new output. Pages with
// spans are redacted and materialized before the copy, then each span's
// translation is fitted and inserted in reading order. Spans that cannot be
// fitted are skipped and counted; their background stays cleared.
//
// Only persistence failures are returned as errors.
func (r *Reconstructor) Reconstruct(b document.Backend, spans []document.TranslatedSpan, targetLang string) (*document.Output, Result, error) {
	byPage := groupByPage(spans, b.PageCount())
	out := document.NewOutput(b)
	result := Result{Spans: make([]document.TranslatedSpan, 0, len(spans))}

	for i := 0; i < b.PageCount(); i++ {
		pageSpans := byPage[i]

		h, err := document.OpenPage(b, i)
		if err != nil {
			return nil, result, err
		}
		if len(pageSpans) > 0 {
			if _, err := r.redactor.Redact(h, sourceSpans(pageSpans)); err != nil {
				return nil, result, err
			}
		}
		if err := h.Materialize(); err != nil {
			return nil, result, err
		}
		page, err := out.CopyPage(h)
		if err != nil {
			return nil, result, err
		}

		for j := range pageSpans {
			span := &pageSpans[j]
			box, ok := r.place(span, pageSpans[j+1:], h.Size(), targetLang)
			if !ok {
				result.FitFailures++
				result.Spans = append(result.Spans, *span)
				continue
			}
			if err := page.InsertTextBox(box); err != nil {
				return nil, result, err
			}
			span.FitOK = true
			result.Placed++
			result.Spans = append(result.Spans, *span)
		}
		result.Pages++
	}

	logger.Info("document reconstructed",
		logger.Int("pages", result.Pages),
		logger.Int("placed", result.Placed),
		logger.Int("fitFailures", result.FitFailures))
	return out, result, nil
}

// place fits one span. following are the spans after it on the same page in
// reading order.
func (r *Reconstructor) place(span *document.TranslatedSpan, following []document.TranslatedSpan, page document.Size, targetLang string) (document.TextBox, bool) {
	gap := Gap(span.Rect, following, page)
	res, err := r.fitter.Fit(fit.Request{
		Text:     span.TranslatedText,
		Rect:     span.Rect,
		Page:     page,
		SpanSize: span.FontSize,
		Gap:      gap,
		Target:   targetLang,
	})
	if err != nil {
		logger.Warn("translated text skipped",
			logger.Int("page", span.PageIndex+1),
			logger.Int("order", span.ReadingOrder),
			logger.Float64("gap", gap),
			logger.Err(err))
		return document.TextBox{}, false
	}

	height := float64(len(res.Lines)) * res.Size * r.fitter.Config().LineHeight
	width := r.fitter.AllowedWidth(span.Rect, page)
	return document.TextBox{
		Rect: document.Rect{
			X0: span.Rect.X0,
			Y0: span.Rect.Y0,
			X1: span.Rect.X0 + width,
			Y1: span.Rect.Y0 + height,
		},
		Lines:    res.Lines,
		Font:     res.Font,
		FontPath: res.FontPath,
		Size:     res.Size,
		Color:    span.Color,
	}, true
}

// Gap is the distance from the top of rect to the first following span that
// starts lower on the page, or to the page bottom
func Gap(rect document.Rect, following []document.TranslatedSpan, page document.Size) float64 {
	for _, next := range following {
		if next.Rect.Y0 > rect.Y0 {
			return next.Rect.Y0 - rect.Y0
		}
	}
	return page.Height - rect.Y0
}

// groupByPage buckets spans by page in reading order. Spans on pages the
// backend does not have are dropped.
func groupByPage(spans []document.TranslatedSpan, pageCount int) map[int][]document.TranslatedSpan {
	byPage := make(map[int][]document.TranslatedSpan)
	for _, s := range spans {
		if s.PageIndex < 0 || s.PageIndex >= pageCount {
			logger.Warn("span outside document dropped",
				logger.Int("page", s.PageIndex+1),
				logger.Int("pageCount", pageCount))
			continue
		}
		byPage[s.PageIndex] = append(byPage[s.PageIndex], s)
	}
	for _, list := range byPage {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ReadingOrder < list[j].ReadingOrder
		})
	}
	return byPage
}

func sourceSpans(spans []document.TranslatedSpan) []document.TextSpan {
	out := make([]document.TextSpan, len(spans))
	for i, s := range spans {
		out[i] = s.TextSpan
	}
	return out
}
