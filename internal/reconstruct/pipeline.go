package reconstruct

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"layout-translator/internal/dispatch"
	"layout-translator/internal/document"
	"layout-translator/internal/extract"
	"layout-translator/internal/langdetect"
	"layout-translator/internal/language"
	"layout-translator/internal/logger"
)

// Phase is a step of a pipeline run
type Phase string

const (
	PhaseExtracting     Phase = "extracting"
	PhaseDetecting      Phase = "detecting"
	PhaseTranslating    Phase = "translating"
	PhaseReconstructing Phase = "reconstructing"
	PhaseSaving         Phase = "saving"
	PhaseComplete       Phase = "complete"
	PhaseError          Phase = "error"
)

// Status is reported to the caller as a run advances. Progress is 0-100.
type Status struct {
	Phase    Phase  `json:"phase"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// StatusCallback receives status updates
type StatusCallback func(Status)

// AutoDetect asks the pipeline to detect the source language
const AutoDetect = "auto"

// Job describes one document translation
type Job struct {
	// SourceLang is a language code, or empty/AutoDetect to detect it
	SourceLang string
	TargetLang string
	OutputPath string
	OnStatus   StatusCallback
	// Timeout bounds the translation phase; zero means no limit. Spans
	// still pending when it expires keep their source text.
	Timeout time.Duration
}

// Report is the outcome of a run
type Report struct {
	SourceLang  string         `json:"source_lang"`
	TargetLang  string         `json:"target_lang"`
	Pages       int            `json:"pages"`
	Spans       int            `json:"spans"`
	Placed      int            `json:"placed"`
	FitFailures int            `json:"fit_failures"`
	Dispatch    dispatch.Stats `json:"dispatch"`
	OutputPath  string         `json:"output_path"`
	Duration    time.Duration  `json:"duration"`
	// Notes are caveats about the output the backend reported
	Notes []string `json:"notes,omitempty"`
}

// Pipeline wires extraction, detection, dispatch and reconstruction
type Pipeline struct {
	Extractor     *extract.Extractor
	Detector      *langdetect.Detector
	Dispatcher    *dispatch.Dispatcher
	Reconstructor *Reconstructor
}

// Run translates the document behind b into job.OutputPath.
//
// ctx bounds translation only: once reconstruction starts it runs to
// completion. The output is written next to the target and renamed into
// place, so a failed run never leaves a partial file behind.
func (p *Pipeline) Run(ctx context.Context, b document.Backend, job Job) (*Report, error) {
	start := time.Now()
	notify := job.OnStatus
	if notify == nil {
		notify = func(Status) {}
	}
	fail := func(err error) (*Report, error) {
		notify(Status{Phase: PhaseError, Progress: 0, Message: err.Error()})
		return nil, err
	}

	target := language.Normalize(job.TargetLang)
	if target == "" {
		return fail(document.NewErrorWithDetails(document.ErrInvalidInput, "unsupported target language", job.TargetLang, nil))
	}
	if job.OutputPath == "" {
		return fail(document.NewError(document.ErrInvalidInput, "output path is required", nil))
	}

	notify(Status{Phase: PhaseExtracting, Progress: 5, Message: "extracting text"})
	spans, err := p.Extractor.Extract(b)
	if err != nil {
		return fail(err)
	}

	report := &Report{
		TargetLang: target,
		Pages:      b.PageCount(),
		Spans:      len(spans),
		OutputPath: job.OutputPath,
	}

	var translated []document.TranslatedSpan
	if len(spans) == 0 {
		logger.Info("no text found, passing document through",
			logger.Int("pages", b.PageCount()),
			logger.String("code", string(document.ErrExtractionEmpty)))
		report.SourceLang = sourceOrDefault(job.SourceLang)
	} else {
		notify(Status{Phase: PhaseDetecting, Progress: 10, Message: "detecting source language"})
		report.SourceLang = p.sourceLanguage(job.SourceLang, spans)

		notify(Status{Phase: PhaseTranslating, Progress: 10, Message: fmt.Sprintf("translating %d spans", len(spans))})
		tctx := ctx
		if job.Timeout > 0 {
			var cancel context.CancelFunc
			tctx, cancel = context.WithTimeout(ctx, job.Timeout)
			defer cancel()
		}
		var stats dispatch.Stats
		translated, stats = p.Dispatcher.TranslateSpans(tctx, spans, report.SourceLang, target, func(completed, total int) {
			notify(Status{
				Phase:    PhaseTranslating,
				Progress: translationProgress(completed, total),
				Message:  fmt.Sprintf("translated %d/%d", completed, total),
			})
		})
		report.Dispatch = stats
	}

	notify(Status{Phase: PhaseReconstructing, Progress: 90, Message: "rebuilding pages"})
	out, result, err := p.Reconstructor.Reconstruct(b, translated, target)
	if err != nil {
		return fail(err)
	}
	report.Placed = result.Placed
	report.FitFailures = result.FitFailures

	notify(Status{Phase: PhaseSaving, Progress: 95, Message: "saving output"})
	if err := saveAtomic(out, job.OutputPath); err != nil {
		return fail(err)
	}

	report.Duration = time.Since(start)
	notify(Status{Phase: PhaseComplete, Progress: 100, Message: "done"})
	logger.Info("document translated",
		logger.String("source", report.SourceLang),
		logger.String("target", report.TargetLang),
		logger.Int("spans", report.Spans),
		logger.Int("degraded", report.Dispatch.Degraded),
		logger.Int("fitFailures", report.FitFailures),
		logger.Duration("duration", report.Duration))
	return report, nil
}

func (p *Pipeline) sourceLanguage(requested string, spans []document.TextSpan) string {
	requested = strings.TrimSpace(requested)
	if requested != "" && !strings.EqualFold(requested, AutoDetect) {
		if code := language.Normalize(requested); code != "" {
			return code
		}
		logger.Warn("unknown source language, detecting instead", logger.String("language", requested))
	}
	return p.Detector.DetectSpans(spans, "")
}

func sourceOrDefault(requested string) string {
	if code := language.Normalize(requested); code != "" {
		return code
	}
	return language.Unspecified
}

// translationProgress maps dispatch progress onto 10-90
func translationProgress(completed, total int) int {
	if total <= 0 {
		return 10
	}
	progress := 10 + completed*80/total
	if progress > 90 {
		progress = 90
	}
	return progress
}

func saveAtomic(out *document.Output, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return document.NewError(document.ErrPersistence, "failed to create output directory", err)
		}
	}
	tmp := path + ".tmp"
	if err := out.Save(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return document.NewError(document.ErrPersistence, "failed to move output into place", err)
	}
	return nil
}
