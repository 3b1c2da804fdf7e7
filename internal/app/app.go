// Package app builds the translation pipeline from configuration and runs
// it against PDF files. The CLI and the job server share it.
package app

import (
	"context"
	"path/filepath"
	"strings"

	"layout-translator/internal/config"
	"layout-translator/internal/dispatch"
	"layout-translator/internal/document"
	"layout-translator/internal/extract"
	"layout-translator/internal/fit"
	"layout-translator/internal/langdetect"
	"layout-translator/internal/language"
	"layout-translator/internal/logger"
	"layout-translator/internal/pdf"
	"layout-translator/internal/reconstruct"
	"layout-translator/internal/redact"
	"layout-translator/internal/translator"
)

// App owns the long-lived components. It is safe for concurrent use:
// every Translate call opens its own backend.
type App struct {
	config   *config.Config
	cache    *translator.Cache
	fonts    *fit.FontResolver
	pipeline *reconstruct.Pipeline
	// text translates plain text, always in smart-batch mode
	text *dispatch.Dispatcher
}

// New builds the provider named in cfg and wires the pipeline around it
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	t, err := translator.NewRegistry().New(ctx, cfg.Provider.Kind, translator.ProviderConfig{
		URL:       cfg.Provider.URL,
		APIKey:    cfg.Provider.APIKey,
		Model:     cfg.Provider.Model,
		Timeout:   cfg.Provider.Timeout,
		NLLBCodes: cfg.Provider.NLLBCodes,
	})
	if err != nil {
		return nil, err
	}
	return NewWithTranslator(cfg, t)
}

// NewWithTranslator wires the pipeline around an existing provider
func NewWithTranslator(cfg *config.Config, t translator.Translator) (*App, error) {
	var cache *translator.Cache
	if strings.TrimSpace(cfg.Dispatch.CachePath) != "" {
		cache = translator.NewCache(cfg.Dispatch.CachePath)
		if err := cache.Load(); err != nil {
			return nil, err
		}
		logger.Info("translation cache loaded",
			logger.String("path", cache.Path()),
			logger.Int("entries", cache.Size()))
	}

	fonts := fit.NewFontResolver(map[fit.Role][]string{
		fit.RoleCJK: cfg.Fit.CJKFontPaths,
	})

	textConfig := dispatchConfig(cfg, cache)
	textConfig.Mode = dispatch.ModeSmartBatch

	a := &App{
		config: cfg,
		cache:  cache,
		fonts:  fonts,
		text:   dispatch.New(t, textConfig),
		pipeline: &reconstruct.Pipeline{
			Extractor:  extract.New(extract.Config{RowTolerance: cfg.Extract.RowTolerance}),
			Detector:   langdetect.New(detectConfig(cfg.Detect)),
			Dispatcher: dispatch.New(t, dispatchConfig(cfg, cache)),
			Reconstructor: reconstruct.New(
				redact.New(redactConfig(cfg.Redact)),
				fit.New(fitConfig(cfg.Fit), fonts, fit.NewMeasurer()),
			),
		},
	}
	return a, nil
}

// Config returns the configuration the app was built from
func (a *App) Config() *config.Config {
	return a.config
}

// Pipeline exposes the wired pipeline for non-PDF backends
func (a *App) Pipeline() *reconstruct.Pipeline {
	return a.pipeline
}

// Translate runs job against the PDF at input. The translation cache is
// flushed after every successful run.
func (a *App) Translate(ctx context.Context, input string, job reconstruct.Job) (*reconstruct.Report, error) {
	if job.Timeout <= 0 {
		job.Timeout = a.config.JobTimeout
	}
	fallback, _ := a.fonts.Resolve(fit.RoleCJK)
	b, err := pdf.Open(input, pdf.Config{
		Optimize:     true,
		FallbackFont: fallback,
	})
	if err != nil {
		if job.OnStatus != nil {
			job.OnStatus(reconstruct.Status{Phase: reconstruct.PhaseError, Message: err.Error()})
		}
		return nil, err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			logger.Warn("failed to clean up work directory", logger.Err(cerr))
		}
	}()

	logger.Info("translating document",
		logger.String("input", filepath.Base(input)),
		logger.String("target", job.TargetLang),
		logger.Int("pages", b.PageCount()))

	report, err := a.pipeline.Run(ctx, b, job)
	if err != nil {
		return nil, err
	}
	if report.Placed > 0 {
		report.Notes = append(report.Notes, pdf.CoveredTextNote)
	}
	if err := a.FlushCache(); err != nil {
		logger.Warn("failed to save translation cache", logger.Err(err))
	}
	return report, nil
}

// TranslateText translates plain text line by line. Lines of at least the
// short threshold are grouped into batch requests; blank lines are kept.
// An empty or "auto" sourceLang is detected from the text. It returns the
// translation and the source language used.
func (a *App) TranslateText(ctx context.Context, text, sourceLang, targetLang string) (string, string, error) {
	target := language.Normalize(targetLang)
	if target == "" {
		return "", "", document.NewErrorWithDetails(document.ErrInvalidInput, "unsupported target language", targetLang, nil)
	}
	if strings.TrimSpace(text) == "" {
		return "", "", document.NewError(document.ErrInvalidInput, "text is empty", nil)
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	source := strings.TrimSpace(sourceLang)
	if source == "" || strings.EqualFold(source, reconstruct.AutoDetect) {
		source = a.detectText(lines)
	} else if code := language.Normalize(source); code != "" {
		source = code
	} else {
		return "", "", document.NewErrorWithDetails(document.ErrInvalidInput, "unsupported source language", sourceLang, nil)
	}

	out, stats := a.text.TranslateBatch(ctx, lines, source, target, nil)
	logger.Info("text translated",
		logger.String("source", source),
		logger.String("target", target),
		logger.Int("lines", len(lines)),
		logger.Int("groups", stats.Groups),
		logger.Int("degraded", stats.Degraded))
	if err := a.FlushCache(); err != nil {
		logger.Warn("failed to save translation cache", logger.Err(err))
	}
	return strings.Join(out, "\n"), source, nil
}

func (a *App) detectText(lines []string) string {
	res := a.pipeline.Detector.Detect(lines)
	if res.Code != language.Unspecified {
		return res.Code
	}
	return a.config.Detect.DefaultLanguage
}

// FlushCache persists the translation cache, if one is configured
func (a *App) FlushCache() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Save()
}

// Close flushes the cache
func (a *App) Close() error {
	return a.FlushCache()
}

func dispatchConfig(cfg *config.Config, cache *translator.Cache) dispatch.Config {
	return dispatch.Config{
		Mode:           dispatch.Mode(cfg.Dispatch.Mode),
		Workers:        cfg.Dispatch.Workers,
		ShortThreshold: cfg.Dispatch.ShortThreshold,
		MaxGroupItems:  cfg.Dispatch.MaxGroupItems,
		MaxGroupChars:  cfg.Dispatch.MaxGroupChars,
		MaxRetries:     cfg.Provider.MaxRetries,
		CallTimeout:    cfg.Provider.Timeout,
		RetryBaseDelay: cfg.Provider.RetryBaseDelay,
		Cache:          cache,
	}
}

func detectConfig(c config.DetectConfig) langdetect.Config {
	return langdetect.Config{
		SampleSize:      c.SampleSize,
		Threshold:       c.Threshold,
		DefaultLanguage: c.DefaultLanguage,
		Statistical:     c.Statistical,
	}
}

func redactConfig(c config.RedactConfig) redact.Config {
	return redact.Config{
		Margins: redact.Margins{
			Left:   c.MarginLeft,
			Top:    c.MarginTop,
			Right:  c.MarginRight,
			Bottom: c.MarginBottom,
		},
		FillColor: c.FillColor.Hex(),
	}
}

func fitConfig(c config.FitConfig) fit.Config {
	return fit.Config{
		MinFontSize:   c.MinFontSize,
		MaxFontSize:   c.MaxFontSize,
		GapTight:      c.GapTight,
		GapLoose:      c.GapLoose,
		HeightCap:     c.HeightCap,
		MaxWidthRatio: c.MaxWidthRatio,
		MaxWidth:      c.MaxWidth,
		LineHeight:    c.LineHeight,
		Scales:        c.Scales,
		LatinFonts:    c.LatinFonts,
		CJKFonts:      c.CJKFonts,
	}
}
