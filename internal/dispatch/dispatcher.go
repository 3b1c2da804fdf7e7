// Package dispatch sends text items to a translation provider, one by one or
// in separator-joined groups, and always returns one result per item.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"layout-translator/internal/document"
	"layout-translator/internal/logger"
	"layout-translator/internal/translator"
)

// Mode selects the dispatch strategy
type Mode string

const (
	// ModeIndividual translates every item in its own request
	ModeIndividual Mode = "individual"
	// ModeSmartBatch sends short items individually and groups long ones
	ModeSmartBatch Mode = "smart"
)

const (
	DefaultWorkers        = 10
	DefaultShortThreshold = 30
	DefaultMaxGroupItems  = 5
	DefaultMaxGroupChars  = 900
	DefaultMaxRetries     = 3
	DefaultCallTimeout    = 30 * time.Second
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay  = 5 * time.Second
)

// ProgressCallback reports the number of finished items
type ProgressCallback func(completed, total int)

// Config holds dispatcher settings. Zero values take the defaults.
type Config struct {
	Mode           Mode
	Workers        int
	ShortThreshold int
	MaxGroupItems  int
	MaxGroupChars  int
	// MaxRetries is the number of attempts per request
	MaxRetries     int
	CallTimeout    time.Duration
	RetryBaseDelay time.Duration
	MaxRetryDelay  time.Duration
	// Cache, when set, is consulted before dispatch and filled after success
	Cache *translator.Cache
}

// Stats summarises one dispatch call
type Stats struct {
	Total       int `json:"total"`
	Translated  int `json:"translated"`
	Cached      int `json:"cached"`
	Skipped     int `json:"skipped"`
	Degraded    int `json:"degraded"`
	Groups      int `json:"groups"`
	Batched     int `json:"batched"`
	SplitRepair int `json:"split_repair"`
}

// Dispatcher fans items out to a Translator
type Dispatcher struct {
	translator translator.Translator
	config     Config
}

// New creates a Dispatcher, applying defaults to zero values
func New(t translator.Translator, cfg Config) *Dispatcher {
	if cfg.Mode == "" {
		cfg.Mode = ModeIndividual
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ShortThreshold <= 0 {
		cfg.ShortThreshold = DefaultShortThreshold
	}
	if cfg.MaxGroupItems <= 0 {
		cfg.MaxGroupItems = DefaultMaxGroupItems
	}
	if cfg.MaxGroupChars <= 0 {
		cfg.MaxGroupChars = DefaultMaxGroupChars
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = DefaultMaxRetryDelay
	}
	return &Dispatcher{translator: t, config: cfg}
}

// Config returns the effective configuration
func (d *Dispatcher) Config() Config {
	return d.config
}

// run holds the state of one TranslateBatch call
type run struct {
	texts      []string
	results    []string
	sourceLang string
	targetLang string
	progress   ProgressCallback

	mu        sync.Mutex
	completed int
	stats     Stats
}

func (r *run) finish(indices []int, degraded int, fromProvider bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed += len(indices)
	r.stats.Degraded += degraded
	if fromProvider {
		r.stats.Translated += len(indices) - degraded
	}
	if r.progress != nil {
		r.progress(r.completed, len(r.texts))
	}
}

// TranslateBatch translates texts and returns exactly one result per input,
// in input order. Items that cannot be translated keep their source text.
// Cancelling ctx stops outstanding requests; finished items keep their
// results.
func (d *Dispatcher) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string, progress ProgressCallback) ([]string, Stats) {
	r := &run{
		texts:      texts,
		results:    make([]string, len(texts)),
		sourceLang: sourceLang,
		targetLang: targetLang,
		progress:   progress,
	}
	r.stats.Total = len(texts)
	if len(texts) == 0 {
		return r.results, r.stats
	}
	copy(r.results, texts)

	pending := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			r.stats.Skipped++
			continue
		}
		pending = append(pending, i)
	}

	if d.config.Cache != nil {
		pending = d.applyCache(r, pending)
	}
	if r.stats.Skipped+r.stats.Cached > 0 {
		r.completed = r.stats.Skipped + r.stats.Cached
		if progress != nil {
			progress(r.completed, len(texts))
		}
	}

	singles, groups := d.plan(texts, pending)
	r.stats.Groups = len(groups)

	logger.Info("dispatching translations",
		logger.String("mode", string(d.config.Mode)),
		logger.Int("total", len(texts)),
		logger.Int("individual", len(singles)),
		logger.Int("groups", len(groups)),
		logger.Int("cached", r.stats.Cached))

	var g errgroup.Group
	g.SetLimit(d.config.Workers)
	for _, idx := range singles {
		g.Go(func() error {
			d.translateOne(ctx, r, idx)
			return nil
		})
	}
	for _, group := range groups {
		g.Go(func() error {
			d.translateGroup(ctx, r, group)
			return nil
		})
	}
	_ = g.Wait()

	if d.config.Cache != nil {
		d.storeCache(r, pending)
	}

	logger.Info("dispatch completed",
		logger.Int("total", r.stats.Total),
		logger.Int("translated", r.stats.Translated),
		logger.Int("degraded", r.stats.Degraded),
		logger.Int("splitRepair", r.stats.SplitRepair))
	return r.results, r.stats
}

// TranslateSpans translates span source texts and pairs them with the spans
func (d *Dispatcher) TranslateSpans(ctx context.Context, spans []document.TextSpan, sourceLang, targetLang string, progress ProgressCallback) ([]document.TranslatedSpan, Stats) {
	out, stats := d.TranslateBatch(ctx, document.Texts(spans), sourceLang, targetLang, progress)
	return document.NewTranslatedSpans(spans, out), stats
}

// plan splits pending indices into individual requests and groups
func (d *Dispatcher) plan(texts []string, pending []int) ([]int, []TranslationGroup) {
	if d.config.Mode != ModeSmartBatch {
		return pending, nil
	}

	var singles, long []int
	for _, idx := range pending {
		if utf8.RuneCountInString(texts[idx]) < d.config.ShortThreshold {
			singles = append(singles, idx)
		} else {
			long = append(long, idx)
		}
	}

	var groups []TranslationGroup
	for _, g := range BuildGroups(texts, long, d.config.MaxGroupItems, d.config.MaxGroupChars) {
		if len(g.Indices) == 1 {
			singles = append(singles, g.Indices[0])
			continue
		}
		groups = append(groups, g)
	}
	return singles, groups
}

func (d *Dispatcher) applyCache(r *run, pending []int) []int {
	texts := make([]string, len(pending))
	for i, idx := range pending {
		texts[i] = r.texts[idx]
	}
	cached, missing := d.config.Cache.Lookup(texts, r.sourceLang, r.targetLang)
	for pos, translation := range cached {
		r.results[pending[pos]] = translation
	}
	r.stats.Cached = len(cached)

	remaining := make([]int, len(missing))
	for i, pos := range missing {
		remaining[i] = pending[pos]
	}
	return remaining
}

func (d *Dispatcher) storeCache(r *run, dispatched []int) {
	for _, idx := range dispatched {
		if r.results[idx] != r.texts[idx] {
			d.config.Cache.Set(r.texts[idx], r.results[idx], r.sourceLang, r.targetLang)
		}
	}
	if err := d.config.Cache.Save(); err != nil {
		logger.Warn("failed to save translation cache", logger.Err(err))
	}
}

// translateOne writes the result for a single item
func (d *Dispatcher) translateOne(ctx context.Context, r *run, idx int) {
	text := r.texts[idx]
	out, err := d.call(ctx, func(ctx context.Context) (string, error) {
		return d.translator.Translate(ctx, text, r.sourceLang, r.targetLang)
	})
	if err != nil || strings.TrimSpace(out) == "" {
		logger.Warn("translation degraded to source text",
			logger.Int("index", idx),
			logger.Err(err))
		r.finish([]int{idx}, 1, true)
		return
	}
	r.results[idx] = strings.TrimSpace(out)
	r.finish([]int{idx}, 0, true)
}

// translateGroup sends a group as one batch request. Providers that
// reject the batch, or answer with the wrong number of results, get the
// items joined by the separator and the answer split again. When that
// fails too the items are retried one by one.
func (d *Dispatcher) translateGroup(ctx context.Context, r *run, group TranslationGroup) {
	sources := make([]string, len(group.Indices))
	for i, idx := range group.Indices {
		sources[i] = r.texts[idx]
	}

	if parts, ok := d.batch(ctx, r, sources); ok {
		r.mu.Lock()
		r.stats.Batched++
		r.mu.Unlock()
		d.storeGroup(r, group, parts)
		return
	}

	joined := strings.Join(sources, translator.Separator)
	out, err := d.call(ctx, func(ctx context.Context) (string, error) {
		return d.translator.Translate(ctx, joined, r.sourceLang, r.targetLang)
	})
	if err != nil {
		logger.Warn("group translation failed, translating items individually",
			logger.Int("items", len(group.Indices)),
			logger.Err(err))
		for _, idx := range group.Indices {
			d.translateOne(ctx, r, idx)
		}
		return
	}

	parts, method := SplitResponse(out, sources)
	if method != SplitSeparator {
		mismatch := document.NewErrorWithDetails(document.ErrCountMismatch, "group response repaired",
			string(method), nil)
		logger.Debug("group split fallback", logger.Int("items", len(group.Indices)), logger.Err(mismatch))
		r.mu.Lock()
		r.stats.SplitRepair++
		r.mu.Unlock()
	}
	d.storeGroup(r, group, parts)
}

// batch makes a single TranslateBatch attempt
func (d *Dispatcher) batch(ctx context.Context, r *run, sources []string) ([]string, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	callCtx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	parts, err := d.translator.TranslateBatch(callCtx, sources, r.sourceLang, r.targetLang)
	if err == nil && len(parts) != len(sources) {
		err = document.NewErrorWithDetails(document.ErrCountMismatch, "batch result count mismatch",
			fmt.Sprintf("expected %d, got %d", len(sources), len(parts)), nil)
	}
	if err != nil {
		logger.Debug("batch request unusable, joining items",
			logger.Int("items", len(sources)),
			logger.Err(err))
		return nil, false
	}
	return parts, true
}

func (d *Dispatcher) storeGroup(r *run, group TranslationGroup, parts []string) {
	degraded := 0
	for i, idx := range group.Indices {
		if strings.TrimSpace(parts[i]) == "" {
			degraded++
			continue
		}
		r.results[idx] = strings.TrimSpace(parts[i])
	}
	r.finish(group.Indices, degraded, true)
}

// call runs fn with a per-attempt timeout and exponential backoff between
// retryable failures
func (d *Dispatcher) call(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.config.RetryBaseDelay
	b.MaxInterval = d.config.MaxRetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.config.MaxRetries-1)), ctx)

	attempt := 0
	operation := func() (string, error) {
		attempt++
		if err := ctx.Err(); err != nil {
			return "", backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
		defer cancel()

		out, err := fn(callCtx)
		if err == nil {
			return out, nil
		}
		if !translator.IsRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	notify := func(err error, delay time.Duration) {
		logger.Debug("retrying translation request",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err))
	}

	return backoff.RetryNotifyWithData(operation, policy, notify)
}
