// Package langdetect guesses the source language of a document from a sample
// of its spans.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"

	"layout-translator/internal/document"
	"layout-translator/internal/language"
	"layout-translator/internal/logger"
)

const (
	DefaultSampleSize = 10
	DefaultThreshold  = 0.3
)

// Method names the signal that produced a result
type Method string

const (
	MethodScript      Method = "script"
	MethodDiacritic   Method = "diacritic"
	MethodStopWords   Method = "stopwords"
	MethodStatistical Method = "statistical"
	MethodNone        Method = "none"
)

// Result is the outcome of a detection
type Result struct {
	Code   string  `json:"code"`
	Ratio  float64 `json:"ratio"`
	Method Method  `json:"method"`
}

// Config holds detector settings
type Config struct {
	SampleSize int
	Threshold  float64
	// DefaultLanguage is used by DetectSpans when nothing is detected and the
	// caller gives no fallback
	DefaultLanguage string
	// Statistical enables the lingua model when the heuristics are inconclusive
	Statistical bool
}

// Detector classifies text by script ranges and German markers
type Detector struct {
	config Config
}

// New creates a Detector, applying defaults to zero values
func New(cfg Config) *Detector {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	return &Detector{config: cfg}
}

var germanStopWords = map[string]struct{}{
	"der": {}, "die": {}, "das": {}, "und": {}, "ist": {}, "du": {}, "ich": {}, "wir": {}, "sie": {},
	"hallo": {}, "guten": {}, "tag": {}, "morgen": {}, "abend": {}, "nacht": {},
	"bitte": {}, "danke": {}, "ja": {}, "nein": {}, "nicht": {}, "oder": {}, "aber": {},
	"von": {}, "zu": {}, "mit": {}, "für": {}, "auf": {}, "aus": {}, "ein": {}, "eine": {},
	"bin": {}, "bist": {}, "sind": {}, "sein": {}, "haben": {}, "hat": {}, "hast": {},
	"was": {}, "wer": {}, "wie": {}, "wo": {}, "warum": {}, "wann": {},
}

type scriptCounts struct {
	letters, han, kana, hangul int
	diacritic                  bool
}

func countScripts(text string) scriptCounts {
	var c scriptCounts
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		c.letters++
		switch {
		case unicode.Is(unicode.Han, r):
			c.han++
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			c.kana++
		case unicode.Is(unicode.Hangul, r):
			c.hangul++
		}
		switch r {
		case 'ä', 'ö', 'ü', 'Ä', 'Ö', 'Ü', 'ß':
			c.diacritic = true
		}
	}
	return c
}

// Detect classifies the concatenation of texts
func (d *Detector) Detect(texts []string) Result {
	sample := strings.TrimSpace(strings.Join(texts, " "))
	if sample == "" {
		return Result{Code: language.Unspecified, Method: MethodNone}
	}

	thr := d.config.Threshold
	c := countScripts(sample)
	if c.letters > 0 {
		letters := float64(c.letters)
		cjk := c.han + c.kana
		if ratio := float64(cjk) / letters; cjk > 0 && ratio >= thr {
			if float64(c.kana)/float64(cjk) >= thr {
				return Result{Code: "ja", Ratio: ratio, Method: MethodScript}
			}
			if c.hangul <= cjk {
				return Result{Code: "zh", Ratio: ratio, Method: MethodScript}
			}
		}
		if ratio := float64(c.hangul) / letters; ratio >= thr {
			return Result{Code: "ko", Ratio: ratio, Method: MethodScript}
		}
		if c.diacritic {
			return Result{Code: "de", Ratio: 1, Method: MethodDiacritic}
		}
		if ratio := stopWordRatio(sample); ratio >= thr {
			return Result{Code: "de", Ratio: ratio, Method: MethodStopWords}
		}
	}

	if d.config.Statistical {
		if res, ok := detectStatistical(sample); ok {
			return res
		}
	}
	return Result{Code: language.Unspecified, Method: MethodNone}
}

func stopWordRatio(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if _, ok := germanStopWords[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// DetectSpans samples the first spans and returns a language code. An
// inconclusive result yields fallback, or the configured default when
// fallback is empty.
func (d *Detector) DetectSpans(spans []document.TextSpan, fallback string) string {
	n := len(spans)
	if n > d.config.SampleSize {
		n = d.config.SampleSize
	}
	res := d.Detect(document.Texts(spans[:n]))
	if res.Code != language.Unspecified {
		logger.Info("source language detected",
			logger.String("language", res.Code),
			logger.String("method", string(res.Method)),
			logger.Float64("ratio", res.Ratio))
		return res.Code
	}
	if fallback == "" {
		fallback = d.config.DefaultLanguage
	}
	logger.Info("source language not detected, using fallback", logger.String("language", fallback))
	return fallback
}

var (
	statOnce     sync.Once
	statDetector lingua.LanguageDetector
)

func statisticalDetector() lingua.LanguageDetector {
	statOnce.Do(func() {
		statDetector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.Chinese, lingua.English, lingua.German, lingua.French,
				lingua.Spanish, lingua.Japanese, lingua.Korean, lingua.Russian).
			Build()
	})
	return statDetector
}

func detectStatistical(sample string) (Result, bool) {
	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 6 {
		return Result{}, false
	}

	values := statisticalDetector().ComputeLanguageConfidenceValues(sample)
	if len(values) == 0 || values[0].Value() == 0 {
		return Result{}, false
	}
	code := language.Normalize(values[0].Language().IsoCode639_1().String())
	if code == "" {
		return Result{}, false
	}
	return Result{Code: code, Ratio: values[0].Value(), Method: MethodStatistical}, true
}
