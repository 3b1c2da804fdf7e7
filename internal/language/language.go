// Package language holds the table of supported languages and normalizes the
// many spellings callers use for them.
package language

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Unspecified is returned when a language cannot be determined
const Unspecified = "unspecified"

// Language describes one supported language
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// NLLB is the code used by NLLB-style translation models
	NLLB string `json:"nllb"`
	// CJK languages need CJK-capable fonts and wrap per character
	CJK bool `json:"cjk"`
}

var table = map[string]Language{
	"zh": {Code: "zh", Name: "Chinese", NLLB: "zho_Hans", CJK: true},
	"en": {Code: "en", Name: "English", NLLB: "eng_Latn"},
	"de": {Code: "de", Name: "German", NLLB: "deu_Latn"},
	"fr": {Code: "fr", Name: "French", NLLB: "fra_Latn"},
	"es": {Code: "es", Name: "Spanish", NLLB: "spa_Latn"},
	"ja": {Code: "ja", Name: "Japanese", NLLB: "jpn_Jpan", CJK: true},
	"ko": {Code: "ko", Name: "Korean", NLLB: "kor_Hang", CJK: true},
	"ru": {Code: "ru", Name: "Russian", NLLB: "rus_Cyrl"},
}

var aliases = map[string]string{
	"chinese":  "zh",
	"english":  "en",
	"german":   "de",
	"deutsch":  "de",
	"french":   "fr",
	"spanish":  "es",
	"japanese": "ja",
	"korean":   "ko",
	"russian":  "ru",
}

// Normalize maps a tag, alias or display name onto a table code.
// "zh_CN", "zh-Hant", "German" and " EN-us " all resolve. It returns an
// empty string for blank input and for languages outside the table.
func Normalize(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	if code, ok := aliases[trimmed]; ok {
		return code
	}
	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	code := base.String()
	if _, ok := table[code]; !ok {
		return ""
	}
	return code
}

// Lookup returns the table entry for raw after normalization
func Lookup(raw string) (Language, bool) {
	l, ok := table[Normalize(raw)]
	return l, ok
}

// IsCJK reports whether raw names Chinese, Japanese or Korean
func IsCJK(raw string) bool {
	l, ok := Lookup(raw)
	return ok && l.CJK
}

// NLLBCode returns the NLLB model code for raw. Traditional Chinese tags
// (zh-TW, zh-Hant) map to zho_Hant.
func NLLBCode(raw string) (string, bool) {
	l, ok := Lookup(raw)
	if !ok {
		return "", false
	}
	if l.Code == "zh" {
		if tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")); err == nil {
			if script, _ := tag.Script(); script.String() == "Hant" {
				return "zho_Hant", true
			}
		}
	}
	return l.NLLB, true
}

// Supported returns every table entry sorted by code
func Supported() []Language {
	out := make([]Language, 0, len(table))
	for _, l := range table {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
