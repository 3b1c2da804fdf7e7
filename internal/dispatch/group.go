package dispatch

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"layout-translator/internal/translator"
)

// TranslationGroup is a set of items sent as one request, by original index
type TranslationGroup struct {
	Indices []int
	Chars   int
}

// BuildGroups packs the items at indices greedily, in order, into groups of
// at most maxItems items and maxChars combined runes. An item longer than
// maxChars forms a group of its own.
func BuildGroups(texts []string, indices []int, maxItems, maxChars int) []TranslationGroup {
	var groups []TranslationGroup
	var current TranslationGroup
	for _, idx := range indices {
		n := utf8.RuneCountInString(texts[idx])
		if len(current.Indices) > 0 && (len(current.Indices)+1 > maxItems || current.Chars+n > maxChars) {
			groups = append(groups, current)
			current = TranslationGroup{}
		}
		current.Indices = append(current.Indices, idx)
		current.Chars += n
	}
	if len(current.Indices) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// SplitMethod records which step of the split chain produced a result
type SplitMethod string

const (
	SplitSeparator    SplitMethod = "separator"
	SplitNewline      SplitMethod = "newline"
	SplitProportional SplitMethod = "proportional"
)

var marker = strings.TrimSpace(translator.Separator)

// SplitResponse divides a grouped response into exactly len(sources) parts.
// It splits on the separator first, then on single newlines, and finally cuts
// the whole response proportionally to the source lengths.
func SplitResponse(response string, sources []string) ([]string, SplitMethod) {
	n := len(sources)
	if n == 0 {
		return nil, SplitSeparator
	}

	parts := strings.Split(response, marker)
	if len(parts) == n {
		return trimAll(parts), SplitSeparator
	}

	var lines []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == marker {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == n {
		return lines, SplitNewline
	}

	return splitProportional(response, sources), SplitProportional
}

func trimAll(parts []string) []string {
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// splitProportional cuts text into len(sources) pieces whose lengths follow
// the source rune lengths. Cuts land on rune boundaries and move to nearby
// whitespace when there is some.
func splitProportional(response string, sources []string) []string {
	n := len(sources)
	text := []rune(strings.Join(strings.Fields(strings.ReplaceAll(response, marker, " ")), " "))
	out := make([]string, n)
	if n == 1 {
		out[0] = string(text)
		return out
	}

	weights := make([]float64, n)
	var total float64
	for i, s := range sources {
		weights[i] = float64(utf8.RuneCountInString(s))
		total += weights[i]
	}
	if total == 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(n)
	}

	prev := 0
	var cum float64
	for i := 0; i < n-1; i++ {
		cum += weights[i]
		target := int(math.Round(cum / total * float64(len(text))))
		window := int(weights[i]/total*float64(len(text))) / 4
		cut := nearestSpace(text, target, prev, window)
		out[i] = strings.TrimSpace(string(text[prev:cut]))
		prev = cut
	}
	out[n-1] = strings.TrimSpace(string(text[prev:]))
	return out
}

// nearestSpace returns the whitespace position closest to target within
// window runes, never before lo. Without one it returns target clamped to
// [lo, len(text)].
func nearestSpace(text []rune, target, lo, window int) int {
	if target < lo {
		target = lo
	}
	if target > len(text) {
		target = len(text)
	}
	for d := 0; d <= window; d++ {
		if p := target - d; p > lo && p < len(text) && unicode.IsSpace(text[p]) {
			return p
		}
		if p := target + d; p > lo && p < len(text) && unicode.IsSpace(text[p]) {
			return p
		}
	}
	return target
}
