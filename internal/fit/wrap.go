package fit

import "strings"

// Wrap breaks text into lines no wider than maxWidth. Latin text breaks
// between words and CJK text between any two characters. Explicit newlines
// are kept. A single word wider than maxWidth is left on its own line.
func Wrap(text, fontName string, size, maxWidth float64, measure Measurer) []string {
	if text == "" {
		return nil
	}

	var lines []string
	var line, word strings.Builder

	breakLine := func() {
		lines = append(lines, strings.TrimRight(line.String(), " "))
		line.Reset()
	}

	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		word.Reset()

		joined := line.String() + w
		if line.Len() > 0 && measure.Width(strings.TrimRight(joined, " "), fontName, size) > maxWidth {
			breakLine()
			joined = w
		}
		line.Reset()
		line.WriteString(joined)
	}

	for _, r := range text {
		switch {
		case r == '\n':
			flushWord()
			breakLine()

		case r == ' ' || r == '\t':
			flushWord()
			// collapse runs and drop leading blanks
			if s := line.String(); s != "" && !strings.HasSuffix(s, " ") {
				line.WriteByte(' ')
			}

		case isCJK(r):
			flushWord()
			word.WriteRune(r)
			flushWord()

		default:
			word.WriteRune(r)
		}
	}
	flushWord()
	if line.Len() > 0 {
		breakLine()
	}

	// trailing explicit newlines do not add lines
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
