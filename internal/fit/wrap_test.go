package fit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	// size 10 with EmMeasurer: Latin 5pt, blank 2.5pt, CJK 10pt
	tests := []struct {
		name     string
		text     string
		maxWidth float64
		want     []string
	}{
		{"fits on one line", "hello world", 100, []string{"hello world"}},
		{"breaks between words", "hello world", 30, []string{"hello", "world"}},
		{"cjk breaks anywhere", "你好世界", 25, []string{"你好", "世界"}},
		{"mixed scripts", "PDF文档", 25, []string{"PDF文", "档"}},
		{"explicit newlines", "a\n\nb", 100, []string{"a", "", "b"}},
		{"trailing newline", "a\n", 100, []string{"a"}},
		{"long word stays whole", "abcdefghij", 20, []string{"abcdefghij"}},
		{"blank runs collapse", "  a   b  ", 100, []string{"a b"}},
		{"empty", "", 100, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, "Helvetica", 10, tt.maxWidth, EmMeasurer{}))
		})
	}
}
