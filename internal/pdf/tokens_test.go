package pdf

import (
	"testing"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// glyphs lays out s on one baseline with a fixed advance
func glyphs(s string, x, y, size, advance float64) []lpdf.Text {
	var out []lpdf.Text
	for _, r := range s {
		out = append(out, lpdf.Text{Font: "Helvetica", FontSize: size, X: x, Y: y, W: advance, S: string(r)})
		x += advance
	}
	return out
}

func TestMergeGlyphs_Words(t *testing.T) {
	texts := glyphs("Hello world", 72, 700, 12, 6)

	tokens := mergeGlyphs(texts, 800)
	require.Len(t, tokens, 2)
	assert.Equal(t, "Hello", tokens[0].Text)
	assert.Equal(t, "world", tokens[1].Text)

	first := tokens[0].Rect
	assert.InDelta(t, 72, first.X0, 1e-9)
	assert.InDelta(t, 102, first.X1, 1e-9)
	assert.InDelta(t, 800-700-0.8*12, first.Y0, 1e-9)
	assert.InDelta(t, 800-700+0.2*12, first.Y1, 1e-9)
	assert.Equal(t, 12.0, tokens[0].FontSize)
}

func TestMergeGlyphs_Breaks(t *testing.T) {
	t.Run("horizontal jump", func(t *testing.T) {
		texts := append(glyphs("ab", 10, 500, 10, 5), glyphs("cd", 60, 500, 10, 5)...)
		tokens := mergeGlyphs(texts, 800)
		require.Len(t, tokens, 2)
		assert.Equal(t, "ab", tokens[0].Text)
		assert.Equal(t, "cd", tokens[1].Text)
	})

	t.Run("new baseline", func(t *testing.T) {
		texts := append(glyphs("ab", 10, 500, 10, 5), glyphs("cd", 20, 480, 10, 5)...)
		tokens := mergeGlyphs(texts, 800)
		require.Len(t, tokens, 2)
	})

	t.Run("string runs with trailing blank", func(t *testing.T) {
		texts := []lpdf.Text{
			{FontSize: 10, X: 10, Y: 500, W: 30, S: "one "},
			{FontSize: 10, X: 40, Y: 500, W: 15, S: "two"},
		}
		tokens := mergeGlyphs(texts, 800)
		require.Len(t, tokens, 2)
		assert.Equal(t, "one", tokens[0].Text)
	})

	t.Run("missing widths are estimated", func(t *testing.T) {
		tokens := mergeGlyphs([]lpdf.Text{{FontSize: 10, X: 10, Y: 500, S: "abcd"}}, 800)
		require.Len(t, tokens, 1)
		assert.InDelta(t, 30, tokens[0].Rect.X1, 1e-9)
	})

	t.Run("blank only", func(t *testing.T) {
		assert.Empty(t, mergeGlyphs(glyphs("   ", 10, 500, 10, 5), 800))
	})
}
