package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoLinePage() MemoryPage {
	return MemoryPage{
		Size: Size{Width: 200, Height: 100},
		Tokens: []Token{
			{Text: "Hello", Rect: Rect{X0: 10, Y0: 10, X1: 40, Y1: 20}, FontSize: 10},
			{Text: "World", Rect: Rect{X0: 10, Y0: 30, X1: 40, Y1: 40}, FontSize: 10},
		},
	}
}

func TestPageHandle_CopyRequiresMaterialize(t *testing.T) {
	b := NewMemoryBackend(twoLinePage())
	h, err := OpenPage(b, 0)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, h.State())

	out := NewOutput(b)
	_, err = out.CopyPage(h)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrInvalidState))
	assert.Equal(t, 0, out.PageCount())

	require.NoError(t, h.Materialize())
	assert.Equal(t, StateCommitted, h.State())

	page, err := out.CopyPage(h)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Index())
	assert.Equal(t, 0, page.Source())
	assert.Equal(t, Size{Width: 200, Height: 100}, page.Size())
}

func TestPageHandle_StageAfterCommitFails(t *testing.T) {
	b := NewMemoryBackend(twoLinePage())
	h, err := OpenPage(b, 0)
	require.NoError(t, err)
	require.NoError(t, h.Materialize())

	err = h.Stage(Fill{Rect: Rect{X0: 0, Y0: 0, X1: 5, Y1: 5}, Color: White})
	assert.True(t, IsCode(err, ErrInvalidState))
}

func TestPageHandle_MaterializeMakesFillsVisible(t *testing.T) {
	b := NewMemoryBackend(twoLinePage())
	h, err := OpenPage(b, 0)
	require.NoError(t, err)

	require.NoError(t, h.Stage(Fill{Rect: Rect{X0: 9, Y0: 9, X1: 43, Y1: 21}, Color: White}))
	// empty rects are ignored
	require.NoError(t, h.Stage(Fill{Rect: Rect{X0: 5, Y0: 5, X1: 5, Y1: 9}}))
	assert.Len(t, h.Staged(), 1)

	tokens, err := b.Tokens(0)
	require.NoError(t, err)
	assert.Len(t, tokens, 2, "staged fills must not be visible before materialize")

	require.NoError(t, h.Materialize())
	tokens, err = b.Tokens(0)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "World", tokens[0].Text)

	require.Len(t, b.CommitLog(), 1)
	assert.Equal(t, 0, b.CommitLog()[0].Page)

	// second materialize is a no-op
	require.NoError(t, h.Materialize())
	assert.Len(t, b.CommitLog(), 1)
}

func TestPageHandle_MaterializeFailureIsPersistenceError(t *testing.T) {
	b := NewMemoryBackend(twoLinePage())
	b.CommitErr = errors.New("disk full")
	h, err := OpenPage(b, 0)
	require.NoError(t, err)

	err = h.Materialize()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrPersistence))
	assert.ErrorIs(t, err, b.CommitErr)
	assert.Equal(t, StateDraft, h.State())
}

func TestOpenPage_OutOfRange(t *testing.T) {
	b := NewMemoryBackend(twoLinePage())
	_, err := OpenPage(b, 3)
	assert.True(t, IsCode(err, ErrInvalidInput))
}

func TestOutput_InsertAndSave(t *testing.T) {
	b := NewMemoryBackend(twoLinePage())
	h, err := OpenPage(b, 0)
	require.NoError(t, err)
	require.NoError(t, h.Materialize())

	out := NewOutput(b)
	page, err := out.CopyPage(h)
	require.NoError(t, err)
	require.NoError(t, page.InsertTextBox(TextBox{Rect: Rect{X0: 10, Y0: 10, X1: 60, Y1: 20}, Lines: []string{"Hallo"}, Size: 10}))

	pages := b.OutputPages()
	require.Len(t, pages, 1)
	require.Len(t, pages[0].Boxes, 1)
	assert.Equal(t, []string{"Hallo"}, pages[0].Boxes[0].Lines)

	b.SaveErr = errors.New("read-only")
	err = out.Save("")
	assert.True(t, IsCode(err, ErrPersistence))
}

func TestRectHelpers(t *testing.T) {
	a := Rect{X0: 0, Y0: 0, X1: 10, Y1: 10}
	b := Rect{X0: 5, Y0: 5, X1: 20, Y1: 12}

	assert.Equal(t, Rect{X0: 0, Y0: 0, X1: 20, Y1: 12}, a.Union(b))
	assert.Equal(t, b, Rect{}.Union(b))
	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(Rect{X0: 10, Y0: 0, X1: 20, Y1: 10}))
	assert.Equal(t, 100.0, a.Area())
	assert.Equal(t, 0.0, Rect{X0: 5, Y0: 5, X1: 5, Y1: 9}.Area())
	assert.Equal(t, Rect{X0: 0, Y0: 4, X1: 12, Y1: 10}, Rect{X0: -1, Y0: 4, X1: 15, Y1: 11}.Clip(Size{Width: 12, Height: 10}))
}

func TestColorFromInt(t *testing.T) {
	assert.Equal(t, "#ff8000", ColorFromInt(0xFF8000).Hex())
	assert.Equal(t, "#ffffff", White.Hex())
	assert.Equal(t, "#000000", ParseColor("not-a-colour", Black).Hex())
}

func TestNewTranslatedSpans_FallsBackToSource(t *testing.T) {
	spans := []TextSpan{{SourceText: "a"}, {SourceText: "b"}, {SourceText: "c"}}
	got := NewTranslatedSpans(spans, []string{"A", ""})
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].TranslatedText)
	assert.Equal(t, "b", got[1].TranslatedText)
	assert.Equal(t, "c", got[2].TranslatedText)
}
