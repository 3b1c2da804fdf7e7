package fit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func TestEmMeasurer(t *testing.T) {
	// 5 + 5 + 2.5 + 10
	assert.InDelta(t, 22.5, EmMeasurer{}.Width("ab 中", "any", 10), 1e-9)
	assert.Zero(t, EmMeasurer{}.Width("", "any", 10))
}

func TestCoreMeasurer(t *testing.T) {
	m := CoreMeasurer{}

	// Courier advances are 600 units per glyph
	assert.InDelta(t, 18.0, m.Width("abc", "Courier", 10), 0.01)
	assert.Less(t, m.Width("iiii", "Helvetica", 12), m.Width("WWWW", "Helvetica", 12))

	// CJK runes have no core glyph and count as 1em
	assert.InDelta(t, 16.0, m.Width("a中", "Courier", 10), 0.01)

	// unknown names use the em approximation
	assert.InDelta(t, 10.0, m.Width("ab", "NoSuchFont", 10), 1e-9)
}

func writeGoFont(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goregular.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0644))
	return path
}

func TestTrueTypeMeasurer(t *testing.T) {
	path := writeGoFont(t)
	m := NewTrueTypeMeasurer()

	narrow := m.Width("iiii", path, 12)
	wide := m.Width("WWWW", path, 12)
	assert.Greater(t, narrow, 0.0)
	assert.Less(t, narrow, wide)
	assert.InDelta(t, 2*m.Width("WWWW", path, 6), wide, 0.5, "width scales with size")

	first, err := m.Load(path)
	require.NoError(t, err)
	second, err := m.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestTrueTypeMeasurer_UnreadableFont(t *testing.T) {
	m := NewTrueTypeMeasurer()
	assert.InDelta(t, 10.0, m.Width("ab", filepath.Join(t.TempDir(), "missing.ttf"), 10), 1e-9)

	bogus := filepath.Join(t.TempDir(), "bogus.ttf")
	require.NoError(t, os.WriteFile(bogus, []byte("not a font"), 0644))
	assert.InDelta(t, 10.0, m.Width("ab", bogus, 10), 1e-9)
}

func TestMultiMeasurer_Routing(t *testing.T) {
	path := writeGoFont(t)
	m := NewMeasurer()

	assert.InDelta(t, 18.0, m.Width("abc", "Courier", 10), 0.01)
	assert.InDelta(t, 15.0, m.Width("abc", "STSong-Light", 10), 1e-9)
	assert.InDelta(t, NewTrueTypeMeasurer().Width("abc", path, 10), m.Width("abc", path, 10), 1e-9)
}

func TestIsFontFile(t *testing.T) {
	assert.True(t, IsFontFile("/usr/share/fonts/wqy-microhei.ttc"))
	assert.True(t, IsFontFile("Noto.OTF"))
	assert.False(t, IsFontFile("Helvetica"))
	assert.Equal(t, "wqy-microhei", FontName("/usr/share/fonts/wqy-microhei.ttc"))
}

func TestFontResolver(t *testing.T) {
	calls := 0
	r := NewFontResolver(map[Role][]string{
		RoleCJK:   {"/a.ttf", "/b.ttf", "/c.ttf"},
		RoleLatin: {"/x.ttf"},
	})
	r.exists = func(p string) bool {
		calls++
		return p == "/b.ttf" || p == "/c.ttf"
	}

	path, ok := r.Resolve(RoleCJK)
	require.True(t, ok)
	assert.Equal(t, "/b.ttf", path)

	path, ok = r.Resolve(RoleCJK)
	assert.True(t, ok)
	assert.Equal(t, "/b.ttf", path)
	assert.Equal(t, 2, calls, "second lookup is served from the cache")

	_, ok = r.Resolve(RoleLatin)
	assert.False(t, ok)
	_, ok = r.Resolve(RoleLatin)
	assert.False(t, ok)
	assert.Equal(t, 3, calls, "misses are cached too")

	var nilResolver *FontResolver
	_, ok = nilResolver.Resolve(RoleCJK)
	assert.False(t, ok)
}
