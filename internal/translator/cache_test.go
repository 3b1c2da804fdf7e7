package translator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestKeyConsistency(t *testing.T) {
	texts := []string{"", "Hello, World!", "你好，世界！", "   \t\n", "Hello 你好 123 🎉"}
	for _, text := range texts {
		k1 := Key(text, "en", "zh")
		k2 := Key(text, "en", "zh")
		if k1 != k2 {
			t.Errorf("Key not consistent for %q", text)
		}
		if len(k1) != 64 {
			t.Errorf("expected 64 hex chars, got %d", len(k1))
		}
	}
}

func TestKeyDependsOnLanguagePair(t *testing.T) {
	if Key("Hello", "en", "zh") == Key("Hello", "en", "de") {
		t.Error("different target languages must not share a key")
	}
	if Key("Hello", "en", "zh") == Key("hello", "en", "zh") {
		t.Error("keys must be case sensitive")
	}
}

func TestCache_GetSet(t *testing.T) {
	cache := NewCache("")

	if _, ok := cache.Get("Hello", "en", "zh"); ok {
		t.Error("expected miss on empty cache")
	}
	cache.Set("Hello", "你好", "en", "zh")

	got, ok := cache.Get("Hello", "en", "zh")
	if !ok || got != "你好" {
		t.Errorf("expected hit '你好', got %q, %v", got, ok)
	}
	if _, ok := cache.Get("Hello", "en", "de"); ok {
		t.Error("expected miss for another language pair")
	}
	if cache.Size() != 1 {
		t.Errorf("expected size 1, got %d", cache.Size())
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", cache.Size())
	}
}

func TestCache_Lookup(t *testing.T) {
	cache := NewCache("")
	cache.Set("b", "B", "en", "zh")
	cache.Set("d", "D", "en", "zh")

	cached, missing := cache.Lookup([]string{"a", "b", "c", "d"}, "en", "zh")
	if len(cached) != 2 || cached[1] != "B" || cached[3] != "D" {
		t.Errorf("unexpected cached map: %v", cached)
	}
	if len(missing) != 2 || missing[0] != 0 || missing[1] != 2 {
		t.Errorf("unexpected missing indices: %v", missing)
	}
}

func TestCache_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")

	cache := NewCache(path)
	cache.Set("Hello", "你好", "en", "zh")
	cache.Set("World", "世界", "en", "zh")
	if err := cache.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if tmps, _ := filepath.Glob(path + ".*.tmp"); len(tmps) != 0 {
		t.Errorf("temporary files should be renamed away: %v", tmps)
	}

	loaded := NewCache(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("expected 2 entries, got %d", loaded.Size())
	}
	if got, _ := loaded.Get("World", "en", "zh"); got != "世界" {
		t.Errorf("expected '世界', got %q", got)
	}
}

func TestCache_LoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	if err := NewCache(filepath.Join(dir, "missing.json")).Load(); err != nil {
		t.Errorf("missing file should load as empty: %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewCache(corrupt).Load(); err == nil {
		t.Error("expected error for corrupt cache file")
	}

	if err := NewCache("").Save(); err != nil {
		t.Errorf("in-memory cache Save should be a no-op: %v", err)
	}
}

func TestCache_ConcurrentSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	cache := NewCache(path)

	var wg sync.WaitGroup
	errs := make(chan error, 4*50)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				cache.Set(fmt.Sprintf("text %d-%d", w, i), "x", "en", "de")
				if err := cache.Save(); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Save failed: %v", err)
	}

	if err := cache.Save(); err != nil {
		t.Fatalf("final Save failed: %v", err)
	}
	loaded := NewCache(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("cache file is not valid after concurrent saves: %v", err)
	}
	if loaded.Size() != 200 {
		t.Errorf("expected 200 entries, got %d", loaded.Size())
	}
	if tmps, _ := filepath.Glob(path + ".*.tmp"); len(tmps) != 0 {
		t.Errorf("temporary files left behind: %v", tmps)
	}
}
