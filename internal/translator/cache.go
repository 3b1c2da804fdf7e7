package translator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"layout-translator/internal/document"
)

// CacheEntry is one cached translation
type CacheEntry struct {
	Hash        string    `json:"hash"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	SourceLang  string    `json:"source_lang"`
	TargetLang  string    `json:"target_lang"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile is the on-disk cache format
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

const cacheVersion = "1.0"

// Cache stores translations keyed by exact source text and language pair.
// It is safe for concurrent use.
type Cache struct {
	path    string
	entries map[string]CacheEntry
	mu      sync.RWMutex
	// saveMu serializes writers of the cache file
	saveMu sync.Mutex
}

// NewCache creates an empty cache persisted at path. An empty path keeps the
// cache in memory only.
func NewCache(path string) *Cache {
	return &Cache{
		path:    path,
		entries: make(map[string]CacheEntry),
	}
}

// Key returns the SHA-256 key for a text and language pair
func Key(text, sourceLang, targetLang string) string {
	hash := sha256.Sum256([]byte(sourceLang + "\x00" + targetLang + "\x00" + text))
	return hex.EncodeToString(hash[:])
}

// Get returns the cached translation
func (c *Cache) Get(text, sourceLang, targetLang string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[Key(text, sourceLang, targetLang)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set stores a translation
func (c *Cache) Set(text, translation, sourceLang, targetLang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key(text, sourceLang, targetLang)
	c.entries[key] = CacheEntry{
		Hash:        key,
		Original:    text,
		Translation: translation,
		SourceLang:  sourceLang,
		TargetLang:  targetLang,
		CreatedAt:   time.Now(),
	}
}

// Lookup splits texts into cached translations, keyed by index, and the
// indices that still need translating
func (c *Cache) Lookup(texts []string, sourceLang, targetLang string) (map[int]string, []int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached := make(map[int]string)
	var missing []int
	for i, text := range texts {
		if entry, ok := c.entries[Key(text, sourceLang, targetLang)]; ok {
			cached[i] = entry.Translation
			continue
		}
		missing = append(missing, i)
	}
	return cached, missing
}

// Load reads the cache file. A missing file leaves the cache empty.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return document.NewErrorWithDetails(document.ErrPersistence, "failed to read cache file", c.path, err)
	}

	var file CacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return document.NewErrorWithDetails(document.ErrPersistence, "failed to parse cache file", c.path, err)
	}
	c.entries = make(map[string]CacheEntry, len(file.Entries))
	for _, entry := range file.Entries {
		c.entries[entry.Hash] = entry
	}
	return nil
}

// Save writes the cache file atomically. Concurrent saves are serialized
// and each writes its own temporary file.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	file := CacheFile{
		Version: cacheVersion,
		Entries: make([]CacheEntry, 0, len(c.entries)),
	}
	for _, entry := range c.entries {
		file.Entries = append(file.Entries, entry)
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return document.NewError(document.ErrPersistence, "failed to marshal cache", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return document.NewErrorWithDetails(document.ErrPersistence, "failed to create cache directory", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return document.NewErrorWithDetails(document.ErrPersistence, "failed to create cache file", dir, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return document.NewErrorWithDetails(document.ErrPersistence, "failed to write cache file", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return document.NewErrorWithDetails(document.ErrPersistence, "failed to write cache file", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return document.NewErrorWithDetails(document.ErrPersistence, "failed to replace cache file", c.path, err)
	}
	return nil
}

// Size returns the number of entries
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]CacheEntry)
}

// Path returns the cache file path
func (c *Cache) Path() string {
	return c.path
}
