package document

import (
	"encoding/json"
	"fmt"
	"os"
)

// MemoryPage is a source page held by MemoryBackend
type MemoryPage struct {
	Size   Size    `json:"size"`
	Tokens []Token `json:"tokens"`
}

// CommitEntry records one Commit call
type CommitEntry struct {
	Page  int    `json:"page"`
	Fills []Fill `json:"fills"`
}

// MemoryOutputPage is a page of the in-memory output document
type MemoryOutputPage struct {
	Source int       `json:"source"`
	Size   Size      `json:"size"`
	Fills  []Fill    `json:"fills"`
	Tokens []Token   `json:"tokens"`
	Boxes  []TextBox `json:"boxes"`
}

// MemoryBackend implements Backend without file I/O. Commits are appended to
// a log and applied to the page's visible state, so copies taken after a
// commit no longer contain the redacted tokens.
type MemoryBackend struct {
	pages     []MemoryPage
	committed map[int][]Fill
	log       []CommitEntry
	output    []MemoryOutputPage

	// CommitErr and SaveErr, when set, are returned by Commit and Save
	CommitErr error
	SaveErr   error
}

// NewMemoryBackend creates a backend over the given pages
func NewMemoryBackend(pages ...MemoryPage) *MemoryBackend {
	return &MemoryBackend{
		pages:     pages,
		committed: make(map[int][]Fill),
	}
}

// PageCount implements Source
func (m *MemoryBackend) PageCount() int {
	return len(m.pages)
}

// PageSize implements Source
func (m *MemoryBackend) PageSize(index int) (Size, error) {
	if err := m.check(index); err != nil {
		return Size{}, err
	}
	return m.pages[index].Size, nil
}

// Tokens returns the tokens still visible on the page. Tokens fully covered
// by a committed fill are gone.
func (m *MemoryBackend) Tokens(index int) ([]Token, error) {
	if err := m.check(index); err != nil {
		return nil, err
	}
	return m.visibleTokens(index), nil
}

func (m *MemoryBackend) visibleTokens(index int) []Token {
	fills := m.committed[index]
	out := make([]Token, 0, len(m.pages[index].Tokens))
	for _, t := range m.pages[index].Tokens {
		if !coveredBy(t.Rect, fills) {
			out = append(out, t)
		}
	}
	return out
}

func coveredBy(r Rect, fills []Fill) bool {
	for _, f := range fills {
		if f.Rect.X0 <= r.X0 && f.Rect.Y0 <= r.Y0 && f.Rect.X1 >= r.X1 && f.Rect.Y1 >= r.Y1 {
			return true
		}
	}
	return false
}

// Commit implements Backend
func (m *MemoryBackend) Commit(index int, fills []Fill) error {
	if err := m.check(index); err != nil {
		return err
	}
	if m.CommitErr != nil {
		return m.CommitErr
	}
	staged := make([]Fill, len(fills))
	copy(staged, fills)
	m.log = append(m.log, CommitEntry{Page: index, Fills: staged})
	m.committed[index] = append(m.committed[index], staged...)
	return nil
}

// CopyPage implements Backend
func (m *MemoryBackend) CopyPage(index int) (int, error) {
	if err := m.check(index); err != nil {
		return 0, err
	}
	fills := make([]Fill, len(m.committed[index]))
	copy(fills, m.committed[index])
	m.output = append(m.output, MemoryOutputPage{
		Source: index,
		Size:   m.pages[index].Size,
		Fills:  fills,
		Tokens: m.visibleTokens(index),
	})
	return len(m.output) - 1, nil
}

// InsertText implements Backend
func (m *MemoryBackend) InsertText(outIndex int, box TextBox) error {
	if outIndex < 0 || outIndex >= len(m.output) {
		return fmt.Errorf("output page %d out of range", outIndex)
	}
	m.output[outIndex].Boxes = append(m.output[outIndex].Boxes, box)
	return nil
}

// Save writes the output pages as JSON. An empty path only validates.
func (m *MemoryBackend) Save(path string) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m.output, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Close implements Backend
func (m *MemoryBackend) Close() error {
	return nil
}

// CommitLog returns every commit in call order
func (m *MemoryBackend) CommitLog() []CommitEntry {
	return m.log
}

// OutputPages returns the assembled output
func (m *MemoryBackend) OutputPages() []MemoryOutputPage {
	return m.output
}

func (m *MemoryBackend) check(index int) error {
	if index < 0 || index >= len(m.pages) {
		return fmt.Errorf("page %d out of range (0..%d)", index, len(m.pages)-1)
	}
	return nil
}
