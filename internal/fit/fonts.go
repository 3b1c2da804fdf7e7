package fit

import (
	"os"
	"sync"

	"layout-translator/internal/logger"
)

// Role names a purpose a font file is resolved for
type Role string

const (
	// RoleCJK is a font able to draw Chinese, Japanese and Korean text
	RoleCJK Role = "cjk"
	// RoleLatin is a Unicode text font for non-CJK scripts
	RoleLatin Role = "latin"
)

// FontResolver maps a role to the first existing font file of its priority
// list. Results, including misses, are cached per role.
type FontResolver struct {
	mu         sync.Mutex
	candidates map[Role][]string
	resolved   map[Role]string
	exists     func(path string) bool
}

// NewFontResolver creates a resolver over per-role priority lists
func NewFontResolver(candidates map[Role][]string) *FontResolver {
	return &FontResolver{
		candidates: candidates,
		resolved:   make(map[Role]string),
		exists:     fileExists,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Resolve returns the font path for role, or false when none of the
// candidates exists
func (r *FontResolver) Resolve(role Role) (string, bool) {
	if r == nil {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if path, ok := r.resolved[role]; ok {
		return path, path != ""
	}

	path := ""
	for _, p := range r.candidates[role] {
		if p != "" && r.exists(p) {
			path = p
			break
		}
	}
	r.resolved[role] = path

	if path == "" {
		logger.Debug("no font file found", logger.String("role", string(role)))
	} else {
		logger.Debug("font resolved",
			logger.String("role", string(role)),
			logger.String("path", path))
	}
	return path, path != ""
}
