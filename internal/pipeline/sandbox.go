package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Sandbox confines local file paths to the tree under Root. A nil *Sandbox
// allows any path; a Sandbox with an empty Root allows none.
type Sandbox struct {
	Root string
}

// Resolve maps p into Root. Relative paths are taken relative to Root and
// absolute paths must already lie inside it. Symlinks are not followed.
func (s *Sandbox) Resolve(p string) (string, error) {
	if s == nil {
		return p, nil
	}
	if s.Root == "" {
		return "", fmt.Errorf("Resolve: local path %s: local files are disabled", p)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", fmt.Errorf("Resolve: %w", err)
	}
	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("Resolve: local path %s is outside %s", p, s.Root)
	}
	return target, nil
}
