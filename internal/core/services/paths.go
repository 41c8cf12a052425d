package services

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NormalizeSource resolves path to the identifier stored in chunk metadata.
// Symlinks and ".." segments are resolved to an absolute path. When the result
// lies under projectRoot the relative form is returned, otherwise the absolute one.
func NormalizeSource(path, projectRoot string) (string, error) {
	abs, err := resolve(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}

	if projectRoot == "" {
		return filepath.ToSlash(abs), nil
	}

	root, err := resolve(projectRoot)
	if err != nil {
		return filepath.ToSlash(abs), nil
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(abs), nil
	}

	return filepath.ToSlash(rel), nil
}

// resolve makes path absolute and follows symlinks when the target exists.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
