// Package workspace confines module resource access to a resource root.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultRootDirName = ".modhost/resources"

// Guard resolves module resource paths against the resource root. Every
// path it returns is inside the root after symlink evaluation.
type Guard struct {
	rootPath string
}

// NewGuard resolves root, creating it when missing. An empty root selects
// ~/.modhost/resources.
func NewGuard(root string) (*Guard, error) {
	resolved, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}
	return &Guard{rootPath: resolved}, nil
}

// ResolveRoot normalizes a root path and creates the directory.
func ResolveRoot(root string) (string, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(homeDir, defaultRootDirName)
	}

	expanded, err := ExpandHome(trimmed)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute resource root: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	if err := os.MkdirAll(cleanPath, 0o755); err != nil {
		return "", fmt.Errorf("create resource root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		return "", NormalizeIOError(err, "resolve resource root")
	}

	return filepath.Clean(resolved), nil
}

func (g *Guard) Root() string {
	if g == nil {
		return ""
	}
	return g.rootPath
}

// ModuleDir returns the resource folder of one module, creating it when
// missing. folder must be a single path element.
func (g *Guard) ModuleDir(folder string) (string, error) {
	trimmed := strings.TrimSpace(folder)
	if trimmed == "" || trimmed == "." || trimmed == ".." || strings.ContainsAny(trimmed, `/\`) {
		return "", NewError(ErrorInvalidPath, fmt.Sprintf("folder %q is not a single path element", folder))
	}

	dir, err := g.ResolvePath(trimmed)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", NormalizeIOError(err, "create module folder")
	}
	return dir, nil
}

// ResolvePath validates inputPath and returns its canonical absolute form.
// Relative paths are taken from the root.
func (g *Guard) ResolvePath(inputPath string) (string, error) {
	if g == nil {
		return "", NewError(ErrorIO, "resource guard is nil")
	}

	trimmed := strings.TrimSpace(inputPath)
	if trimmed == "" {
		return "", NewError(ErrorInvalidPath, "path must not be empty")
	}

	candidate := trimmed
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(g.rootPath, candidate)
	}

	absPath, err := filepath.Abs(candidate)
	if err != nil {
		return "", NewError(ErrorInvalidPath, "path could not be resolved")
	}

	effectivePath, err := canonicalPath(filepath.Clean(absPath))
	if err != nil {
		return "", err
	}
	if !isWithin(g.rootPath, effectivePath) {
		return "", NewError(ErrorOutsideRoot, "resolved path escapes resource root")
	}

	return effectivePath, nil
}

// EnsureContained re-checks containment of an already resolved path.
func (g *Guard) EnsureContained(path string) error {
	effectivePath, err := canonicalPath(path)
	if err != nil {
		return err
	}
	if !isWithin(g.rootPath, effectivePath) {
		return NewError(ErrorOutsideRoot, "resolved path escapes resource root")
	}
	return nil
}

// RelPath returns path relative to the root when representable.
func (g *Guard) RelPath(path string) string {
	if g == nil {
		return filepath.Clean(path)
	}

	rel, err := filepath.Rel(g.rootPath, path)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return filepath.Clean(path)
	}
	return filepath.Clean(rel)
}

func canonicalPath(path string) (string, error) {
	evaluated, err := filepath.EvalSymlinks(path)
	if err == nil {
		return filepath.Clean(evaluated), nil
	}
	if !os.IsNotExist(err) {
		return "", NormalizeIOError(err, "resolve path")
	}

	// Not created yet: resolve the deepest existing ancestor instead.
	parent, remainder, splitErr := nearestExistingParent(path)
	if splitErr != nil {
		return "", splitErr
	}

	evaluatedParent, evalErr := filepath.EvalSymlinks(parent)
	if evalErr != nil {
		return "", NormalizeIOError(evalErr, "resolve path")
	}

	return filepath.Clean(filepath.Join(evaluatedParent, remainder)), nil
}

func nearestExistingParent(path string) (string, string, error) {
	current := filepath.Clean(path)
	var parts []string

	for {
		if _, err := os.Lstat(current); err == nil {
			remainder := ""
			for i := len(parts) - 1; i >= 0; i-- {
				remainder = filepath.Join(remainder, parts[i])
			}
			return current, remainder, nil
		}

		base := filepath.Base(current)
		if base == "." || base == string(filepath.Separator) {
			break
		}
		parts = append(parts, base)

		next := filepath.Dir(current)
		if next == current {
			break
		}
		current = next
	}

	return "", "", NewError(ErrorInvalidPath, "path could not be resolved")
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func isWithin(root string, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
