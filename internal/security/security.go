// Package security enforces the filesystem allow-list and path validation
// guardrails. The surrounding deployment owns the permitted-root
// configuration; this package only validates containment and traversal.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sheetforge/sheetforge/pkg/xlerr"
)

// Policy resolves and stores canonical absolute directory roots and validates
// that requested workbook paths are within these roots and carry a supported
// extension. The target file itself may not exist yet: creating a workbook at
// a contained path is a legal operation.
type Policy struct {
	roots       []string
	allowedExts map[string]struct{}
}

// EnvAllowedDirs names the environment variable listing permitted roots,
// separated by os.PathListSeparator.
const EnvAllowedDirs = "SHEETFORGE_ALLOWED_DIRS"

// NewPolicy constructs a Policy given an allow-list of directories and a list
// of allowed file extensions (case-insensitive, with leading dot).
// Directories are canonicalized (absolute + EvalSymlinks) and validated.
func NewPolicy(allowDirs []string, allowedExtensions []string) (*Policy, error) {
	if len(allowedExtensions) == 0 {
		allowedExtensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm"}
	}

	exts := make(map[string]struct{}, len(allowedExtensions))
	for _, e := range allowedExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.HasPrefix(e, ".") {
			return nil, fmt.Errorf("security: invalid extension: %q", e)
		}
		exts[e] = struct{}{}
	}

	canonical := make([]string, 0, len(allowDirs))
	for _, d := range allowDirs {
		d = strings.TrimSpace(d)
		if d == "" { // skip empties
			continue
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, fmt.Errorf("security: resolve abs for %q: %w", d, err)
		}
		// EvalSymlinks so that symlinked roots cannot be used to escape later.
		real, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, fmt.Errorf("security: eval symlinks for %q: %w", abs, err)
		}
		info, err := os.Stat(real)
		if err != nil {
			return nil, fmt.Errorf("security: stat %q: %w", real, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("security: allow-list entry is not a directory: %q", real)
		}
		canonical = append(canonical, filepath.Clean(real))
	}

	return &Policy{roots: canonical, allowedExts: exts}, nil
}

// NewPolicyFromEnv constructs a Policy from SHEETFORGE_ALLOWED_DIRS.
// If the variable is empty, an empty allow-list is used (deny-by-default).
func NewPolicyFromEnv() (*Policy, error) {
	list := os.Getenv(EnvAllowedDirs)
	var dirs []string
	if list != "" {
		dirs = filepath.SplitList(list)
	}
	return NewPolicy(dirs, nil)
}

// AllowedDirectories returns the canonical allow-list roots.
func (p *Policy) AllowedDirectories() []string {
	out := make([]string, len(p.roots))
	copy(out, p.roots)
	return out
}

// ValidateConfig returns an error when no allow-list entries are configured.
// This supports fail-safe startup where file operations stay disabled until
// explicit directories are provided by the operator.
func (p *Policy) ValidateConfig() error {
	if len(p.roots) == 0 {
		return errors.New("security: no allowed directories configured")
	}
	return nil
}

// Resolve validates that the input path names a workbook with an allowed
// extension inside one of the permitted roots and returns its canonical
// absolute form. Paths with traversal segments are rejected outright. The
// file itself does not have to exist, but its directory must, and symlinks in
// the directory are resolved so they cannot be used to escape a root.
func (p *Policy) Resolve(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", xlerr.New(xlerr.Path, "empty path")
	}
	for _, seg := range strings.Split(filepath.ToSlash(input), "/") {
		if seg == ".." {
			return "", xlerr.New(xlerr.Path, "path contains traversal segment: %q", input)
		}
	}
	ext := strings.ToLower(filepath.Ext(input))
	if _, ok := p.allowedExts[ext]; !ok {
		return "", xlerr.New(xlerr.Path, "unsupported workbook extension %q", ext)
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return "", xlerr.Wrap(xlerr.Path, err, "resolve %q", input)
	}
	// Canonicalize the directory; the file may not exist yet.
	dir, base := filepath.Split(abs)
	realDir, err := filepath.EvalSymlinks(filepath.Clean(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", xlerr.New(xlerr.Path, "directory does not exist: %q", dir)
		}
		return "", xlerr.Wrap(xlerr.Path, err, "resolve directory %q", dir)
	}
	real := filepath.Join(realDir, base)

	if info, err := os.Stat(real); err == nil {
		if info.IsDir() {
			return "", xlerr.New(xlerr.Path, "path is a directory: %q", real)
		}
		// Existing files may themselves be symlinks; resolve and re-check.
		if resolved, err := filepath.EvalSymlinks(real); err == nil {
			real = resolved
		}
	}

	for _, root := range p.roots {
		rel, err := filepath.Rel(root, real)
		if err != nil {
			continue
		}
		if rel == "." || rel == "" {
			continue // the root itself, not a file inside it
		}
		if !strings.HasPrefix(rel, "..") && !strings.HasPrefix(filepath.Clean(rel), "..") {
			return real, nil
		}
	}
	return "", xlerr.New(xlerr.Path, "path outside permitted roots: %q", input)
}
