// Package workspace implements the Workspace Guard: path confinement with
// symlink-safe containment checks, dangerous-shell-command refusal, and
// UTF-8-safe output truncation. It is the only mediator between
// model-requested filesystem/shell access and the real filesystem.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/corewright/pilot/agenterr"
)

// MaxOutputBytes is the cap applied to every tool-result string.
const MaxOutputBytes = 50_000

// dangerousSubstrings are refused outright regardless of surrounding context.
var dangerousSubstrings = []string{
	"rm -rf /",
	"sudo",
	"shutdown",
	"reboot",
	"> /dev/",
}

// PrunedDirs is the set of directory names Glob/Grep never descend into.
var PrunedDirs = map[string]bool{
	".git":             true,
	"node_modules":     true,
	"__pycache__":      true,
	".venv":            true,
	".mypy_cache":      true,
	".pytest_cache":    true,
	".ruff_cache":      true,
	"dist":             true,
	"build":            true,
	".next":            true,
	".nuxt":            true,
	"coverage":         true,
	".tox":             true,
	"eggs":             true,
	".eggs":            true,
}

// Guard mediates all model-requested filesystem and shell access for one workspace root.
type Guard struct {
	root string
}

// New resolves root to an absolute, symlink-resolved path and returns a Guard for it.
func New(root string) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Root itself may not exist yet in tests; fall back to the cleaned absolute path.
		resolved = filepath.Clean(abs)
	}
	return &Guard{root: resolved}, nil
}

// Root returns the workspace root this guard confines paths to.
func (g *Guard) Root() string { return g.root }

// ResolvePath joins a caller-supplied path to the workspace root (or accepts it
// as absolute), fully resolves symlinks, and verifies the result is equal to or
// a descendant of the root. Any violation returns agenterr.WorkspaceEscape.
func (g *Guard) ResolvePath(requested string) (string, error) {
	var candidate string
	if filepath.IsAbs(requested) {
		candidate = filepath.Clean(requested)
	} else {
		candidate = filepath.Clean(filepath.Join(g.root, requested))
	}

	if !withinRoot(g.root, candidate) {
		return "", agenterr.WorkspaceEscape(requested)
	}

	// Resolve symlinks on whatever portion of the path already exists; an
	// absent leaf component (e.g. a file Write is about to create) is fine.
	resolved, existingErr := resolveExistingPrefix(candidate)
	if existingErr == nil && !withinRoot(g.root, resolved) {
		return "", agenterr.WorkspaceEscape(requested)
	}

	return candidate, nil
}

// withinRoot reports whether candidate is root itself or a descendant of it.
func withinRoot(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExistingPrefix walks up from path until it finds a component that
// exists, resolves symlinks on that prefix, and reattaches the remaining
// (not-yet-existing) suffix unchanged.
func resolveExistingPrefix(path string) (string, error) {
	suffix := ""
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			if suffix == "" {
				return resolved, nil
			}
			return filepath.Join(resolved, suffix), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		if suffix == "" {
			suffix = filepath.Base(cur)
		} else {
			suffix = filepath.Join(filepath.Base(cur), suffix)
		}
		cur = parent
	}
}

// CheckShellCommand refuses commands containing a known-dangerous substring.
func (g *Guard) CheckShellCommand(command string) error {
	for _, bad := range dangerousSubstrings {
		if strings.Contains(command, bad) {
			return agenterr.DangerousCommand(command)
		}
	}
	return nil
}

// Truncate caps s at MaxOutputBytes, backing off to the last full UTF-8 rune
// boundary rather than splitting a multi-byte codepoint.
func Truncate(s string) string {
	if len(s) <= MaxOutputBytes {
		return s
	}
	cut := MaxOutputBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ShouldPruneDir reports whether a directory entry with this base name should
// be skipped entirely during a Glob/Grep walk.
func ShouldPruneDir(name string) bool {
	return PrunedDirs[name]
}

// EnsureParentDir creates the parent directory chain for path if it does not exist.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
