package exchange

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/notesjson/internal/apperr"
)

// FileReader yields the bytes of a named file.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// FileWriter persists bytes under a suggested name and returns where they went.
type FileWriter interface {
	WriteFile(name string, data []byte) (string, error)
}

// Files reads and writes export files under a root directory.
// Every I/O failure wraps apperr.ErrFileAccess.
type Files struct {
	root string // absolute
}

var (
	_ FileReader = (*Files)(nil)
	_ FileWriter = (*Files)(nil)
)

// NewFiles returns Files rooted at dir, creating it if needed.
func NewFiles(dir string) (*Files, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve root: %v", apperr.ErrFileAccess, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create root: %v", apperr.ErrFileAccess, err)
	}
	return openRoot(abs)
}

// OpenFiles returns Files rooted at an existing dir. Nothing is created, so
// it suits read-only callers.
func OpenFiles(dir string) (*Files, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve root: %v", apperr.ErrFileAccess, err)
	}
	return openRoot(abs)
}

func openRoot(abs string) (*Files, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: stat root: %v", apperr.ErrFileAccess, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: root is not a directory: %s", apperr.ErrFileAccess, abs)
	}
	return &Files{root: abs}, nil
}

// Root returns the absolute root directory.
func (f *Files) Root() string { return f.root }

// safePath resolves name against the root and rejects anything that escapes
// it. Absolute names are accepted only when they point inside the root.
func (f *Files) safePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty file name", apperr.ErrFileAccess)
	}
	p := filepath.Clean(name)
	if !filepath.IsAbs(p) {
		p = filepath.Join(f.root, p)
	}
	if !strings.HasPrefix(p, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path escapes exchange dir: %s", apperr.ErrFileAccess, name)
	}
	return p, nil
}

// ReadFile returns the content of name.
func (f *Files) ReadFile(name string) ([]byte, error) {
	p, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", apperr.ErrFileAccess, name, err)
	}
	return data, nil
}

// WriteFile atomically writes data: tmp file -> fsync -> rename.
// It returns the absolute path of the written file.
func (f *Files) WriteFile(name string, data []byte) (string, error) {
	p, err := f.safePath(name)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir: %w", apperr.ErrFileAccess, err)
	}

	tmp, err := os.CreateTemp(dir, ".notesjson-tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp: %w", apperr.ErrFileAccess, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("%w: write temp: %w", apperr.ErrFileAccess, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("%w: fsync: %w", apperr.ErrFileAccess, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close temp: %w", apperr.ErrFileAccess, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return "", fmt.Errorf("%w: rename: %w", apperr.ErrFileAccess, err)
	}
	success = true
	return p, nil
}

// Move renames name to dest, both relative to the root.
func (f *Files) Move(name, dest string) error {
	src, err := f.safePath(name)
	if err != nil {
		return err
	}
	dst, err := f.safePath(dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for move: %w", apperr.ErrFileAccess, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("%w: move: %w", apperr.ErrFileAccess, err)
	}
	return nil
}
