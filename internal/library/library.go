package library

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// PointerExt is the extension of playable pointer files.
const PointerExt = ".strm"

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// sidecarExts are files the sync writes next to pointers. A directory that
// holds nothing else is removed along with its last pointer.
var sidecarExts = []string{".nfo", ".jpg", ".jpeg", ".png"}

// Outcome reports what a write did.
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// IsPointer reports whether name is a pointer file.
func IsPointer(name string) bool {
	return strings.EqualFold(filepath.Ext(name), PointerExt)
}

func isSidecar(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.Contains(sidecarExts, ext)
}

// WritePointer makes path hold exactly url. An existing file with the same
// URL (ignoring surrounding whitespace) is left alone.
func WritePointer(fsys afero.Fs, path, url string) (Outcome, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Unchanged, errors.New("pointer url is empty")
	}
	return writeIfChanged(fsys, path, []byte(url), func(existing []byte) bool {
		return string(bytes.TrimSpace(existing)) == url
	})
}

// WriteSidecar writes data to path unless the file already holds it.
func WriteSidecar(fsys afero.Fs, path string, data []byte) (Outcome, error) {
	return writeIfChanged(fsys, path, data, func(existing []byte) bool {
		return bytes.Equal(existing, data)
	})
}

func writeIfChanged(fsys afero.Fs, path string, data []byte, same func([]byte) bool) (Outcome, error) {
	existing, err := afero.ReadFile(fsys, path)
	switch {
	case err == nil:
		if same(existing) {
			return Unchanged, nil
		}
		if err := afero.WriteFile(fsys, path, data, fileMode); err != nil {
			return Unchanged, fmt.Errorf("rewrite %s: %w", path, err)
		}
		return Updated, nil
	case errors.Is(err, fs.ErrNotExist):
		if err := fsys.MkdirAll(filepath.Dir(path), dirMode); err != nil {
			return Unchanged, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		if err := afero.WriteFile(fsys, path, data, fileMode); err != nil {
			return Unchanged, fmt.Errorf("write %s: %w", path, err)
		}
		return Created, nil
	default:
		return Unchanged, fmt.Errorf("read %s: %w", path, err)
	}
}

// Remove deletes a file. A missing file is not an error.
func Remove(fsys afero.Fs, path string) error {
	if err := fsys.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// PruneEmptyDirs walks from dir up towards stop, removing each directory
// that holds nothing but sidecar files. It never removes stop itself or
// anything outside it, and halts at the first directory that still has a
// pointer, a subdirectory, or a file it does not recognise.
func PruneEmptyDirs(fsys afero.Fs, dir, stop string) (int, error) {
	dir = filepath.Clean(dir)
	stop = filepath.Clean(stop)
	removed := 0
	for within(dir, stop) && dir != stop {
		entries, err := afero.ReadDir(fsys, dir)
		if errors.Is(err, fs.ErrNotExist) {
			dir = filepath.Dir(dir)
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("read dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isSidecar(entry.Name()) {
				return removed, nil
			}
		}
		for _, entry := range entries {
			if err := Remove(fsys, filepath.Join(dir, entry.Name())); err != nil {
				return removed, err
			}
		}
		if err := fsys.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove dir %s: %w", dir, err)
		}
		removed++
		dir = filepath.Dir(dir)
	}
	return removed, nil
}

// Clean removes every pointer under root together with the directories
// that become empty. Unknown files and their directories are kept.
func Clean(fsys afero.Fs, root string) (int, error) {
	index, err := Scan(fsys, root)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range index.Files() {
		if err := Remove(fsys, path); err != nil {
			return removed, err
		}
		removed++
	}
	// Deepest first so parents see their children already gone.
	dirs := index.dirs()
	slices.SortFunc(dirs, func(a, b string) int {
		return strings.Count(b, string(os.PathSeparator)) - strings.Count(a, string(os.PathSeparator))
	})
	for _, dir := range dirs {
		if _, err := PruneEmptyDirs(fsys, dir, root); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}
