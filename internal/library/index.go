package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"strmsync/internal/naming"
)

// Index is a point-in-time view of one library root: every pointer file,
// per-directory pointer counts, and folder names keyed for existing-folder
// lookups. Folders added after the scan are remembered via AddFolder.
type Index struct {
	root string

	mu      sync.RWMutex
	files   map[string]struct{}
	counts  map[string]int
	folders map[string]string
}

// Scan indexes root. A missing root yields an empty index.
func Scan(fsys afero.Fs, root string) (*Index, error) {
	root = filepath.Clean(root)
	ix := &Index{
		root:    root,
		files:   make(map[string]struct{}),
		counts:  make(map[string]int),
		folders: make(map[string]string),
	}
	if _, err := fsys.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return ix, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat library root: %w", err)
	}

	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		if info.IsDir() {
			ix.folders[folderKey(filepath.Dir(path), info.Name())] = info.Name()
			return nil
		}
		if !IsPointer(info.Name()) {
			return nil
		}
		ix.files[path] = struct{}{}
		for dir := filepath.Dir(path); within(dir, root); dir = filepath.Dir(dir) {
			ix.counts[dir]++
			if dir == root {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return ix, nil
}

// Root returns the scanned directory.
func (ix *Index) Root() string { return ix.root }

// Len is the number of pointer files found.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.files)
}

// Has reports whether path was a pointer file at scan time.
func (ix *Index) Has(path string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.files[filepath.Clean(path)]
	return ok
}

// Files returns every pointer path, sorted.
func (ix *Index) Files() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.files))
	for path := range ix.files {
		out = append(out, path)
	}
	slices.Sort(out)
	return out
}

// CountUnder returns how many pointer files live in dir or below it.
func (ix *Index) CountUnder(dir string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.counts[filepath.Clean(dir)]
}

// FilesUnder returns the pointer files inside dir, sorted.
func (ix *Index) FilesUnder(dir string) []string {
	prefix := filepath.Clean(dir) + string(os.PathSeparator)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []string
	for path := range ix.files {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out
}

// ExistingFolder finds a folder under parent whose name matches name once
// any trailing ID suffix is ignored, and returns its actual name.
func (ix *Index) ExistingFolder(parent, name string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	folder, ok := ix.folders[folderKey(parent, name)]
	return folder, ok
}

// AddFolder records a folder created during this run.
func (ix *Index) AddFolder(parent, name string) {
	key := folderKey(parent, name)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.folders[key]; !ok {
		ix.folders[key] = name
	}
}

func (ix *Index) dirs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.counts))
	for dir := range ix.counts {
		out = append(out, dir)
	}
	return out
}

func folderKey(parent, name string) string {
	return filepath.Join(filepath.Clean(parent), naming.BaseKey(name))
}
