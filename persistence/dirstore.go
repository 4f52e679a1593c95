package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const binaryExt = ".bin"

// DirStore is a Store that keeps the contents of every chip in its own binary
// file under a directory. File names are the escaped chip ids with a .bin
// extension, so the files can be inspected or flashed with other tools.
type DirStore struct {
	dir string
}

// NewDirStore creates a DirStore rooted at dir. The directory is created on the
// first save.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the directory of the store.
func (s *DirStore) Dir() string {
	return s.dir
}

// Path returns the file that holds the contents of id.
func (s *DirStore) Path(id string) string {
	return filepath.Join(s.dir, url.PathEscape(id)+binaryExt)
}

// Load reads the contents of id from its file.
func (s *DirStore) Load(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("persistence: loading %q: %w", id, err)
	}

	return data, nil
}

// Save writes the contents of id. The file is replaced atomically so that a
// crash never leaves a half-written image behind.
func (s *DirStore) Save(ctx context.Context, id string, contents []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.MkdirAll(s.dir, 0o755)
	if err != nil {
		return fmt.Errorf("persistence: creating %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".save-*")
	if err != nil {
		return fmt.Errorf("persistence: saving %q: %w", id, err)
	}

	defer os.Remove(tmp.Name())

	_, err = tmp.Write(contents)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("persistence: saving %q: %w", id, err)
	}

	err = os.Rename(tmp.Name(), s.Path(id))
	if err != nil {
		return fmt.Errorf("persistence: saving %q: %w", id, err)
	}

	return nil
}

// IDs lists the ids that have contents in the directory.
func (s *DirStore) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("persistence: listing %s: %w", s.dir, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, binaryExt) {
			continue
		}

		id, err := url.PathUnescape(strings.TrimSuffix(name, binaryExt))
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids, nil
}
