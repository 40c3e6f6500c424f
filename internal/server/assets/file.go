package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// DefaultPublicPrefix is the URL path under which FileStore assets are served.
const DefaultPublicPrefix = "/uploads"

// FileStore keeps assets as files in one directory.
type FileStore struct {
	fs     afero.Fs
	prefix string
}

// NewFileStore roots a FileStore at dir on the local filesystem, creating
// the directory when needed.
func NewFileStore(dir string) (*FileStore, error) {
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return NewFileStoreFs(afero.NewBasePathFs(osfs, dir), DefaultPublicPrefix), nil
}

// NewFileStoreFs builds a FileStore over an arbitrary afero filesystem whose
// root is the asset directory.
func NewFileStoreFs(fsys afero.Fs, publicPrefix string) *FileStore {
	return &FileStore{fs: fsys, prefix: "/" + strings.Trim(publicPrefix, "/")}
}

// Fs exposes the underlying filesystem, e.g. for static serving.
func (s *FileStore) Fs() afero.Fs {
	return s.fs
}

// PublicPrefix is the URL path prefix of every reference.
func (s *FileStore) PublicPrefix() string {
	return s.prefix
}

func (s *FileStore) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrAssetExists
		}
		return fmt.Errorf("create %s: %w", name, err)
	}

	_, werr := f.Write(data)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = s.fs.Remove(name)
		return fmt.Errorf("write %s: %w", name, werr)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, name)
}

func (s *FileStore) PublicReference(name string) string {
	return path.Join(s.prefix, name)
}

func (s *FileStore) NameFromReference(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, s.prefix+"/")
	if !ok || validateName(name) != nil {
		return "", false
	}
	return name, true
}
