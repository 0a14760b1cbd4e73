package cache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/storekit/storekit/pkg/errors"
)

const blobExtension = ".cache"

// blobStore maps a content key to one opaque blob file under the cache
// directory. Writes fully replace prior content; there are no partial
// updates.
type blobStore struct {
	dir string
}

func newBlobStore(dir string) (*blobStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Newf(errors.ErrCodeStorageWrite, "failed to create cache directory %s", dir).WithCause(err)
	}
	return &blobStore{dir: dir}, nil
}

// path returns the blob file path for a content key, guarding against
// keys that would escape the cache directory.
func (s *blobStore) path(contentKey string) (string, error) {
	p := filepath.Join(s.dir, contentKey+blobExtension)
	if !strings.HasPrefix(filepath.Clean(p), filepath.Clean(s.dir)) {
		return "", errors.Newf(errors.ErrCodeStorageWrite, "invalid content key %q", contentKey)
	}
	return p, nil
}

func (s *blobStore) write(contentKey string, data []byte) error {
	p, err := s.path(contentKey)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0600); err != nil {
		return errors.Newf(errors.ErrCodeStorageWrite, "failed to write blob %s", contentKey).WithCause(err)
	}
	return nil
}

func (s *blobStore) read(contentKey string) ([]byte, error) {
	p, err := s.path(contentKey)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrCodeBlobNotFound, "blob %s does not exist", contentKey)
		}
		return nil, errors.Newf(errors.ErrCodeStorageRead, "failed to read blob %s", contentKey).WithCause(err)
	}
	return data, nil
}

// remove deletes the blob for a content key. A missing blob is not an error.
func (s *blobStore) remove(contentKey string) error {
	p, err := s.path(contentKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Newf(errors.ErrCodeStorageDelete, "failed to delete blob %s", contentKey).WithCause(err)
	}
	return nil
}
