package storage

import (
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/hperssn/wizard/internal/domain"
)

var ErrInvalidKey = errors.New("invalid storage key")

// BlobStore keeps uploaded attachment bodies under generated keys.
type BlobStore struct {
	fs  afero.Fs
	dir string
}

func NewBlobStore(fs afero.Fs, dir string) (*BlobStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &BlobStore{fs: fs, dir: dir}, nil
}

// Put stores the body and returns its reference. The original name is kept
// for display only; the key never derives from it beyond the extension.
func (b *BlobStore) Put(originalName string, body io.Reader) (domain.AttachmentRef, error) {
	key := uuid.NewString() + strings.ToLower(path.Ext(originalName))

	f, err := b.fs.Create(filepath.Join(b.dir, key))
	if err != nil {
		return domain.AttachmentRef{}, fmt.Errorf("create blob: %w", err)
	}

	size, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = b.fs.Remove(filepath.Join(b.dir, key))
		return domain.AttachmentRef{}, fmt.Errorf("write blob: %w", err)
	}

	return domain.AttachmentRef{
		OriginalName: path.Base(originalName),
		Size:         size,
		StorageKey:   key,
	}, nil
}

func (b *BlobStore) Open(key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return b.fs.Open(filepath.Join(b.dir, key))
}

func (b *BlobStore) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := b.fs.Remove(filepath.Join(b.dir, key))
	if errors.Is(err, afero.ErrFileNotFound) {
		return nil
	}
	return err
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
