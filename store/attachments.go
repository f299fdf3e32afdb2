package store

import (
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
)

// SaveAttachment writes an uploaded file under the upload directory with
// a random name, keeping the original extension, and returns the
// relative path recorded on the event.
func (s *Store) SaveAttachment(filename string, r io.Reader) (string, error) {
	ext := filepath.Ext(filename)
	name := uuid.NewString() + ext

	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", err
	}
	return path.Join("uploads", name), nil
}
