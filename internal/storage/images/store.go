// Package images управляет файлами изображений товаров.
package images

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// FileStore хранит изображения в каталоге на диске.
type FileStore struct {
	dir string
}

// NewFileStore создаёт хранилище изображений в dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path возвращает абсолютный путь изображения по ссылке, не выходя за пределы каталога.
func (s *FileStore) Path(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if ref == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", domain.NewValidationError("image_ref", "must be a relative path inside the images dir")
	}
	return filepath.Join(s.dir, clean), nil
}

// Remove удаляет изображение. Отсутствующий файл не считается ошибкой.
func (s *FileStore) Remove(ref string) error {
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image %s: %w", ref, err)
	}
	return nil
}

var _ domain.ImageStore = (*FileStore)(nil)
