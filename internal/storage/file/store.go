// Package file хранит каждую коллекцию отдельным JSON-файлом <dir>/<collection>.json.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store — файловое документное хранилище.
type Store struct {
	dir    string
	logger *log.Entry
}

// Open создаёт каталог данных при необходимости.
func Open(dir string, logger *log.Entry) (*Store, error) {
	if logger == nil {
		logger = log.New().WithField("component", "file-store")
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: data dir is empty", domain.ErrStorageFailure)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, domain.StorageError("mkdir", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir возвращает каталог данных.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// Load читает коллекцию. Отсутствующий или пустой файл означает пустую коллекцию;
// повреждённый файл возвращает ошибку, а не пустой результат.
func (s *Store) Load(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageError("load", collection, err)
	}

	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return []json.RawMessage{}, nil
		}
		return nil, domain.StorageError("read", collection, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []json.RawMessage{}, nil
	}

	var docs []json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, domain.StorageError("decode", collection, err)
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}
	return docs, nil
}

// Save пишет коллекцию во временный файл в том же каталоге, делает fsync и атомарно
// переименовывает его поверх целевого. При ошибке прежний файл остаётся нетронутым.
func (s *Store) Save(ctx context.Context, collection string, docs []json.RawMessage) (err error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.StorageError("save", collection, err)
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return domain.StorageError("encode", collection, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+collection+"-*.tmp")
	if err != nil {
		return domain.StorageError("create temp", collection, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return domain.StorageError("write", collection, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return domain.StorageError("sync", collection, err)
	}
	if err = tmp.Close(); err != nil {
		return domain.StorageError("close", collection, err)
	}
	if err = os.Chmod(tmpName, filePerm); err != nil {
		return domain.StorageError("chmod", collection, err)
	}
	if err = os.Rename(tmpName, s.path(collection)); err != nil {
		return domain.StorageError("rename", collection, err)
	}

	if syncErr := syncDir(s.dir); syncErr != nil {
		// Файл уже заменён; отсутствие fsync каталога не отменяет запись.
		s.logger.WithError(syncErr).WithField("collection", collection).Warn("failed to sync data dir")
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Ping проверяет, что каталог данных существует.
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return domain.StorageError("stat", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrStorageFailure, s.dir)
	}
	return nil
}

// Close ничего не делает: файлы не держатся открытыми.
func (s *Store) Close() error {
	return nil
}

var _ storage.Store = (*Store)(nil)
