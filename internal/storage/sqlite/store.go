// Package sqlite хранит коллекции документов в файле SQLite (драйвер modernc.org/sqlite).
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents(
  collection TEXT NOT NULL,
  position INTEGER NOT NULL,
  body TEXT NOT NULL CHECK (json_valid(body)),
  saved_at TEXT DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (collection, position)
);`

// Store — документное хранилище поверх SQLite.
type Store struct {
	db *sqlx.DB
}

// Open открывает (или создаёт) базу по dsn и применяет схему.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Один писатель: SQLite сериализует запись, а ":memory:" живёт в пределах соединения.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает подключение sqlx.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Load читает документы коллекции в порядке сохранения.
func (s *Store) Load(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}

	var bodies []string
	if err := s.db.SelectContext(ctx, &bodies, `
		SELECT body FROM documents
		WHERE collection = ?
		ORDER BY position
	`, collection); err != nil {
		return nil, domain.StorageError("select", collection, err)
	}

	docs := make([]json.RawMessage, 0, len(bodies))
	for _, body := range bodies {
		docs = append(docs, json.RawMessage(body))
	}
	return docs, nil
}

// Save заменяет коллекцию в одной транзакции.
func (s *Store) Save(ctx context.Context, collection string, docs []json.RawMessage) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.StorageError("begin", collection, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection); err != nil {
		_ = tx.Rollback()
		return domain.StorageError("delete", collection, err)
	}
	for i, doc := range docs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents(collection, position, body) VALUES (?, ?, ?)`,
			collection, i, string(doc),
		); err != nil {
			_ = tx.Rollback()
			return domain.StorageError("insert", collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StorageError("commit", collection, err)
	}
	return nil
}

// Ping проверяет подключение.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.StorageError("ping", "sqlite", err)
	}
	return nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ storage.Store = (*Store)(nil)
