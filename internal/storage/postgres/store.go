package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

var errNotInitialized = errors.New("postgres store is not initialized")

// Store хранит коллекции документов в таблице documents: одна строка на документ,
// порядок задаётся колонкой position.
type Store struct {
	db *sql.DB
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return domain.StorageError("ping", "postgres", err)
	}
	return nil
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Load читает документы коллекции в порядке сохранения.
func (s *Store) Load(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, domain.StorageError("load", collection, errNotInitialized)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT body
		FROM documents
		WHERE collection = $1
		ORDER BY position
	`, collection)
	if err != nil {
		return nil, domain.StorageError("query", collection, err)
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, domain.StorageError("scan", collection, err)
		}
		docs = append(docs, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate", collection, err)
	}

	return docs, nil
}

// Save заменяет коллекцию в одной транзакции: удаление старых строк и вставка новых.
func (s *Store) Save(ctx context.Context, collection string, docs []json.RawMessage) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return domain.StorageError("save", collection, errNotInitialized)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError("begin", collection, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1`, collection); err != nil {
		_ = tx.Rollback()
		return domain.StorageError("delete", collection, err)
	}

	for i, doc := range docs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, position, body, saved_at)
			VALUES ($1, $2, $3::jsonb, NOW())
		`, collection, i, string(doc)); err != nil {
			_ = tx.Rollback()
			return domain.StorageError("insert", collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StorageError("commit", collection, err)
	}
	return nil
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ storage.Store = (*Store)(nil)
