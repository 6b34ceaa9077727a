package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Схема таблицы documents версионируется встроенными файлами
// sql/migrations/NNNN_name.{up,down}.sql. Применённые версии записываются в document_migrations.
const (
	migrationsDir    = "sql/migrations"
	migrationsTable  = "document_migrations"
	migrationLockKey = int64(20260311)
	migrationTimeout = 5 * time.Second

	createMigrationsTable = `
CREATE TABLE IF NOT EXISTS document_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	migrationFileRe = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)
)

// schemaStep — пара up/down скриптов одной версии схемы.
type schemaStep struct {
	version int64
	name    string
	up      string
	down    string
}

func (s schemaStep) label() string {
	return fmt.Sprintf("%04d_%s", s.version, s.name)
}

// MigrationInfo описывает одну встроенную миграцию и факт её применения.
type MigrationInfo struct {
	Version int64
	Name    string
	Applied bool
}

// MigrateUp применяет ещё не применённые миграции по возрастанию версии.
// limit<=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, limit int) error {
	return s.withSchemaConn(ctx, "migrate up", func(conn *sql.Conn, steps []schemaStep, applied map[int64]bool) error {
		for _, step := range planUp(steps, applied, limit) {
			if err := runStep(ctx, conn, step, true); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrateDown откатывает последние применённые миграции. limit<=0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 1
	}
	return s.withSchemaConn(ctx, "migrate down", func(conn *sql.Conn, steps []schemaStep, applied map[int64]bool) error {
		targets, err := planDown(steps, applied, limit)
		if err != nil {
			return err
		}
		for _, step := range targets {
			if err := runStep(ctx, conn, step, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus возвращает старшую применённую версию и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	var (
		version int64
		count   int
	)
	err := s.withSchemaConn(ctx, "migration status", func(_ *sql.Conn, _ []schemaStep, applied map[int64]bool) error {
		for v := range applied {
			version = max(version, v)
		}
		count = len(applied)
		return nil
	})
	return version, count, err
}

// MigrationPlan перечисляет встроенные миграции по возрастанию версии с отметкой о применении.
func (s *Store) MigrationPlan(ctx context.Context) ([]MigrationInfo, error) {
	var plan []MigrationInfo
	err := s.withSchemaConn(ctx, "migration plan", func(_ *sql.Conn, steps []schemaStep, applied map[int64]bool) error {
		plan = make([]MigrationInfo, 0, len(steps))
		for _, step := range steps {
			plan = append(plan, MigrationInfo{Version: step.version, Name: step.name, Applied: applied[step.version]})
		}
		return nil
	})
	return plan, err
}

// withSchemaConn выполняет fn на выделенном соединении под advisory lock, чтобы два процесса
// не применяли миграции одновременно. Ошибки относятся к категории ErrStorageFailure.
func (s *Store) withSchemaConn(ctx context.Context, op string, fn func(*sql.Conn, []schemaStep, map[int64]bool) error) error {
	if s == nil || s.db == nil {
		return domain.StorageError(op, migrationsTable, errNotInitialized)
	}

	steps, err := readSchemaSteps(migrationsFS)
	if err != nil {
		return domain.StorageError(op, migrationsTable, err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return domain.StorageError(op, migrationsTable, fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return domain.StorageError(op, migrationsTable, fmt.Errorf("acquire migration lock: %w", err))
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, createMigrationsTable); err != nil {
		return domain.StorageError(op, migrationsTable, err)
	}
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return domain.StorageError(op, migrationsTable, err)
	}
	if err := fn(conn, steps, applied); err != nil {
		return domain.StorageError(op, migrationsTable, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM document_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// runStep выполняет скрипт и запись в журнал версий в одной транзакции.
func runStep(ctx context.Context, conn *sql.Conn, step schemaStep, up bool) (err error) {
	direction, script := "up", step.up
	if !up {
		direction, script = "down", step.down
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s %s: %w", direction, step.label(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("%s %s: %w", direction, step.label(), err)
	}
	if up {
		_, err = tx.ExecContext(ctx, `INSERT INTO document_migrations (version, name) VALUES ($1, $2)`, step.version, step.name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM document_migrations WHERE version = $1`, step.version)
	}
	if err != nil {
		return fmt.Errorf("record %s %s: %w", direction, step.label(), err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s %s: %w", direction, step.label(), err)
	}
	return nil
}

// planUp выбирает неприменённые шаги по возрастанию версии, не больше limit (limit<=0 — все).
func planUp(steps []schemaStep, applied map[int64]bool, limit int) []schemaStep {
	var pending []schemaStep
	for _, step := range steps {
		if applied[step.version] {
			continue
		}
		pending = append(pending, step)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending
}

// planDown выбирает limit старших применённых шагов по убыванию версии.
// Применённая версия без встроенного скрипта — ошибка: откатить её нечем.
func planDown(steps []schemaStep, applied map[int64]bool, limit int) ([]schemaStep, error) {
	byVersion := make(map[int64]schemaStep, len(steps))
	for _, step := range steps {
		byVersion[step.version] = step
	}

	versions := make([]int64, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
	if len(versions) > limit {
		versions = versions[:limit]
	}

	targets := make([]schemaStep, 0, len(versions))
	for _, v := range versions {
		step, ok := byVersion[v]
		if !ok {
			return nil, fmt.Errorf("applied version %d has no embedded migration to roll back", v)
		}
		targets = append(targets, step)
	}
	return targets, nil
}

// readSchemaSteps собирает пары up/down из каталога миграций и проверяет их полноту.
func readSchemaSteps(fsys fs.FS) ([]schemaStep, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int64]*schemaStep)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := entry.Name()
		m := migrationFileRe.FindStringSubmatch(file)
		if m == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", file)
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", file, err)
		}

		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, file))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", file)
		}

		step, ok := byVersion[version]
		if !ok {
			step = &schemaStep{version: version, name: m[2]}
			byVersion[version] = step
		}
		if step.name != m[2] {
			return nil, fmt.Errorf("version %d has two names: %s and %s", version, step.name, m[2])
		}

		target := &step.up
		if m[3] == "down" {
			target = &step.down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s script for version %d", m[3], version)
		}
		*target = body
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	steps := make([]schemaStep, 0, len(byVersion))
	for _, step := range byVersion {
		if step.up == "" || step.down == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", step.label())
		}
		steps = append(steps, *step)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}
