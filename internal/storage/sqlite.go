package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite database holding the example corpus.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "examples.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: ":memory:" databases are per-connection, and writers
	// never contend with each other.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Examples ---

// InsertExample stores ex and returns the id assigned to it.
func (s *Store) InsertExample(ctx context.Context, ex Example) (int64, error) {
	ids, err := s.InsertExamples(ctx, []Example{ex})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// InsertExamples stores all examples in one transaction. Either every row
// is written or none is. Every embedding must match the dimension already
// stored, or the first example's when the store is empty; otherwise a
// *DimensionError is returned.
func (s *Store) InsertExamples(ctx context.Context, examples []Example) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	dim, err := embeddingDimension(ctx, tx)
	if err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO examples (description, command, embedding, dimension, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(examples))
	for i, ex := range examples {
		if len(ex.Embedding) == 0 {
			return nil, fmt.Errorf("example %d has no embedding", i)
		}
		if dim == 0 {
			dim = len(ex.Embedding)
		}
		if len(ex.Embedding) != dim {
			return nil, &DimensionError{Want: dim, Got: len(ex.Embedding)}
		}
		createdAt := ex.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		res, err := stmt.ExecContext(ctx, ex.Description, ex.Command, encodeFloat32s(ex.Embedding),
			len(ex.Embedding), createdAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return nil, fmt.Errorf("inserting example %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading id of example %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing examples: %w", err)
	}
	return ids, nil
}

// ListExamples returns every example in ascending id order.
func (s *Store) ListExamples(ctx context.Context) ([]Example, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, command, embedding, created_at
		FROM examples ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying examples: %w", err)
	}
	defer rows.Close()

	var out []Example
	for rows.Next() {
		ex, err := scanExample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating examples: %w", err)
	}
	return out, nil
}

// GetExample returns the example with the given id, or ErrNotFound.
func (s *Store) GetExample(ctx context.Context, id int64) (Example, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, command, embedding, created_at
		FROM examples WHERE id = ?`, id)
	ex, err := scanExample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Example{}, ErrNotFound
	}
	return ex, err
}

// DeleteExample removes the example with the given id.
func (s *Store) DeleteExample(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM examples WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountExamples returns the number of stored examples.
func (s *Store) CountExamples(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM examples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting examples: %w", err)
	}
	return n, nil
}

// EmbeddingDimension returns the dimension shared by stored embeddings,
// or 0 when the store is empty.
func (s *Store) EmbeddingDimension(ctx context.Context) (int, error) {
	return embeddingDimension(ctx, s.db)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func embeddingDimension(ctx context.Context, q queryer) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, `SELECT dimension FROM examples ORDER BY id ASC LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading embedding dimension: %w", err)
	}
	return dim, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExample(r rowScanner) (Example, error) {
	var ex Example
	var blob []byte
	var createdAt string
	if err := r.Scan(&ex.ID, &ex.Description, &ex.Command, &blob, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Example{}, err
		}
		return Example{}, fmt.Errorf("scanning example: %w", err)
	}
	vec, err := decodeFloat32s(blob)
	if err != nil {
		return Example{}, fmt.Errorf("decoding embedding for example %d: %w", ex.ID, err)
	}
	ex.Embedding = vec
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Example{}, fmt.Errorf("parsing created_at: %w", err)
	}
	ex.CreatedAt = t
	return ex, nil
}
