package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ricesearch/rice-chunk/internal/chunk"
	"github.com/ricesearch/rice-chunk/internal/index"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// SQLiteSink stores records in a SQLite database. Writing a document
// replaces the chunks it had from earlier runs.
type SQLiteSink struct {
	db *sql.DB

	mu       sync.Mutex
	replaced map[string]bool
}

// openDatabase opens a SQLite database with appropriate settings.
func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteSink opens (creating if needed) the database at path and
// applies migrations.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteSink{db: db, replaced: make(map[string]bool)}, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

const upsertDocument = `
INSERT INTO documents (path, document_id, content_hash, language, chunk_count, updated_at)
VALUES (?, ?, ?, ?, 0, CURRENT_TIMESTAMP)
ON CONFLICT(path) DO UPDATE SET
    document_id = excluded.document_id,
    content_hash = excluded.content_hash,
    language = excluded.language,
    updated_at = CURRENT_TIMESTAMP`

const insertChunk = `
INSERT OR REPLACE INTO chunks (
    id, path, chunk_index, start_byte, end_byte, start_line, end_line,
    unit, size, core_size, preamble_size, node_count, oversized, template,
    ancestors, warnings, metadata, content, core, hash
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Write stores records in one transaction. The first time a path is seen
// by this sink its previous chunks are removed.
func (s *SQLiteSink) Write(ctx context.Context, records []index.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	touched := make(map[string]bool)
	fresh := make(map[string]bool)
	for i := range records {
		r := &records[i]
		if !touched[r.Path] {
			touched[r.Path] = true
			if !s.replaced[r.Path] {
				if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE path = ?", r.Path); err != nil {
					return fmt.Errorf("failed to clear chunks for %s: %w", r.Path, err)
				}
				fresh[r.Path] = true
			}
			if _, err := tx.ExecContext(ctx, upsertDocument, r.Path, r.DocumentID, r.DocumentHash, r.Language); err != nil {
				return fmt.Errorf("failed to upsert document %s: %w", r.Path, err)
			}
		}

		ancestors, err := jsonText(r.Ancestors)
		if err != nil {
			return err
		}
		warnings, err := jsonText(r.Warnings)
		if err != nil {
			return err
		}
		metadata, err := jsonText(r.Metadata)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, insertChunk,
			r.ID, r.Path, r.Index, r.StartByte, r.EndByte, r.StartLine, r.EndLine,
			string(r.Unit), r.Size, r.CoreSize, r.PreambleSize, r.NodeCount, r.Oversized, string(r.Template),
			ancestors, warnings, metadata, r.Content, r.Core, r.Hash,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", r.ID, err)
		}
	}

	for path := range touched {
		if _, err := tx.ExecContext(ctx,
			"UPDATE documents SET chunk_count = (SELECT COUNT(*) FROM chunks WHERE path = ?) WHERE path = ?",
			path, path); err != nil {
			return fmt.Errorf("failed to count chunks for %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	for path := range fresh {
		s.replaced[path] = true
	}
	return nil
}

// BeginRun starts a new write session: the next write of each path
// replaces its stored chunks again.
func (s *SQLiteSink) BeginRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = make(map[string]bool)
}

// DocumentHashes returns the content hash of every stored document, keyed
// by path.
func (s *SQLiteSink) DocumentHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, content_hash FROM documents")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, h string
		if err := rows.Scan(&path, &h); err != nil {
			return nil, err
		}
		hashes[path] = h
	}
	return hashes, rows.Err()
}

// underPath matches a path or anything below it. substr is used instead of
// LIKE so "%" and "_" in file names stay literal.
const underPath = "path = ? OR substr(path, 1, length(?)) = ?"

// DeleteDocuments removes documents and their chunks. A path also matches
// every document below it, so a removed directory takes its files along.
func (s *SQLiteSink) DeleteDocuments(ctx context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range paths {
		prefix := strings.TrimSuffix(path, string(filepath.Separator)) + string(filepath.Separator)
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE "+underPath, path, prefix, prefix); err != nil {
			return fmt.Errorf("failed to delete chunks of %s: %w", path, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE "+underPath, path, prefix, prefix); err != nil {
			return fmt.Errorf("failed to delete document %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// Stats summarises the database contents.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// Stats returns document and chunk counts.
func (s *SQLiteSink) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&st.Documents); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&st.Chunks); err != nil {
		return st, err
	}
	return st, nil
}

// Chunks returns the stored records of a document in chunk order.
func (s *SQLiteSink) Chunks(ctx context.Context, path string) ([]index.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, d.document_id, d.content_hash, c.path, d.language, c.chunk_index,
       c.start_byte, c.end_byte, c.start_line, c.end_line, c.unit, c.size,
       c.core_size, c.preamble_size, c.node_count, c.oversized, c.template,
       c.ancestors, c.warnings, c.metadata, c.content, c.core, c.hash
FROM chunks c JOIN documents d ON d.path = c.path
WHERE c.path = ?
ORDER BY c.chunk_index`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var out []index.Record
	for rows.Next() {
		var (
			r                             index.Record
			unit, template                string
			ancestors, warnings, metadata sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.DocumentID, &r.DocumentHash, &r.Path, &r.Language, &r.Index,
			&r.StartByte, &r.EndByte, &r.StartLine, &r.EndLine, &unit, &r.Size,
			&r.CoreSize, &r.PreambleSize, &r.NodeCount, &r.Oversized, &template,
			&ancestors, &warnings, &metadata, &r.Content, &r.Core, &r.Hash,
		); err != nil {
			return nil, err
		}
		r.Unit = chunk.Unit(unit)
		r.Template = index.Template(template)
		if err := fromJSONText(ancestors, &r.Ancestors); err != nil {
			return nil, err
		}
		if err := fromJSONText(warnings, &r.Warnings); err != nil {
			return nil, err
		}
		if err := fromJSONText(metadata, &r.Metadata); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Paths lists stored document paths, sorted.
func (s *SQLiteSink) Paths(ctx context.Context) ([]string, error) {
	hashes, err := s.DocumentHashes(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(hashes))
	for p := range hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func jsonText(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode column: %w", err)
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func fromJSONText(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}
