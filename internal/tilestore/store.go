package tilestore

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/MeKo-Tech/civicmaps/internal/tile"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultBatchSize is the number of queued tiles buffered before a flush.
const DefaultBatchSize = 100

// ErrTileNotFound is returned by Get when no tile is stored under a key.
var ErrTileNotFound = errors.New("tile not found")

// Key identifies one cached tile. Variant distinguishes renders of the
// same layer under different filters.
type Key struct {
	Layer   string
	Variant string
	Coords  tile.Coords
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d/%d/%d", k.Layer, k.Variant, k.Coords.Z, k.Coords.X, k.Coords.Y)
}

// tmsRow converts an XYZ row to the TMS row stored in tile_row.
func (k Key) tmsRow() int64 {
	return int64(1)<<k.Coords.Z - 1 - int64(k.Coords.Y)
}

type entry struct {
	key  Key
	data []byte
}

// Store is a SQLite-backed tile cache. It is safe for concurrent use.
type Store struct {
	db        *sql.DB
	path      string
	batch     []entry
	batchSize int
	mu        sync.Mutex
}

// Open creates or opens the database at path, initializes the schema and
// replaces the stored metadata with meta.
func Open(path string, meta Metadata) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, meta); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Store{
		db:        db,
		path:      path,
		batch:     make([]entry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS tiles (
			layer TEXT NOT NULL,
			variant TEXT NOT NULL,
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS tile_index
			ON tiles (layer, variant, zoom_level, tile_column, tile_row);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.toMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Get returns the decompressed tile stored under key.
func (s *Store) Get(ctx context.Context, key Key) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT tile_data FROM tiles
		 WHERE layer=? AND variant=? AND zoom_level=? AND tile_column=? AND tile_row=?`,
		key.Layer, key.Variant, key.Coords.Z, key.Coords.X, key.tmsRow(),
	).Scan(&compressed)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tile %s: %w", key, err)
	}

	data, err := gzipDecompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress tile %s: %w", key, err)
	}
	return data, nil
}

// Put stores a tile immediately, replacing any previous data for key.
func (s *Store) Put(ctx context.Context, key Key, data []byte) error {
	compressed, err := gzipCompress(data)
	if err != nil {
		return fmt.Errorf("failed to compress tile %s: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx, insertTile,
		key.Layer, key.Variant, key.Coords.Z, key.Coords.X, key.tmsRow(), compressed); err != nil {
		return fmt.Errorf("failed to insert tile %s: %w", key, err)
	}
	return nil
}

const insertTile = `INSERT OR REPLACE INTO tiles
	(layer, variant, zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?, ?, ?)`

// Queue adds a tile to the write batch. A full batch is flushed in one
// transaction.
func (s *Store) Queue(key Key, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = append(s.batch, entry{key: key, data: data})
	if len(s.batch) >= s.batchSize {
		return s.flushLocked()
	}
	return nil
}

// Flush writes any queued tiles.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked must be called with s.mu held.
func (s *Store) flushLocked() error {
	if len(s.batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(insertTile)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range s.batch {
		compressed, err := gzipCompress(e.data)
		if err != nil {
			return fmt.Errorf("failed to compress tile %s: %w", e.key, err)
		}
		if _, err := stmt.Exec(e.key.Layer, e.key.Variant, e.key.Coords.Z, e.key.Coords.X, e.key.tmsRow(), compressed); err != nil {
			return fmt.Errorf("failed to insert tile %s: %w", e.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.batch = s.batch[:0]
	return nil
}

// Count returns the number of tiles stored for a layer. An empty layer
// counts every tile.
func (s *Store) Count(ctx context.Context, layer string) (int, error) {
	var n int
	var err error
	if layer == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tiles").Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tiles WHERE layer=?", layer).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count tiles: %w", err)
	}
	return n, nil
}

// Purge removes every tile of a layer, or only one variant when variant is
// non-empty, and returns the number of rows deleted.
func (s *Store) Purge(ctx context.Context, layer, variant string) (int64, error) {
	var res sql.Result
	var err error
	if variant == "" {
		res, err = s.db.ExecContext(ctx, "DELETE FROM tiles WHERE layer=?", layer)
	} else {
		res, err = s.db.ExecContext(ctx, "DELETE FROM tiles WHERE layer=? AND variant=?", layer, variant)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", layer, err)
	}
	return res.RowsAffected()
}

// Metadata reads the metadata table.
func (s *Store) Metadata(ctx context.Context) (Metadata, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		m[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(m), nil
}

// Close flushes queued tiles and closes the database.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		s.db.Close()
		return err
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
