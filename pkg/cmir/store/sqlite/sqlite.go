package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/cognicore/cmir/pkg/cmir/internalerr"
	"github.com/cognicore/cmir/pkg/cmir/registry"
	"github.com/cognicore/cmir/pkg/cmir/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS entity_ref (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_ref TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	ref_source TEXT NOT NULL DEFAULT '',
	entity_strength INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(entity_ref, entity_type, ref_source)
);

CREATE INDEX IF NOT EXISTS entity_ref_ref ON entity_ref(entity_ref);

CREATE TABLE IF NOT EXISTS entity_string (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_str TEXT NOT NULL,
	source_fld TEXT NOT NULL,
	station TEXT NOT NULL DEFAULT '',
	play_id INTEGER,
	parsed_data TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(entity_str, source_fld, station)
);

CREATE TABLE IF NOT EXISTS play_seq (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ulid TEXT UNIQUE NOT NULL,
	seq_hash INTEGER NOT NULL,
	hash_level INTEGER NOT NULL,
	hash_type INTEGER NOT NULL,
	play_id INTEGER NOT NULL,
	station TEXT NOT NULL DEFAULT '',
	session TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	UNIQUE(station, hash_level, hash_type, play_id)
);

CREATE INDEX IF NOT EXISTS play_seq_seq_hash ON play_seq(seq_hash);
CREATE INDEX IF NOT EXISTS play_seq_station ON play_seq(station, hash_level);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UpsertEntityRef inserts a ref or raises the strength of an existing one.
func (s *sqliteStore) UpsertEntityRef(ctx context.Context, r store.EntityRef) error {
	key := registry.Key(r.Ref)
	if key == "" || r.Type == "" {
		return fmt.Errorf("entity ref %q/%q: %w", r.Ref, r.Type, internalerr.ErrInvalidInput)
	}

	ts := now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO entity_ref (entity_ref, entity_type, ref_source, entity_strength, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(entity_ref, entity_type, ref_source) DO UPDATE SET
	entity_strength=MAX(entity_strength, excluded.entity_strength),
	updated_at=excluded.updated_at;
`, key, r.Type, r.Source, r.Strength, ts, ts)
	if err != nil {
		return fmt.Errorf("upsert entity ref %q: %w", key, err)
	}
	return nil
}

// GetEntityRefs returns every row for ref, strongest first.
func (s *sqliteStore) GetEntityRefs(ctx context.Context, ref string) ([]store.EntityRef, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT entity_ref, entity_type, ref_source, entity_strength
FROM entity_ref
WHERE entity_ref = ?
ORDER BY entity_strength DESC, entity_type, ref_source;
`, registry.Key(ref))
	if err != nil {
		return nil, fmt.Errorf("get entity refs: %w", err)
	}
	defer rows.Close()

	return scanRefs(rows)
}

func scanRefs(rows *sql.Rows) ([]store.EntityRef, error) {
	var refs []store.EntityRef
	for rows.Next() {
		var r store.EntityRef
		if err := rows.Scan(&r.Ref, &r.Type, &r.Source, &r.Strength); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// UpsertEntityString records a raw string; the latest parse wins.
func (s *sqliteStore) UpsertEntityString(ctx context.Context, es store.EntityString) error {
	if es.Str == "" || es.SourceField == "" {
		return fmt.Errorf("entity string %q/%q: %w", es.Str, es.SourceField, internalerr.ErrInvalidInput)
	}

	var playID sql.NullInt64
	if es.PlayID != 0 {
		playID = sql.NullInt64{Int64: es.PlayID, Valid: true}
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO entity_string (entity_str, source_fld, station, play_id, parsed_data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(entity_str, source_fld, station) DO UPDATE SET
	play_id=excluded.play_id,
	parsed_data=excluded.parsed_data,
	updated_at=excluded.updated_at;
`, es.Str, es.SourceField, es.Station, playID, es.ParsedData, ts, ts)
	if err != nil {
		return fmt.Errorf("upsert entity string: %w", err)
	}
	return nil
}

// GetEntityStrings lists the strings seen for a station, optionally limited
// to one source field.
func (s *sqliteStore) GetEntityStrings(ctx context.Context, station, sourceFld string) ([]store.EntityString, error) {
	query := `
SELECT entity_str, source_fld, station, play_id, parsed_data, updated_at
FROM entity_string
WHERE station = ?`
	args := []any{station}
	if sourceFld != "" {
		query += ` AND source_fld = ?`
		args = append(args, sourceFld)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get entity strings: %w", err)
	}
	defer rows.Close()

	var out []store.EntityString
	for rows.Next() {
		var (
			es      store.EntityString
			playID  sql.NullInt64
			parsed  sql.NullString
			updated string
		)
		if err := rows.Scan(&es.Str, &es.SourceField, &es.Station, &playID, &parsed, &updated); err != nil {
			return nil, err
		}
		es.PlayID = playID.Int64
		es.ParsedData = parsed.String
		if t, perr := time.Parse(time.RFC3339, updated); perr == nil {
			es.UpdatedAt = t
		}
		out = append(out, es)
	}
	return out, rows.Err()
}

// UpsertPlaySeq writes one fingerprint level; a play keeps a single row per
// (level, type). Play ids are station-local.
func (s *sqliteStore) UpsertPlaySeq(ctx context.Context, ps store.PlaySeq) error {
	if ps.HashLevel < 1 || ps.PlayID == 0 {
		return fmt.Errorf("play seq level %d play %d: %w", ps.HashLevel, ps.PlayID, internalerr.ErrInvalidInput)
	}
	if ps.ULID == "" {
		ps.ULID = ulid.Make().String()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO play_seq (ulid, seq_hash, hash_level, hash_type, play_id, station, session, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(station, hash_level, hash_type, play_id) DO UPDATE SET
	seq_hash=excluded.seq_hash,
	session=excluded.session;
`, ps.ULID, ps.SeqHash, ps.HashLevel, ps.HashType, ps.PlayID, ps.Station, ps.Session, now())
	if err != nil {
		return fmt.Errorf("upsert play seq: %w", err)
	}
	return nil
}

const playSeqCols = `ulid, seq_hash, hash_level, hash_type, play_id, station, session`

// GetPlaySeqsByHash returns rows sharing seqHash at level (level < 1 means
// any level).
func (s *sqliteStore) GetPlaySeqsByHash(ctx context.Context, seqHash int64, level int) ([]store.PlaySeq, error) {
	query := `SELECT ` + playSeqCols + ` FROM play_seq WHERE seq_hash = ?`
	args := []any{seqHash}
	if level > 0 {
		query += ` AND hash_level = ?`
		args = append(args, level)
	}
	query += ` ORDER BY id`
	return s.queryPlaySeqs(ctx, query, args...)
}

// GetPlaySeqsByStation returns a station's rows at level in insertion order.
func (s *sqliteStore) GetPlaySeqsByStation(ctx context.Context, station string, level int) ([]store.PlaySeq, error) {
	query := `SELECT ` + playSeqCols + ` FROM play_seq WHERE station = ?`
	args := []any{station}
	if level > 0 {
		query += ` AND hash_level = ?`
		args = append(args, level)
	}
	query += ` ORDER BY id`
	return s.queryPlaySeqs(ctx, query, args...)
}

func (s *sqliteStore) queryPlaySeqs(ctx context.Context, query string, args ...any) ([]store.PlaySeq, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query play seqs: %w", err)
	}
	defer rows.Close()

	var out []store.PlaySeq
	for rows.Next() {
		var ps store.PlaySeq
		if err := rows.Scan(&ps.ULID, &ps.SeqHash, &ps.HashLevel, &ps.HashType, &ps.PlayID, &ps.Station, &ps.Session); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// EntityRefs returns a view of entity_ref.
// Returns nil if the table is empty.
func (s *sqliteStore) EntityRefs() store.EntityRefView {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entity_ref`).Scan(&count); err != nil || count == 0 {
		return nil
	}
	return &sqliteRefView{db: s.db}
}

// --- SQLite EntityRefView ---

type sqliteRefView struct{ db *sql.DB }

func (v *sqliteRefView) Classify(candidate string) (registry.Classification, bool) {
	key := registry.Key(candidate)
	if key == "" {
		return registry.Classification{}, false
	}
	var c registry.Classification
	err := v.db.QueryRow(`
SELECT entity_type, entity_strength
FROM entity_ref
WHERE entity_ref = ?
ORDER BY entity_strength DESC, entity_type
LIMIT 1;
`, key).Scan(&c.Type, &c.Strength)
	if err != nil {
		return registry.Classification{}, false
	}
	return c, true
}

func (v *sqliteRefView) AllRefs() []store.EntityRef {
	rows, err := v.db.Query(`
SELECT entity_ref, entity_type, ref_source, entity_strength
FROM entity_ref
ORDER BY entity_ref, entity_type, ref_source`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	refs, _ := scanRefs(rows)
	return refs
}
