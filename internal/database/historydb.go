package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/model"
	"golang.org/x/crypto/sha3"
)

// FileName is the database file created inside the data directory.
const FileName = "clientmap.db"

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// HistoryDB archives sessions, their reported objects and their trees.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	// Other processes may hold the write lock briefly.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Reported objects in arrival order per session
	CREATE TABLE IF NOT EXISTS reported_objects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		url TEXT NOT NULL,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,
		digest TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_objects_session ON reported_objects(session_id);
	CREATE INDEX IF NOT EXISTS idx_objects_url ON reported_objects(url);
	CREATE INDEX IF NOT EXISTS idx_objects_digest ON reported_objects(digest);

	-- Flattened observation tree, replaced on every save
	CREATE TABLE IF NOT EXISTS tree_nodes (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		name TEXT NOT NULL,
		depth INTEGER NOT NULL,
		visited INTEGER NOT NULL DEFAULT 0,
		storage INTEGER NOT NULL DEFAULT 0,
		components TEXT,
		PRIMARY KEY(session_id, url)
	);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SessionRecord summarizes a stored session.
type SessionRecord struct {
	ID          string
	Name        string
	StartedAt   time.Time
	ObjectCount int
	NodeCount   int
}

// CreateSession stores a new session. Creating an existing id is a no-op.
func (hdb *HistoryDB) CreateSession(ctx context.Context, id, name string) error {
	_, err := hdb.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves one session.
func (hdb *HistoryDB) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	sessions, err := hdb.querySessions(ctx, "WHERE s.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return &sessions[0], nil
}

// ListSessions returns every session, newest first.
func (hdb *HistoryDB) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	return hdb.querySessions(ctx, "")
}

// LatestSession returns the most recently started session.
func (hdb *HistoryDB) LatestSession(ctx context.Context) (*SessionRecord, error) {
	sessions, err := hdb.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrSessionNotFound
	}
	return &sessions[0], nil
}

func (hdb *HistoryDB) querySessions(ctx context.Context, where string, args ...interface{}) ([]SessionRecord, error) {
	query := `
	SELECT s.id, s.name, s.started_at,
		(SELECT COUNT(*) FROM reported_objects o WHERE o.session_id = s.id),
		(SELECT COUNT(*) FROM tree_nodes n WHERE n.session_id = s.id)
	FROM sessions s ` + where + `
	ORDER BY s.started_at DESC, s.rowid DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startedAt string
		if err := rows.Scan(&rec.ID, &rec.Name, &startedAt, &rec.ObjectCount, &rec.NodeCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		rec.StartedAt = parseTimestamp(startedAt)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// ObjectRecord is an archived reported object.
type ObjectRecord struct {
	ID         int64
	SessionID  string
	Object     model.ReportedObject
	Digest     string
	RecordedAt time.Time
}

// RecordObject appends obj to the session's archive.
func (hdb *HistoryDB) RecordObject(ctx context.Context, sessionID string, obj model.ReportedObject) error {
	kind := model.Kind(obj)
	if kind == "" {
		return fmt.Errorf("failed to record object: unsupported type %T", obj)
	}

	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to serialize reported object: %w", err)
	}

	_, err = hdb.db.ExecContext(ctx, `
	INSERT INTO reported_objects (session_id, kind, url, type, payload, digest)
	VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, kind, obj.URL(), obj.Type(), string(payload), Digest(payload))
	if err != nil {
		return fmt.Errorf("failed to record object: %w", err)
	}
	return nil
}

// Objects returns the archived objects of a session in arrival order.
func (hdb *HistoryDB) Objects(ctx context.Context, sessionID string) ([]ObjectRecord, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT id, session_id, kind, payload, digest, recorded_at
	FROM reported_objects
	WHERE session_id = ?
	ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer rows.Close()

	var results []ObjectRecord
	for rows.Next() {
		var rec ObjectRecord
		var kind, payload, recordedAt string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &kind, &payload, &rec.Digest, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}

		obj, err := decodeObject(kind, payload)
		if err != nil {
			continue // Skip malformed rows
		}
		rec.Object = obj
		rec.RecordedAt = parseTimestamp(recordedAt)
		results = append(results, rec)
	}
	return results, rows.Err()
}

func decodeObject(kind, payload string) (model.ReportedObject, error) {
	switch kind {
	case "event":
		var e model.ReportedEvent
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, err
		}
		return &e, nil
	case "node":
		var n model.ReportedNode
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			return nil, err
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

// TreeRow is one archived tree node.
type TreeRow struct {
	URL        string
	Name       string
	Depth      int
	Visited    bool
	Storage    bool
	Components []clientmap.Component
}

// SaveTree replaces the stored tree of a session with the current content
// of tree. The root is not stored.
func (hdb *HistoryDB) SaveTree(ctx context.Context, sessionID string, tree *clientmap.Map) error {
	var rows []TreeRow
	tree.Walk(func(n clientmap.Node, depth int) {
		if n.IsRoot() {
			return
		}
		rows = append(rows, TreeRow{
			URL:        n.URL,
			Name:       n.Name,
			Depth:      depth,
			Visited:    n.Visited,
			Storage:    n.HasStorageSideEffects,
			Components: n.Components,
		})
	})

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM tree_nodes WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear tree: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO tree_nodes (session_id, url, name, depth, visited, storage, components)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tree insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var components sql.NullString
		if len(r.Components) > 0 {
			data, err := json.Marshal(r.Components)
			if err != nil {
				return fmt.Errorf("failed to serialize components: %w", err)
			}
			components = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, sessionID, r.URL, r.Name, r.Depth, r.Visited, r.Storage, components); err != nil {
			return fmt.Errorf("failed to save tree node %s: %w", r.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tree: %w", err)
	}
	return nil
}

// Tree returns the stored tree of a session in walk order.
func (hdb *HistoryDB) Tree(ctx context.Context, sessionID string) ([]TreeRow, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT url, name, depth, visited, storage, components
	FROM tree_nodes
	WHERE session_id = ?
	ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tree: %w", err)
	}
	defer rows.Close()

	var results []TreeRow
	for rows.Next() {
		var r TreeRow
		var components sql.NullString
		if err := rows.Scan(&r.URL, &r.Name, &r.Depth, &r.Visited, &r.Storage, &components); err != nil {
			return nil, fmt.Errorf("failed to scan tree node: %w", err)
		}
		if components.Valid && components.String != "" {
			if err := json.Unmarshal([]byte(components.String), &r.Components); err != nil {
				r.Components = nil
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Digest returns the hex SHA3-256 digest of payload.
func Digest(payload []byte) string {
	sum := sha3.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
