package state

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ning0612/snapdiff/internal/checksum"
	"github.com/Ning0612/snapdiff/internal/domain"
	"github.com/Ning0612/snapdiff/internal/snapshotio"
)

// DBFile is the database file name inside the store directory
const DBFile = "snapdiff.db"

// minPrefix is the shortest id prefix accepted by lookups
const minPrefix = 4

// Manager stores snapshots and comparison history in SQLite
type Manager struct {
	db *sql.DB

	// Fingerprint selects the hash used to detect identical recordings
	Fingerprint checksum.Algorithm

	calc checksum.Calculator
}

// SnapshotRecord describes a stored snapshot without its entries
type SnapshotRecord struct {
	ID          string
	Label       string
	RootPath    string
	Version     string
	CreatedAt   time.Time
	Files       int
	Dirs        int
	TotalBytes  int64
	Fingerprint string
	StoredAt    time.Time
}

// ComparisonRecord represents a single recorded comparison
type ComparisonRecord struct {
	ID         int64
	OldID      string
	NewID      string
	OldLabel   string
	NewLabel   string
	ComparedAt time.Time
	Added      int
	Deleted    int
	Modified   int
	Unchanged  int
}

// NewComparisonRecord summarizes a comparison result
func NewComparisonRecord(oldRec, newRec SnapshotRecord, result *domain.ComparisonResult) ComparisonRecord {
	s := result.Stats
	return ComparisonRecord{
		OldID:      oldRec.ID,
		NewID:      newRec.ID,
		OldLabel:   oldRec.Label,
		NewLabel:   newRec.Label,
		ComparedAt: time.Now(),
		Added:      s.AddedFiles + s.AddedDirs,
		Deleted:    s.DeletedFiles + s.DeletedDirs,
		Modified:   s.ModifiedFiles + s.ModifiedDirs,
		Unchanged:  s.UnchangedFiles,
	}
}

// NewManager creates a new state manager
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	manager := &Manager{
		db:          db,
		Fingerprint: checksum.SHA256,
		calc:        checksum.NewDefaultCalculator(),
	}

	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

// initSchema creates the database schema
func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		root_path TEXT NOT NULL,
		version TEXT,
		created_at TIMESTAMP NOT NULL,
		files INTEGER DEFAULT 0,
		dirs INTEGER DEFAULT 0,
		total_bytes INTEGER DEFAULT 0,
		fingerprint TEXT NOT NULL,
		data BLOB NOT NULL,
		stored_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_label_time ON snapshots(label, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_snapshots_fingerprint ON snapshots(label, fingerprint);

	CREATE TABLE IF NOT EXISTS comparisons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		old_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		new_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		compared_at TIMESTAMP NOT NULL,
		added INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		modified INTEGER DEFAULT 0,
		unchanged INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_comparisons_time ON comparisons(compared_at DESC);
	`

	_, err := m.db.Exec(schema)
	return err
}

// fingerprint hashes the content of a snapshot: its root and entries.
// Creation time and version label are left out so that two scans of an
// unchanged tree produce the same value.
func (m *Manager) fingerprint(ctx context.Context, s *domain.Snapshot) (string, error) {
	var buf bytes.Buffer
	content := &domain.Snapshot{RootPath: s.RootPath, Entries: s.Entries}
	if err := snapshotio.Encode(&buf, content); err != nil {
		return "", err
	}
	return m.calc.Calculate(ctx, &buf, m.Fingerprint)
}

// SaveSnapshot stores s under label.
// If the newest snapshot with the same label has identical content, that
// record is returned with existed set and nothing is written.
func (m *Manager) SaveSnapshot(ctx context.Context, label string, s *domain.Snapshot) (rec SnapshotRecord, existed bool, err error) {
	if s == nil {
		return rec, false, fmt.Errorf("%w: snapshot is nil", domain.ErrInvalidInput)
	}
	if label == "" {
		label = s.RootPath
	}

	fp, err := m.fingerprint(ctx, s)
	if err != nil {
		return rec, false, fmt.Errorf("failed to fingerprint snapshot: %w", err)
	}

	latest, err := m.Latest(ctx, label)
	if err != nil {
		return rec, false, err
	}
	if latest != nil && latest.Fingerprint == fp {
		return *latest, true, nil
	}

	var data bytes.Buffer
	if err := snapshotio.Encode(&data, s); err != nil {
		return rec, false, err
	}

	files, dirs := s.Count()
	rec = SnapshotRecord{
		ID:          uuid.NewString(),
		Label:       label,
		RootPath:    s.RootPath,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		Files:       files,
		Dirs:        dirs,
		TotalBytes:  s.TotalSize(),
		Fingerprint: fp,
		StoredAt:    time.Now(),
	}

	query := `
		INSERT INTO snapshots (id, label, root_path, version, created_at, files, dirs, total_bytes, fingerprint, data, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = m.db.ExecContext(ctx, query,
		rec.ID,
		rec.Label,
		rec.RootPath,
		rec.Version,
		rec.CreatedAt,
		rec.Files,
		rec.Dirs,
		rec.TotalBytes,
		rec.Fingerprint,
		data.Bytes(),
		rec.StoredAt,
	)
	if err != nil {
		return SnapshotRecord{}, false, fmt.Errorf("failed to save snapshot: %w", err)
	}

	return rec, false, nil
}

const snapshotColumns = `id, label, root_path, version, created_at, files, dirs, total_bytes, fingerprint, stored_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (SnapshotRecord, error) {
	var rec SnapshotRecord
	var version sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.Label,
		&rec.RootPath,
		&version,
		&rec.CreatedAt,
		&rec.Files,
		&rec.Dirs,
		&rec.TotalBytes,
		&rec.Fingerprint,
		&rec.StoredAt,
	)
	rec.Version = version.String
	return rec, err
}

// resolveID expands a unique id prefix to a full id
func (m *Manager) resolveID(ctx context.Context, ref string) (string, error) {
	if len(ref) < minPrefix {
		return "", fmt.Errorf("%w: snapshot id %q is too short", domain.ErrInvalidInput, ref)
	}

	rows, err := m.db.QueryContext(ctx, `SELECT id FROM snapshots WHERE substr(id, 1, length(?1)) = ?1 LIMIT 2`, ref)
	if err != nil {
		return "", fmt.Errorf("failed to query snapshot ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: no stored snapshot %q", domain.ErrSourceUnavailable, ref)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: snapshot id %q is ambiguous", domain.ErrInvalidInput, ref)
	}
}

// GetSnapshot returns the record for an id or unique id prefix
func (m *Manager) GetSnapshot(ctx context.Context, ref string) (SnapshotRecord, error) {
	id, err := m.resolveID(ctx, ref)
	if err != nil {
		return SnapshotRecord{}, err
	}

	row := m.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return rec, nil
}

// LoadSnapshot returns the full snapshot for an id or unique id prefix
func (m *Manager) LoadSnapshot(ctx context.Context, ref string) (*domain.Snapshot, SnapshotRecord, error) {
	rec, err := m.GetSnapshot(ctx, ref)
	if err != nil {
		return nil, rec, err
	}

	var data []byte
	if err := m.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE id = ?`, rec.ID).Scan(&data); err != nil {
		return nil, rec, fmt.Errorf("failed to load snapshot data: %w", err)
	}

	s, err := snapshotio.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, rec, fmt.Errorf("stored snapshot %s: %w", rec.ID, err)
	}
	return s, rec, nil
}

// Latest returns the newest snapshot stored under label, or nil if none
func (m *Manager) Latest(ctx context.Context, label string) (*SnapshotRecord, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE label = ? ORDER BY created_at DESC, stored_at DESC LIMIT 1`

	rec, err := scanRecord(m.db.QueryRowContext(ctx, query, label))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return &rec, nil
}

// ListSnapshots returns stored snapshots newest first.
// An empty label lists every label.
func (m *Manager) ListSnapshots(ctx context.Context, label string, limit int) ([]SnapshotRecord, error) {
	// Validate limit
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `SELECT ` + snapshotColumns + ` FROM snapshots`
	args := []interface{}{}
	if label != "" {
		query += ` WHERE label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY created_at DESC, stored_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// DeleteSnapshot removes a snapshot and the comparisons that reference it
func (m *Manager) DeleteSnapshot(ctx context.Context, ref string) error {
	id, err := m.resolveID(ctx, ref)
	if err != nil {
		return err
	}

	if _, err := m.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// RecordComparison records a comparison between two stored snapshots
func (m *Manager) RecordComparison(ctx context.Context, record ComparisonRecord) (int64, error) {
	if record.OldID == "" || record.NewID == "" {
		return 0, fmt.Errorf("%w: comparison needs both snapshot ids", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO comparisons (old_id, new_id, compared_at, added, deleted, modified, unchanged)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := m.db.ExecContext(ctx, query,
		record.OldID,
		record.NewID,
		record.ComparedAt,
		record.Added,
		record.Deleted,
		record.Modified,
		record.Unchanged,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save comparison record: %w", err)
	}

	return res.LastInsertId()
}

// GetHistory retrieves recorded comparisons newest first
func (m *Manager) GetHistory(ctx context.Context, limit int) ([]ComparisonRecord, error) {
	// Validate limit
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT c.id, c.old_id, c.new_id, o.label, n.label, c.compared_at, c.added, c.deleted, c.modified, c.unchanged
		FROM comparisons c
		JOIN snapshots o ON o.id = c.old_id
		JOIN snapshots n ON n.id = c.new_id
		ORDER BY c.compared_at DESC, c.id DESC
		LIMIT ?
	`

	rows, err := m.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []ComparisonRecord
	for rows.Next() {
		var record ComparisonRecord
		err := rows.Scan(
			&record.ID,
			&record.OldID,
			&record.NewID,
			&record.OldLabel,
			&record.NewLabel,
			&record.ComparedAt,
			&record.Added,
			&record.Deleted,
			&record.Modified,
			&record.Unchanged,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
