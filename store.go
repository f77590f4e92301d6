package docsgate

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoExport is returned by LatestExport before the first build.
var ErrNoExport = errors.New("docsgate: no export recorded")

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry statuses in the export ledger.
const (
	EntryOK     = "ok"
	EntryFailed = "failed"
)

// ExportRun summarises one static export.
type ExportRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or after a crash
	Succeeded  int
	Failed     int
}

// ExportEntry is the ledger row of one exported page.
type ExportEntry struct {
	RunID     string
	Permalink string
	HTMLPath  string
	ImagePath string
	Status    string
	Error     string
	OGReused  bool
}

// LoginRecord is the ledger row of one OAuth callback.
type LoginRecord struct {
	Identity string
	Outcome  string
	ClientIP string
	At       time.Time
}

// Store wraps a SQLite database holding the export and login ledgers.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the status command read while a build writes.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS export_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL DEFAULT '',
    succeeded INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS export_entries (
    run_id TEXT NOT NULL REFERENCES export_runs(id),
    seq INTEGER NOT NULL,
    permalink TEXT NOT NULL,
    html_path TEXT NOT NULL DEFAULT '',
    image_path TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    og_reused INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS logins (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    identity TEXT NOT NULL,
    outcome TEXT NOT NULL,
    client_ip TEXT NOT NULL DEFAULT '',
    at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS logins_at ON logins(at);
`)
	return err
}

// BeginExport opens a run in the ledger.
func (s *Store) BeginExport(runID string, started time.Time) error {
	_, err := s.db.Exec(`INSERT INTO export_runs (id, started_at) VALUES (?, ?)`,
		runID, started.UTC().Format(timeLayout))
	return err
}

// RecordExportEntry appends one page result to its run, preserving export order.
func (s *Store) RecordExportEntry(e ExportEntry) error {
	reused := 0
	if e.OGReused {
		reused = 1
	}
	_, err := s.db.Exec(`
INSERT INTO export_entries (run_id, seq, permalink, html_path, image_path, status, error, og_reused)
VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM export_entries WHERE run_id = ?), ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.RunID, e.Permalink, e.HTMLPath, e.ImagePath, e.Status, e.Error, reused)
	return err
}

// FinishExport closes a run with its totals.
func (s *Store) FinishExport(runID string, finished time.Time, succeeded, failed int) error {
	_, err := s.db.Exec(`UPDATE export_runs SET finished_at = ?, succeeded = ?, failed = ? WHERE id = ?`,
		finished.UTC().Format(timeLayout), succeeded, failed, runID)
	return err
}

// LatestExport returns the most recently started run.
func (s *Store) LatestExport() (ExportRun, error) {
	var run ExportRun
	var started, finished string
	err := s.db.QueryRow(`SELECT id, started_at, finished_at, succeeded, failed FROM export_runs ORDER BY started_at DESC LIMIT 1`).
		Scan(&run.ID, &started, &finished, &run.Succeeded, &run.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return ExportRun{}, ErrNoExport
	}
	if err != nil {
		return ExportRun{}, err
	}
	run.StartedAt, _ = time.Parse(timeLayout, started)
	if finished != "" {
		run.FinishedAt, _ = time.Parse(timeLayout, finished)
	}
	return run, nil
}

// ExportEntries lists the pages of a run in export order. An empty status
// selects every entry.
func (s *Store) ExportEntries(runID, status string) ([]ExportEntry, error) {
	rows, err := s.db.Query(`
SELECT permalink, html_path, image_path, status, error, og_reused FROM export_entries
WHERE run_id = ? AND (? = '' OR status = ?) ORDER BY seq`, runID, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ExportEntry
	for rows.Next() {
		e := ExportEntry{RunID: runID}
		var reused int
		if err := rows.Scan(&e.Permalink, &e.HTMLPath, &e.ImagePath, &e.Status, &e.Error, &reused); err != nil {
			return nil, err
		}
		e.OGReused = reused == 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordLogin appends a callback outcome to the login ledger.
func (s *Store) RecordLogin(r LoginRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO logins (identity, outcome, client_ip, at) VALUES (?, ?, ?, ?)`,
		r.Identity, r.Outcome, r.ClientIP, r.At.UTC().Format(timeLayout))
	return err
}

// LoginCounts tallies callback outcomes recorded at or after since.
func (s *Store) LoginCounts(since time.Time) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM logins WHERE at >= ? GROUP BY outcome`,
		since.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
