// Package store exports security flow reports to a SQLite database so runs
// can be queried and compared with plain SQL.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/l3aro/casesmith/pkg/cfg"
	"github.com/l3aro/casesmith/pkg/flow"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection holding flow reports.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// Run is one stored report header.
type Run struct {
	ID        string
	Root      string
	CreatedAt time.Time
	Index     flow.SecIndex
}

// OpenPath opens or creates a SQLite database at the given path.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory SQLite database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dbPath: ":memory:"}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction.
func (s *Store) WithTransaction(fn func(txStore *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		created_at TEXT NOT NULL,
		functions INTEGER NOT NULL,
		edges INTEGER NOT NULL,
		boundary_crossings INTEGER NOT NULL,
		pii_edges INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS flow_edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		file_path TEXT DEFAULT '',
		func TEXT NOT NULL,
		src TEXT NOT NULL,
		dst TEXT NOT NULL,
		kind TEXT NOT NULL,
		sensitive INTEGER NOT NULL DEFAULT 0,
		UNIQUE(run_id, func, kind, src, dst)
	);

	CREATE INDEX IF NOT EXISTS idx_flow_edges_kind ON flow_edges(run_id, kind);
	CREATE INDEX IF NOT EXISTS idx_flow_edges_func ON flow_edges(run_id, func);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveFlow stores a report under runID in one transaction.
func (s *Store) SaveFlow(runID, root string, report flow.SecurityFlow) error {
	return s.WithTransaction(func(tx *Store) error {
		_, err := tx.q.Exec(`INSERT INTO runs (id, root_path, created_at, functions, edges, boundary_crossings, pii_edges)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, root, time.Now().UTC().Format(time.RFC3339),
			report.Index.Functions, report.Index.Edges, report.Index.BoundaryCrossings, report.Index.PIIEdges)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for i, e := range report.Edges {
			_, err := tx.q.Exec(`INSERT INTO flow_edges (run_id, seq, file_path, func, src, dst, kind, sensitive)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, i, e.File, e.Func, e.Src, e.Dst, e.Kind.String(), e.Sensitive)
			if err != nil {
				return fmt.Errorf("insert edge %d: %w", i, err)
			}
		}
		return nil
	})
}

// LoadFlow reads back the report stored under runID.
func (s *Store) LoadFlow(runID string) (flow.SecurityFlow, error) {
	out := flow.SecurityFlow{Edges: []flow.SecEdge{}}
	run, err := s.GetRun(runID)
	if err != nil {
		return out, err
	}
	out.Index = run.Index

	rows, err := s.q.Query(`SELECT file_path, func, src, dst, kind, sensitive
		FROM flow_edges WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return out, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e flow.SecEdge
		var kind string
		if err := rows.Scan(&e.File, &e.Func, &e.Src, &e.Dst, &kind, &e.Sensitive); err != nil {
			return out, fmt.Errorf("scan edge: %w", err)
		}
		if e.Kind, err = cfg.ParseEdgeKind(kind); err != nil {
			return out, err
		}
		out.Edges = append(out.Edges, e)
	}
	return out, rows.Err()
}

// GetRun returns the header of one stored run.
func (s *Store) GetRun(runID string) (*Run, error) {
	var r Run
	var createdAt string
	err := s.q.QueryRow(`SELECT id, root_path, created_at, functions, edges, boundary_crossings, pii_edges
		FROM runs WHERE id = ?`, runID).Scan(
		&r.ID, &r.Root, &createdAt,
		&r.Index.Functions, &r.Index.Edges, &r.Index.BoundaryCrossings, &r.Index.PIIEdges)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &r, nil
}

// ListRuns returns all stored runs, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.q.Query(`SELECT id, root_path, created_at, functions, edges, boundary_crossings, pii_edges
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Root, &createdAt,
			&r.Index.Functions, &r.Index.Edges, &r.Index.BoundaryCrossings, &r.Index.PIIEdges); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountByKind returns the number of stored edges per kind for a run.
func (s *Store) CountByKind(runID string) (map[cfg.EdgeKind]int, error) {
	rows, err := s.q.Query(`SELECT kind, COUNT(*) FROM flow_edges WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("count by kind: %w", err)
	}
	defer rows.Close()

	counts := make(map[cfg.EdgeKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		k, err := cfg.ParseEdgeKind(kind)
		if err != nil {
			return nil, err
		}
		counts[k] = n
	}
	return counts, rows.Err()
}
