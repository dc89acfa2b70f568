package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/legacyscape/depgraph/internal/graph"
)

// Store persists assembled graphs in a SQLite file so repeat queries skip the
// rebuild. Nodes and edges are stored one row each with their variant
// properties as a JSON column; SaveGraph replaces the previous snapshot in a
// single transaction.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database at the provided path.
// The schema is migrated on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	busy := cfg.BusyTimeoutDuration()
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, busy.Milliseconds())
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), busy)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	// PRAGMA statements such as journal_mode cannot run inside a
	// transaction, so execute them on the connection first.
	for i, stmt := range schemaStatements {
		if !strings.HasPrefix(strings.TrimSpace(stmt), "PRAGMA") {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if strings.HasPrefix(strings.TrimSpace(stmt), "PRAGMA") {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`PRAGMA journal_mode = WAL;`,
	`CREATE TABLE IF NOT EXISTS nodes (
                id TEXT PRIMARY KEY,
                type TEXT NOT NULL,
                name TEXT NOT NULL,
                missing INTEGER NOT NULL DEFAULT 0,
                props TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_type_name ON nodes(type, name);`,
	`CREATE TABLE IF NOT EXISTS edges (
                type TEXT NOT NULL,
                from_id TEXT NOT NULL,
                to_id TEXT NOT NULL,
                props TEXT NOT NULL,
                PRIMARY KEY (type, from_id, to_id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);`,
	`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);`,
	`CREATE TABLE IF NOT EXISTS metadata (
                id INTEGER PRIMARY KEY CHECK (id = 1),
                payload TEXT NOT NULL,
                saved_at TEXT NOT NULL
        );`,
}

type nodeRow struct {
	ID      string `db:"id"`
	Type    string `db:"type"`
	Name    string `db:"name"`
	Missing int    `db:"missing"`
	Props   string `db:"props"`
}

type edgeRow struct {
	Type  string `db:"type"`
	From  string `db:"from_id"`
	To    string `db:"to_id"`
	Props string `db:"props"`
}

type edgeProps struct {
	Attrs map[string]string `json:"attrs,omitempty"`
	Ops   []string          `json:"ops,omitempty"`
}

// SaveGraph replaces the stored snapshot with the provided graph.
func (s *Store) SaveGraph(ctx context.Context, g *graph.Graph) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if g == nil {
		return errors.New("sqlite: graph required")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "edges", "metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, n := range g.Nodes {
		props, marshalErr := json.Marshal(n)
		if marshalErr != nil {
			return fmt.Errorf("encode node %s: %w", n.ID, marshalErr)
		}
		row := nodeRow{ID: n.ID, Type: string(n.Type), Name: n.Name, Props: string(props)}
		if n.Missing {
			row.Missing = 1
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO nodes (id, type, name, missing, props)
                         VALUES (:id, :type, :name, :missing, :props)`, row); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}

	for _, e := range g.Edges {
		props, marshalErr := json.Marshal(edgeProps{Attrs: e.Attrs, Ops: e.Ops})
		if marshalErr != nil {
			return fmt.Errorf("encode edge %s: %w", e.Key(), marshalErr)
		}
		row := edgeRow{Type: string(e.Type), From: e.From, To: e.To, Props: string(props)}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO edges (type, from_id, to_id, props)
                         VALUES (:type, :from_id, :to_id, :props)`, row); err != nil {
			return fmt.Errorf("insert edge %s: %w", e.Key(), err)
		}
	}

	meta, err := json.Marshal(g.Meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO metadata (id, payload, saved_at) VALUES (1, ?, ?)`,
		string(meta), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadGraph reads the stored snapshot. It returns sql.ErrNoRows when no
// snapshot has been saved yet.
func (s *Store) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	var payload string
	if err := s.db.GetContext(ctx, &payload, `SELECT payload FROM metadata WHERE id = 1`); err != nil {
		return nil, err
	}
	g := &graph.Graph{Nodes: make(map[string]*graph.Node)}
	if err := json.Unmarshal([]byte(payload), &g.Meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	var nodes []nodeRow
	if err := s.db.SelectContext(ctx, &nodes, `SELECT id, type, name, missing, props FROM nodes`); err != nil {
		return nil, fmt.Errorf("select nodes: %w", err)
	}
	for _, row := range nodes {
		var n graph.Node
		if err := json.Unmarshal([]byte(row.Props), &n); err != nil {
			return nil, fmt.Errorf("decode node %s: %w", row.ID, err)
		}
		node := n
		g.Nodes[row.ID] = &node
	}

	var edges []edgeRow
	if err := s.db.SelectContext(ctx, &edges, `SELECT type, from_id, to_id, props FROM edges`); err != nil {
		return nil, fmt.Errorf("select edges: %w", err)
	}
	for _, row := range edges {
		var props edgeProps
		if err := json.Unmarshal([]byte(row.Props), &props); err != nil {
			return nil, fmt.Errorf("decode edge %s->%s: %w", row.From, row.To, err)
		}
		g.Edges = append(g.Edges, &graph.Edge{
			Type:  graph.EdgeType(row.Type),
			From:  row.From,
			To:    row.To,
			Attrs: props.Attrs,
			Ops:   props.Ops,
		})
	}
	g.Reindex()
	return g, nil
}
