package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/notesjson/internal/models"
)

// seq keeps insertion order for notes that share a timestamp.
// timestamp holds fixed-width UTC text (see timestampLayout) so that
// string order is time order for every year from 0000 to 9999.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT    NOT NULL UNIQUE,
	title     TEXT    NOT NULL DEFAULT '',
	content   TEXT,
	timestamp TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_timestamp ON notes(timestamp DESC, seq ASC);
`

const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	conn *sql.DB
	// writeMu serialises mutations; reads go straight to the WAL snapshot.
	writeMu sync.Mutex
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) Create(ctx context.Context, nn models.NewNote) (models.Note, error) {
	if err := ValidateTitle(nn.Title); err != nil {
		return models.Note{}, err
	}
	n := mint(nn)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, timestamp) VALUES (?, ?, ?, ?)`,
		n.ID, n.Title, nullable(n.Content), formatTimestamp(n.Timestamp))
	if err != nil {
		return models.Note{}, fmt.Errorf("store: insert note: %w", err)
	}
	return n, nil
}

func (s *SQLite) Update(ctx context.Context, id string, p models.Patch) (models.Note, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Note{}, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	cur, err := scanNote(tx.QueryRowContext(ctx,
		`SELECT id, title, content, timestamp FROM notes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, notFound(id)
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("store: load note: %w", err)
	}

	n, err := apply(cur, p, time.Now())
	if err != nil {
		return models.Note{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, timestamp = ? WHERE id = ?`,
		n.Title, nullable(n.Content), formatTimestamp(n.Timestamp), id)
	if err != nil {
		return models.Note{}, fmt.Errorf("store: update note: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Note{}, fmt.Errorf("store: commit: %w", err)
	}
	return n, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLite) DeleteAll(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.conn.ExecContext(ctx, `DELETE FROM notes`)
	if err != nil {
		return 0, fmt.Errorf("store: delete all: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: delete all: %w", err)
	}
	return int(n), nil
}

func (s *SQLite) List(ctx context.Context) ([]models.Note, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, title, content, timestamp FROM notes ORDER BY timestamp DESC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, id string) (models.Note, error) {
	n, err := scanNote(s.conn.QueryRowContext(ctx,
		`SELECT id, title, content, timestamp FROM notes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, notFound(id)
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("store: get note: %w", err)
	}
	return n, nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (models.Note, error) {
	var (
		n       models.Note
		content sql.NullString
		ts      string
	)
	if err := row.Scan(&n.ID, &n.Title, &content, &ts); err != nil {
		return models.Note{}, err
	}
	t, err := time.Parse(timestampLayout, ts)
	if err != nil {
		return models.Note{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	n.Content = content.String
	n.Timestamp = t
	return n, nil
}

// nullable stores "no content" as NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
