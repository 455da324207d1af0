package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps every collection in a single table. The autoincrement
// seq column tracks insertion order, bodies use the same encoding as Badger.
type SQLiteStore struct {
	conn *sql.DB
	log  *slog.Logger
}

func OpenSQLiteStore(path string, log *slog.Logger) (*SQLiteStore, error) {
	// Read-then-write transactions take the write lock up front, a deferred
	// lock upgrade fails with SQLITE_BUSY without waiting on busy_timeout.
	conn, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	store := &SQLiteStore{conn: conn, log: log}
	if err := store.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			body BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, seq)`,
	}
	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Collection(name string) (Collection, error) {
	return &sqliteCollection{name: name, conn: s.conn}, nil
}

func (s *SQLiteStore) Close() error {
	s.log.Info("Closing SQLite...")
	return s.conn.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqliteRow struct {
	seq int64
	doc Document
}

type sqliteCollection struct {
	name string
	conn *sql.DB
}

func (c *sqliteCollection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	rows, err := c.scan(ctx, c.conn, filter, 0)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.doc)
	}
	return docs, nil
}

func (c *sqliteCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	rows, err := c.scan(ctx, c.conn, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoDocuments
	}
	return rows[0].doc, nil
}

func (c *sqliteCollection) InsertOne(ctx context.Context, doc Document) (string, error) {
	doc = withID(doc, uuid.NewString())
	data, err := encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	_, err = c.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, doc_id, body) VALUES (?, ?, ?)`,
		c.name, doc.ID(), data)
	if err != nil {
		return "", err
	}
	return doc.ID(), nil
}

func (c *sqliteCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (int64, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := c.scan(ctx, tx, filter, 1)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	data, err := encode(update.apply(rows[0].doc))
	if err != nil {
		return 0, fmt.Errorf("encode document: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE documents SET body = ? WHERE seq = ?`, data, rows[0].seq); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return 1, nil
}

func (c *sqliteCollection) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := c.scan(ctx, tx, filter, 0)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if _, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE seq = ?`, r.seq); err != nil {
			return 0, err
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// scan reads the collection in insertion order and keeps the rows matching filter.
// A zero limit means no limit. Rows are fully drained before returning so the
// same transaction can be reused for writes.
func (c *sqliteCollection) scan(ctx context.Context, q queryer, filter Filter, limit int) ([]sqliteRow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT seq, body FROM documents WHERE collection = ? ORDER BY seq`, c.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sqliteRow
	for rows.Next() {
		var seq int64
		var body []byte
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, err
		}
		doc, err := decode(body)
		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", seq, err)
		}
		if !filter.Match(doc) {
			continue
		}
		out = append(out, sqliteRow{seq: seq, doc: doc})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}
