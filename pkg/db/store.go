package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
)

var (
	// ErrSourceUnavailable is returned when the export cannot be opened or queried.
	ErrSourceUnavailable = errors.New("vocabulary export unavailable")
	// ErrNotFound is returned when an id join does not resolve.
	ErrNotFound = errors.New("record not found")
)

// Source provides read-only access to a vocabulary export.
type Source struct {
	conn *sql.DB
}

// Open opens the export at path in read-only mode.
func Open(path string) (*Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrSourceUnavailable, path, err)
	}
	return &Source{conn: conn}, nil
}

// Close releases the connection.
func (s *Source) Close() error {
	return s.conn.Close()
}

// Words yields the rows of the words table in storage order.
func (s *Source) Words(ctx context.Context) iter.Seq2[WordRecord, error] {
	return func(yield func(WordRecord, error) bool) {
		rows, err := s.conn.QueryContext(ctx, `SELECT id, IFNULL(word, ''), IFNULL(stem, '') FROM words ORDER BY rowid`)
		if err != nil {
			yield(WordRecord{}, fmt.Errorf("%w: query words: %v", ErrSourceUnavailable, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var w WordRecord
			if err := rows.Scan(&w.ID, &w.Word, &w.Stem); err != nil {
				yield(WordRecord{}, fmt.Errorf("scan word: %w", err))
				return
			}
			if !yield(w, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(WordRecord{}, fmt.Errorf("%w: iterate words: %v", ErrSourceUnavailable, err))
		}
	}
}

// Lookups yields the rows of the lookups table in storage order.
func (s *Source) Lookups(ctx context.Context) iter.Seq2[LookupRecord, error] {
	return func(yield func(LookupRecord, error) bool) {
		rows, err := s.conn.QueryContext(ctx,
			`SELECT id, IFNULL(word_key, ''), IFNULL(book_key, ''), IFNULL(usage, '') FROM lookups ORDER BY rowid`)
		if err != nil {
			yield(LookupRecord{}, fmt.Errorf("%w: query lookups: %v", ErrSourceUnavailable, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var l LookupRecord
			if err := rows.Scan(&l.ID, &l.WordKey, &l.BookKey, &l.Usage); err != nil {
				yield(LookupRecord{}, fmt.Errorf("scan lookup: %w", err))
				return
			}
			if !yield(l, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(LookupRecord{}, fmt.Errorf("%w: iterate lookups: %v", ErrSourceUnavailable, err))
		}
	}
}

// Count returns the number of rows in the given table.
func (s *Source) Count(ctx context.Context, kind TableKind) (int, error) {
	if kind < WordsTable || kind > BooksTable {
		return 0, fmt.Errorf("count: invalid table %v", kind)
	}
	var n int
	// kind.String() is one of three fixed names.
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+kind.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", ErrSourceUnavailable, kind, err)
	}
	return n, nil
}

// WordByID resolves a lookup's word_key. It returns ErrNotFound when no row
// carries exactly that id.
func (s *Source) WordByID(ctx context.Context, id string) (WordRecord, error) {
	var w WordRecord
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, IFNULL(word, ''), IFNULL(stem, '') FROM words WHERE id = ?`, id,
	).Scan(&w.ID, &w.Word, &w.Stem)
	if err == sql.ErrNoRows {
		return WordRecord{}, fmt.Errorf("word %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return WordRecord{}, fmt.Errorf("%w: word %q: %v", ErrSourceUnavailable, id, err)
	}
	if w.ID != id {
		return WordRecord{}, fmt.Errorf("word %q resolved to %q: %w", id, w.ID, ErrNotFound)
	}
	return w, nil
}

// BookByID resolves a lookup's book_key.
func (s *Source) BookByID(ctx context.Context, id string) (BookRecord, error) {
	var b BookRecord
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, IFNULL(title, ''), IFNULL(authors, '') FROM book_info WHERE id = ?`, id,
	).Scan(&b.ID, &b.Title, &b.Authors)
	if err == sql.ErrNoRows {
		return BookRecord{}, fmt.Errorf("book %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return BookRecord{}, fmt.Errorf("%w: book %q: %v", ErrSourceUnavailable, id, err)
	}
	return b, nil
}
