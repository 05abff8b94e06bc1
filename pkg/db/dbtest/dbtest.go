// Package dbtest builds vocabulary exports for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/japaniel/kindlenotion/pkg/db"
	_ "github.com/mattn/go-sqlite3"
)

// Export lists the rows to seed into a test export.
type Export struct {
	Words   []db.WordRecord
	Lookups []db.LookupRecord
	Books   []db.BookRecord
}

// Create writes an export file under t.TempDir and returns its path.
func Create(t *testing.T, ex Export) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.db")
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer conn.Close()
	if err := db.InitExportSchema(conn); err != nil {
		t.Fatalf("init export schema: %v", err)
	}
	Seed(t, conn, ex)
	return path
}

// Seed inserts the rows of ex into conn.
func Seed(t *testing.T, conn *sql.DB, ex Export) {
	t.Helper()
	for _, w := range ex.Words {
		if _, err := conn.Exec(`INSERT INTO words (id, word, stem, lang) VALUES (?, ?, ?, 'en')`, w.ID, w.Word, w.Stem); err != nil {
			t.Fatalf("insert word %s: %v", w.ID, err)
		}
	}
	for _, l := range ex.Lookups {
		if _, err := conn.Exec(`INSERT INTO lookups (id, word_key, book_key, usage) VALUES (?, ?, ?, ?)`, l.ID, l.WordKey, l.BookKey, l.Usage); err != nil {
			t.Fatalf("insert lookup %s: %v", l.ID, err)
		}
	}
	for _, b := range ex.Books {
		if _, err := conn.Exec(`INSERT INTO book_info (id, title, authors) VALUES (?, ?, ?)`, b.ID, b.Title, b.Authors); err != nil {
			t.Fatalf("insert book %s: %v", b.ID, err)
		}
	}
}

// Open creates an export from ex and opens it read-only. The source is closed
// when the test ends.
func Open(t *testing.T, ex Export) *db.Source {
	t.Helper()
	src, err := db.Open(Create(t, ex))
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}
