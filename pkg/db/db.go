package db

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// exportSchemaSQL mirrors the tables of the device's vocab.db that the sync reads.
const exportSchemaSQL = `
CREATE TABLE IF NOT EXISTS WORDS (
	id TEXT PRIMARY KEY NOT NULL UNIQUE,
	word TEXT,
	stem TEXT,
	lang TEXT,
	category INTEGER DEFAULT 0,
	timestamp INTEGER DEFAULT 0,
	profileid TEXT
);
CREATE TABLE IF NOT EXISTS LOOKUPS (
	id TEXT PRIMARY KEY NOT NULL,
	word_key TEXT,
	book_key TEXT,
	dict_key TEXT,
	pos TEXT,
	usage TEXT,
	timestamp INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS BOOK_INFO (
	id TEXT PRIMARY KEY NOT NULL UNIQUE,
	asin TEXT,
	guid TEXT,
	lang TEXT,
	title TEXT,
	authors TEXT
);
CREATE INDEX IF NOT EXISTS wordkey ON LOOKUPS (word_key);
`

// InitExportSchema creates the vocabulary export tables on the given connection.
// The device creates these itself; this is used to build exports for tests and
// for scratch copies.
func InitExportSchema(db *sql.DB) error {
	stmts := strings.Split(exportSchemaSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
