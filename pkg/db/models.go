package db

import "fmt"

// TableKind identifies one of the tables in the vocabulary export.
type TableKind int

const (
	WordsTable TableKind = iota + 1
	LookupsTable
	BooksTable
)

// String returns the export's table name.
func (k TableKind) String() string {
	switch k {
	case WordsTable:
		return "words"
	case LookupsTable:
		return "lookups"
	case BooksTable:
		return "book_info"
	default:
		return fmt.Sprintf("TableKind(%d)", int(k))
	}
}

// WordRecord is a row of the words table.
type WordRecord struct {
	ID   string
	Word string // surface form as it appeared in the book
	Stem string
}

// LookupRecord is a row of the lookups table.
type LookupRecord struct {
	ID      string
	WordKey string
	BookKey string
	Usage   string
}

// BookRecord is a row of the book_info table. Authors is kept in the raw
// "Last, First" form the device stores.
type BookRecord struct {
	ID      string
	Title   string
	Authors string
}
