// Package notion reads and writes rows of the word and lookup tables kept in a
// Notion workspace.
package notion

import "fmt"

// Table names one of the two remote tables.
type Table int

const (
	WordTable Table = iota + 1
	LookupTable
)

func (t Table) String() string {
	switch t {
	case WordTable:
		return "word table"
	case LookupTable:
		return "lookup table"
	}
	return fmt.Sprintf("Table(%d)", int(t))
}

// Property names shared by both tables.
const (
	PropWord = "Word"
)

// Word table properties.
const (
	PropPartOfSpeech        = "Part of Speech"
	PropPrimaryDefinition   = "Primary Definition"
	PropSecondaryDefinition = "Secondary Definition"
	PropCategory            = "Category"
	PropLookups             = "Look-Ups"
	PropIgnore              = "Ignore"
)

// Lookup table properties.
const (
	PropStem        = "Stem"
	PropUsage       = "Usage"
	PropBook        = "Book"
	PropAuthor      = "Author"
	PropNeedsReview = "Needs Review"
	PropProcessed   = "Processed"
)

// Value is a typed property value.
type Value interface{ isValue() }

type (
	// Title is the text of a table's title column.
	Title string
	// Text is a rich-text column holding plain text.
	Text string
	// Select is a single option name.
	Select string
	// MultiSelect is a list of option names.
	MultiSelect []string
	// Checkbox is a boolean column.
	Checkbox bool
	// Relation holds the ids of related rows.
	Relation []string
)

func (Title) isValue()       {}
func (Text) isValue()        {}
func (Select) isValue()      {}
func (MultiSelect) isValue() {}
func (Checkbox) isValue()    {}
func (Relation) isValue()    {}

// Fields maps property names to values.
type Fields map[string]Value

// Row is a remote row.
type Row struct {
	ID     string
	Fields Fields
}

// Text returns the text of a title or rich-text property, or "".
func (r Row) Text(name string) string {
	switch v := r.Fields[name].(type) {
	case Title:
		return string(v)
	case Text:
		return string(v)
	case Select:
		return string(v)
	}
	return ""
}

// Checkbox returns a checkbox property; missing properties read as false.
func (r Row) Checkbox(name string) bool {
	v, _ := r.Fields[name].(Checkbox)
	return bool(v)
}

// Relation returns the related row ids of a relation property.
func (r Row) Relation(name string) []string {
	v, _ := r.Fields[name].(Relation)
	return v
}
