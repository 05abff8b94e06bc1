package syncer

import (
	"strings"

	"github.com/japaniel/kindlenotion/pkg/dictionary"
)

// Category is the familiarity bucket of a word row.
type Category string

const (
	CategoryNew          Category = "New"
	CategoryUnknown      Category = "Unknown"
	CategoryRecognizable Category = "Recognizable"
	CategoryFamiliar     Category = "Familiar"
	CategoryKnown        Category = "Known"
	CategoryNotFound     Category = "Not Found"
)

// WordEntry describes a word row created by SyncWord.
type WordEntry struct {
	RowID    string
	Word     string
	Stem     string
	Category Category
	Ignore   bool
	Details  dictionary.Entry
}

// LookupEntry describes a lookup row created by SyncLookup.
type LookupEntry struct {
	RowID       string
	Word        string
	Stem        string
	Usage       string
	Book        string
	Author      string
	NeedsReview bool
}

// FormatAuthor turns the device's "Last, First" author string into
// "First Last" by reversing its ", "-separated parts. The reversal is purely
// positional: "Tolkien, J., R. R." becomes "R. R. J. Tolkien".
func FormatAuthor(raw string) string {
	parts := strings.Split(raw, ", ")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " ")
}

// NeedsReview reports whether neither of word and stem contains the other,
// ignoring case. Such pairs are likely mis-stemmed.
func NeedsReview(word, stem string) bool {
	w := strings.ToLower(word)
	s := strings.ToLower(stem)
	return !strings.Contains(w, s) && !strings.Contains(s, w)
}
