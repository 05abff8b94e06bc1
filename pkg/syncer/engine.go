// Package syncer reconciles the vocabulary export against the remote word and
// lookup tables, creating the rows that are missing.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/japaniel/kindlenotion/pkg/db"
	"github.com/japaniel/kindlenotion/pkg/dictionary"
	"github.com/japaniel/kindlenotion/pkg/notion"
)

var (
	// ErrJoinResolution means a lookup's word_key has no exact match in the
	// export. The lookup is skipped and its usage recorded.
	ErrJoinResolution = errors.New("lookup word not found in export")
	// ErrStemNotLinked means no word row exists for a lookup's stem. Words
	// must be synced before their lookups.
	ErrStemNotLinked = errors.New("no word row for stem")
	// ErrRemoteWrite means the store rejected a create or update.
	ErrRemoteWrite = errors.New("remote write failed")
)

// Definer fetches dictionary definitions for a stem.
type Definer interface {
	Lookup(ctx context.Context, stem string) (dictionary.Entry, error)
}

// Diagnostics collects the recovered failures of a run.
type Diagnostics struct {
	// LookupFailures holds stems whose definition lookup failed.
	LookupFailures []string
	// JoinFailures holds usages whose word could not be resolved.
	JoinFailures []string
	// WriteFailures holds the stem or usage of rows the store rejected.
	WriteFailures []string
}

// Since returns the entries added after prev was taken.
func (d Diagnostics) Since(prev Diagnostics) Diagnostics {
	return Diagnostics{
		LookupFailures: tail(d.LookupFailures, len(prev.LookupFailures)),
		JoinFailures:   tail(d.JoinFailures, len(prev.JoinFailures)),
		WriteFailures:  tail(d.WriteFailures, len(prev.WriteFailures)),
	}
}

// Empty reports whether nothing was recorded.
func (d Diagnostics) Empty() bool {
	return len(d.LookupFailures) == 0 && len(d.JoinFailures) == 0 && len(d.WriteFailures) == 0
}

func tail(s []string, from int) []string {
	if from >= len(s) {
		return nil
	}
	return append([]string(nil), s[from:]...)
}

// Engine syncs export rows into the remote tables. It owns the export source
// for the duration of a run; Close releases it.
type Engine struct {
	store  notion.Store
	source *db.Source
	dict   Definer

	// Logger receives progress and warnings. nil means no logging.
	Logger *log.Logger

	diag Diagnostics
}

// New creates an Engine.
func New(store notion.Store, source *db.Source, dict Definer) *Engine {
	return &Engine{store: store, source: source, dict: dict}
}

// Close releases the export source.
func (e *Engine) Close() error {
	if e.source == nil {
		return nil
	}
	return e.source.Close()
}

// Source returns the export the engine reads from.
func (e *Engine) Source() *db.Source { return e.source }

// Diagnostics returns a copy of the failures recorded so far.
func (e *Engine) Diagnostics() Diagnostics {
	return e.diag.Since(Diagnostics{})
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// findStem returns the word rows whose title is exactly stem, ignoring case.
func (e *Engine) findStem(ctx context.Context, stem string) ([]notion.Row, error) {
	rows, err := e.store.SearchByText(ctx, notion.WordTable, stem)
	if err != nil {
		return nil, fmt.Errorf("search word table for %q: %w", stem, err)
	}
	var exact []notion.Row
	for _, r := range rows {
		if strings.EqualFold(r.Text(notion.PropWord), stem) {
			exact = append(exact, r)
		}
	}
	return exact, nil
}

// SyncWord creates the word row for w's stem unless one exists. It returns
// nil and no error when the stem is already present.
//
// A failed definition lookup and a lookup without definitions both produce a
// "Not Found" row with Ignore set.
func (e *Engine) SyncWord(ctx context.Context, w db.WordRecord) (*WordEntry, error) {
	if strings.TrimSpace(w.Stem) == "" {
		return nil, fmt.Errorf("word %s has no stem", w.ID)
	}
	existing, err := e.findStem(ctx, w.Stem)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}

	details, err := e.dict.Lookup(ctx, w.Stem)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		e.logf("WARNING: definition lookup for %q failed: %v", w.Stem, err)
		e.diag.LookupFailures = append(e.diag.LookupFailures, w.Stem)
		details = dictionary.Entry{}
	}

	entry := WordEntry{
		Word:     w.Word,
		Stem:     w.Stem,
		Category: CategoryNotFound,
		Ignore:   true,
		Details:  details,
	}
	if !details.Empty() {
		entry.Category = CategoryNew
		entry.Ignore = false
	}

	row, err := e.store.CreateRow(ctx, notion.WordTable, wordFields(entry))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.diag.WriteFailures = append(e.diag.WriteFailures, w.Stem)
		return nil, fmt.Errorf("%w: word %q: %v", ErrRemoteWrite, w.Stem, err)
	}
	entry.RowID = row.ID
	e.logf("Created word %q (%s)", entry.Stem, entry.Category)
	return &entry, nil
}

func wordFields(entry WordEntry) notion.Fields {
	fields := notion.Fields{
		notion.PropWord:     notion.Title(entry.Stem),
		notion.PropCategory: notion.Select(entry.Category),
		notion.PropIgnore:   notion.Checkbox(entry.Ignore),
	}
	defs := entry.Details.Definitions
	if len(defs) == 0 {
		return fields
	}
	fields[notion.PropPrimaryDefinition] = notion.Text(defs[0])
	if len(defs) > 1 {
		fields[notion.PropSecondaryDefinition] = notion.Text(defs[1])
	}
	pos := make(notion.MultiSelect, 0, len(entry.Details.PartsOfSpeech))
	for _, p := range entry.Details.PartsOfSpeech {
		pos = append(pos, string(p))
	}
	fields[notion.PropPartOfSpeech] = pos
	return fields
}

// SyncLookup creates the lookup row for l unless a row with the same usage
// exists. It returns nil and no error for duplicates. A word_key that does
// not resolve returns ErrJoinResolution; a stem without a word row returns
// ErrStemNotLinked.
func (e *Engine) SyncLookup(ctx context.Context, l db.LookupRecord) (*LookupEntry, error) {
	dups, err := e.store.QueryExact(ctx, notion.LookupTable, notion.PropUsage, notion.Text(l.Usage))
	if err != nil {
		return nil, fmt.Errorf("query lookup table for usage: %w", err)
	}
	if len(dups) > 0 {
		return nil, nil
	}

	word, err := e.source.WordByID(ctx, l.WordKey)
	if errors.Is(err, db.ErrNotFound) {
		e.logf("WARNING: lookup %s references unknown word %q", l.ID, l.WordKey)
		e.diag.JoinFailures = append(e.diag.JoinFailures, l.Usage)
		return nil, fmt.Errorf("%w: lookup %s: %v", ErrJoinResolution, l.ID, err)
	}
	if err != nil {
		return nil, err
	}

	book, err := e.source.BookByID(ctx, l.BookKey)
	if errors.Is(err, db.ErrNotFound) {
		e.logf("WARNING: lookup %s references unknown book %q", l.ID, l.BookKey)
	} else if err != nil {
		return nil, err
	}

	stems, err := e.findStem(ctx, word.Stem)
	if err != nil {
		return nil, err
	}
	if len(stems) == 0 {
		return nil, fmt.Errorf("%w: %q (lookup %s)", ErrStemNotLinked, word.Stem, l.ID)
	}

	entry := LookupEntry{
		Word:        word.Word,
		Stem:        word.Stem,
		Usage:       l.Usage,
		Book:        book.Title,
		Author:      FormatAuthor(book.Authors),
		NeedsReview: NeedsReview(word.Word, word.Stem),
	}
	row, err := e.store.CreateRow(ctx, notion.LookupTable, notion.Fields{
		notion.PropWord:        notion.Title(entry.Word),
		notion.PropUsage:       notion.Text(entry.Usage),
		notion.PropBook:        notion.Text(entry.Book),
		notion.PropAuthor:      notion.Text(entry.Author),
		notion.PropStem:        notion.Relation{stems[0].ID},
		notion.PropNeedsReview: notion.Checkbox(entry.NeedsReview),
		notion.PropProcessed:   notion.Checkbox(true),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.diag.WriteFailures = append(e.diag.WriteFailures, l.Usage)
		return nil, fmt.Errorf("%w: lookup %s: %v", ErrRemoteWrite, l.ID, err)
	}
	entry.RowID = row.ID
	e.logf("Created lookup %q -> %q", entry.Word, entry.Stem)
	return &entry, nil
}
