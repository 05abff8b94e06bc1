package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/japaniel/kindlenotion/pkg/db"
	"github.com/japaniel/kindlenotion/pkg/db/dbtest"
	"github.com/japaniel/kindlenotion/pkg/dictionary"
	"github.com/japaniel/kindlenotion/pkg/notion"
	"github.com/japaniel/kindlenotion/pkg/notion/notiontest"
)

// fakeDict answers from a fixed table; stems in fail return an error.
type fakeDict struct {
	entries map[string]dictionary.Entry
	fail    map[string]bool
	calls   []string
}

func (f *fakeDict) Lookup(ctx context.Context, stem string) (dictionary.Entry, error) {
	f.calls = append(f.calls, stem)
	if f.fail[stem] {
		return dictionary.Entry{}, fmt.Errorf("%w: boom", dictionary.ErrLookupFailure)
	}
	return f.entries[stem], nil
}

func runEntry() dictionary.Entry {
	return dictionary.Entry{
		PartsOfSpeech: []dictionary.PartOfSpeech{dictionary.Noun, dictionary.Verb},
		Definitions:   []string{"a score in baseball", "move fast by using one's feet"},
	}
}

func testExport() dbtest.Export {
	return dbtest.Export{
		Words: []db.WordRecord{
			{ID: "en:running", Word: "running", Stem: "run"},
			{ID: "en:bank", Word: "bank", Stem: "shore"},
		},
		Lookups: []db.LookupRecord{
			{ID: "l1", WordKey: "en:running", BookKey: "b1", Usage: "He was running late."},
			{ID: "l2", WordKey: "en:bank", BookKey: "b2", Usage: "They sat on the bank."},
			{ID: "l3", WordKey: "en:running", BookKey: "b1", Usage: "He was running late."},
			{ID: "l4", WordKey: "en:ghost", BookKey: "b1", Usage: "A ghost word."},
			{ID: "l5", WordKey: "en:running", BookKey: "missing", Usage: "Running without a book."},
		},
		Books: []db.BookRecord{
			{ID: "b1", Title: "Nineteen Eighty-Four", Authors: "Orwell, George"},
			{ID: "b2", Title: "The Hobbit", Authors: "Tolkien, J. R. R."},
		},
	}
}

func newTestEngine(t *testing.T, dict *fakeDict) (*Engine, *notiontest.MemStore) {
	t.Helper()
	store := notiontest.NewMemStore()
	if dict == nil {
		dict = &fakeDict{}
	}
	return New(store, dbtest.Open(t, testExport()), dict), store
}

func lookupRecord(t *testing.T, id string) db.LookupRecord {
	t.Helper()
	for _, l := range testExport().Lookups {
		if l.ID == id {
			return l
		}
	}
	t.Fatalf("no lookup %s in fixture", id)
	return db.LookupRecord{}
}

func TestSyncWordWithDefinitions(t *testing.T) {
	dict := &fakeDict{entries: map[string]dictionary.Entry{"run": runEntry()}}
	e, store := newTestEngine(t, dict)

	entry, err := e.SyncWord(context.Background(), db.WordRecord{ID: "en:running", Word: "running", Stem: "run"})
	if err != nil {
		t.Fatalf("SyncWord: %v", err)
	}
	if entry == nil {
		t.Fatal("expected a created entry")
	}
	if entry.Category != CategoryNew || entry.Ignore {
		t.Fatalf("expected New/not ignored, got %s/%v", entry.Category, entry.Ignore)
	}

	rows := store.Rows(notion.WordTable)
	if len(rows) != 1 {
		t.Fatalf("expected 1 word row, got %d", len(rows))
	}
	want := notion.Fields{
		notion.PropWord:                notion.Title("run"),
		notion.PropCategory:            notion.Select("New"),
		notion.PropIgnore:              notion.Checkbox(false),
		notion.PropPrimaryDefinition:   notion.Text("a score in baseball"),
		notion.PropSecondaryDefinition: notion.Text("move fast by using one's feet"),
		notion.PropPartOfSpeech:        notion.MultiSelect{"noun", "verb"},
	}
	if diff := cmp.Diff(want, rows[0].Fields); diff != "" {
		t.Fatalf("word row mismatch (-want +got):\n%s", diff)
	}
	if entry.RowID != rows[0].ID {
		t.Fatalf("entry row id %q != %q", entry.RowID, rows[0].ID)
	}
}

func TestSyncWordSingleDefinitionHasNoSecondary(t *testing.T) {
	dict := &fakeDict{entries: map[string]dictionary.Entry{"swiftly": {
		PartsOfSpeech: []dictionary.PartOfSpeech{dictionary.Adverb},
		Definitions:   []string{"in a swift manner"},
	}}}
	e, store := newTestEngine(t, dict)

	if _, err := e.SyncWord(context.Background(), db.WordRecord{ID: "en:swiftly", Word: "swiftly", Stem: "swiftly"}); err != nil {
		t.Fatalf("SyncWord: %v", err)
	}
	row := store.Rows(notion.WordTable)[0]
	if _, ok := row.Fields[notion.PropSecondaryDefinition]; ok {
		t.Fatalf("unexpected secondary definition: %v", row.Fields)
	}
}

func TestSyncWordNotFound(t *testing.T) {
	tests := []struct {
		name        string
		dict        *fakeDict
		wantFailure bool
	}{
		{"empty definitions", &fakeDict{entries: map[string]dictionary.Entry{}}, false},
		{"lookup failure", &fakeDict{fail: map[string]bool{"run": true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, store := newTestEngine(t, tt.dict)
			entry, err := e.SyncWord(context.Background(), db.WordRecord{ID: "en:running", Word: "running", Stem: "run"})
			if err != nil {
				t.Fatalf("SyncWord: %v", err)
			}
			if entry.Category != CategoryNotFound || !entry.Ignore {
				t.Fatalf("expected Not Found/ignored, got %s/%v", entry.Category, entry.Ignore)
			}
			want := notion.Fields{
				notion.PropWord:     notion.Title("run"),
				notion.PropCategory: notion.Select("Not Found"),
				notion.PropIgnore:   notion.Checkbox(true),
			}
			if diff := cmp.Diff(want, store.Rows(notion.WordTable)[0].Fields); diff != "" {
				t.Fatalf("word row mismatch (-want +got):\n%s", diff)
			}
			got := e.Diagnostics().LookupFailures
			if tt.wantFailure && (len(got) != 1 || got[0] != "run") {
				t.Fatalf("expected lookup failure for run, got %v", got)
			}
			if !tt.wantFailure && len(got) != 0 {
				t.Fatalf("expected no lookup failures, got %v", got)
			}
		})
	}
}

func TestSyncWordSkipsExistingStem(t *testing.T) {
	dict := &fakeDict{entries: map[string]dictionary.Entry{"run": runEntry()}}
	e, store := newTestEngine(t, dict)
	store.Add(notion.WordTable, notion.Fields{notion.PropWord: notion.Title("run")})

	entry, err := e.SyncWord(context.Background(), db.WordRecord{ID: "en:running", Word: "running", Stem: "run"})
	if err != nil {
		t.Fatalf("SyncWord: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected skip, got %+v", entry)
	}
	if n := store.Creates(notion.WordTable); n != 0 {
		t.Fatalf("expected no creates, got %d", n)
	}
	if len(dict.calls) != 0 {
		t.Fatalf("dictionary should not be called for existing stems, got %v", dict.calls)
	}
}

func TestSyncWordPartialTitleIsNotDuplicate(t *testing.T) {
	dict := &fakeDict{entries: map[string]dictionary.Entry{"run": runEntry()}}
	e, store := newTestEngine(t, dict)
	store.Add(notion.WordTable, notion.Fields{notion.PropWord: notion.Title("rerun")})

	entry, err := e.SyncWord(context.Background(), db.WordRecord{ID: "en:running", Word: "running", Stem: "run"})
	if err != nil {
		t.Fatalf("SyncWord: %v", err)
	}
	if entry == nil {
		t.Fatal("a row titled rerun must not count as run")
	}
}

func TestSyncWordWriteFailure(t *testing.T) {
	e, store := newTestEngine(t, nil)
	store.FailCreate = func(notion.Table, notion.Fields) error { return errors.New("validation_error") }

	_, err := e.SyncWord(context.Background(), db.WordRecord{ID: "en:running", Word: "running", Stem: "run"})
	if !errors.Is(err, ErrRemoteWrite) {
		t.Fatalf("expected ErrRemoteWrite, got %v", err)
	}
	if got := e.Diagnostics().WriteFailures; len(got) != 1 || got[0] != "run" {
		t.Fatalf("WriteFailures = %v", got)
	}
}

func TestSyncWordRejectsEmptyStem(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	if _, err := e.SyncWord(context.Background(), db.WordRecord{ID: "en:x", Word: "x"}); err == nil {
		t.Fatal("expected error for empty stem")
	}
}

func TestSyncLookupCreatesLinkedRow(t *testing.T) {
	e, store := newTestEngine(t, nil)
	ctx := context.Background()
	runRow := store.Add(notion.WordTable, notion.Fields{notion.PropWord: notion.Title("run")})

	entry, err := e.SyncLookup(ctx, lookupRecord(t, "l1"))
	if err != nil {
		t.Fatalf("SyncLookup: %v", err)
	}
	want := &LookupEntry{
		RowID:       entry.RowID,
		Word:        "running",
		Stem:        "run",
		Usage:       "He was running late.",
		Book:        "Nineteen Eighty-Four",
		Author:      "George Orwell",
		NeedsReview: false,
	}
	if diff := cmp.Diff(want, entry); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}

	rows := store.Rows(notion.LookupTable)
	if len(rows) != 1 {
		t.Fatalf("expected 1 lookup row, got %d", len(rows))
	}
	wantFields := notion.Fields{
		notion.PropWord:        notion.Title("running"),
		notion.PropUsage:       notion.Text("He was running late."),
		notion.PropBook:        notion.Text("Nineteen Eighty-Four"),
		notion.PropAuthor:      notion.Text("George Orwell"),
		notion.PropStem:        notion.Relation{runRow.ID},
		notion.PropNeedsReview: notion.Checkbox(false),
		notion.PropProcessed:   notion.Checkbox(true),
	}
	if diff := cmp.Diff(wantFields, rows[0].Fields); diff != "" {
		t.Fatalf("lookup row mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncLookupFlagsMisStemmedWord(t *testing.T) {
	e, store := newTestEngine(t, nil)
	store.Add(notion.WordTable, notion.Fields{notion.PropWord: notion.Title("shore")})

	entry, err := e.SyncLookup(context.Background(), lookupRecord(t, "l2"))
	if err != nil {
		t.Fatalf("SyncLookup: %v", err)
	}
	if !entry.NeedsReview {
		t.Fatal("bank/shore should need review")
	}
	if entry.Author != "J. R. R. Tolkien" {
		t.Fatalf("author = %q", entry.Author)
	}
}

func TestSyncLookupDuplicateUsage(t *testing.T) {
	e, store := newTestEngine(t, nil)
	ctx := context.Background()
	store.Add(notion.WordTable, notion.Fields{notion.PropWord: notion.Title("run")})

	first, err := e.SyncLookup(ctx, lookupRecord(t, "l1"))
	if err != nil || first == nil {
		t.Fatalf("first SyncLookup: %v, %v", first, err)
	}
	second, err := e.SyncLookup(ctx, lookupRecord(t, "l3"))
	if err != nil {
		t.Fatalf("second SyncLookup: %v", err)
	}
	if second != nil {
		t.Fatalf("expected duplicate usage to be skipped, got %+v", second)
	}
	if n := store.Creates(notion.LookupTable); n != 1 {
		t.Fatalf("expected 1 lookup create, got %d", n)
	}
}

func TestSyncLookupJoinFailure(t *testing.T) {
	e, store := newTestEngine(t, nil)

	_, err := e.SyncLookup(context.Background(), lookupRecord(t, "l4"))
	if !errors.Is(err, ErrJoinResolution) {
		t.Fatalf("expected ErrJoinResolution, got %v", err)
	}
	if got := e.Diagnostics().JoinFailures; len(got) != 1 || got[0] != "A ghost word." {
		t.Fatalf("JoinFailures = %v", got)
	}
	if n := store.Creates(notion.LookupTable); n != 0 {
		t.Fatalf("expected no creates, got %d", n)
	}
}

func TestSyncLookupStemNotLinked(t *testing.T) {
	e, store := newTestEngine(t, nil)

	_, err := e.SyncLookup(context.Background(), lookupRecord(t, "l1"))
	if !errors.Is(err, ErrStemNotLinked) {
		t.Fatalf("expected ErrStemNotLinked, got %v", err)
	}
	if n := store.Creates(notion.LookupTable); n != 0 {
		t.Fatalf("expected no creates, got %d", n)
	}
}

func TestSyncLookupMissingBook(t *testing.T) {
	e, store := newTestEngine(t, nil)
	store.Add(notion.WordTable, notion.Fields{notion.PropWord: notion.Title("run")})

	entry, err := e.SyncLookup(context.Background(), lookupRecord(t, "l5"))
	if err != nil {
		t.Fatalf("SyncLookup: %v", err)
	}
	if entry.Book != "" || entry.Author != "" {
		t.Fatalf("expected empty book fields, got %q / %q", entry.Book, entry.Author)
	}
}

func TestSyncLookupWriteFailure(t *testing.T) {
	e, store := newTestEngine(t, nil)
	store.Add(notion.WordTable, notion.Fields{notion.PropWord: notion.Title("run")})
	store.FailCreate = func(notion.Table, notion.Fields) error { return errors.New("rejected") }

	_, err := e.SyncLookup(context.Background(), lookupRecord(t, "l1"))
	if !errors.Is(err, ErrRemoteWrite) {
		t.Fatalf("expected ErrRemoteWrite, got %v", err)
	}
	if got := e.Diagnostics().WriteFailures; len(got) != 1 {
		t.Fatalf("WriteFailures = %v", got)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	dict := &fakeDict{entries: map[string]dictionary.Entry{"run": runEntry()}}
	e, store := newTestEngine(t, dict)
	ctx := context.Background()

	syncAll := func() {
		for _, w := range testExport().Words {
			if _, err := e.SyncWord(ctx, w); err != nil {
				t.Fatalf("SyncWord %s: %v", w.ID, err)
			}
		}
		for _, l := range testExport().Lookups {
			if _, err := e.SyncLookup(ctx, l); err != nil && !errors.Is(err, ErrJoinResolution) {
				t.Fatalf("SyncLookup %s: %v", l.ID, err)
			}
		}
	}

	syncAll()
	words, lookups := store.Creates(notion.WordTable), store.Creates(notion.LookupTable)
	if words != 2 || lookups != 3 {
		t.Fatalf("first run created %d words, %d lookups; want 2, 3", words, lookups)
	}

	syncAll()
	if store.Creates(notion.WordTable) != words || store.Creates(notion.LookupTable) != lookups {
		t.Fatalf("second run created rows: words %d->%d, lookups %d->%d",
			words, store.Creates(notion.WordTable), lookups, store.Creates(notion.LookupTable))
	}
}

func TestSyncLookupLongUsageIsIdempotent(t *testing.T) {
	const wordDB, lookupDB = "11111111-1111-4111-8111-111111111111", "22222222-2222-4222-8222-222222222222"
	mem := notiontest.NewMemStore()
	url := notiontest.NewServer(t, mem, wordDB, lookupDB)
	client := notion.NewClient("secret_test", wordDB, lookupDB, notion.WithBaseURL(url))

	usage := strings.Repeat("a", 2100)
	ex := dbtest.Export{
		Words:   []db.WordRecord{{ID: "en:running", Word: "running", Stem: "run"}},
		Lookups: []db.LookupRecord{{ID: "l1", WordKey: "en:running", BookKey: "b1", Usage: usage}},
		Books:   []db.BookRecord{{ID: "b1", Title: "Ulysses", Authors: "Joyce, James"}},
	}
	e := New(client, dbtest.Open(t, ex), &fakeDict{entries: map[string]dictionary.Entry{"run": runEntry()}})
	ctx := context.Background()

	if _, err := e.SyncWord(ctx, ex.Words[0]); err != nil {
		t.Fatalf("SyncWord: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := e.SyncLookup(ctx, ex.Lookups[0]); err != nil {
			t.Fatalf("SyncLookup run %d: %v", i+1, err)
		}
	}
	if n := mem.Creates(notion.LookupTable); n != 1 {
		t.Fatalf("lookup creates after two runs = %d; want 1", n)
	}
}

// cancelingDict cancels the run from inside the lookup, as an interrupt would.
type cancelingDict struct{ cancel context.CancelFunc }

func (d cancelingDict) Lookup(ctx context.Context, stem string) (dictionary.Entry, error) {
	d.cancel()
	return dictionary.Entry{}, fmt.Errorf("%w: %w", dictionary.ErrLookupFailure, context.Canceled)
}

func TestSyncWordCanceledDuringLookup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := notiontest.NewMemStore()
	e := New(store, dbtest.Open(t, testExport()), cancelingDict{cancel: cancel})

	_, err := e.SyncWord(ctx, db.WordRecord{ID: "en:running", Word: "running", Stem: "run"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if d := e.Diagnostics(); !d.Empty() {
		t.Fatalf("cancellation must not be recorded as a failure: %+v", d)
	}
	if n := store.Creates(notion.WordTable); n != 0 {
		t.Fatalf("expected no creates, got %d", n)
	}
}

func TestSyncLookupCanceledDuringCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e, store := newTestEngine(t, nil)
	store.Add(notion.WordTable, notion.Fields{notion.PropWord: notion.Title("run")})
	store.FailCreate = func(notion.Table, notion.Fields) error {
		cancel()
		return context.Canceled
	}

	_, err := e.SyncLookup(ctx, lookupRecord(t, "l1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := e.Diagnostics().WriteFailures; len(got) != 0 {
		t.Fatalf("WriteFailures = %v; want none", got)
	}
}
