// Package ingest drives sync batches over a window of the vocabulary export.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"

	"github.com/japaniel/kindlenotion/pkg/db"
	"github.com/japaniel/kindlenotion/pkg/syncer"
)

// RecordError is a record that failed without aborting its batch.
type RecordError struct {
	Position int // 1-based position in the export table
	Key      string
	Err      error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d (%s): %v", e.Position, e.Key, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Result is the outcome of one batch.
type Result struct {
	Kind db.TableKind
	// Processed counts records inside the window, including duplicates and
	// failures.
	Processed int
	Words     []*syncer.WordEntry
	Lookups   []*syncer.LookupEntry
	Failures  []RecordError
	// Diagnostics holds what the engine recorded during this batch only.
	Diagnostics syncer.Diagnostics
}

// Created returns the number of rows created.
func (r *Result) Created() int { return len(r.Words) + len(r.Lookups) }

// Runner processes export records through an Engine one at a time.
type Runner struct {
	Engine *syncer.Engine
	// Logger is used for informational messages. nil means no logging.
	Logger *log.Logger
	// OnProgress is called after each processed record with the record's
	// position and the window's ceiling.
	OnProgress func(current, total int)
}

// NewRunner creates a Runner around e.
func NewRunner(e *syncer.Engine) *Runner {
	return &Runner{Engine: e}
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

// RunBatch syncs the records of kind whose 1-based position lies in
// (floor, ceiling]. Iteration stops at the first record past ceiling.
//
// Only source failures and context cancellation abort the batch; the partial
// result is returned alongside the error. Any other record error is collected
// in Result.Failures.
func (r *Runner) RunBatch(ctx context.Context, kind db.TableKind, floor, ceiling int) (*Result, error) {
	if floor < 0 || ceiling < floor {
		return nil, fmt.Errorf("invalid window (%d, %d]", floor, ceiling)
	}
	res := &Result{Kind: kind}
	before := r.Engine.Diagnostics()
	defer func() {
		res.Diagnostics = r.Engine.Diagnostics().Since(before)
	}()

	src := r.Engine.Source()
	var err error
	switch kind {
	case db.WordsTable:
		err = window(ctx, src.Words(ctx), floor, ceiling, func(pos int, w db.WordRecord) error {
			entry, err := r.Engine.SyncWord(ctx, w)
			if entry != nil {
				res.Words = append(res.Words, entry)
			}
			return r.record(res, pos, w.ID, err)
		}, r.progress)
	case db.LookupsTable:
		err = window(ctx, src.Lookups(ctx), floor, ceiling, func(pos int, l db.LookupRecord) error {
			entry, err := r.Engine.SyncLookup(ctx, l)
			if entry != nil {
				res.Lookups = append(res.Lookups, entry)
			}
			return r.record(res, pos, l.ID, err)
		}, r.progress)
	default:
		return nil, fmt.Errorf("cannot sync %s", kind)
	}
	r.logf("Batch %s (%d, %d]: %d processed, %d created, %d failed",
		kind, floor, ceiling, res.Processed, res.Created(), len(res.Failures))
	return res, err
}

// record classifies the error of one record. It returns a non-nil error only
// when the batch must stop.
func (r *Runner) record(res *Result, pos int, key string, err error) error {
	res.Processed++
	switch {
	case err == nil:
		return nil
	case fatal(err):
		return err
	case errors.Is(err, syncer.ErrJoinResolution):
		// Already recorded in the engine diagnostics.
		return nil
	}
	r.logf("ERROR: %s: %v", key, err)
	res.Failures = append(res.Failures, RecordError{Position: pos, Key: key, Err: err})
	return nil
}

func (r *Runner) progress(current, total int) {
	if r.OnProgress != nil {
		r.OnProgress(current, total)
	}
}

func fatal(err error) bool {
	return errors.Is(err, db.ErrSourceUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// window calls fn for each record of seq at positions (floor, ceiling].
func window[T any](ctx context.Context, seq iter.Seq2[T, error], floor, ceiling int, fn func(int, T) error, progress func(int, int)) error {
	pos := 0
	for rec, err := range seq {
		if err != nil {
			// A canceled query surfaces as a cursor error.
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return err
		}
		pos++
		if pos > ceiling {
			break
		}
		if pos <= floor {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(pos, rec); err != nil {
			return err
		}
		progress(pos, ceiling)
	}
	return nil
}

// Reconcile runs the engine's reconciliation pass and logs its outcome.
func (r *Runner) Reconcile(ctx context.Context) (syncer.ReconcileResult, error) {
	res, err := r.Engine.Reconcile(ctx)
	if err != nil {
		return res, fmt.Errorf("reconcile: %w", err)
	}
	r.logf("Reconciled %d lookups (%d flagged, %d failed)", res.Processed, res.Flagged, res.Failed)
	return res, nil
}
