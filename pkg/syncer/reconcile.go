package syncer

import (
	"context"
	"fmt"

	"github.com/japaniel/kindlenotion/pkg/notion"
)

// ReconcileResult summarizes a reconciliation pass.
type ReconcileResult struct {
	Processed int // rows marked processed
	Flagged   int // of those, rows marked for review
	Failed    int // rows that could not be updated
}

// Reconcile revisits lookup rows that are not yet processed, recomputes their
// review flag from the linked stem and marks them processed. It repeats until
// no unprocessed rows remain or a pass updates nothing.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	failed := make(map[string]bool)
	stems := make(map[string]string)

	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rows, err := e.store.QueryExact(ctx, notion.LookupTable, notion.PropProcessed, notion.Checkbox(false))
		if err != nil {
			return res, fmt.Errorf("query unprocessed lookups: %w", err)
		}

		progress := false
		for _, r := range rows {
			if failed[r.ID] {
				continue
			}
			review, err := e.reconcileRow(ctx, r, stems)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			if err != nil {
				e.logf("ERROR: reconcile lookup %s: %v", r.ID, err)
				e.diag.WriteFailures = append(e.diag.WriteFailures, r.Text(notion.PropUsage))
				failed[r.ID] = true
				res.Failed++
				continue
			}
			progress = true
			res.Processed++
			if review {
				res.Flagged++
			}
		}
		e.logf("Reconcile pass %d: %d processed so far, %d flagged", pass, res.Processed, res.Flagged)
		if !progress {
			return res, nil
		}
	}
}

// reconcileRow updates one lookup row and returns its new review flag. Rows
// without a linked stem are flagged.
func (e *Engine) reconcileRow(ctx context.Context, r notion.Row, stems map[string]string) (bool, error) {
	stem := ""
	if rel := r.Relation(notion.PropStem); len(rel) > 0 {
		var ok bool
		stem, ok = stems[rel[0]]
		if !ok {
			wordRow, err := e.store.GetRow(ctx, notion.WordTable, rel[0])
			if err != nil {
				return false, err
			}
			stem = wordRow.Text(notion.PropWord)
			stems[rel[0]] = stem
		}
	}
	review := stem == "" || NeedsReview(r.Text(notion.PropWord), stem)
	err := e.store.UpdateRow(ctx, notion.LookupTable, r.ID, notion.Fields{
		notion.PropProcessed:   notion.Checkbox(true),
		notion.PropNeedsReview: notion.Checkbox(review),
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}
	return review, nil
}
