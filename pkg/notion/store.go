package notion

import "context"

// Store is the subset of table operations the sync needs.
type Store interface {
	// SearchByText returns rows whose title contains text.
	SearchByText(ctx context.Context, table Table, text string) ([]Row, error)
	// QueryExact returns rows whose property equals value.
	QueryExact(ctx context.Context, table Table, property string, value Value) ([]Row, error)
	// CreateRow appends a row and returns it with its id.
	CreateRow(ctx context.Context, table Table, fields Fields) (Row, error)
	// UpdateRow overwrites the given properties of an existing row.
	UpdateRow(ctx context.Context, table Table, id string, fields Fields) error
	// GetRow fetches a row by id.
	GetRow(ctx context.Context, table Table, id string) (Row, error)
}
