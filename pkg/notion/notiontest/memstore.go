// Package notiontest provides in-memory and HTTP fakes of the Notion tables.
package notiontest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/japaniel/kindlenotion/pkg/notion"
)

// MemStore is an in-memory notion.Store.
type MemStore struct {
	mu      sync.Mutex
	rows    map[notion.Table][]notion.Row
	nextID  int
	creates map[notion.Table]int

	// FailCreate, when set, is consulted before every CreateRow; a non-nil
	// error is returned to the caller and nothing is stored.
	FailCreate func(table notion.Table, fields notion.Fields) error
	// FailUpdate works like FailCreate for UpdateRow.
	FailUpdate func(table notion.Table, id string) error
}

var _ notion.Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		rows:    make(map[notion.Table][]notion.Row),
		creates: make(map[notion.Table]int),
	}
}

// Add stores a row without counting it as a creation.
func (m *MemStore) Add(table notion.Table, fields notion.Fields) notion.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(table, fields)
}

func (m *MemStore) addLocked(table notion.Table, fields notion.Fields) notion.Row {
	m.nextID++
	row := notion.Row{
		ID:     fmt.Sprintf("%08x-0000-4000-8000-%012x", int(table), m.nextID),
		Fields: copyFields(fields),
	}
	m.rows[table] = append(m.rows[table], row)
	return cloneRow(row)
}

// Rows returns a copy of the rows of table in creation order.
func (m *MemStore) Rows(table notion.Table) []notion.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notion.Row, 0, len(m.rows[table]))
	for _, r := range m.rows[table] {
		out = append(out, cloneRow(r))
	}
	return out
}

// Creates returns how many rows CreateRow stored in table.
func (m *MemStore) Creates(table notion.Table) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates[table]
}

// SearchByText implements notion.Store with a case-insensitive title match.
func (m *MemStore) SearchByText(ctx context.Context, table notion.Table, text string) ([]notion.Row, error) {
	needle := strings.ToLower(text)
	return m.filter(table, func(r notion.Row) bool {
		return strings.Contains(strings.ToLower(r.Text(notion.PropWord)), needle)
	}), nil
}

// QueryExact implements notion.Store.
func (m *MemStore) QueryExact(ctx context.Context, table notion.Table, property string, value notion.Value) ([]notion.Row, error) {
	switch v := value.(type) {
	case notion.Title:
		return m.filter(table, func(r notion.Row) bool { return r.Text(property) == string(v) }), nil
	case notion.Text:
		return m.filter(table, func(r notion.Row) bool { return r.Text(property) == string(v) }), nil
	case notion.Checkbox:
		return m.filter(table, func(r notion.Row) bool { return r.Checkbox(property) == bool(v) }), nil
	}
	return nil, fmt.Errorf("query %s: unsupported filter value %T", table, value)
}

// CreateRow implements notion.Store.
func (m *MemStore) CreateRow(ctx context.Context, table notion.Table, fields notion.Fields) (notion.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		if err := m.FailCreate(table, fields); err != nil {
			return notion.Row{}, err
		}
	}
	m.creates[table]++
	return m.addLocked(table, fields), nil
}

// UpdateRow implements notion.Store.
func (m *MemStore) UpdateRow(ctx context.Context, table notion.Table, id string, fields notion.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdate != nil {
		if err := m.FailUpdate(table, id); err != nil {
			return err
		}
	}
	for i, r := range m.rows[table] {
		if r.ID == id {
			for k, v := range fields {
				m.rows[table][i].Fields[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("update %s: row %s not found", table, id)
}

// GetRow implements notion.Store.
func (m *MemStore) GetRow(ctx context.Context, table notion.Table, id string) (notion.Row, error) {
	r, ok := m.find(id)
	if !ok {
		return notion.Row{}, fmt.Errorf("get %s: row %s not found", table, id)
	}
	return r, nil
}

// find looks a row up by id in any table, as page ids are global.
func (m *MemStore) find(id string) (notion.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rows := range m.rows {
		for _, r := range rows {
			if r.ID == id {
				return cloneRow(r), true
			}
		}
	}
	return notion.Row{}, false
}

func (m *MemStore) filter(table notion.Table, keep func(notion.Row) bool) []notion.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notion.Row
	for _, r := range m.rows[table] {
		if keep(r) {
			out = append(out, cloneRow(r))
		}
	}
	return out
}

func copyFields(f notion.Fields) notion.Fields {
	out := make(notion.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func cloneRow(r notion.Row) notion.Row {
	return notion.Row{ID: r.ID, Fields: copyFields(r.Fields)}
}
