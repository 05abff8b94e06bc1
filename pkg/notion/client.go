package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jomei/notionapi"
)

// maxTextLength is the API's limit for a single rich-text object.
const maxTextLength = 2000

// Client is a Store backed by two Notion databases.
type Client struct {
	api    *notionapi.Client
	tables map[Table]notionapi.DatabaseID
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBaseURL sends API calls to base instead of api.notion.com. Used for
// proxies and tests.
func WithBaseURL(base string) Option {
	return func(o *options) {
		if u, err := url.Parse(base); err == nil && u.Host != "" {
			o.baseURL = u
		}
	}
}

// NewClient creates a Client for the given integration token and table ids.
func NewClient(token, wordTableID, lookupTableID string, opts ...Option) *Client {
	o := options{httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}
	hc := o.httpClient
	if o.baseURL != nil {
		next := hc.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		hc = &http.Client{
			Timeout:   hc.Timeout,
			Transport: rewriteTransport{base: o.baseURL, next: next},
		}
	}
	return &Client{
		api: notionapi.NewClient(notionapi.Token(token), notionapi.WithHTTPClient(hc)),
		tables: map[Table]notionapi.DatabaseID{
			WordTable:   notionapi.DatabaseID(wordTableID),
			LookupTable: notionapi.DatabaseID(lookupTableID),
		},
	}
}

type rewriteTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.base.Scheme
	r.URL.Host = t.base.Host
	r.Host = t.base.Host
	return t.next.RoundTrip(r)
}

func (c *Client) database(table Table) (notionapi.DatabaseID, error) {
	id, ok := c.tables[table]
	if !ok || id == "" {
		return "", fmt.Errorf("no database configured for %s", table)
	}
	return id, nil
}

// SearchByText implements Store.
func (c *Client) SearchByText(ctx context.Context, table Table, text string) ([]Row, error) {
	return c.query(ctx, table, notionapi.PropertyFilter{
		Property: PropWord,
		RichText: &notionapi.TextFilterCondition{Contains: truncate(text)},
	})
}

// QueryExact implements Store. The filter is sent as a single-condition AND group.
func (c *Client) QueryExact(ctx context.Context, table Table, property string, value Value) ([]Row, error) {
	f := notionapi.PropertyFilter{Property: property}
	switch v := value.(type) {
	case Title:
		f.RichText = &notionapi.TextFilterCondition{Equals: truncate(string(v))}
	case Text:
		f.RichText = &notionapi.TextFilterCondition{Equals: truncate(string(v))}
	case Checkbox:
		// equals:false is dropped when serialized, so unchecked is expressed
		// as does_not_equal:true.
		if v {
			f.Checkbox = &notionapi.CheckboxFilterCondition{Equals: true}
		} else {
			f.Checkbox = &notionapi.CheckboxFilterCondition{DoesNotEqual: true}
		}
	default:
		return nil, fmt.Errorf("query %s: unsupported filter value %T", table, value)
	}
	return c.query(ctx, table, notionapi.AndCompoundFilter{f})
}

func (c *Client) query(ctx context.Context, table Table, filter notionapi.Filter) ([]Row, error) {
	dbID, err := c.database(table)
	if err != nil {
		return nil, err
	}
	var rows []Row
	req := &notionapi.DatabaseQueryRequest{Filter: filter, PageSize: 100}
	for {
		resp, err := c.api.Database.Query(ctx, dbID, req)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", table, err)
		}
		for _, p := range resp.Results {
			rows = append(rows, rowFromPage(p))
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return rows, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

// CreateRow implements Store.
func (c *Client) CreateRow(ctx context.Context, table Table, fields Fields) (Row, error) {
	dbID, err := c.database(table)
	if err != nil {
		return Row{}, err
	}
	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: dbID,
		},
		Properties: toProperties(fields),
	})
	if err != nil {
		return Row{}, fmt.Errorf("create row in %s: %w", table, err)
	}
	return rowFromPage(*page), nil
}

// UpdateRow implements Store.
func (c *Client) UpdateRow(ctx context.Context, table Table, id string, fields Fields) error {
	_, err := c.api.Page.Update(ctx, notionapi.PageID(id), &notionapi.PageUpdateRequest{
		Properties: toProperties(fields),
	})
	if err != nil {
		return fmt.Errorf("update row %s in %s: %w", id, table, err)
	}
	return nil
}

// GetRow implements Store.
func (c *Client) GetRow(ctx context.Context, table Table, id string) (Row, error) {
	page, err := c.api.Page.Get(ctx, notionapi.PageID(id))
	if err != nil {
		return Row{}, fmt.Errorf("get row %s from %s: %w", id, table, err)
	}
	return rowFromPage(*page), nil
}

// truncate cuts s to the longest text a single rich-text object can hold.
// Filter values go through it too so they match what was stored.
func truncate(s string) string {
	if r := []rune(s); len(r) > maxTextLength {
		return string(r[:maxTextLength])
	}
	return s
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: truncate(s)}}}
}

func toProperties(fields Fields) notionapi.Properties {
	props := notionapi.Properties{}
	for name, value := range fields {
		switch v := value.(type) {
		case Title:
			props[name] = notionapi.TitleProperty{Title: richText(string(v))}
		case Text:
			props[name] = notionapi.RichTextProperty{RichText: richText(string(v))}
		case Select:
			props[name] = notionapi.SelectProperty{Select: notionapi.Option{Name: string(v)}}
		case MultiSelect:
			opts := make([]notionapi.Option, 0, len(v))
			for _, n := range v {
				opts = append(opts, notionapi.Option{Name: n})
			}
			props[name] = notionapi.MultiSelectProperty{MultiSelect: opts}
		case Checkbox:
			props[name] = notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: bool(v)}
		case Relation:
			rel := make([]notionapi.Relation, 0, len(v))
			for _, id := range v {
				rel = append(rel, notionapi.Relation{ID: notionapi.PageID(id)})
			}
			props[name] = notionapi.RelationProperty{Relation: rel}
		}
	}
	return props
}

func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		switch {
		case rt.PlainText != "":
			s += rt.PlainText
		case rt.Text != nil:
			s += rt.Text.Content
		}
	}
	return s
}

func rowFromPage(p notionapi.Page) Row {
	row := Row{ID: string(p.ID), Fields: Fields{}}
	for name, prop := range p.Properties {
		switch v := prop.(type) {
		case *notionapi.TitleProperty:
			row.Fields[name] = Title(plainText(v.Title))
		case *notionapi.RichTextProperty:
			row.Fields[name] = Text(plainText(v.RichText))
		case *notionapi.SelectProperty:
			row.Fields[name] = Select(v.Select.Name)
		case *notionapi.MultiSelectProperty:
			names := make(MultiSelect, 0, len(v.MultiSelect))
			for _, o := range v.MultiSelect {
				names = append(names, o.Name)
			}
			row.Fields[name] = names
		case *notionapi.CheckboxProperty:
			row.Fields[name] = Checkbox(v.Checkbox)
		case *notionapi.RelationProperty:
			ids := make(Relation, 0, len(v.Relation))
			for _, r := range v.Relation {
				ids = append(ids, string(r.ID))
			}
			row.Fields[name] = ids
		}
	}
	return row
}
