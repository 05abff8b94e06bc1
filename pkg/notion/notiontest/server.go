package notiontest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/japaniel/kindlenotion/pkg/notion"
)

// NewServer serves the subset of the Notion REST API used by notion.Client,
// backed by store. wordDB and lookupDB are the database ids the client will
// be configured with. It returns the server's base URL.
func NewServer(t testing.TB, store *MemStore, wordDB, lookupDB string) string {
	t.Helper()
	s := &server{
		store:  store,
		tables: map[string]notion.Table{wordDB: notion.WordTable, lookupDB: notion.LookupTable},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/databases/{id}/query", s.query)
	mux.HandleFunc("POST /v1/pages", s.createPage)
	mux.HandleFunc("PATCH /v1/pages/{id}", s.updatePage)
	mux.HandleFunc("GET /v1/pages/{id}", s.getPage)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

type server struct {
	store  *MemStore
	tables map[string]notion.Table
}

type richTextJSON struct {
	Type      string `json:"type,omitempty"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
	PlainText string `json:"plain_text,omitempty"`
}

type optionJSON struct {
	Name string `json:"name"`
}

type relationJSON struct {
	ID string `json:"id"`
}

type propertyJSON struct {
	Type        string         `json:"type,omitempty"`
	Title       []richTextJSON `json:"title,omitempty"`
	RichText    []richTextJSON `json:"rich_text,omitempty"`
	Select      *optionJSON    `json:"select,omitempty"`
	MultiSelect []optionJSON   `json:"multi_select,omitempty"`
	Checkbox    *bool          `json:"checkbox,omitempty"`
	Relation    []relationJSON `json:"relation,omitempty"`
	HasMore     *bool          `json:"has_more,omitempty"`
}

type pageJSON struct {
	Object         string                  `json:"object"`
	ID             string                  `json:"id"`
	CreatedTime    string                  `json:"created_time"`
	LastEditedTime string                  `json:"last_edited_time"`
	Archived       bool                    `json:"archived"`
	Properties     map[string]propertyJSON `json:"properties"`
	URL            string                  `json:"url"`
}

type textCond struct {
	Equals   *string `json:"equals"`
	Contains *string `json:"contains"`
}

type checkboxCond struct {
	Equals       *bool `json:"equals"`
	DoesNotEqual *bool `json:"does_not_equal"`
}

type filterJSON struct {
	And      []filterJSON  `json:"and"`
	Or       []filterJSON  `json:"or"`
	Property string        `json:"property"`
	RichText *textCond     `json:"rich_text"`
	Title    *textCond     `json:"title"`
	Checkbox *checkboxCond `json:"checkbox"`
}

func (f filterJSON) match(r notion.Row) bool {
	if f.And != nil {
		for _, sub := range f.And {
			if !sub.match(r) {
				return false
			}
		}
		return true
	}
	if f.Or != nil {
		for _, sub := range f.Or {
			if sub.match(r) {
				return true
			}
		}
		return false
	}
	cond := f.RichText
	if cond == nil {
		cond = f.Title
	}
	if cond != nil {
		got := r.Text(f.Property)
		if cond.Equals != nil && got != *cond.Equals {
			return false
		}
		if cond.Contains != nil && !strings.Contains(strings.ToLower(got), strings.ToLower(*cond.Contains)) {
			return false
		}
		return true
	}
	if f.Checkbox != nil {
		got := r.Checkbox(f.Property)
		if f.Checkbox.Equals != nil && got != *f.Checkbox.Equals {
			return false
		}
		if f.Checkbox.DoesNotEqual != nil && got == *f.Checkbox.DoesNotEqual {
			return false
		}
		return true
	}
	return true
}

func (s *server) query(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tables[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database")
		return
	}
	var req struct {
		Filter      *filterJSON `json:"filter"`
		StartCursor string      `json:"start_cursor"`
		PageSize    int         `json:"page_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var matched []notion.Row
	for _, row := range s.store.Rows(table) {
		if req.Filter == nil || req.Filter.match(row) {
			matched = append(matched, row)
		}
	}

	start := 0
	if req.StartCursor != "" {
		n, err := strconv.Atoi(req.StartCursor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "bad start_cursor")
			return
		}
		start = n
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 100
	}
	end := min(start+size, len(matched))
	if start > end {
		start = end
	}

	results := make([]pageJSON, 0, end-start)
	for _, row := range matched[start:end] {
		results = append(results, toPageJSON(row))
	}
	resp := map[string]interface{}{
		"object":   "list",
		"results":  results,
		"has_more": end < len(matched),
	}
	if end < len(matched) {
		resp["next_cursor"] = strconv.Itoa(end)
	} else {
		resp["next_cursor"] = nil
	}
	writeJSON(w, resp)
}

func (s *server) createPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent struct {
			DatabaseID string `json:"database_id"`
		} `json:"parent"`
		Properties map[string]propertyJSON `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	table, ok := s.tables[req.Parent.DatabaseID]
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database")
		return
	}
	row, err := s.store.CreateRow(r.Context(), table, fromPropertiesJSON(req.Properties))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	writeJSON(w, toPageJSON(row))
}

func (s *server) updatePage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Properties map[string]propertyJSON `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	row, ok := s.store.find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find page")
		return
	}
	table := s.tableOf(id)
	if err := s.store.UpdateRow(r.Context(), table, id, fromPropertiesJSON(req.Properties)); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	row, _ = s.store.find(id)
	writeJSON(w, toPageJSON(row))
}

func (s *server) getPage(w http.ResponseWriter, r *http.Request) {
	row, ok := s.store.find(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find page")
		return
	}
	writeJSON(w, toPageJSON(row))
}

func (s *server) tableOf(id string) notion.Table {
	for _, t := range []notion.Table{notion.WordTable, notion.LookupTable} {
		for _, r := range s.store.Rows(t) {
			if r.ID == id {
				return t
			}
		}
	}
	return 0
}

func joinText(rts []richTextJSON) string {
	var b strings.Builder
	for _, rt := range rts {
		if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		} else {
			b.WriteString(rt.PlainText)
		}
	}
	return b.String()
}

func fromPropertiesJSON(props map[string]propertyJSON) notion.Fields {
	fields := notion.Fields{}
	for name, p := range props {
		switch {
		case p.Title != nil:
			fields[name] = notion.Title(joinText(p.Title))
		case p.RichText != nil:
			fields[name] = notion.Text(joinText(p.RichText))
		case p.Select != nil:
			fields[name] = notion.Select(p.Select.Name)
		case p.MultiSelect != nil:
			ms := notion.MultiSelect{}
			for _, o := range p.MultiSelect {
				ms = append(ms, o.Name)
			}
			fields[name] = ms
		case p.Checkbox != nil:
			fields[name] = notion.Checkbox(*p.Checkbox)
		case p.Relation != nil:
			rel := notion.Relation{}
			for _, r := range p.Relation {
				rel = append(rel, r.ID)
			}
			fields[name] = rel
		case p.Type == "title":
			fields[name] = notion.Title("")
		case p.Type == "rich_text":
			fields[name] = notion.Text("")
		case p.Type == "checkbox":
			fields[name] = notion.Checkbox(false)
		}
	}
	return fields
}

func textJSON(s string) []richTextJSON {
	rt := richTextJSON{Type: "text", PlainText: s}
	rt.Text = &struct {
		Content string `json:"content"`
	}{Content: s}
	return []richTextJSON{rt}
}

func toPageJSON(row notion.Row) pageJSON {
	props := make(map[string]propertyJSON, len(row.Fields))
	for name, v := range row.Fields {
		switch v := v.(type) {
		case notion.Title:
			props[name] = propertyJSON{Type: "title", Title: textJSON(string(v))}
		case notion.Text:
			props[name] = propertyJSON{Type: "rich_text", RichText: textJSON(string(v))}
		case notion.Select:
			props[name] = propertyJSON{Type: "select", Select: &optionJSON{Name: string(v)}}
		case notion.MultiSelect:
			opts := []optionJSON{}
			for _, n := range v {
				opts = append(opts, optionJSON{Name: n})
			}
			props[name] = propertyJSON{Type: "multi_select", MultiSelect: opts}
		case notion.Checkbox:
			b := bool(v)
			props[name] = propertyJSON{Type: "checkbox", Checkbox: &b}
		case notion.Relation:
			rel := []relationJSON{}
			for _, id := range v {
				rel = append(rel, relationJSON{ID: id})
			}
			hasMore := false
			props[name] = propertyJSON{Type: "relation", Relation: rel, HasMore: &hasMore}
		}
	}
	return pageJSON{
		Object:         "page",
		ID:             row.ID,
		CreatedTime:    "2024-01-01T00:00:00Z",
		LastEditedTime: "2024-01-01T00:00:00Z",
		Properties:     props,
		URL:            fmt.Sprintf("https://www.notion.so/%s", strings.ReplaceAll(row.ID, "-", "")),
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"object":  "error",
		"status":  status,
		"code":    code,
		"message": msg,
	})
}
