package syncer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeRemote is an in-memory stand-in for the PostgREST backend: enough
// of eq./in. filtering, merge-on-conflict upserts and the unlock RPCs to
// run the orchestrator against.
type fakeRemote struct {
	t      *testing.T
	nextID int64
	tables map[string][]map[string]any

	requests    []capturedRequest
	unlockCalls []string
}

type capturedRequest struct {
	Method string
	Table  string
	Query  map[string]string
	Body   []byte
}

func newFakeRemote(t *testing.T) *fakeRemote {
	return &fakeRemote{
		t:      t,
		nextID: 1000,
		tables: map[string][]map[string]any{},
	}
}

func (f *fakeRemote) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(f.handle))
}

func (f *fakeRemote) seed(table string, rows ...map[string]any) {
	for _, row := range rows {
		if _, ok := row["id"]; !ok {
			f.nextID++
			row["id"] = float64(f.nextID)
		}
		f.tables[table] = append(f.tables[table], row)
	}
}

func (f *fakeRemote) rows(table string) []map[string]any {
	return f.tables[table]
}

func (f *fakeRemote) capturedFor(method, table string) []capturedRequest {
	var out []capturedRequest
	for _, req := range f.requests {
		if req.Method == method && req.Table == table {
			out = append(out, req)
		}
	}
	return out
}

func (f *fakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	body, _ := io.ReadAll(r.Body)

	query := map[string]string{}
	for key, values := range r.URL.Query() {
		query[key] = values[0]
	}
	f.requests = append(f.requests, capturedRequest{
		Method: r.Method,
		Table:  rest,
		Query:  query,
		Body:   body,
	})

	if strings.HasPrefix(rest, "rpc/") {
		f.handleRPC(w, strings.TrimPrefix(rest, "rpc/"), body)
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.handleSelect(w, rest, query)
	case http.MethodPost:
		f.handleUpsert(w, rest, query, body)
	case http.MethodPatch:
		f.handlePatch(w, rest, query, body)
	case http.MethodDelete:
		f.handleDelete(w, rest, query)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeRemote) handleRPC(w http.ResponseWriter, name string, body []byte) {
	f.unlockCalls = append(f.unlockCalls, name+" "+string(body))

	var params map[string]int64
	if err := json.Unmarshal(body, &params); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// The unlock procedures clear the protected flag for the scope.
	count := 0
	switch name {
	case "unlock_class_for_reupload":
		count = f.clearScored("class_id", params["p_class_id"])
	case "unlock_trial_for_reupload":
		for _, class := range f.tables["classes"] {
			if toString(class["trial_id"]) == fmt.Sprint(params["p_trial_id"]) {
				count += f.clearScored("class_id", int64(class["id"].(float64)))
			}
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	fmt.Fprintf(w, "%d", count)
}

func (f *fakeRemote) clearScored(column string, id int64) int {
	count := 0
	for _, entry := range f.tables["entries"] {
		if toString(entry[column]) == fmt.Sprint(id) && entry["is_scored"] == true {
			entry["is_scored"] = false
			count++
		}
	}
	return count
}

func (f *fakeRemote) handleSelect(w http.ResponseWriter, table string, query map[string]string) {
	matched := f.match(table, query)
	if matched == nil {
		matched = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(matched)
}

func (f *fakeRemote) handleUpsert(w http.ResponseWriter, table string, query map[string]string, body []byte) {
	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	conflictKeys := strings.Split(query["on_conflict"], ",")
	for _, record := range records {
		if existing := f.findByKeys(table, record, conflictKeys); existing != nil {
			for key, value := range record {
				existing[key] = value
			}
			continue
		}

		f.nextID++
		record["id"] = float64(f.nextID)
		if table == "entries" {
			if _, ok := record["is_scored"]; !ok {
				record["is_scored"] = false
			}
		}
		f.tables[table] = append(f.tables[table], record)
	}

	w.WriteHeader(http.StatusCreated)
}

func (f *fakeRemote) handlePatch(w http.ResponseWriter, table string, query map[string]string, body []byte) {
	var patch map[string]any
	if err := json.Unmarshal(body, &patch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	for _, row := range f.match(table, query) {
		for key, value := range patch {
			row[key] = value
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeRemote) handleDelete(w http.ResponseWriter, table string, query map[string]string) {
	doomed := f.match(table, query)
	var kept []map[string]any
	for _, row := range f.tables[table] {
		dead := false
		for _, d := range doomed {
			if fmt.Sprint(row["id"]) == fmt.Sprint(d["id"]) {
				dead = true
				break
			}
		}
		if !dead {
			kept = append(kept, row)
		}
	}
	f.tables[table] = kept
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeRemote) match(table string, query map[string]string) []map[string]any {
	var out []map[string]any
	for _, row := range f.tables[table] {
		if f.rowMatches(row, query) {
			out = append(out, row)
		}
	}
	return out
}

func (f *fakeRemote) rowMatches(row map[string]any, query map[string]string) bool {
	for column, expr := range query {
		if column == "select" || column == "on_conflict" {
			continue
		}
		switch {
		case strings.HasPrefix(expr, "eq."):
			if toString(row[column]) != strings.TrimPrefix(expr, "eq.") {
				return false
			}
		case strings.HasPrefix(expr, "in.("):
			list := strings.TrimSuffix(strings.TrimPrefix(expr, "in.("), ")")
			found := false
			for _, candidate := range strings.Split(list, ",") {
				if toString(row[column]) == candidate {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			f.t.Fatalf("fake remote: unsupported filter %s=%s", column, expr)
		}
	}
	return true
}

func (f *fakeRemote) findByKeys(table string, record map[string]any, keys []string) map[string]any {
	for _, row := range f.tables[table] {
		match := true
		for _, key := range keys {
			if toString(row[key]) != toString(record[key]) {
				match = false
				break
			}
		}
		if match {
			return row
		}
	}
	return nil
}

// toString normalizes json numbers, bools and strings for comparison.
func toString(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprint(int64(n))
		}
		return fmt.Sprint(n)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
