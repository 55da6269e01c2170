package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"

	"github.com/mamadbah2/farmchain/internal/config"
)

func newTestRepository(t *testing.T, handler http.HandlerFunc) *GoogleSheetRepository {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	repo, err := NewGoogleSheetRepository(context.Background(),
		config.SheetsConfig{SpreadsheetID: "sheet-1"},
		nil,
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	return repo
}

func TestAppendRows(t *testing.T) {
	var gotPath string
	var body struct {
		Values [][]interface{} `json:"values"`
	}
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	rows := [][]interface{}{{"2025-06-14", "B", "f1", "SPLIT", "farmer-1"}, {"2025-06-14", "C", "f1", "APPROVED", "d1"}}
	if err := repo.AppendRows(context.Background(), "Trace!A:E", rows); err != nil {
		t.Fatalf("append: %v", err)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-1/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if len(body.Values) != 2 || body.Values[1][3] != "APPROVED" {
		t.Fatalf("unexpected values: %+v", body.Values)
	}
}

func TestAppendRowsSkipsEmpty(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL.Path)
	})
	if err := repo.AppendRows(context.Background(), "Trace!A:E", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.AppendRows(context.Background(), "", [][]interface{}{{"x"}}); err == nil {
		t.Fatalf("expected an error for an empty range")
	}
}

func TestReadRange(t *testing.T) {
	repo := newTestRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Trace!A1:E2","values":[["2025-06-14","B"]]}`))
	})
	rows, err := repo.ReadRange(context.Background(), "Trace!A:E")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || rows[0][1] != "B" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}
