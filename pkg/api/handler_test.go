package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/guestpulse/matrice-engine/pkg/agency"
	"github.com/guestpulse/matrice-engine/pkg/bulk"
	"github.com/guestpulse/matrice-engine/pkg/matrice"
	"github.com/guestpulse/matrice-engine/pkg/resort"
	"github.com/guestpulse/matrice-engine/pkg/table"
)

// stubFetcher serves canned tables keyed by GID.
type stubFetcher struct {
	tables map[string]*table.Table
	err    error
}

func (f *stubFetcher) Fetch(_ context.Context, src table.Source) (*table.Table, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tables[src.GID]
	if !ok {
		return nil, fmt.Errorf("no table for gid %s", src.GID)
	}
	return t, nil
}

func respondentTable() *table.Table {
	return &table.Table{
		Columns: []string{"Horodateur", "Adresse e-mail", "Agence"},
		Rows: [][]table.Cell{
			{table.Text("01/07/2025"), table.Text("jean.dupont@example.com"), table.Text("Top of Travel")},
			{table.Text("02/07/2025"), table.Text("marie.claire@example.com"), table.Text("TOP OF TRAVEL")},
			{table.Text("03/07/2025"), table.Text("paul.sand@example.com"), table.Text("Top of Travel")},
			{table.Text("04/07/2025"), table.Text("lucie.arno@example.com"), table.Text("Tui France")},
		},
	}
}

func matriceTable() *table.Table {
	return &table.Table{
		Columns: []string{"Nom", "Accueil", "Restauration", "Note"},
		Rows: [][]table.Cell{
			{table.Text("jean.dupont@example.com"), table.Number(9, "9"), table.Number(8, "8"), table.Text("8,5")},
			{table.Text("Anonyme"), table.Number(7, "7"), table.Number(6, "6"), table.Text("6,5")},
		},
	}
}

func newTestService(t *testing.T, fetcher table.Fetcher) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resorts.yaml")
	data := `resorts:
  alpina:
    name: "Hôtel Alpina"
    sheet_id: "sheet123"
    matrice_gid: "42"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write resorts file: %v", err)
	}
	reg := resort.NewRegistry(path)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	return &Service{
		Registry: reg,
		Fetcher:  fetcher,
		Runner:   bulk.NewRunner(fetcher, logger),
		Logger:   logger,
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	fetcher := &stubFetcher{tables: map[string]*table.Table{
		"0":  respondentTable(),
		"42": matriceTable(),
	}}
	return NewRouter(newTestService(t, fetcher))
}

func doRequest(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleResolve(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/v1/resorts/alpina/respondent?email=jean.dupont@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res matrice.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []matrice.Category{{Name: "Accueil", Value: "9"}, {Name: "Restauration", Value: "8"}}
	if len(res.Categories) != len(want) {
		t.Fatalf("categories = %v, want %v", res.Categories, want)
	}
	for i, c := range want {
		if res.Categories[i] != c {
			t.Errorf("category %d = %v, want %v", i, res.Categories[i], c)
		}
	}
	if res.Overall == nil || *res.Overall != "8,5" {
		t.Errorf("overall = %v, want 8,5", res.Overall)
	}
	if res.Column == nil || *res.Column != "D" {
		t.Errorf("column = %v, want D", res.Column)
	}
	if res.Feedback != nil {
		t.Errorf("feedback = %q, want nil", *res.Feedback)
	}
}

func TestHandleResolveMiss(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/v1/resorts/alpina/respondent?email=unknown@nowhere.example", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleResolveUnknownResort(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/v1/resorts/nope/respondent?email=jean.dupont@example.com", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleResolveNoIdentifier(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/v1/resorts/alpina/respondent", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleResolveBadRow(t *testing.T) {
	h := newTestRouter(t)
	for _, row := range []string{"abc", "0", "-3"} {
		rec := doRequest(t, h, http.MethodGet, "/v1/resorts/alpina/respondent?row="+row, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("row %q: status = %d, want 400", row, rec.Code)
		}
	}
}

func TestHandleResolveFetchError(t *testing.T) {
	fetcher := &stubFetcher{err: &table.FetchError{URL: "https://example.com", Status: 503}}
	h := NewRouter(newTestService(t, fetcher))
	rec := doRequest(t, h, http.MethodGet, "/v1/resorts/alpina/respondent?email=jean.dupont@example.com", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestHandleBatch(t *testing.T) {
	h := newTestRouter(t)
	body := []byte(`{"identifiers":[{"email":"jean.dupont@example.com"},{"name":"Personne Inconnue"}]}`)
	rec := doRequest(t, h, http.MethodPost, "/v1/resorts/alpina/respondents/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if !resp.Results[0].Found {
		t.Errorf("first result not found, want found")
	}
	if resp.Results[1].Found || resp.Results[1].Error != "" {
		t.Errorf("second result = %+v, want clean miss", resp.Results[1])
	}
}

func TestHandleBatchValidation(t *testing.T) {
	h := newTestRouter(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/resorts/alpina/respondents/batch", []byte(`{"identifiers":[]}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty identifiers: status = %d, want 400", rec.Code)
	}

	var big bytes.Buffer
	big.WriteString(`{"identifiers":[`)
	for i := 0; i < 101; i++ {
		if i > 0 {
			big.WriteByte(',')
		}
		fmt.Fprintf(&big, `{"email":"user%d@example.com"}`, i)
	}
	big.WriteString(`]}`)
	rec = doRequest(t, h, http.MethodPost, "/v1/resorts/alpina/respondents/batch", big.Bytes())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("101 identifiers: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/v1/resorts/alpina/respondents/batch", []byte(`{"identifiers":[{"row":-3}]}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative row: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/v1/resorts/nope/respondents/batch", []byte(`{"identifiers":[{"email":"a@b.c"}]}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown resort: status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/resorts/alpina/respondents/batch", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET batch: status = %d, want 405", rec.Code)
	}
}

func TestHandleAgencies(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/v1/resorts/alpina/agencies", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp agenciesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []agency.Cluster{
		{Display: "Top of Travel", QueryValue: "top of travel"},
		{Display: "Tui France", QueryValue: "tui france"},
	}
	if len(resp.Agencies) != len(want) {
		t.Fatalf("agencies = %v, want %v", resp.Agencies, want)
	}
	for i, c := range want {
		if resp.Agencies[i] != c {
			t.Errorf("agency %d = %v, want %v", i, resp.Agencies[i], c)
		}
	}
}

func TestHandleListResorts(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/v1/resorts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp resortsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Resorts) != 1 || resp.Resorts[0].ID != "alpina" || resp.Resorts[0].Name != "Hôtel Alpina" {
		t.Fatalf("resorts = %+v", resp.Resorts)
	}
}

func TestHandleNormalizeDate(t *testing.T) {
	h := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/v1/dates/normalize?value=15+juillet+2025", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp normalizeDateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Normalized == nil || *resp.Normalized != "15/07/2025" {
		t.Errorf("normalized = %v, want 15/07/2025", resp.Normalized)
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/dates/normalize?value=pas+une+date", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Normalized != nil {
		t.Errorf("normalized = %q, want nil", *resp.Normalized)
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/dates/normalize", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing value: status = %d, want 400", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Resorts != 1 {
		t.Fatalf("health = %+v", resp)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t)
	rec := doRequest(t, h, http.MethodOptions, "/v1/resorts", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want *", got)
	}
}
