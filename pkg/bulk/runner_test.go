package bulk

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/guestpulse/matrice-engine/pkg/matrice"
	"github.com/guestpulse/matrice-engine/pkg/resort"
	"github.com/guestpulse/matrice-engine/pkg/table"
)

// stubFetcher serves canned tables and counts upstream hits. The runner
// fetches both sheets concurrently, so the counter is mutex-guarded.
type stubFetcher struct {
	mu     sync.Mutex
	tables map[string]*table.Table
	err    error
	calls  int
}

func (s *stubFetcher) Fetch(_ context.Context, src table.Source) (*table.Table, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tables[src.GID]
	if !ok {
		return &table.Table{}, nil
	}
	return t, nil
}

func testRegistry(t *testing.T) *resort.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resorts.yaml")
	content := `resorts:
  le-lagon:
    name: Le Lagon
    sheet_id: sheet-1
    matrice_gid: "7"
  le-recif:
    name: Le Récif
    sheet_id: sheet-2
    matrice_gid: "9"
    feedback_header: "Vos remarques"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := resort.NewRegistry(path)
	if err := reg.Load(); err != nil {
		t.Fatal(err)
	}
	return reg
}

func testMatrice() *table.Table {
	return &table.Table{
		Columns: []string{"Nom", "Accueil", "Chambre", "Note"},
		Rows: [][]table.Cell{
			{table.Text("Mme Dupont"), table.Text("9"), table.Text("8"), table.Text("8,5")},
			{table.Text("M. Martin"), table.Text("6"), table.Text("7"), table.Text("6,5")},
		},
	}
}

func TestResolveReusesSnapshot(t *testing.T) {
	fetcher := &stubFetcher{tables: map[string]*table.Table{"7": testMatrice()}}
	runner := NewRunner(fetcher, slog.New(slog.DiscardHandler))
	reg := testRegistry(t)

	outcomes := runner.Resolve(context.Background(), reg, []Request{
		{ResortID: "le-lagon", Identifier: matrice.Identifier{Name: "Dupont"}},
		{ResortID: "le-lagon", Identifier: matrice.Identifier{Name: "Martin"}},
		{ResortID: "le-lagon", Identifier: matrice.Identifier{Name: "Inconnu"}},
	})

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	if !outcomes[0].Found || !outcomes[1].Found {
		t.Errorf("expected first two found: %+v", outcomes[:2])
	}
	if outcomes[1].Result.Overall == nil || *outcomes[1].Result.Overall != "6,5" {
		t.Errorf("martin overall = %v, want 6,5", outcomes[1].Result.Overall)
	}
	// A miss is not an error.
	if outcomes[2].Found || outcomes[2].Error != "" {
		t.Errorf("miss outcome = %+v", outcomes[2])
	}

	// Both sheets fetched exactly once despite three requests.
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.calls)
	}
}

func TestResolveUnknownResort(t *testing.T) {
	fetcher := &stubFetcher{}
	runner := NewRunner(fetcher, slog.New(slog.DiscardHandler))

	outcomes := runner.Resolve(context.Background(), testRegistry(t), []Request{
		{ResortID: "nowhere", Identifier: matrice.Identifier{Name: "Dupont"}},
	})
	if outcomes[0].Error == "" {
		t.Fatalf("expected error for unknown resort, got %+v", outcomes[0])
	}
	if fetcher.calls != 0 {
		t.Errorf("no fetch should happen for unknown resort, got %d", fetcher.calls)
	}
}

func TestResolveFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("upstream down")}
	runner := NewRunner(fetcher, slog.New(slog.DiscardHandler))

	outcomes := runner.Resolve(context.Background(), testRegistry(t), []Request{
		{ResortID: "le-lagon", Identifier: matrice.Identifier{Name: "Dupont"}},
		{ResortID: "le-lagon", Identifier: matrice.Identifier{Name: "Martin"}},
	})
	for i, out := range outcomes {
		if out.Error == "" || out.Found {
			t.Errorf("outcome %d = %+v, want fetch error", i, out)
		}
	}
	// The failed snapshot is cached too; no refetch storm.
	if fetcher.calls > 2 {
		t.Errorf("fetch calls = %d, want at most 2", fetcher.calls)
	}
}

func TestResolveUsesResortFeedbackHeader(t *testing.T) {
	// le-recif renamed the free-text question; the runner must match it
	// with that resort's header, not the default phrase.
	recifMatrice := &table.Table{
		Columns: []string{"Nom", "Accueil", "Vos remarques", "Note"},
		Rows: [][]table.Cell{
			{table.Text("Mme Dupont"), table.Text("9"), table.Text("Très bon séjour"), table.Text("8,5")},
		},
	}
	fetcher := &stubFetcher{tables: map[string]*table.Table{"9": recifMatrice}}
	runner := NewRunner(fetcher, slog.New(slog.DiscardHandler))

	outcomes := runner.Resolve(context.Background(), testRegistry(t), []Request{
		{ResortID: "le-recif", Identifier: matrice.Identifier{Name: "Dupont"}},
	})
	if !outcomes[0].Found {
		t.Fatalf("outcome = %+v, want found", outcomes[0])
	}
	fb := outcomes[0].Result.Feedback
	if fb == nil || *fb != "Très bon séjour" {
		t.Errorf("feedback = %v, want Très bon séjour", fb)
	}
}
