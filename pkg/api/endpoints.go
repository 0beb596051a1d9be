package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guestpulse/matrice-engine/pkg/agency"
	"github.com/guestpulse/matrice-engine/pkg/bulk"
	"github.com/guestpulse/matrice-engine/pkg/health"
	"github.com/guestpulse/matrice-engine/pkg/kit"
	"github.com/guestpulse/matrice-engine/pkg/matrice"
	"github.com/guestpulse/matrice-engine/pkg/resort"
	"github.com/guestpulse/matrice-engine/pkg/table"
)

// Errors the transports map to status codes. A reconciliation miss is a
// normal engine outcome; it only becomes ErrNoMatch at the endpoint boundary
// so HTTP can answer 404.
var (
	ErrUnknownResort = errors.New("unknown resort")
	ErrNoMatch       = errors.New("respondent not found in matrice")
)

// DefaultAgencyHeader locates the booking-agency column in Feuille 1 unless
// the resort overrides it.
const DefaultAgencyHeader = "Agence"

// Service wires the reconciliation engine to its transports.
type Service struct {
	Registry *resort.Registry
	Fetcher  table.Fetcher
	Runner   *bulk.Runner
	Health   *health.DB // nil disables probe reporting
	Logger   *slog.Logger
}

// Shared request/response types used by both HTTP and MCP transports.

type resolveReq struct {
	ResortID   string
	Identifier matrice.Identifier
}

type batchReq struct {
	ResortID    string
	Identifiers []matrice.Identifier
}

type agenciesReq struct {
	ResortID string
}

type normalizeDateReq struct {
	Value string
}

type resortsResponse struct {
	Resorts []*resort.Resort `json:"resorts"`
}

type batchResponse struct {
	Results []bulk.Outcome `json:"results"`
}

type agenciesResponse struct {
	Agencies []agency.Cluster `json:"agencies"`
}

type normalizeDateResponse struct {
	Value      string  `json:"value"`
	Normalized *string `json:"normalized"`
}

func resolveEndpoint(s *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*resolveReq)
		res, ok := s.Registry.Get(req.ResortID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResort, req.ResortID)
		}

		respondents, mat, err := s.fetchPair(ctx, res)
		if err != nil {
			return nil, err
		}

		result, found := s.matcherFor(res).Match(req.Identifier, respondents, mat)
		if !found {
			return nil, ErrNoMatch
		}
		return result, nil
	}
}

func batchEndpoint(s *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*batchReq)
		if len(req.Identifiers) == 0 {
			return nil, fmt.Errorf("identifiers array is empty")
		}
		if len(req.Identifiers) > 100 {
			return nil, fmt.Errorf("too many identifiers (max 100, got %d)", len(req.Identifiers))
		}
		if _, ok := s.Registry.Get(req.ResortID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResort, req.ResortID)
		}

		reqs := make([]bulk.Request, len(req.Identifiers))
		for i, id := range req.Identifiers {
			reqs[i] = bulk.Request{ResortID: req.ResortID, Identifier: id}
		}
		return batchResponse{Results: s.Runner.Resolve(ctx, s.Registry, reqs)}, nil
	}
}

func agenciesEndpoint(s *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*agenciesReq)
		res, ok := s.Registry.Get(req.ResortID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResort, req.ResortID)
		}

		respondents, err := s.Fetcher.Fetch(ctx, res.RespondentSource())
		if err != nil {
			return nil, err
		}

		header := res.AgencyHeader
		if header == "" {
			header = DefaultAgencyHeader
		}
		names := columnValues(respondents, header)
		return agenciesResponse{Agencies: agency.ClusterNames(names)}, nil
	}
}

func listResortsEndpoint(s *Service) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return resortsResponse{Resorts: s.Registry.List()}, nil
	}
}

func normalizeDateEndpoint() kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*normalizeDateReq)
		resp := normalizeDateResponse{Value: req.Value}
		if d, ok := matrice.NormalizeDate(req.Value); ok {
			resp.Normalized = &d
		}
		return resp, nil
	}
}

// fetchPair retrieves both sheets of a resort concurrently.
func (s *Service) fetchPair(ctx context.Context, res *resort.Resort) (*table.Table, *table.Table, error) {
	type fetched struct {
		t   *table.Table
		err error
	}
	respCh := make(chan fetched, 1)
	matCh := make(chan fetched, 1)
	go func() {
		t, err := s.Fetcher.Fetch(ctx, res.RespondentSource())
		respCh <- fetched{t, err}
	}()
	go func() {
		t, err := s.Fetcher.Fetch(ctx, res.MatriceSource())
		matCh <- fetched{t, err}
	}()

	resp, mat := <-respCh, <-matCh
	if resp.err != nil {
		return nil, nil, resp.err
	}
	if mat.err != nil {
		return nil, nil, mat.err
	}
	return resp.t, mat.t, nil
}

func (s *Service) matcherFor(res *resort.Resort) *matrice.Matcher {
	if res.FeedbackHeader != "" {
		return matrice.NewMatcher(s.Logger, matrice.WithFeedbackHeader(res.FeedbackHeader))
	}
	return matrice.NewMatcher(s.Logger)
}

// columnValues collects the non-empty display values of the column whose
// normalized header matches.
func columnValues(t *table.Table, header string) []string {
	target := matrice.NormalizeText(header)
	col := -1
	for j, label := range t.Columns {
		if matrice.NormalizeText(label) == target {
			col = j
			break
		}
	}
	if col < 0 {
		return nil
	}
	var values []string
	for i := range t.Rows {
		if c := t.Cell(i, col); !c.IsEmpty() {
			values = append(values, c.Display())
		}
	}
	return values
}
