// Package bulk resolves many respondents in one pass (export flows, batch
// API). Sheet snapshots are fetched once per resort and reused; upstream
// fetches are throttled so a large export does not hammer the spreadsheet
// endpoint. Matching itself is deterministic over the fetched tables and is
// never retried.
package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/guestpulse/matrice-engine/pkg/matrice"
	"github.com/guestpulse/matrice-engine/pkg/resort"
	"github.com/guestpulse/matrice-engine/pkg/table"
)

// Request is one respondent to resolve.
type Request struct {
	ResortID   string
	Identifier matrice.Identifier
}

// Outcome is the per-request result. Error is set only for upstream fetch
// failures; a plain miss has Found=false and no error.
type Outcome struct {
	ResortID string         `json:"resort"`
	Found    bool           `json:"found"`
	Result   matrice.Result `json:"result"`
	Error    string         `json:"error,omitempty"`
}

// Runner executes bulk reconciliations.
type Runner struct {
	fetcher table.Fetcher
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRunner returns a Runner throttled to one upstream snapshot every 200ms.
func NewRunner(fetcher table.Fetcher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		logger:  logger,
	}
}

// snapshot carries one resort's fetched sheets plus the matcher configured
// with that resort's header overrides.
type snapshot struct {
	respondents *table.Table
	matrice     *table.Table
	matcher     *matrice.Matcher
	err         error
}

// Resolve processes requests in order, fetching each resort's sheets at most
// once for the whole run.
func (r *Runner) Resolve(ctx context.Context, reg *resort.Registry, reqs []Request) []Outcome {
	cache := make(map[string]*snapshot)
	outcomes := make([]Outcome, len(reqs))

	for i, req := range reqs {
		out := Outcome{ResortID: req.ResortID}

		snap, ok := cache[req.ResortID]
		if !ok {
			snap = r.fetchSnapshot(ctx, reg, req.ResortID)
			cache[req.ResortID] = snap
		}
		if snap.err != nil {
			out.Error = snap.err.Error()
			outcomes[i] = out
			continue
		}

		out.Result, out.Found = snap.matcher.Match(req.Identifier, snap.respondents, snap.matrice)
		outcomes[i] = out
	}

	var found, missed, failed int
	for _, out := range outcomes {
		switch {
		case out.Error != "":
			failed++
		case out.Found:
			found++
		default:
			missed++
		}
	}
	r.logger.Info("bulk reconciliation done",
		"requests", len(reqs), "found", found, "missed", missed, "failed", failed)
	return outcomes
}

// fetchSnapshot retrieves both sheets of a resort concurrently, after
// waiting its turn at the throttle.
func (r *Runner) fetchSnapshot(ctx context.Context, reg *resort.Registry, resortID string) *snapshot {
	res, ok := reg.Get(resortID)
	if !ok {
		return &snapshot{err: fmt.Errorf("unknown resort %q", resortID)}
	}
	var opts []matrice.Option
	if res.FeedbackHeader != "" {
		opts = append(opts, matrice.WithFeedbackHeader(res.FeedbackHeader))
	}
	matcher := matrice.NewMatcher(r.logger, opts...)

	if err := r.limiter.Wait(ctx); err != nil {
		return &snapshot{err: err}
	}

	type fetched struct {
		t   *table.Table
		err error
	}
	respCh := make(chan fetched, 1)
	matCh := make(chan fetched, 1)
	go func() {
		t, err := r.fetcher.Fetch(ctx, res.RespondentSource())
		respCh <- fetched{t, err}
	}()
	go func() {
		t, err := r.fetcher.Fetch(ctx, res.MatriceSource())
		matCh <- fetched{t, err}
	}()

	resp, mat := <-respCh, <-matCh
	if resp.err != nil {
		return &snapshot{err: resp.err}
	}
	if mat.err != nil {
		return &snapshot{err: mat.err}
	}
	return &snapshot{respondents: resp.t, matrice: mat.t, matcher: matcher}
}
