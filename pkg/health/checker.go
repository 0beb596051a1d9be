package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Checker performs periodic HEAD requests against every configured sheet
// endpoint and records their availability.
type Checker struct {
	db       *DB
	logger   *slog.Logger
	interval time.Duration
	client   *http.Client
}

// NewChecker creates a Checker that probes every interval.
func NewChecker(db *DB, logger *slog.Logger, interval time.Duration) *Checker {
	return &Checker{
		db:       db,
		logger:   logger,
		interval: interval,
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Start runs an immediate probe round then repeats every interval until ctx
// is cancelled.
func (c *Checker) Start(ctx context.Context) {
	c.CheckAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll performs a HEAD request on every endpoint and persists results.
func (c *Checker) CheckAll(ctx context.Context) {
	probes, err := c.db.List()
	if err != nil {
		c.logger.Error("sheet probe: cannot list endpoints", "error", err)
		return
	}
	if len(probes) == 0 {
		return
	}

	var ok, failed int
	for _, p := range probes {
		if ctx.Err() != nil {
			return
		}

		status, checkErr := c.checkOne(ctx, p.URL)
		errMsg := ""
		if checkErr != nil {
			errMsg = checkErr.Error()
		}

		if err := c.db.UpdateCheck(p.ResortID, status, errMsg); err != nil {
			c.logger.Error("sheet probe: update failed", "resort", p.ResortID, "error", err)
		}

		if status >= 200 && status < 400 {
			ok++
		} else {
			failed++
			c.logger.Warn("sheet endpoint unreachable",
				"resort", p.ResortID,
				"status", status,
				"error", errMsg,
			)
		}
	}

	c.logger.Info("sheet probe round complete", "total", ok+failed, "ok", ok, "failed", failed)
}

// checkOne performs a single HEAD request and returns the HTTP status code.
// On network error, status is 0.
func (c *Checker) checkOne(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
