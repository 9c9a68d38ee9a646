// Package ingest polls an HTTP telemetry feed and hands complete
// snapshots to the engine. It is the pull-based alternative to the
// websocket push boundary.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/tracker"
	"github.com/yegors/mp-director/pkg/logger"
)

// SnapshotHandler receives each fetched snapshot
type SnapshotHandler func(tracker.Snapshot)

// Client periodically fetches telemetry from the configured feed
type Client struct {
	httpClient *http.Client
	url        string
	interval   time.Duration
	onSnapshot SnapshotHandler
	logger     *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a new telemetry feed client
func NewClient(cfg config.IngestConfig, onSnapshot SnapshotHandler, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		url:        cfg.URL,
		interval:   time.Duration(cfg.IntervalSeconds) * time.Second,
		onSnapshot: onSnapshot,
		logger:     log.Named("ingest"),
		done:       make(chan struct{}),
	}
}

// FetchSnapshot fetches and parses one telemetry frame
func (c *Client) FetchSnapshot(ctx context.Context) (tracker.Snapshot, error) {
	var snap tracker.Snapshot

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return snap, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return snap, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return snap, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if snap.Time.IsZero() {
		snap.Time = time.Now().UTC()
	}

	c.logger.Debug("Fetched telemetry snapshot",
		logger.Int("aircraft_count", len(snap.Aircraft)))
	return snap, nil
}

// Start launches the poll loop
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	c.logger.Info("Telemetry polling started",
		logger.String("url", c.url),
		logger.Duration("interval", c.interval))
}

// Stop terminates the poll loop
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
	c.logger.Info("Telemetry polling stopped")
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := c.FetchSnapshot(ctx)
			if err != nil {
				// one bad poll never stops the loop
				c.logger.Warn("Telemetry fetch failed", logger.Error(err))
				continue
			}
			c.onSnapshot(snap)
		}
	}
}
