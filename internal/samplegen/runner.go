package samplegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/okian/toprank/internal/domain/types"
	"github.com/okian/toprank/pkg/logger"
)

// ErrMismatch reports a published leaderboard that differs from the model.
var ErrMismatch = errors.New("leaderboard mismatch")

const (
	filePermission  = 0o600
	defaultPageSize = 100
)

// Run submits cfg.Batches generated batches one at a time through the sync
// endpoint and verifies every leaderboard after the last one.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	log := logger.Get().Named("samplegen")
	stats := Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	gen := NewGenerator(cfg)
	model, err := seed(ctx, client, cfg.Metrics, cfg.PageSize)
	if err != nil {
		return stats, err
	}
	var sent []types.BatchRequest

	for i := 0; i < cfg.Batches; i++ {
		req := gen.Next()
		resp, err := client.SubmitSync(ctx, req)
		if err != nil {
			stats.BatchesFailed++
			return stats, fmt.Errorf("batch %s: %w", req.BatchID, err)
		}
		stats.BatchesSubmitted++
		stats.RecordsSubmitted += len(req.Records)
		stats.RowsReported = resp.Rows
		model = model.apply(req)
		sent = append(sent, req)
		log.Debug(ctx, "batch replaced",
			logger.String("batchID", resp.BatchID),
			logger.Int("records", len(req.Records)),
			logger.Int("rows", resp.Rows),
			logger.Int("offline", resp.Offline),
		)
	}

	if cfg.OutputFile != "" {
		if err := save(cfg.OutputFile, sent); err != nil {
			log.Warn(ctx, "failed to save batches", logger.Error(err))
		}
	}

	if !cfg.SkipVerify {
		if err := verify(ctx, client, model, cfg.PageSize, &stats); err != nil {
			stats.Duration = time.Since(stats.StartTime)
			return stats, err
		}
	}

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "sample run completed",
		logger.Float64("recordsPerSecond", stats.RecordsPerSecond()),
		logger.Int("batches", stats.BatchesSubmitted),
		logger.Int("records", stats.RecordsSubmitted),
		logger.Int("rows", stats.RowsReported),
		logger.Int("metricsVerified", stats.MetricsVerified),
		logger.Int("rowsVerified", stats.RowsVerified),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// seed loads the current leaderboards of metrics so that rows carried over
// from before the run are modelled too.
func seed(ctx context.Context, client *Client, metrics []string, pageSize int) (expected, error) {
	model := make(expected)
	for _, metric := range metrics {
		rows, err := readAll(ctx, client, metric, pageSize)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		model[metric] = make(map[string]float64, len(rows))
		for _, e := range rows {
			model[metric][e.PlayerID] = e.Value
		}
	}
	return model, nil
}

func readAll(ctx context.Context, client *Client, metric string, pageSize int) ([]types.Entry, error) {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	var out []types.Entry
	for page := 1; ; page++ {
		resp, err := client.Page(ctx, metric, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("read %q page %d: %w", metric, page, err)
		}
		if len(resp.Entries) == 0 {
			return out, nil
		}
		out = append(out, resp.Entries...)
	}
}

// verify pages through every modelled leaderboard and compares it with the
// expected ranking. Row ids are checked for uniqueness only.
func verify(ctx context.Context, client *Client, model expected, pageSize int, stats *Stats) error {
	seenIDs := make(map[int64]string)
	for metric := range model {
		want := model.board(metric)
		got, err := readAll(ctx, client, metric, pageSize)
		if err != nil {
			return err
		}
		if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(types.Entry{}, "RowID")); diff != "" {
			return fmt.Errorf("%w: %q (-want +got):\n%s", ErrMismatch, metric, diff)
		}
		for _, e := range got {
			if prev, dup := seenIDs[e.RowID]; dup {
				return fmt.Errorf("%w: row id %d used by %s and %s", ErrMismatch, e.RowID, prev, metric)
			}
			seenIDs[e.RowID] = metric
		}
		if len(want) > 0 {
			top, err := client.ByRank(ctx, metric, 1)
			if err != nil {
				return fmt.Errorf("read %q rank 1: %w", metric, err)
			}
			if top.PlayerID != want[0].PlayerID {
				return fmt.Errorf("%w: %q rank 1 is %s, want %s", ErrMismatch, metric, top.PlayerID, want[0].PlayerID)
			}
		}
		stats.MetricsVerified++
		stats.RowsVerified += len(got)
	}
	return nil
}

func save(path string, batches []types.BatchRequest) error {
	data, err := json.MarshalIndent(batches, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal batches: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
