package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/okian/toprank/internal/samplegen"
	"github.com/okian/toprank/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers  = 500
	defaultBatches  = 20
	defaultCoverage = 0.3
	defaultPageSize = 100
	defaultTimeout  = 30 * time.Second
	defaultDeadline = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players  = flag.Int("players", defaultPlayers, "Size of the player pool")
		metrics  = flag.String("metrics", "kills,deaths,blocks_mined,play_time", "Comma separated metric keys")
		batches  = flag.Int("batches", defaultBatches, "Number of batches to submit")
		coverage = flag.Float64("coverage", defaultCoverage, "Share of players reporting in each batch (0..1]")
		pageSize = flag.Int("page-size", defaultPageSize, "Page size used when verifying leaderboards")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed     = flag.Uint64("seed", 0, "Value generator seed (0 = random)")
		output   = flag.String("output", "", "Write submitted batches to this JSON file")
		noVerify = flag.Bool("no-verify", false, "Submit without verifying leaderboards")
		logFmt   = flag.String("log-format", "text", "Log format: text or json")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.InitWithFormat(*logFmt, os.Stdout); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultDeadline)
	defer cancel()

	cfg := samplegen.Config{
		BaseURL:    strings.TrimRight(*baseURL, "/"),
		Players:    *players,
		Metrics:    splitMetrics(*metrics),
		Batches:    *batches,
		Coverage:   *coverage,
		PageSize:   *pageSize,
		Timeout:    *timeout,
		Seed:       *seed,
		OutputFile: *output,
		SkipVerify: *noVerify,
	}

	if _, err := samplegen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "sample run failed", logger.Error(err))
		os.Exit(1)
	}
}

func splitMetrics(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
