// Package samplegen drives a running toprank service with generated batches
// and checks the published leaderboards against a local model.
package samplegen

import "time"

// Config holds configuration for a sample run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Players    int           // Size of the player pool
	Metrics    []string      // Metric keys to report
	Batches    int           // Number of batches to submit
	Coverage   float64       // Share of the pool reporting in each batch, 0..1
	PageSize   int           // Page size used when reading leaderboards back
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Seed for the value generator; 0 picks one at random
	OutputFile string        // Optional JSON dump of the submitted batches
	SkipVerify bool          // Submit only
}

// Stats summarizes a run.
type Stats struct {
	BatchesSubmitted int
	BatchesFailed    int
	RecordsSubmitted int
	RowsReported     int
	MetricsVerified  int
	RowsVerified     int
	StartTime        time.Time
	Duration         time.Duration
}

// RecordsPerSecond is the submission throughput of the run.
func (s Stats) RecordsPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.RecordsSubmitted) / s.Duration.Seconds()
}
