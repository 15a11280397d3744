// Package model contains domain models passed between layers.
package model

import "time"

// RankRecord is one row of the ranking table: a player's value and rank
// within a single metric leaderboard.
type RankRecord struct {
	RowID     int64   // surrogate id, unique across the table, assigned at replace time
	MetricKey string  // leaderboard the row belongs to
	PlayerID  string  // stable player identifier (UUID text)
	Value     float64 // score; higher ranks better
	Rank      int     // dense 1-based rank within MetricKey
}

// Batch is a set of fresh metric samples, at most one per (player, metric).
type Batch []RankRecord

// PlayerIDs returns the distinct player ids of the batch in first-seen order.
func (b Batch) PlayerIDs() []string {
	seen := make(map[string]struct{}, len(b))
	out := make([]string, 0, len(b))
	for _, r := range b {
		if _, ok := seen[r.PlayerID]; ok {
			continue
		}
		seen[r.PlayerID] = struct{}{}
		out = append(out, r.PlayerID)
	}
	return out
}

// MetricKeys returns the distinct metric keys of the batch in first-seen order.
func (b Batch) MetricKeys() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range b {
		if _, ok := seen[r.MetricKey]; ok {
			continue
		}
		seen[r.MetricKey] = struct{}{}
		out = append(out, r.MetricKey)
	}
	return out
}

// ReplaceJob is a batch waiting in the queue for recomputation.
type ReplaceJob struct {
	BatchID     string
	Records     Batch
	SubmittedAt time.Time
}
