// Package types contains the JSON shapes shared by the HTTP API and its clients.
package types

import "github.com/okian/toprank/internal/domain/model"

// Entry represents a ranking row as exposed over HTTP.
type Entry struct {
	RowID     int64   `json:"row_id"`
	MetricKey string  `json:"metric_key"`
	PlayerID  string  `json:"player_id"`
	Value     float64 `json:"value"`
	Rank      int     `json:"rank"`
}

// Sample is a single submitted metric value.
type Sample struct {
	MetricKey string  `json:"metric_key"`
	PlayerID  string  `json:"player_id"`
	Value     float64 `json:"value"`
}

// BatchRequest is the body of POST /rankings.
type BatchRequest struct {
	BatchID string   `json:"batch_id,omitempty"`
	Records []Sample `json:"records"`
}

// BatchResponse acknowledges a submitted batch.
type BatchResponse struct {
	BatchID   string `json:"batch_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Records   int    `json:"records"`
}

// FromRecord converts a domain record.
func FromRecord(r model.RankRecord) Entry {
	return Entry{RowID: r.RowID, MetricKey: r.MetricKey, PlayerID: r.PlayerID, Value: r.Value, Rank: r.Rank}
}

// FromRecords converts a slice of domain records, never returning nil.
func FromRecords(rs []model.RankRecord) []Entry {
	out := make([]Entry, len(rs))
	for i, r := range rs {
		out[i] = FromRecord(r)
	}
	return out
}

// ToBatch converts submitted samples into an unranked domain batch.
func (b BatchRequest) ToBatch() model.Batch {
	out := make(model.Batch, len(b.Records))
	for i, s := range b.Records {
		out[i] = model.RankRecord{MetricKey: s.MetricKey, PlayerID: s.PlayerID, Value: s.Value}
	}
	return out
}

// ReplaceResponse acknowledges a synchronously replaced batch.
type ReplaceResponse struct {
	BatchResponse
	Rows    int `json:"rows"`
	Groups  int `json:"groups"`
	Offline int `json:"offline"`
}

// PageResponse is one leaderboard page.
type PageResponse struct {
	MetricKey string  `json:"metric_key"`
	Page      int     `json:"page"`
	Size      int     `json:"size"`
	Entries   []Entry `json:"entries"`
}
