package samplegen

import (
	"sort"

	"github.com/okian/toprank/internal/domain/types"
)

// expected mirrors the leaderboards the service should publish, assuming
// privileged exclusion is off.
type expected map[string]map[string]float64

// apply folds a batch in: every metric in the batch keeps its stored players
// that the batch does not mention; metrics the batch omits disappear.
func (e expected) apply(req types.BatchRequest) expected {
	if len(req.Records) == 0 {
		return e
	}
	inBatch := make(map[string]struct{})
	for _, s := range req.Records {
		inBatch[s.PlayerID] = struct{}{}
	}
	next := make(expected)
	for _, s := range req.Records {
		if _, ok := next[s.MetricKey]; !ok {
			next[s.MetricKey] = make(map[string]float64)
			for p, v := range e[s.MetricKey] {
				if _, fresh := inBatch[p]; !fresh {
					next[s.MetricKey][p] = v
				}
			}
		}
		next[s.MetricKey][s.PlayerID] = s.Value
	}
	return next
}

// board returns the ranked rows of metric with row ids left zero.
func (e expected) board(metric string) []types.Entry {
	out := make([]types.Entry, 0, len(e[metric]))
	for p, v := range e[metric] {
		out = append(out, types.Entry{MetricKey: metric, PlayerID: p, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
