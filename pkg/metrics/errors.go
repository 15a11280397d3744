package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrGatherFailed = errors.New("metrics gather failed")
)

// Gather collects the current metric families from the global registry,
// wrapping failures with ErrGatherFailed.
func Gather() (map[string]float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return nil, errors.Join(ErrGatherFailed, err)
	}
	out := make(map[string]float64, len(families))
	for _, f := range families {
		var sum float64
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				sum += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				sum += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				sum += float64(m.GetHistogram().GetSampleCount())
			}
		}
		out[f.GetName()] = sum
	}
	return out, nil
}
