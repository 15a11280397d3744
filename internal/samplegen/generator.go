package samplegen

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/toprank/internal/domain/types"
)

// Generator produces batches over a fixed pool of players.
type Generator struct {
	players  []string
	metrics  []string
	coverage float64
	rng      *rand.Rand
	seq      int
}

// NewGenerator creates a generator with a fresh pool of player ids.
func NewGenerator(cfg Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	players := make([]string, cfg.Players)
	for i := range players {
		players[i] = uuid.NewString()
	}
	coverage := cfg.Coverage
	if coverage <= 0 || coverage > 1 {
		coverage = 1
	}
	return &Generator{
		players:  players,
		metrics:  cfg.Metrics,
		coverage: coverage,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Players returns the player pool.
func (g *Generator) Players() []string {
	return g.players
}

// Next returns the next batch. Each player in the pool reports every metric
// with probability coverage, so a player absent from a batch keeps its
// previous rows.
func (g *Generator) Next() types.BatchRequest {
	g.seq++
	req := types.BatchRequest{BatchID: fmt.Sprintf("sample-%d-%s", g.seq, uuid.NewString()[:8])}
	for _, p := range g.players {
		if g.rng.Float64() >= g.coverage {
			continue
		}
		for _, m := range g.metrics {
			req.Records = append(req.Records, types.Sample{MetricKey: m, PlayerID: p, Value: g.value()})
		}
	}
	if req.Records == nil {
		req.Records = []types.Sample{}
	}
	return req
}

// value draws a whole-number statistic. Small values are common and large
// ones rare, with some ties.
func (g *Generator) value() float64 {
	switch g.rng.IntN(4) {
	case 0:
		return float64(g.rng.IntN(10))
	case 1, 2:
		return float64(10 + g.rng.IntN(90))
	default:
		return float64(100 + g.rng.IntN(900))
	}
}
