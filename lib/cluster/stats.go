package cluster

import (
	"math"
)

// --------------------------------------------------------------------------
// Partition distribution
// --------------------------------------------------------------------------

// Stats summarizes a list of values.
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, population standard deviation, min and max of values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	ratio := 1.0
	if hi > 0 {
		ratio = lo / hi
	}

	return Stats{
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  ratio,
	}
}

// Distribution describes how evenly partitions are spread over the nodes.
// Quality is 1 for a perfectly even spread and approaches 0 when a few nodes
// own most partitions.
type Distribution struct {
	Stats
	Quality float64 `json:"quality"`
	// Masters maps each node name to the number of partitions it masters
	Masters map[string]int `json:"masters"`
}

// Distribution computes the spread of partition masters over the nodes of
// the current topology.
func (c *Cluster) Distribution() Distribution {
	s := c.state.Load()

	masters := make(map[string]int, len(s.nodes))
	for _, n := range s.nodes {
		masters[n.name] = 0
	}
	for _, replicas := range s.replicas {
		if len(replicas) > 0 {
			masters[replicas[0].name]++
		}
	}

	values := make([]float64, 0, len(s.nodes))
	for _, n := range s.nodes {
		values = append(values, float64(masters[n.name]))
	}
	stats := NewStats(values)

	// lower coefficient of variation and higher min/max ratio mean a better spread
	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return Distribution{
		Stats:   stats,
		Quality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
		Masters: masters,
	}
}
