package store

import "math"

// Metric selects the scoring function used by Search. It is a
// coordinator-level constant, not persisted in the file header (spec §4.5:
// "The header does not record the metric") — it must be chosen consistently
// by the writer and every reader of the same directory.
type Metric int

const (
	// Cosine is the default: dot product on L2-normalized inputs. Self-score
	// of a non-zero vector against itself is 1.0.
	Cosine Metric = iota
	// Dot is the raw dot product, unnormalized.
	Dot
	// L2 scores by negative Euclidean distance, so that higher is still
	// better and results sort the same way as the other metrics.
	L2
)

// String renders the metric name, used by the CLI and config loader.
func (m Metric) String() string {
	switch m {
	case Cosine:
		return "cosine"
	case Dot:
		return "dot"
	case L2:
		return "l2"
	default:
		return "unknown"
	}
}

// ParseMetric parses the CLI/config string form of a metric.
func ParseMetric(s string) (Metric, bool) {
	switch s {
	case "cosine", "":
		return Cosine, true
	case "dot":
		return Dot, true
	case "l2":
		return L2, true
	default:
		return 0, false
	}
}

// score computes a[query] against b[candidate] under m. Higher is always
// better, regardless of metric.
func (m Metric) score(query, candidate []float32) float32 {
	switch m {
	case Dot:
		return dot(query, candidate)
	case L2:
		return -l2Distance(query, candidate)
	default: // Cosine
		return cosine(query, candidate)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func cosine(a, b []float32) float32 {
	var dotv, normA, normB float32
	for i := range a {
		dotv += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotv / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
}

func l2Distance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}
