package store

// CompactionMode selects when compaction runs relative to the write that
// triggers it.
type CompactionMode int

const (
	// Inline runs compaction synchronously, under the write lock, before the
	// triggering operation returns. This is the only mode actually executed.
	Inline CompactionMode = iota

	// Background is accepted for forward-compatibility with spec §4.5's
	// "Implementations may perform it ... on a background thread" option,
	// but today's single-writer, synchronous-I/O coordinator runs it inline
	// just like Inline — see DESIGN.md's Open Question log for why a real
	// background path isn't implemented yet.
	Background
)

// Options configures a [Store] at Open time.
type Options struct {
	// CompactionThreshold is the dead_ratio (tombstoned ids / slot count) at
	// or above which compaction runs after a delete or resurrecting put.
	// Default 0.5.
	CompactionThreshold float64

	// CompactionMode selects inline vs background compaction. Default Inline;
	// Background currently behaves identically (see [Background]).
	CompactionMode CompactionMode

	// Metric selects the Search scoring function. Default Cosine. Must be
	// consistent across every process that opens the same directory — it is
	// not persisted in the file header.
	Metric Metric
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		CompactionThreshold: 0.5,
		CompactionMode:      Inline,
		Metric:              Cosine,
	}
}

func (o Options) withDefaults() Options {
	if o.CompactionThreshold <= 0 {
		o.CompactionThreshold = 0.5
	}
	return o
}
