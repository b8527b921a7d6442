package store

import "sort"

// scoredID is one candidate tracked by the bounded top-k min-heap during a
// search scan. Lower score (and, on tie, higher id) sorts first, so the
// heap's root is always the weakest candidate currently kept — the one to
// evict when a better one arrives.
type scoredID struct {
	id    uint32
	key   string
	score float32
}

// topKHeap is a bounded min-heap of at most k candidates, ordered so the
// weakest surviving candidate is always at the root. Ties are broken by
// ascending id per spec §4.5 ("Tie-break is by ascending id"): of two equal
// scores, the heap should evict the one with the *larger* id first, so that
// when ids tie on score the smaller id survives.
type topKHeap struct {
	k     int
	items []scoredID
}

func newTopKHeap(k int) *topKHeap {
	return &topKHeap{k: k, items: make([]scoredID, 0, k)}
}

// less reports whether items[i] is weaker than items[j] — i.e. should be
// evicted first.
func (h *topKHeap) less(i, j int) bool {
	if h.items[i].score != h.items[j].score {
		return h.items[i].score < h.items[j].score
	}
	return h.items[i].id > h.items[j].id
}

func (h *topKHeap) swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *topKHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			return
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *topKHeap) down(i int) {
	n := len(h.items)
	for {
		l, r := 2*i+1, 2*i+2
		smallest := i
		if l < n && h.less(l, smallest) {
			smallest = l
		}
		if r < n && h.less(r, smallest) {
			smallest = r
		}
		if smallest == i {
			return
		}
		h.swap(i, smallest)
		i = smallest
	}
}

// Offer considers a new candidate, keeping only the k strongest seen so far.
func (h *topKHeap) Offer(id uint32, key string, score float32) {
	if len(h.items) < h.k {
		h.items = append(h.items, scoredID{id: id, key: key, score: score})
		h.up(len(h.items) - 1)
		return
	}

	if len(h.items) == 0 {
		return
	}

	root := h.items[0]
	weaker := score < root.score || (score == root.score && id > root.id)
	if weaker {
		return
	}

	h.items[0] = scoredID{id: id, key: key, score: score}
	h.down(0)
}

// Sorted drains the heap into descending-score order (ties ascending id),
// per spec §4.5 ("results are emitted in decreasing score order").
func (h *topKHeap) Sorted() []scoredID {
	out := make([]scoredID, len(h.items))
	copy(out, h.items)

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})

	return out
}
