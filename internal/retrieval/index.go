package retrieval

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/kalambet/aist/internal/storage"
)

// Neighbor is one query result: an example id and its Euclidean distance
// from the query vector.
type Neighbor struct {
	ID       int64
	Distance float64
}

// Index answers exact k-nearest-neighbor queries over an immutable snapshot
// of example embeddings. Results are ordered by ascending distance, ties by
// ascending id.
type Index struct {
	dim  int
	ids  []int64
	vecs [][]float32
}

// BuildIndex snapshots the embeddings of examples.
func BuildIndex(examples []storage.Example) (*Index, error) {
	if len(examples) == 0 {
		return nil, ErrEmptyInput
	}
	dim := len(examples[0].Embedding)
	if dim == 0 {
		return nil, fmt.Errorf("example %d has an empty embedding", examples[0].ID)
	}

	ix := &Index{
		dim:  dim,
		ids:  make([]int64, len(examples)),
		vecs: make([][]float32, len(examples)),
	}
	for i, ex := range examples {
		if len(ex.Embedding) != dim {
			return nil, &DimensionMismatchError{Want: dim, Got: len(ex.Embedding)}
		}
		ix.ids[i] = ex.ID
		ix.vecs[i] = ex.Embedding
	}
	return ix, nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return len(ix.ids) }

// Dim returns the dimension of indexed vectors.
func (ix *Index) Dim() int { return ix.dim }

// Query returns the min(k, Len()) nearest neighbors of vec.
func (ix *Index) Query(vec []float32, k int) ([]Neighbor, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	if len(vec) != ix.dim {
		return nil, &DimensionMismatchError{Want: ix.dim, Got: len(vec)}
	}
	if k > len(ix.ids) {
		k = len(ix.ids)
	}

	h := make(neighborHeap, 0, k)
	for i, v := range ix.vecs {
		n := neighbor{id: ix.ids[i], dist: squaredL2(vec, v)}
		if h.Len() < k {
			heap.Push(&h, n)
		} else if n.closerThan(h[0]) {
			h[0] = n
			heap.Fix(&h, 0)
		}
	}

	out := make([]Neighbor, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		n := heap.Pop(&h).(neighbor)
		out[i] = Neighbor{ID: n.id, Distance: math.Sqrt(n.dist)}
	}
	return out, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

type neighbor struct {
	id   int64
	dist float64
}

func (n neighbor) closerThan(o neighbor) bool {
	if n.dist != o.dist {
		return n.dist < o.dist
	}
	return n.id < o.id
}

// neighborHeap is a max-heap: the root is the worst of the current top-k.
type neighborHeap []neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return h[j].closerThan(h[i]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x any)        { *h = append(*h, x.(neighbor)) }
func (h *neighborHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
