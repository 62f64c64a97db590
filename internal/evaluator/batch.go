// Package evaluator is the CPU worker-pool realization of spec.md 4.3's
// abstract parallel batch evaluator contract (setup/iterate/check). The
// contract itself is GPU/SIMD/thread-pool agnostic; this package only
// commits to one realization, a goroutine worker pool over a candidate
// array, following the worker-pool shape of a model-checking engine:
// fixed-size goroutine pools, atomic counters, and a drain point between
// phases rather than long-lived channels.
package evaluator

import (
	"fmt"
	"sync"

	"github.com/bryanlittle/factorsieve/internal/montgomery"
	"github.com/bryanlittle/factorsieve/internal/sievetypes"
)

// Batch is the shared state for one p-window: the immutable candidate
// array, the per-candidate Montgomery constants derived from it, and the
// writable residue array, all index-aligned.
type Batch struct {
	P      []uint64
	consts []montgomery.Constants
	R      []uint64 // Montgomery form
}

// NewBatch builds a Batch over the given candidate primes (2-PRPs), with
// every residue initialized to Montgomery-1 as spec.md 4.3 requires before
// the first Setup call.
func NewBatch(candidates []uint64) *Batch {
	n := len(candidates)
	b := &Batch{
		P:      make([]uint64, n),
		consts: make([]montgomery.Constants, n),
		R:      make([]uint64, n),
	}
	copy(b.P, candidates)
	for i, p := range candidates {
		c := montgomery.NewConstants(p)
		b.consts[i] = c
		b.R[i] = c.One
	}
	return b
}

// Len returns the number of candidates in the batch.
func (b *Batch) Len() int { return len(b.P) }

// Ring is a bounded append-only buffer of emitted factors. Overflow is a
// fatal sizing error per spec.md 4.3/4.7: a full ring returns an error
// rather than blocking or dropping records.
type Ring struct {
	mu       sync.Mutex
	factors  []sievetypes.Factor
	capacity int
}

// NewRing allocates a ring with the given capacity (SearchData.NumResults).
func NewRing(capacity int) *Ring {
	return &Ring{capacity: capacity}
}

// Push appends a factor, returning an error (the overflow_flag condition)
// if the ring is already at capacity.
func (r *Ring) Push(f sievetypes.Factor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.factors) >= r.capacity {
		return fmt.Errorf("evaluator: factor ring overflow at capacity %d", r.capacity)
	}
	r.factors = append(r.factors, f)
	return nil
}

// Drain returns every buffered factor and empties the ring, for the host
// to take at a checkpoint boundary.
func (r *Ring) Drain() []sievetypes.Factor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.factors
	r.factors = nil
	return out
}

// Len reports the number of buffered factors.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.factors)
}
