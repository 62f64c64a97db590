package evaluator

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/bryanlittle/factorsieve/internal/producttable"
	"github.com/bryanlittle/factorsieve/internal/sievetypes"
)

// Counters mirrors spec.md 4.3's six status counters. OverflowFlag and
// InvalidFlag are fatal; VerifyFlag marks that the CPU verifier should run
// over whatever the ring currently holds.
type Counters struct {
	TotalPrimeCount      uint32
	MaxSegmentPrimeCount uint32
	EmittedFactorCount   uint32
	VerifyFlag           bool
	OverflowFlag         bool
	InvalidFlag          bool
}

// Evaluator runs the setup/iterate/check stages over a Batch using a fixed
// goroutine worker pool, the size of which defaults to runtime.NumCPU()
// the way model.NewMultiThread sizes its execution workers.
type Evaluator struct {
	Workers int
	Table   *producttable.Table
	Mode    sievetypes.Mode
}

// New builds an Evaluator. workers <= 0 defaults to runtime.NumCPU().
func New(workers int, table *producttable.Table, mode sievetypes.Mode) *Evaluator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Evaluator{Workers: workers, Table: table, Mode: mode}
}

// forEachCandidate splits [0, n) into e.Workers contiguous chunks and runs
// fn over each chunk concurrently, returning once every chunk has
// completed (the drain boundary spec.md 5 requires between stages).
func (e *Evaluator) forEachCandidate(n int, fn func(lo, hi int)) {
	workers := e.Workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// Setup applies product-table entries [sStart, sEnd) to every candidate's
// residue, per spec.md 4.3: R[i] *= entries[j].Product mod P[i] for each
// j, raised to entries[j].Power when that exceeds 1 (factorial mode).
func (e *Evaluator) Setup(batch *Batch, sStart, sEnd int) {
	entries := e.Table.Entries[sStart:sEnd]
	e.forEachCandidate(batch.Len(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			c := batch.consts[i]
			r := batch.R[i]
			for _, entry := range entries {
				prodModP := entry.Product % c.P
				mProd := c.ToMontgomery(prodModP)
				if entry.Power <= 1 {
					r = c.Mul(r, mProd)
					continue
				}
				r = c.Mul(r, c.PowMontgomery(mProd, uint64(entry.Power), uint64(entry.LeadingBit)))
			}
			batch.R[i] = r
		}
	})
}

// Steps computes the ascending list of n values in [nStart, nEnd) that
// actually contribute a multiplication for the evaluator's mode: every k
// for factorial, primes for primorial, composites for compositorial.
func (e *Evaluator) Steps(nStart, nEnd uint32) []uint32 {
	switch e.Mode {
	case sievetypes.Factorial:
		steps := make([]uint32, 0, nEnd-nStart)
		for k := nStart; k < nEnd; k++ {
			steps = append(steps, k)
		}
		return steps
	case sievetypes.Primorial:
		var steps []uint32
		for _, p := range e.Table.TailPrimes {
			if p >= nStart && p < nEnd {
				steps = append(steps, p)
			}
		}
		return steps
	case sievetypes.Compositorial:
		var steps []uint32
		for k := nStart; k < nEnd; k++ {
			if !e.Table.IsPrime(k) {
				steps = append(steps, k)
			}
		}
		return steps
	default:
		return nil
	}
}

// Iterate walks every candidate through steps, multiplying its residue at
// each step and testing for a factor, per spec.md 4.3: emit (p, k, -1)
// when the residue reaches Montgomery-1, (p, k, +1) when it reaches
// Montgomery-(p-1). Emission is fatal-on-overflow via ring.Push's error
// return, which cancels ctx and unwinds every worker.
func (e *Evaluator) Iterate(ctx context.Context, batch *Batch, steps []uint32, ring *Ring) error {
	var errMu sync.Mutex
	var firstErr error
	innerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.forEachCandidate(batch.Len(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			select {
			case <-innerCtx.Done():
				return
			default:
			}

			c := batch.consts[i]
			r := batch.R[i]
			p := batch.P[i]

			for _, k := range steps {
				kModP := uint64(k) % p
				mk := c.ToMontgomery(kModP)
				r = c.Mul(r, mk)

				if r == c.One {
					if err := ring.Push(sievetypes.NewFactor(p, k, -1)); err != nil {
						errMu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						errMu.Unlock()
						cancel()
						break
					}
				} else if r == c.Pmo {
					if err := ring.Push(sievetypes.NewFactor(p, k, 1)); err != nil {
						errMu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						errMu.Unlock()
						cancel()
						break
					}
				}
			}
			batch.R[i] = r
		}
	})

	return firstErr
}

// Check increments TotalPrimeCount by the batch size, the way spec.md 4.3
// describes: the count is of candidates processed, a cheap per-batch
// bookkeeping step independent of the factor checksum (which is folded
// only from verified, primality-filtered factors in the report pipeline).
func (e *Evaluator) Check(batch *Batch, counters *Counters) {
	atomic.AddUint32(&counters.TotalPrimeCount, uint32(batch.Len()))
	if uint32(batch.Len()) > counters.MaxSegmentPrimeCount {
		counters.MaxSegmentPrimeCount = uint32(batch.Len())
	}
}
