// Package verify implements spec.md 4.6's CPU factor verifier: a slow,
// independent modular-multiplication recomputation of base_n mod p for
// every emitted factor, used to catch a corrupted batch-evaluator result
// before it ever reaches the results log. It deliberately does not share
// code with internal/producttable or internal/evaluator — the whole point
// is an independent recomputation.
package verify

import (
	"context"
	"fmt"
	"math/bits"
	"runtime"
	"sync"

	"github.com/bryanlittle/factorsieve/internal/sievetypes"
)

// The seed constants are the base's value at n=34 (factorial), n=101
// (primorial) and n=44 (compositorial) respectively, each small enough to
// fit in 128 bits. The verify loop starts from the seed and multiplies in
// every remaining term up to n, independent of whatever n_min windowing
// the main run used.
var (
	seed34Factorial     = [2]uint64{0xde1bc4d19efcac82, 0x445da75b00000000} // 34!
	seed101Primorial    = [2]uint64{0xaf2fa8f8a2d02a93, 0xae69c9f8987d5efe} // 101#
	seed44Compositorial = [2]uint64{0x98dcc10f185c0e67, 0x3c93ff0000000000} // 44!/#
)

// Verifier holds the independent factor/composite lists the primorial and
// compositorial seeds need to extend their chain up to any n < nMax.
type Verifier struct {
	mode       sievetypes.Mode
	primes     []uint32 // primes in [103, nMax), for primorial
	composites []uint32 // composites in [45, nMax), for compositorial
}

// New builds a Verifier for the given mode and n-range ceiling, sieving
// its own prime/composite lists independently of internal/producttable.
func New(mode sievetypes.Mode, nMax uint32) *Verifier {
	v := &Verifier{mode: mode}
	switch mode {
	case sievetypes.Primorial:
		v.primes = sievePrimes(103, nMax)
	case sievetypes.Compositorial:
		v.composites = sieveComposites(45, nMax)
	}
	return v
}

// Verify recomputes base_n mod p from the hard-coded seed and returns
// whether p truly divides base_n + c.
func (v *Verifier) Verify(p uint64, n uint32, c int32) bool {
	var result uint64
	switch v.mode {
	case sievetypes.Factorial:
		result = mulmod128(seed34Factorial, p)
		for k := uint32(35); k <= n; k++ {
			result = mulmod(result, uint64(k)%p, p)
		}
	case sievetypes.Primorial:
		result = mulmod128(seed101Primorial, p)
		for _, pr := range v.primes {
			if pr > n {
				break
			}
			result = mulmod(result, uint64(pr)%p, p)
		}
	case sievetypes.Compositorial:
		result = mulmod128(seed44Compositorial, p)
		for _, cp := range v.composites {
			if cp > n {
				break
			}
			result = mulmod(result, uint64(cp)%p, p)
		}
	}

	if c < 0 {
		return result == 1
	}
	return result == p-1
}

// VerifyBatch runs Verify over every factor in parallel using a fixed
// worker pool (workers <= 0 defaults to runtime.NumCPU()), returning the
// first verification failure found. A failure here is fatal per spec.md
// 4.6: there is no recovery.
func (v *Verifier) VerifyBatch(ctx context.Context, workers int, factors []sievetypes.Factor) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(factors) {
		workers = len(factors)
	}
	if workers == 0 {
		return nil
	}

	chunk := (len(factors) + workers - 1) / workers
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	for lo := 0; lo < len(factors); lo += chunk {
		hi := lo + chunk
		if hi > len(factors) {
			hi = len(factors)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				f := factors[i]
				if !v.Verify(f.P, f.N(), f.C()) {
					errMu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("verify: CPU verification failed for p=%d n=%d c=%+d", f.P, f.N(), f.C())
					}
					errMu.Unlock()
					return
				}
			}
		}(lo, hi)
	}
	wg.Wait()

	return firstErr
}

// mulmod computes a*b mod p for a, b < p via a 128-bit intermediate
// product.
func mulmod(a, b, p uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi, lo, p)
	return rem
}

// mulmod128 reduces a 128-bit seed constant modulo p.
func mulmod128(seed [2]uint64, p uint64) uint64 {
	hiModP := seed[0] % p
	_, rem := bits.Div64(hiModP, seed[1], p)
	return rem
}

func sievePrimes(lo, hi uint32) []uint32 {
	return sieveFilter(lo, hi, true)
}

func sieveComposites(lo, hi uint32) []uint32 {
	return sieveFilter(lo, hi, false)
}

// sieveFilter runs a plain Eratosthenes sieve over [0, hi) and returns the
// primes (wantPrime=true) or composites (wantPrime=false) in [lo, hi).
func sieveFilter(lo, hi uint32, wantPrime bool) []uint32 {
	if hi < 2 {
		return nil
	}
	composite := make([]bool, hi)
	composite[0] = true
	if hi > 1 {
		composite[1] = true
	}
	for i := uint64(2); i*i < uint64(hi); i++ {
		if composite[i] {
			continue
		}
		for j := i * i; j < uint64(hi); j += i {
			composite[j] = true
		}
	}

	var out []uint32
	for k := lo; k < hi; k++ {
		isPrime := !composite[k]
		if isPrime == wantPrime {
			out = append(out, k)
		}
	}
	return out
}
