// Package wheel generates candidate 2-PRPs (strong probable primes to base
// 2) in a half-open 64-bit range using a mod-30 wheel, skipping multiples
// of 2, 3 and 5. Candidates are only strong 2-PRPs, not certified primes;
// the reporting pipeline's full Miller-Rabin pass is load-bearing and must
// not be skipped.
package wheel

import "github.com/bryanlittle/factorsieve/internal/millerrabin"

// Gaps is the canonical mod-30 wheel gap pattern, cycling through the
// residue classes {1, 7, 11, 13, 17, 19, 23, 29} mod 30.
var Gaps = [8]int64{4, 2, 4, 2, 4, 6, 2, 6}

// smallPrimes precede the wheel's starting point and are injected directly
// when the window begins below 114.
var smallPrimes = []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43,
	47, 53, 59, 61, 67, 71, 73, 79, 83, 89, 97, 101, 103, 107, 109, 113}

// overflowGuardThreshold is the point past which a window might cross
// 2^64; windows starting at or beyond this value must use carry-safe
// increments and windows whose end would cross 2^64 are clamped.
const overflowGuardThreshold = ^uint64(0) - (1 << 24)

// FindOffset finds the smallest N >= s with N coprime to {2,3,5} and
// returns N along with the wheel index such that subsequent forward steps
// of Gaps[idx], Gaps[idx+1 mod 8], ... enumerate the wheel from N onward.
// For s <= 2 it returns 2 and index 0 without aligning to the wheel.
//
// The search proceeds in two passes, mirroring the reference generator:
// first find the smallest N >= s congruent to +-1 (mod 6) skipping
// multiples of 5, then walk forward with the mod-6 wheel until N is
// divisible by 5 to locate the mod-30 residue class, then back-walk the
// Gaps wheel to s to recover the starting index.
func FindOffset(s uint64) (start uint64, idx int) {
	if s <= 2 {
		return 2, 0
	}

	k := s / 6
	useMinus := true
	n := k*6 - 1
	if k == 0 {
		n = 1
		useMinus = false
	}

	for n < s || n%5 == 0 {
		if useMinus {
			n += 2
		} else {
			n += 4
		}
		useMinus = !useMinus
	}

	start = n

	wheelIdx := -1
	for wheelIdx < 0 {
		if useMinus {
			n += 2
			useMinus = false
			if n%5 == 0 {
				n -= 2
				wheelIdx = 5
			}
		} else {
			n += 4
			useMinus = true
			if n%5 == 0 {
				n -= 4
				wheelIdx = 7
			}
		}
	}

	for n != start {
		wheelIdx--
		if wheelIdx < 0 {
			wheelIdx = 7
		}
		n -= uint64(Gaps[wheelIdx])
	}

	return start, wheelIdx
}

// Generate emits, in ascending order, every odd 2-PRP in [a, b), preceded
// by the primes below 114 that lie in [a, b) (2 included). Once the
// wheel cursor reaches overflowGuardThreshold it switches to a carry-safe
// increment that stops before n+gap would wrap past 2^64-1 instead of
// overflowing.
func Generate(a, b uint64) []uint64 {
	var out []uint64

	if a < 114 {
		for _, p := range smallPrimes {
			if p >= a && p < b {
				out = append(out, p)
			}
		}
		if b <= 114 {
			return out
		}
		a = 114
	}

	n, idx := FindOffset(a)
	carrySafe := n >= overflowGuardThreshold

	for n < b {
		if millerrabin.IsStrongProbablePrimeBase2(n) {
			out = append(out, n)
		}

		gap := uint64(Gaps[idx])
		if !carrySafe && n >= overflowGuardThreshold {
			carrySafe = true
		}
		if carrySafe && n > b-gap {
			break
		}
		n += gap
		idx = (idx + 1) % 8
	}

	return out
}
