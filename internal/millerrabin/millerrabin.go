// Package millerrabin implements the deterministic strong-probable-prime
// test for 64-bit integers: a strong probable-prime test against the
// seven-base witness set published by Jim Sinclair
// (https://miller-rabin.appspot.com/), a published deterministic covering
// for all n < 2^64.
package millerrabin

import (
	"math/bits"

	"github.com/bryanlittle/factorsieve/internal/montgomery"
)

// bases is the fixed witness set, deterministic for every candidate below 2^64.
var bases = [7]uint64{2, 325, 9375, 28178, 450775, 9780504, 1795265022}

// IsPrime returns true iff p is prime. Even p is answered immediately
// (true only for 2), as are 0 and 1.
func IsPrime(p uint64) bool {
	if p%2 == 0 {
		return p == 2
	}
	if p < 3 {
		return false
	}

	c := montgomery.NewConstants(p)
	d, t, leadingBit := decompose(p)

	for _, base := range bases {
		b := base
		if b >= p {
			b %= p
			if b == 0 {
				continue
			}
		}
		if !strongPRP(c, b, d, t, leadingBit) {
			return false
		}
	}
	return true
}

// IsStrongProbablePrimeBase2 runs a single strong-probable-prime round to
// base 2. It is the fast, possibly-false-positive check used by the
// segmented candidate generator; true callers still must reject composite
// 2-PRPs downstream with the full IsPrime witness set.
func IsStrongProbablePrimeBase2(p uint64) bool {
	if p%2 == 0 {
		return false
	}
	if p < 3 {
		return p == 2
	}
	c := montgomery.NewConstants(p)
	d, t, leadingBit := decompose(p)
	return strongPRP(c, 2, d, t, leadingBit)
}

// decompose writes p-1 = d*2^t with d odd and returns the leading exponent
// bit used to drive the square-and-multiply loop in strongPRP.
func decompose(p uint64) (d uint64, t int, leadingBit uint64) {
	d = p - 1
	for d&1 == 0 {
		d >>= 1
		t++
	}
	leadingBit = uint64(0x8000000000000000)
	leadingBit >>= uint(bits.LeadingZeros64(d) + 1)
	return d, t, leadingBit
}

// strongPRP runs one strong-probable-prime round: p prime and p-1 = d*2^t
// with d odd implies either base^d == 1 (mod p) or base^(d*2^s) == -1 (mod p)
// for some 0 <= s < t.
func strongPRP(c montgomery.Constants, base, d uint64, t int, leadingBit uint64) bool {
	mbase := c.ToMontgomery(base)
	a := mbase

	for bit := leadingBit; bit != 0; bit >>= 1 {
		a = c.Mul(a, a)
		if d&bit != 0 {
			a = c.Mul(a, mbase)
		}
	}

	if a == c.One || a == c.Pmo {
		return true
	}

	for s := 1; s < t; s++ {
		a = c.Mul(a, a)
		if a == c.Pmo {
			return true
		}
	}

	return false
}

