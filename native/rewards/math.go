package rewards

import "math/big"

const (
	// YearSeconds is the accounting year used by the emission schedule.
	YearSeconds = 31_536_000
	// DaySeconds converts elapsed seconds into loyalty-curve days.
	DaySeconds = 86_400
	// WeightBpsDenominator is the fixed denominator for market weights.
	WeightBpsDenominator = 10_000
)

var (
	wad            = mustBigInt("1000000000000000000") // 1e18 precision
	bpsDenominator = big.NewInt(WeightBpsDenominator)
	yearSeconds    = big.NewInt(YearSeconds)
	daySeconds     = big.NewInt(DaySeconds)
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// wadMul multiplies two wad values, truncating toward zero. The multiply is
// performed in full before the single divide so intermediate precision is
// never discarded.
func wadMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, wad)
}

// wadDiv divides a by b at wad precision, truncating toward zero. A zero
// divisor yields zero; callers guard against it before any value-bearing
// division.
func wadDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(a, wad)
	return numerator.Quo(numerator, b)
}

// wadPowInt raises a wad base to a non-negative integer exponent by squaring.
func wadPowInt(base *big.Int, n uint64) *big.Int {
	result := new(big.Int).Set(wad)
	if base == nil || base.Sign() <= 0 {
		if n == 0 {
			return result
		}
		return big.NewInt(0)
	}
	factor := new(big.Int).Set(base)
	for n > 0 {
		if n&1 == 1 {
			result = wadMul(result, factor)
		}
		n >>= 1
		if n > 0 {
			factor = wadMul(factor, factor)
		}
	}
	return result
}

// wadSqrt returns the wad square root of a wad value.
func wadSqrt(x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(x, wad)
	return scaled.Sqrt(scaled)
}

// wadPow raises a wad base to a fractional wad exponent. The integer part is
// resolved by squaring and the fractional part by walking the binary
// expansion of the exponent against successive square roots of the base.
func wadPow(base, exp *big.Int) *big.Int {
	if exp == nil || exp.Sign() <= 0 {
		return new(big.Int).Set(wad)
	}
	if base == nil || base.Sign() <= 0 {
		return big.NewInt(0)
	}
	intPart := new(big.Int).Quo(exp, wad)
	frac := new(big.Int).Rem(exp, wad)
	result := wadPowInt(base, intPart.Uint64())
	if frac.Sign() == 0 {
		return result
	}
	term := new(big.Int).Set(base)
	remaining := new(big.Int).Set(frac)
	for i := 0; i < 64 && remaining.Sign() > 0; i++ {
		term = wadSqrt(term)
		if term.Sign() == 0 {
			break
		}
		remaining.Lsh(remaining, 1)
		if remaining.Cmp(wad) >= 0 {
			remaining.Sub(remaining, wad)
			result = wadMul(result, term)
		}
	}
	return result
}

// mulDiv computes value * num / den with the multiply performed first.
func mulDiv(value, num, den *big.Int) *big.Int {
	if value == nil || num == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(value, num)
	return product.Quo(product, den)
}

func minBigInt(a, b *big.Int) *big.Int {
	if a == nil {
		return copyBigInt(b)
	}
	if b == nil {
		return copyBigInt(a)
	}
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
