package rewards

import "math/big"

// EmissionSchedule derives the instantaneous annual emission rate for a
// reward asset from its registration anchor, initial rate and per-year
// reduction factor. It holds no mutable state.
type EmissionSchedule struct {
	RatePerYear     *big.Int // wad tokens per year
	ReductionFactor *big.Int // wad, >= 1
	StartTime       uint64
}

func scheduleFor(info *RewardAssetInfo) EmissionSchedule {
	if info == nil {
		return EmissionSchedule{}
	}
	return EmissionSchedule{
		RatePerYear:     info.RatePerYear,
		ReductionFactor: info.ReductionFactor,
		StartTime:       info.RegisteredAt,
	}
}

// RateAt returns r(t) = r0 / f^((t - t0) / yearSeconds) in wad tokens per
// year. The rate is flat for f = 1 and strictly non-increasing for f > 1.
func (s EmissionSchedule) RateAt(now uint64) *big.Int {
	if s.RatePerYear == nil || s.RatePerYear.Sign() <= 0 {
		return big.NewInt(0)
	}
	if now <= s.StartTime {
		return copyBigInt(s.RatePerYear)
	}
	if s.ReductionFactor == nil || s.ReductionFactor.Cmp(wad) <= 0 {
		return copyBigInt(s.RatePerYear)
	}
	elapsed := new(big.Int).SetUint64(now - s.StartTime)
	years := elapsed.Mul(elapsed, wad)
	years.Quo(years, yearSeconds)
	divisor := wadPow(s.ReductionFactor, years)
	if divisor.Cmp(wad) <= 0 {
		return copyBigInt(s.RatePerYear)
	}
	return wadDiv(s.RatePerYear, divisor)
}
