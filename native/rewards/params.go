package rewards

import "math/big"

// Flavor selects which bonus policy a deployment runs.
type Flavor string

const (
	// FlavorStaking applies the loyalty multiplier curve.
	FlavorStaking Flavor = "staking"
	// FlavorLiquidity applies the early-withdrawal penalty ramp.
	FlavorLiquidity Flavor = "liquidity"
)

var (
	minMultiplier = mustBigInt("1000000000000000000")   // 1.0
	maxMultiplier = mustBigInt("10000000000000000000")  // 10.0
	minSmoothing  = mustBigInt("10000000000000000000")  // 10.0
	maxSmoothing  = mustBigInt("100000000000000000000") // 100.0
)

// BonusParams groups the governance-tunable knobs shared by both policy
// flavors. MaxMultiplier and Smoothing are wad values; the threshold is in
// seconds.
type BonusParams struct {
	MaxMultiplier          *big.Int
	Smoothing              *big.Int
	EarlyWithdrawThreshold uint64
}

// Clone returns a deep copy of the parameters.
func (p BonusParams) Clone() BonusParams {
	return BonusParams{
		MaxMultiplier:          copyBigInt(p.MaxMultiplier),
		Smoothing:              copyBigInt(p.Smoothing),
		EarlyWithdrawThreshold: p.EarlyWithdrawThreshold,
	}
}

// ValidateStaking checks the loyalty-curve bounds: multiplier in [1, 10] and
// smoothing in [10, 100].
func (p BonusParams) ValidateStaking() error {
	if p.MaxMultiplier == nil || p.MaxMultiplier.Cmp(minMultiplier) < 0 || p.MaxMultiplier.Cmp(maxMultiplier) > 0 {
		return ErrInvalidBonusParams
	}
	if p.Smoothing == nil || p.Smoothing.Cmp(minSmoothing) < 0 || p.Smoothing.Cmp(maxSmoothing) > 0 {
		return ErrInvalidBonusParams
	}
	return nil
}

// ValidateLiquidity checks the early-withdrawal ramp configuration.
func (p BonusParams) ValidateLiquidity() error {
	if p.EarlyWithdrawThreshold == 0 {
		return ErrInvalidBonusParams
	}
	return nil
}
