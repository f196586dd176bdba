package rewards

import "math/big"

// BonusPolicy transforms freshly booked earnings and maintains the
// per-position timestamps that drive the transform. Adjust must be evaluated
// with the bonus state as it stood before the triggering event;
// OnStakeChanged is applied afterwards, never the other way around.
type BonusPolicy interface {
	Adjust(bonus *BonusState, earned, oldStake, newStake *big.Int, now uint64) *big.Int
	OnStakeChanged(bonus *BonusState, oldStake, newStake *big.Int, now uint64)
	SetParams(params BonusParams) error
}

// LoyaltyMultiplierPolicy implements the staking-flavor smoothing curve.
// The multiplier starts at 1 on a fresh stake and approaches MaxMultiplier
// as uninterrupted stake days accumulate.
type LoyaltyMultiplierPolicy struct {
	params BonusParams
}

// NewLoyaltyMultiplierPolicy validates and installs the curve parameters.
func NewLoyaltyMultiplierPolicy(params BonusParams) (*LoyaltyMultiplierPolicy, error) {
	if err := params.ValidateStaking(); err != nil {
		return nil, err
	}
	return &LoyaltyMultiplierPolicy{params: params.Clone()}, nil
}

// SetParams replaces the curve parameters after validation.
func (p *LoyaltyMultiplierPolicy) SetParams(params BonusParams) error {
	if err := params.ValidateStaking(); err != nil {
		return err
	}
	p.params = params.Clone()
	return nil
}

// MultiplierAt evaluates the curve for a position whose loyalty clock started
// at start. A position that never staked (start = 0) carries multiplier 0.
//
//	m = max - smoothing*(max-1) / (deltaDays*(max-1) + smoothing)
func (p *LoyaltyMultiplierPolicy) MultiplierAt(start, now uint64) *big.Int {
	if p == nil || start == 0 {
		return big.NewInt(0)
	}
	var elapsed uint64
	if now > start {
		elapsed = now - start
	}
	deltaDays := new(big.Int).SetUint64(elapsed)
	deltaDays.Mul(deltaDays, wad)
	deltaDays.Quo(deltaDays, daySeconds)

	maxMinusOne := new(big.Int).Sub(p.params.MaxMultiplier, wad)
	if maxMinusOne.Sign() <= 0 {
		return new(big.Int).Set(wad)
	}
	numerator := wadMul(p.params.Smoothing, maxMinusOne)
	denominator := wadMul(deltaDays, maxMinusOne)
	denominator.Add(denominator, p.params.Smoothing)
	return new(big.Int).Sub(p.params.MaxMultiplier, wadDiv(numerator, denominator))
}

// Adjust scales earned rewards by the multiplier evaluated before the
// triggering event updates the loyalty clock.
func (p *LoyaltyMultiplierPolicy) Adjust(bonus *BonusState, earned, _, _ *big.Int, now uint64) *big.Int {
	if earned == nil || earned.Sign() <= 0 {
		return big.NewInt(0)
	}
	start := uint64(0)
	if bonus != nil {
		start = bonus.StartTime
	}
	return wadMul(earned, p.MultiplierAt(start, now))
}

// OnStakeChanged maintains the loyalty clock. A fresh stake or a decrease to
// a nonzero balance restarts the curve. A top-up shifts the clock forward by
// elapsed * added / newTotal, partially preserving accrued loyalty. A full
// withdrawal zeroes the clock.
func (p *LoyaltyMultiplierPolicy) OnStakeChanged(bonus *BonusState, oldStake, newStake *big.Int, now uint64) {
	if bonus == nil {
		return
	}
	old := copyBigInt(oldStake)
	next := copyBigInt(newStake)
	switch {
	case next.Sign() == 0:
		bonus.StartTime = 0
	case old.Sign() == 0:
		bonus.StartTime = now
	case next.Cmp(old) < 0:
		bonus.StartTime = now
	case next.Cmp(old) > 0:
		if bonus.StartTime == 0 || now <= bonus.StartTime {
			bonus.StartTime = now
			return
		}
		elapsed := new(big.Int).SetUint64(now - bonus.StartTime)
		added := new(big.Int).Sub(next, old)
		shift := mulDiv(elapsed, added, next)
		bonus.StartTime += shift.Uint64()
	}
}

// EarlyWithdrawalPolicy implements the liquidity-flavor penalty: a linear
// ramp that forfeits all new rewards at the moment of deposit and none once
// the holding threshold has passed.
type EarlyWithdrawalPolicy struct {
	params BonusParams
}

// NewEarlyWithdrawalPolicy validates and installs the ramp parameters.
func NewEarlyWithdrawalPolicy(params BonusParams) (*EarlyWithdrawalPolicy, error) {
	if err := params.ValidateLiquidity(); err != nil {
		return nil, err
	}
	return &EarlyWithdrawalPolicy{params: params.Clone()}, nil
}

// SetParams replaces the ramp parameters after validation.
func (p *EarlyWithdrawalPolicy) SetParams(params BonusParams) error {
	if err := params.ValidateLiquidity(); err != nil {
		return err
	}
	p.params = params.Clone()
	return nil
}

// Adjust applies the penalty only when the triggering event is a withdrawal
// inside the threshold window. Deposits and claims pass through untouched.
func (p *EarlyWithdrawalPolicy) Adjust(bonus *BonusState, earned, oldStake, newStake *big.Int, now uint64) *big.Int {
	if earned == nil || earned.Sign() <= 0 {
		return big.NewInt(0)
	}
	if bonus == nil || bonus.LastDepositAt == 0 {
		return copyBigInt(earned)
	}
	if oldStake == nil || newStake == nil || newStake.Cmp(oldStake) >= 0 {
		return copyBigInt(earned)
	}
	threshold := p.params.EarlyWithdrawThreshold
	var elapsed uint64
	if now > bonus.LastDepositAt {
		elapsed = now - bonus.LastDepositAt
	}
	if elapsed >= threshold {
		return copyBigInt(earned)
	}
	kept := new(big.Int).SetUint64(elapsed)
	return mulDiv(earned, kept, new(big.Int).SetUint64(threshold))
}

// OnStakeChanged maintains the deposit timer: a zero-to-nonzero deposit
// starts it, later deposits only start it when it was cleared, and a full
// withdrawal clears it so the next deposit is a fresh first deposit.
func (p *EarlyWithdrawalPolicy) OnStakeChanged(bonus *BonusState, oldStake, newStake *big.Int, now uint64) {
	if bonus == nil {
		return
	}
	old := copyBigInt(oldStake)
	next := copyBigInt(newStake)
	switch {
	case next.Sign() == 0:
		bonus.LastDepositAt = 0
	case next.Cmp(old) > 0:
		if old.Sign() == 0 || bonus.LastDepositAt == 0 {
			bonus.LastDepositAt = now
		}
	}
}
