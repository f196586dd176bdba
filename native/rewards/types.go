package rewards

import "math/big"

// Address identifies participants, reward assets and escrow recipients.
type Address [20]byte

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a == (Address{})
}

// MarketWeight pairs a market index with its share of an asset's emission,
// expressed in basis points.
type MarketWeight struct {
	Market    uint32
	WeightBps uint64
}

// RewardAssetInfo captures the configuration of one registered reward asset.
type RewardAssetInfo struct {
	Token Address
	// RegisteredAt anchors the decay schedule; rates are relative to it.
	RegisteredAt uint64
	// RatePerYear is the initial annual emission in wad tokens per year.
	RatePerYear *big.Int
	// ReductionFactor is the wad divisor applied per elapsed year, >= 1.
	ReductionFactor *big.Int
	Paused          bool
	Removed         bool
	Weights         []MarketWeight
}

// Clone returns a deep copy so callers never alias stored references.
func (info *RewardAssetInfo) Clone() *RewardAssetInfo {
	if info == nil {
		return nil
	}
	clone := &RewardAssetInfo{
		Token:        info.Token,
		RegisteredAt: info.RegisteredAt,
		Paused:       info.Paused,
		Removed:      info.Removed,
	}
	clone.RatePerYear = copyBigInt(info.RatePerYear)
	clone.ReductionFactor = copyBigInt(info.ReductionFactor)
	if len(info.Weights) > 0 {
		clone.Weights = append([]MarketWeight(nil), info.Weights...)
	}
	return clone
}

// WeightOf returns the basis-point weight assigned to a market, zero when the
// market is not in the table.
func (info *RewardAssetInfo) WeightOf(market uint32) uint64 {
	if info == nil {
		return 0
	}
	for _, w := range info.Weights {
		if w.Market == market {
			return w.WeightBps
		}
	}
	return 0
}

// MarketAccrualState is the cumulative reward-per-unit-stake accumulator for
// one (asset, market) pair. RewardPerUnit never decreases.
type MarketAccrualState struct {
	RewardPerUnit *big.Int // wad per unit of stake
	LastSettledAt uint64
}

// Clone returns a deep copy of the accrual state.
func (s *MarketAccrualState) Clone() *MarketAccrualState {
	if s == nil {
		return nil
	}
	return &MarketAccrualState{
		RewardPerUnit: copyBigInt(s.RewardPerUnit),
		LastSettledAt: s.LastSettledAt,
	}
}

// ParticipantPosition tracks the stake this engine last recorded for a
// participant in one market.
type ParticipantPosition struct {
	Stake *big.Int
	// Registered flips once the position has been synchronised with the
	// stake source, either through a trusted hook or registerPosition.
	Registered bool
}

// Clone returns a deep copy of the position.
func (p *ParticipantPosition) Clone() *ParticipantPosition {
	if p == nil {
		return nil
	}
	return &ParticipantPosition{Stake: copyBigInt(p.Stake), Registered: p.Registered}
}

// BonusState holds the per-(participant, market) timestamps consumed by the
// active bonus policy. The staking flavor reads StartTime, the liquidity
// flavor reads LastDepositAt; the unused field stays zero.
type BonusState struct {
	StartTime     uint64
	LastDepositAt uint64
}

// Clone returns a copy of the bonus state.
func (b *BonusState) Clone() *BonusState {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}

// ClaimPayout summarises the outcome of a claim for one reward asset.
type ClaimPayout struct {
	Token     Address
	Paid      *big.Int
	Shortfall *big.Int
}
