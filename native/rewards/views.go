package rewards

import "math/big"

// AssetInfoOf returns a copy of the asset configuration.
func (e *Engine) AssetInfoOf(token Address) (*RewardAssetInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	info, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	return info.Clone(), nil
}

// AccrualOf returns the accumulator state for one (asset, market) pair.
func (e *Engine) AccrualOf(token Address, market uint32) (*MarketAccrualState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	accrual, err := e.state.MarketAccrual(token, market)
	if err != nil {
		return nil, err
	}
	if accrual == nil {
		return &MarketAccrualState{RewardPerUnit: big.NewInt(0)}, nil
	}
	return accrual.Clone(), nil
}

// CheckpointOf returns the accumulator value last booked for a participant.
func (e *Engine) CheckpointOf(owner, token Address, market uint32) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	checkpoint, err := e.state.Checkpoint(owner, token, market)
	if err != nil {
		return nil, err
	}
	return copyBigInt(checkpoint), nil
}

// PositionOf returns the recorded position for a participant in a market.
func (e *Engine) PositionOf(owner Address, market uint32) (*ParticipantPosition, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	position, err := e.state.Position(owner, market)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return &ParticipantPosition{Stake: big.NewInt(0)}, nil
	}
	return position.Clone(), nil
}

// MarketTotalStakeOf returns the aggregate recorded stake for a market.
func (e *Engine) MarketTotalStakeOf(market uint32) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	total, err := e.state.MarketTotalStake(market)
	if err != nil {
		return nil, err
	}
	return copyBigInt(total), nil
}

// BonusOf returns the bonus clock state for a participant in a market.
func (e *Engine) BonusOf(owner Address, market uint32) (*BonusState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	bonus, err := e.state.BonusState(owner, market)
	if err != nil {
		return nil, err
	}
	if bonus == nil {
		return &BonusState{}, nil
	}
	return bonus.Clone(), nil
}

// AccruedOf returns the earned-but-unclaimed balance for one asset.
func (e *Engine) AccruedOf(owner, token Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	accrued, err := e.state.AccruedBalance(owner, token)
	if err != nil {
		return nil, err
	}
	return copyBigInt(accrued), nil
}

// TotalUnclaimedOf returns the asset-wide unclaimed total used for shortfall
// detection.
func (e *Engine) TotalUnclaimedOf(token Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unclaimed, err := e.state.TotalUnclaimed(token)
	if err != nil {
		return nil, err
	}
	return copyBigInt(unclaimed), nil
}

// MultiplierOf previews the loyalty multiplier a participant would receive
// right now. It returns 1x-scale zero for the liquidity flavor.
func (e *Engine) MultiplierOf(owner Address, market uint32, now uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	policy, ok := e.policy.(*LoyaltyMultiplierPolicy)
	if !ok {
		return big.NewInt(0), nil
	}
	bonus, err := e.state.BonusState(owner, market)
	if err != nil {
		return nil, err
	}
	start := uint64(0)
	if bonus != nil {
		start = bonus.StartTime
	}
	return policy.MultiplierAt(start, now), nil
}

// ClaimableOf previews the amount a claim for one asset would book and pay,
// without mutating any ledger state. Bonus transforms are applied as a
// claim-time (non-withdrawal) booking would.
func (e *Engine) ClaimableOf(owner, token Address, now uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	info, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	accrued, err := e.state.AccruedBalance(owner, token)
	if err != nil {
		return nil, err
	}
	total := copyBigInt(accrued)
	markets := e.source.Markets()
	for market := uint32(0); market < markets; market++ {
		position, err := e.state.Position(owner, market)
		if err != nil {
			return nil, err
		}
		if position == nil || position.Stake == nil || position.Stake.Sign() == 0 {
			continue
		}
		accrual, err := e.state.MarketAccrual(token, market)
		if err != nil {
			return nil, err
		}
		if accrual == nil {
			continue
		}
		perUnit := copyBigInt(accrual.RewardPerUnit)
		weight := info.WeightOf(market)
		if weight > 0 && now > accrual.LastSettledAt && !info.Paused && !e.modulePaused() {
			totalStake, err := e.marketTotal(market)
			if err != nil {
				return nil, err
			}
			if totalStake.Sign() > 0 {
				elapsed := now - accrual.LastSettledAt
				rate := scheduleFor(info).RateAt(now)
				emission := new(big.Int).Mul(rate, new(big.Int).SetUint64(weight))
				emission.Mul(emission, new(big.Int).SetUint64(elapsed))
				emission.Quo(emission, new(big.Int).Mul(bpsDenominator, yearSeconds))
				perUnit.Add(perUnit, wadDiv(emission, totalStake))
			}
		}
		checkpoint, err := e.state.Checkpoint(owner, token, market)
		if err != nil {
			return nil, err
		}
		delta := new(big.Int).Sub(perUnit, copyBigInt(checkpoint))
		if delta.Sign() <= 0 {
			continue
		}
		earned := wadMul(position.Stake, delta)
		bonus, err := e.state.BonusState(owner, market)
		if err != nil {
			return nil, err
		}
		earned = e.policy.Adjust(bonus, earned, position.Stake, position.Stake, now)
		total.Add(total, earned)
	}
	return total, nil
}
