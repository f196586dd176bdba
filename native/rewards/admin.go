package rewards

import (
	"math/big"
)

// validateWeights rejects malformed tables: out-of-range or duplicate
// markets, zero or oversized weights, and sums other than 10,000 bp.
func (e *Engine) validateWeights(weights []MarketWeight) error {
	if len(weights) == 0 {
		return ErrInvalidWeightTable
	}
	seen := make(map[uint32]bool, len(weights))
	var sum uint64
	for _, w := range weights {
		if w.Market >= e.source.Markets() {
			return ErrMarketIndexInvalid
		}
		if seen[w.Market] {
			return ErrInvalidWeightTable
		}
		seen[w.Market] = true
		if w.WeightBps == 0 || w.WeightBps > WeightBpsDenominator {
			return ErrInvalidWeightTable
		}
		sum += w.WeightBps
	}
	if sum != WeightBpsDenominator {
		return ErrInvalidWeightTable
	}
	return nil
}

func (e *Engine) requireGovernance(caller Address) error {
	if e.auth == nil || !e.auth.IsGovernance(caller) {
		return ErrUnauthorized
	}
	return nil
}

// settleWeighted finalises growth on every market currently weighted for the
// asset. Admin mutations call this first so already-elapsed intervals are
// booked under the old configuration.
func (e *Engine) settleWeighted(info *RewardAssetInfo, now uint64) error {
	for _, w := range info.Weights {
		if _, err := e.settleMarket(info, w.Market, now); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) addToMarketList(market uint32, token Address) error {
	tokens, err := e.state.MarketRewardAssets(market)
	if err != nil {
		return err
	}
	for _, existing := range tokens {
		if existing == token {
			return nil
		}
	}
	return e.state.PutMarketRewardAssets(market, append(tokens, token))
}

func (e *Engine) removeFromMarketList(market uint32, token Address) error {
	tokens, err := e.state.MarketRewardAssets(market)
	if err != nil {
		return err
	}
	filtered := tokens[:0]
	for _, existing := range tokens {
		if existing != token {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(tokens) {
		return nil
	}
	return e.state.PutMarketRewardAssets(market, filtered)
}

// RegisterRewardAsset moves an asset from Unregistered to Active with its
// initial emission parameters and weight table. Accrual clocks for every
// weighted market start at now.
func (e *Engine) RegisterRewardAsset(caller, token Address, ratePerYear, reductionFactor *big.Int, weights []MarketWeight, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireGovernance(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if token.IsZero() {
		return ErrZeroAddress
	}
	if ratePerYear == nil || ratePerYear.Sign() <= 0 {
		return ErrInvalidRate
	}
	if reductionFactor == nil || reductionFactor.Cmp(wad) < 0 {
		return ErrInvalidReductionFactor
	}
	if err := e.validateWeights(weights); err != nil {
		return err
	}
	existing, err := e.state.RewardAsset(token)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAssetExists
	}
	info := &RewardAssetInfo{
		Token:           token,
		RegisteredAt:    now,
		RatePerYear:     copyBigInt(ratePerYear),
		ReductionFactor: copyBigInt(reductionFactor),
		Weights:         append([]MarketWeight(nil), weights...),
	}
	for _, w := range weights {
		accrual := &MarketAccrualState{RewardPerUnit: big.NewInt(0), LastSettledAt: now}
		if err := e.state.PutMarketAccrual(token, w.Market, accrual); err != nil {
			return err
		}
		if err := e.addToMarketList(w.Market, token); err != nil {
			return err
		}
	}
	if err := e.state.PutRewardAsset(info); err != nil {
		return err
	}
	e.state.AppendEvent(newAssetEvent(eventAssetRegistered, token))
	return nil
}

// SetRewardWeights replaces an asset's weight table. Growth under the old
// weights is finalised first; markets dropped from the table also leave that
// market's active-asset list, and newly added markets start their clock now.
func (e *Engine) SetRewardWeights(caller, token Address, weights []MarketWeight, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireGovernance(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	info, err := e.loadAsset(token)
	if err != nil {
		return err
	}
	if info.Removed {
		return ErrAssetRemoved
	}
	if err := e.validateWeights(weights); err != nil {
		return err
	}
	if err := e.settleWeighted(info, now); err != nil {
		return err
	}
	previous := make(map[uint32]bool, len(info.Weights))
	for _, old := range info.Weights {
		previous[old.Market] = true
	}
	next := make(map[uint32]bool, len(weights))
	for _, w := range weights {
		next[w.Market] = true
	}
	for _, old := range info.Weights {
		if !next[old.Market] {
			if err := e.removeFromMarketList(old.Market, token); err != nil {
				return err
			}
		}
	}
	for _, w := range weights {
		accrual, err := e.state.MarketAccrual(token, w.Market)
		if err != nil {
			return err
		}
		switch {
		case accrual == nil:
			accrual = &MarketAccrualState{RewardPerUnit: big.NewInt(0), LastSettledAt: now}
			if err := e.state.PutMarketAccrual(token, w.Market, accrual); err != nil {
				return err
			}
		case !previous[w.Market]:
			// A re-added market kept its accrual from before the drop. The
			// zero-weight gap must not back-accrue under the new weight, so
			// the clock restarts while the accumulator is preserved.
			accrual.LastSettledAt = now
			if err := e.state.PutMarketAccrual(token, w.Market, accrual); err != nil {
				return err
			}
		}
		if err := e.addToMarketList(w.Market, token); err != nil {
			return err
		}
	}
	info.Weights = append([]MarketWeight(nil), weights...)
	if err := e.state.PutRewardAsset(info); err != nil {
		return err
	}
	e.state.AppendEvent(newAssetEvent(eventAssetWeightsSet, token))
	return nil
}

// SetEmissionRate changes the initial annual rate from this moment forward.
// Every weighted market is settled first so no participant gains or loses
// rewards for the already-elapsed period under the old rate.
func (e *Engine) SetEmissionRate(caller, token Address, ratePerYear *big.Int, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireGovernance(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ratePerYear == nil || ratePerYear.Sign() <= 0 {
		return ErrInvalidRate
	}
	info, err := e.loadAsset(token)
	if err != nil {
		return err
	}
	if info.Removed {
		return ErrAssetRemoved
	}
	if err := e.settleWeighted(info, now); err != nil {
		return err
	}
	info.RatePerYear = copyBigInt(ratePerYear)
	if err := e.state.PutRewardAsset(info); err != nil {
		return err
	}
	e.state.AppendEvent(newAssetEvent(eventAssetRateSet, token).With("rate", ratePerYear.String()))
	return nil
}

// SetReductionFactor changes the decay divisor, settle-first like rate
// changes.
func (e *Engine) SetReductionFactor(caller, token Address, reductionFactor *big.Int, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireGovernance(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if reductionFactor == nil || reductionFactor.Cmp(wad) < 0 {
		return ErrInvalidReductionFactor
	}
	info, err := e.loadAsset(token)
	if err != nil {
		return err
	}
	if info.Removed {
		return ErrAssetRemoved
	}
	if err := e.settleWeighted(info, now); err != nil {
		return err
	}
	info.ReductionFactor = copyBigInt(reductionFactor)
	if err := e.state.PutRewardAsset(info); err != nil {
		return err
	}
	e.state.AppendEvent(newAssetEvent(eventAssetReductionSet, token).With("factor", reductionFactor.String()))
	return nil
}

// PauseAsset halts accrual for the asset. Growth up to now is finalised
// first so the paused interval earns exactly zero.
func (e *Engine) PauseAsset(caller, token Address, now uint64) error {
	return e.setAssetPaused(caller, token, true, now)
}

// ResumeAsset re-enables accrual. The paused gap is consumed at zero growth
// before the flag clears.
func (e *Engine) ResumeAsset(caller, token Address, now uint64) error {
	return e.setAssetPaused(caller, token, false, now)
}

func (e *Engine) setAssetPaused(caller, token Address, paused bool, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireGovernance(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	info, err := e.loadAsset(token)
	if err != nil {
		return err
	}
	if info.Removed {
		return ErrAssetRemoved
	}
	if info.Paused == paused {
		return nil
	}
	if err := e.settleWeighted(info, now); err != nil {
		return err
	}
	info.Paused = paused
	if err := e.state.PutRewardAsset(info); err != nil {
		return err
	}
	if paused {
		e.state.AppendEvent(newAssetEvent(eventAssetPaused, token))
	} else {
		e.state.AppendEvent(newAssetEvent(eventAssetResumed, token))
	}
	return nil
}

// RemoveRewardAsset retires an asset. All weighted markets are settled, the
// escrow balance not owed to unclaimed earners is computed and signalled as
// surplus for return to governance, and the asset stops emitting. Accrued
// balances stay claimable.
func (e *Engine) RemoveRewardAsset(caller, token Address, now uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.escrow == nil {
		return nil, ErrNilEscrow
	}
	if err := e.requireGovernance(caller); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	info, err := e.loadAsset(token)
	if err != nil {
		return nil, err
	}
	if info.Removed {
		return nil, ErrAssetRemoved
	}
	if err := e.settleWeighted(info, now); err != nil {
		return nil, err
	}
	for _, w := range info.Weights {
		if err := e.removeFromMarketList(w.Market, token); err != nil {
			return nil, err
		}
	}
	escrowBalance, err := e.escrow.BalanceOf(token)
	if err != nil {
		return nil, err
	}
	unclaimed, err := e.state.TotalUnclaimed(token)
	if err != nil {
		return nil, err
	}
	surplus := new(big.Int).Sub(copyBigInt(escrowBalance), copyBigInt(unclaimed))
	if surplus.Sign() < 0 {
		surplus = big.NewInt(0)
	}
	info.Removed = true
	info.Paused = true
	info.Weights = nil
	if err := e.state.PutRewardAsset(info); err != nil {
		return nil, err
	}
	e.state.AppendEvent(newAssetRemovedEvent(token, surplus))
	return surplus, nil
}

// SetBonusParams retunes the active bonus policy.
func (e *Engine) SetBonusParams(caller Address, params BonusParams) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireGovernance(caller); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy.SetParams(params)
}
