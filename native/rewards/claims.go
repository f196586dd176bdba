package rewards

import (
	"math/big"

	nativecommon "meridian/native/common"
	"meridian/observability"
)

// Claim settles and books every market the participant touches, then pays
// out up to the escrow balance for each requested reward asset. An empty
// token list claims every registered asset, removed ones included. Escrow
// shortfalls are not errors: the unpaid remainder stays accrued and a
// shortfall signal is raised.
func (e *Engine) Claim(owner Address, tokens []Address, now uint64) ([]ClaimPayout, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.escrow == nil {
		return nil, ErrNilEscrow
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(tokens) == 0 {
		all, err := e.state.RewardAssets()
		if err != nil {
			return nil, err
		}
		tokens = all
	}

	markets := e.source.Markets()
	for market := uint32(0); market < markets; market++ {
		position, err := e.ensurePosition(owner, market)
		if err != nil {
			return nil, err
		}
		if err := e.verifyPosition(owner, market, position); err != nil {
			return nil, err
		}
		if position.Stake.Sign() == 0 {
			continue
		}
		bonus, err := e.ensureBonus(owner, market)
		if err != nil {
			return nil, err
		}
		for _, token := range tokens {
			info, err := e.state.RewardAsset(token)
			if err != nil {
				return nil, err
			}
			if info == nil {
				continue
			}
			accrual, err := e.settleMarket(info, market, now)
			if err != nil {
				return nil, err
			}
			if _, err := e.bookEarnings(owner, info, market, accrual, bonus, position.Stake, position.Stake, now); err != nil {
				return nil, err
			}
		}
	}

	payouts := make([]ClaimPayout, 0, len(tokens))
	for _, token := range tokens {
		accrued, err := e.state.AccruedBalance(owner, token)
		if err != nil {
			return nil, err
		}
		accrued = copyBigInt(accrued)
		if accrued.Sign() == 0 {
			continue
		}
		escrowBalance, err := e.escrow.BalanceOf(token)
		if err != nil {
			return nil, err
		}
		paid := minBigInt(accrued, escrowBalance)
		if paid.Sign() > 0 {
			if err := e.escrow.TransferOut(token, owner, paid); err != nil {
				return nil, err
			}
			accrued = new(big.Int).Sub(accrued, paid)
			if err := e.state.PutAccruedBalance(owner, token, accrued); err != nil {
				return nil, err
			}
			unclaimed, err := e.state.TotalUnclaimed(token)
			if err != nil {
				return nil, err
			}
			unclaimed = new(big.Int).Sub(copyBigInt(unclaimed), paid)
			if unclaimed.Sign() < 0 {
				unclaimed = big.NewInt(0)
			}
			if err := e.state.PutTotalUnclaimed(token, unclaimed); err != nil {
				return nil, err
			}
			e.state.AppendEvent(newClaimedEvent(owner, token, paid))
			observability.Rewards().RecordClaim(attrAddress(token))
		}
		shortfall := copyBigInt(accrued)
		if shortfall.Sign() > 0 {
			e.state.AppendEvent(newShortfallEvent(owner, token, shortfall))
			observability.Rewards().RecordShortfall(attrAddress(token))
		}
		payouts = append(payouts, ClaimPayout{Token: token, Paid: paid, Shortfall: shortfall})
	}
	return payouts, nil
}
