package rewards

import (
	"errors"
	"math/big"
	"testing"

	nativecommon "meridian/native/common"
)

func TestClaimShortfallIsPartialSuccess(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	start := uint64(1_000)
	registerAsset(t, h, tokenA, onePerSecond(), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.escrow.fund(tokenA, wadInt(300))
	if err := h.pool.AddLiquidity(aliceAddr, 0, big.NewInt(100), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	claimAt := start + 1_000
	payouts, err := h.engine.Claim(aliceAddr, nil, claimAt)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("expected one payout, got %d", len(payouts))
	}
	if payouts[0].Paid.Cmp(wadInt(300)) != 0 || payouts[0].Shortfall.Cmp(wadInt(700)) != 0 {
		t.Fatalf("expected 300 paid / 700 short, got %+v", payouts[0])
	}

	accrued, err := h.engine.AccruedOf(aliceAddr, tokenA)
	if err != nil {
		t.Fatalf("accrued view: %v", err)
	}
	if accrued.Cmp(wadInt(700)) != 0 {
		t.Fatalf("remainder must stay accrued, got %s", accrued)
	}
	unclaimed, err := h.engine.TotalUnclaimedOf(tokenA)
	if err != nil {
		t.Fatalf("unclaimed view: %v", err)
	}
	if unclaimed.Cmp(wadInt(700)) != 0 {
		t.Fatalf("total unclaimed must track the shortfall, got %s", unclaimed)
	}
	if got := len(h.state.eventsOfType(eventShortfall)); got != 1 {
		t.Fatalf("expected one shortfall event, got %d", got)
	}

	// A later top-up makes the remainder payable with no fresh accrual.
	h.escrow.fund(tokenA, wadInt(10_000))
	payouts, err = h.engine.Claim(aliceAddr, nil, claimAt)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(payouts) != 1 || payouts[0].Paid.Cmp(wadInt(700)) != 0 || payouts[0].Shortfall.Sign() != 0 {
		t.Fatalf("expected remainder paid in full, got %v", payouts)
	}
}

func TestClaimIsNotAWithdrawal(t *testing.T) {
	// Claiming inside the early-withdrawal window must not trigger the ramp;
	// only a stake decrease does.
	h := newLiquidityHarness(t, 1)
	start := uint64(1_000)
	registerAsset(t, h, tokenA, onePerSecond(), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.escrow.fund(tokenA, wadInt(100_000))
	if err := h.pool.AddLiquidity(aliceAddr, 0, big.NewInt(100), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	payouts, err := h.engine.Claim(aliceAddr, nil, start+500)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(payouts) != 1 || payouts[0].Paid.Cmp(wadInt(500)) != 0 {
		t.Fatalf("mid-window claim must pass through unpenalised, got %v", payouts)
	}
}

func TestEarlyWithdrawalForfeitsProportionally(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	start := uint64(1_000)
	registerAsset(t, h, tokenA, onePerSecond(), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.escrow.fund(tokenA, wadInt(100_000))
	if err := h.pool.AddLiquidity(aliceAddr, 0, big.NewInt(100), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	// Exit halfway through the 1000s window: half the 500 earned survives.
	exitAt := start + 500
	if err := h.pool.RemoveLiquidity(aliceAddr, 0, big.NewInt(100), exitAt); err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}
	payouts, err := h.engine.Claim(aliceAddr, nil, exitAt)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(payouts) != 1 || payouts[0].Paid.Cmp(wadInt(250)) != 0 {
		t.Fatalf("expected 250 kept after the ramp, got %v", payouts)
	}
}

func TestLoyaltyMultiplierAppliedBeforeClockReset(t *testing.T) {
	h := newStakingHarness(t, 1)
	start := uint64(1_000)
	registerAsset(t, h, tokenA, onePerSecond(), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.escrow.fund(tokenA, wadInt(1_000_000))
	if err := h.gauge.Deposit(aliceAddr, 0, big.NewInt(100), start); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Two stake days at max 4 / smoothing 30 sit exactly at multiplier 1.5.
	// The full exit books base earnings scaled by the pre-exit multiplier,
	// then resets the clock.
	exitAt := start + 2*DaySeconds
	if err := h.gauge.Withdraw(aliceAddr, 0, big.NewInt(100), exitAt); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	base := int64(2 * DaySeconds)
	want := wadInt(base * 3 / 2)
	accrued, err := h.engine.AccruedOf(aliceAddr, tokenA)
	if err != nil {
		t.Fatalf("accrued view: %v", err)
	}
	if accrued.Cmp(want) != 0 {
		t.Fatalf("expected %s booked, got %s", want, accrued)
	}

	multiplier, err := h.engine.MultiplierOf(aliceAddr, 0, exitAt)
	if err != nil {
		t.Fatalf("multiplier view: %v", err)
	}
	if multiplier.Sign() != 0 {
		t.Fatalf("full exit must zero the loyalty clock, got %s", multiplier)
	}

	payouts, err := h.engine.Claim(aliceAddr, nil, exitAt)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(payouts) != 1 || payouts[0].Paid.Cmp(want) != 0 {
		t.Fatalf("expected %s paid, got %v", want, payouts)
	}
}

func TestClaimableOfMatchesClaim(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	start := uint64(1_000)
	registerAsset(t, h, tokenA, onePerSecond(), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.escrow.fund(tokenA, wadInt(100_000))
	if err := h.pool.AddLiquidity(aliceAddr, 0, big.NewInt(100), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	previewAt := start + 777
	claimable, err := h.engine.ClaimableOf(aliceAddr, tokenA, previewAt)
	if err != nil {
		t.Fatalf("claimable view: %v", err)
	}
	payouts, err := h.engine.Claim(aliceAddr, []Address{tokenA}, previewAt)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if payouts[0].Paid.Cmp(claimable) != 0 {
		t.Fatalf("preview %s disagrees with claim %s", claimable, payouts[0].Paid)
	}
	// The preview itself must not have advanced the ledger.
	claimable, err = h.engine.ClaimableOf(aliceAddr, tokenA, previewAt)
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if claimable.Sign() != 0 {
		t.Fatalf("expected nothing left after the claim, got %s", claimable)
	}
}

func TestClaimBlockedWhilePaused(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	start := uint64(1_000)
	registerAsset(t, h, tokenA, onePerSecond(), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.engine.SetPauses(nativecommon.CompositePauseView{
		nativecommon.StaticPauseView{"lending": true},
		nativecommon.StaticPauseView{"rewards": true},
	})
	if _, err := h.engine.Claim(aliceAddr, nil, start+10); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	h.engine.SetPauses(nil)
	if _, err := h.engine.Claim(aliceAddr, nil, start+10); err != nil {
		t.Fatalf("claim after unpause: %v", err)
	}
}
