package rewards

import (
	"errors"
	"math/big"
	"strconv"
	"testing"

	"meridian/core/types"
)

type mockState struct {
	assets       map[Address]*RewardAssetInfo
	order        []Address
	accruals     map[string]*MarketAccrualState
	marketAssets map[uint32][]Address
	checkpoints  map[string]*big.Int
	positions    map[string]*ParticipantPosition
	totals       map[uint32]*big.Int
	bonuses      map[string]*BonusState
	accrued      map[string]*big.Int
	unclaimed    map[Address]*big.Int
	events       []types.Event
}

func newMockState() *mockState {
	return &mockState{
		assets:       make(map[Address]*RewardAssetInfo),
		accruals:     make(map[string]*MarketAccrualState),
		marketAssets: make(map[uint32][]Address),
		checkpoints:  make(map[string]*big.Int),
		positions:    make(map[string]*ParticipantPosition),
		totals:       make(map[uint32]*big.Int),
		bonuses:      make(map[string]*BonusState),
		accrued:      make(map[string]*big.Int),
		unclaimed:    make(map[Address]*big.Int),
	}
}

func marketScopedKey(a Address, market uint32) string {
	return string(a[:]) + "/" + strconv.FormatUint(uint64(market), 10)
}

func pairKey(a, b Address) string {
	return string(a[:]) + "/" + string(b[:])
}

func tripleKey(owner, token Address, market uint32) string {
	return string(owner[:]) + "/" + string(token[:]) + "/" + strconv.FormatUint(uint64(market), 10)
}

func (m *mockState) RewardAsset(token Address) (*RewardAssetInfo, error) {
	return m.assets[token].Clone(), nil
}

func (m *mockState) PutRewardAsset(info *RewardAssetInfo) error {
	if _, ok := m.assets[info.Token]; !ok {
		m.order = append(m.order, info.Token)
	}
	m.assets[info.Token] = info.Clone()
	return nil
}

func (m *mockState) RewardAssets() ([]Address, error) {
	return append([]Address(nil), m.order...), nil
}

func (m *mockState) MarketAccrual(token Address, market uint32) (*MarketAccrualState, error) {
	return m.accruals[marketScopedKey(token, market)].Clone(), nil
}

func (m *mockState) PutMarketAccrual(token Address, market uint32, accrual *MarketAccrualState) error {
	m.accruals[marketScopedKey(token, market)] = accrual.Clone()
	return nil
}

func (m *mockState) MarketRewardAssets(market uint32) ([]Address, error) {
	return append([]Address(nil), m.marketAssets[market]...), nil
}

func (m *mockState) PutMarketRewardAssets(market uint32, tokens []Address) error {
	m.marketAssets[market] = append([]Address(nil), tokens...)
	return nil
}

func (m *mockState) Checkpoint(owner, token Address, market uint32) (*big.Int, error) {
	if cp, ok := m.checkpoints[tripleKey(owner, token, market)]; ok {
		return new(big.Int).Set(cp), nil
	}
	return nil, nil
}

func (m *mockState) PutCheckpoint(owner, token Address, market uint32, value *big.Int) error {
	m.checkpoints[tripleKey(owner, token, market)] = copyBigInt(value)
	return nil
}

func (m *mockState) Position(owner Address, market uint32) (*ParticipantPosition, error) {
	return m.positions[marketScopedKey(owner, market)].Clone(), nil
}

func (m *mockState) PutPosition(owner Address, market uint32, position *ParticipantPosition) error {
	m.positions[marketScopedKey(owner, market)] = position.Clone()
	return nil
}

func (m *mockState) MarketTotalStake(market uint32) (*big.Int, error) {
	if total, ok := m.totals[market]; ok {
		return new(big.Int).Set(total), nil
	}
	return nil, nil
}

func (m *mockState) PutMarketTotalStake(market uint32, total *big.Int) error {
	m.totals[market] = copyBigInt(total)
	return nil
}

func (m *mockState) BonusState(owner Address, market uint32) (*BonusState, error) {
	return m.bonuses[marketScopedKey(owner, market)].Clone(), nil
}

func (m *mockState) PutBonusState(owner Address, market uint32, bonus *BonusState) error {
	m.bonuses[marketScopedKey(owner, market)] = bonus.Clone()
	return nil
}

func (m *mockState) AccruedBalance(owner, token Address) (*big.Int, error) {
	if accrued, ok := m.accrued[pairKey(owner, token)]; ok {
		return new(big.Int).Set(accrued), nil
	}
	return nil, nil
}

func (m *mockState) PutAccruedBalance(owner, token Address, amount *big.Int) error {
	m.accrued[pairKey(owner, token)] = copyBigInt(amount)
	return nil
}

func (m *mockState) TotalUnclaimed(token Address) (*big.Int, error) {
	if unclaimed, ok := m.unclaimed[token]; ok {
		return new(big.Int).Set(unclaimed), nil
	}
	return nil, nil
}

func (m *mockState) PutTotalUnclaimed(token Address, amount *big.Int) error {
	m.unclaimed[token] = copyBigInt(amount)
	return nil
}

func (m *mockState) AppendEvent(evt *types.Event) {
	if evt != nil {
		m.events = append(m.events, *evt.Clone())
	}
}

func (m *mockState) eventsOfType(eventType string) []types.Event {
	var matched []types.Event
	for _, evt := range m.events {
		if evt.Type == eventType {
			matched = append(matched, evt)
		}
	}
	return matched
}

type mockEscrow struct {
	balances map[Address]*big.Int
	paid     map[string]*big.Int
}

func newMockEscrow() *mockEscrow {
	return &mockEscrow{balances: make(map[Address]*big.Int), paid: make(map[string]*big.Int)}
}

func (m *mockEscrow) fund(token Address, amount *big.Int) {
	m.balances[token] = new(big.Int).Add(copyBigInt(m.balances[token]), amount)
}

func (m *mockEscrow) BalanceOf(token Address) (*big.Int, error) {
	return copyBigInt(m.balances[token]), nil
}

func (m *mockEscrow) TransferOut(token Address, to Address, amount *big.Int) error {
	balance := copyBigInt(m.balances[token])
	if balance.Cmp(amount) < 0 {
		return errors.New("escrow underfunded")
	}
	m.balances[token] = balance.Sub(balance, amount)
	key := pairKey(to, token)
	m.paid[key] = new(big.Int).Add(copyBigInt(m.paid[key]), amount)
	return nil
}

func testAddr(suffix byte) Address {
	var a Address
	a[len(a)-1] = suffix
	return a
}

var (
	govAddr    = testAddr(0xA0)
	sourceAddr = testAddr(0x51)
	aliceAddr  = testAddr(0x01)
	bobAddr    = testAddr(0x02)
	tokenA     = testAddr(0xE1)
	tokenB     = testAddr(0xE2)
)

func testAuth() AccessList {
	return AccessList{
		Governance:      map[Address]bool{govAddr: true},
		PositionSources: map[Address]bool{sourceAddr: true},
	}
}

type harness struct {
	engine *Engine
	state  *mockState
	escrow *mockEscrow
	gauge  *StakedGaugeSource
	pool   *LiquidityPoolSource
}

// newLiquidityHarness builds an engine over an LP share source with the
// early-withdrawal policy; earnings booked by claims pass through unchanged.
func newLiquidityHarness(t *testing.T, pools uint32) *harness {
	t.Helper()
	policy, err := NewEarlyWithdrawalPolicy(BonusParams{EarlyWithdrawThreshold: 1_000})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	pool := NewLiquidityPoolSource(sourceAddr, pools)
	escrow := newMockEscrow()
	engine := NewEngine(pool, escrow, testAuth(), policy)
	state := newMockState()
	engine.SetState(state)
	pool.Bind(engine)
	return &harness{engine: engine, state: state, escrow: escrow, pool: pool}
}

// newStakingHarness builds an engine over a staked gauge source with the
// loyalty multiplier curve.
func newStakingHarness(t *testing.T, markets uint32) *harness {
	t.Helper()
	policy, err := NewLoyaltyMultiplierPolicy(stakingParams(4, 30))
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	gauge := NewStakedGaugeSource(sourceAddr, markets)
	escrow := newMockEscrow()
	engine := NewEngine(gauge, escrow, testAuth(), policy)
	state := newMockState()
	engine.SetState(state)
	gauge.Bind(engine)
	return &harness{engine: engine, state: state, escrow: escrow, gauge: gauge}
}

func registerAsset(t *testing.T, h *harness, token Address, ratePerYear *big.Int, weights []MarketWeight, now uint64) {
	t.Helper()
	if err := h.engine.RegisterRewardAsset(govAddr, token, ratePerYear, new(big.Int).Set(wad), weights, now); err != nil {
		t.Fatalf("register asset: %v", err)
	}
}

func TestFullYearTwoMarketScenario(t *testing.T) {
	// r0 = 1,000,000/year, no decay, two markets at 5,000 bp each, a single
	// provider holding 100 units in market 0: a full year of settlement owes
	// exactly 500,000 before any bonus transform.
	h := newLiquidityHarness(t, 2)
	start := uint64(1_000)
	registerAsset(t, h, tokenA, wadInt(1_000_000), []MarketWeight{
		{Market: 0, WeightBps: 5_000},
		{Market: 1, WeightBps: 5_000},
	}, start)
	h.escrow.fund(tokenA, wadInt(1_000_000))

	if err := h.pool.AddLiquidity(aliceAddr, 0, big.NewInt(100), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	payouts, err := h.engine.Claim(aliceAddr, nil, start+YearSeconds)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("expected one payout, got %d", len(payouts))
	}
	if payouts[0].Paid.Cmp(wadInt(500_000)) != 0 {
		t.Fatalf("expected 500000 paid, got %s", payouts[0].Paid)
	}
	if payouts[0].Shortfall.Sign() != 0 {
		t.Fatalf("expected no shortfall, got %s", payouts[0].Shortfall)
	}
}

func TestAccumulatorMonotonic(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	start := uint64(5_000)
	registerAsset(t, h, tokenA, wadInt(100_000), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	if err := h.pool.AddLiquidity(aliceAddr, 0, big.NewInt(7), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	prev := big.NewInt(0)
	for i := uint64(1); i <= 20; i++ {
		if err := h.engine.Settle(tokenA, 0, start+i*777); err != nil {
			t.Fatalf("settle: %v", err)
		}
		accrual, err := h.engine.AccrualOf(tokenA, 0)
		if err != nil {
			t.Fatalf("accrual view: %v", err)
		}
		if accrual.RewardPerUnit.Cmp(prev) < 0 {
			t.Fatalf("accumulator decreased at step %d", i)
		}
		prev = accrual.RewardPerUnit
	}
}

func TestEmissionConservedAcrossParticipants(t *testing.T) {
	// 100 vs 300 units over a fifth of a year: every emitted token ends up
	// with one of the two providers, split 1:3.
	h := newLiquidityHarness(t, 1)
	start := uint64(10_000)
	registerAsset(t, h, tokenA, wadInt(1_000_000), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.escrow.fund(tokenA, wadInt(1_000_000))
	if err := h.pool.AddLiquidity(aliceAddr, 0, big.NewInt(100), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := h.pool.AddLiquidity(bobAddr, 0, big.NewInt(300), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	claimAt := start + YearSeconds/5
	alicePay, err := h.engine.Claim(aliceAddr, []Address{tokenA}, claimAt)
	if err != nil {
		t.Fatalf("alice claim: %v", err)
	}
	bobPay, err := h.engine.Claim(bobAddr, []Address{tokenA}, claimAt)
	if err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	total := new(big.Int).Add(alicePay[0].Paid, bobPay[0].Paid)
	if total.Cmp(wadInt(200_000)) != 0 {
		t.Fatalf("emission not conserved: %s", total)
	}
	wantAlice := wadInt(50_000)
	if alicePay[0].Paid.Cmp(wantAlice) != 0 {
		t.Fatalf("alice share wrong: %s", alicePay[0].Paid)
	}
}

func TestZeroStakeIntervalEmitsNothing(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	start := uint64(2_000)
	registerAsset(t, h, tokenA, wadInt(1_000_000), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.escrow.fund(tokenA, wadInt(1_000_000))

	// A year passes with nobody staked; the first provider afterwards must
	// not inherit rewards synthesised out of zero stake.
	if err := h.engine.Settle(tokenA, 0, start+YearSeconds); err != nil {
		t.Fatalf("settle: %v", err)
	}
	accrual, err := h.engine.AccrualOf(tokenA, 0)
	if err != nil {
		t.Fatalf("accrual view: %v", err)
	}
	if accrual.RewardPerUnit.Sign() != 0 {
		t.Fatalf("accumulator should stay zero with no stake, got %s", accrual.RewardPerUnit)
	}
	if accrual.LastSettledAt != start+YearSeconds {
		t.Fatalf("timestamp should advance, got %d", accrual.LastSettledAt)
	}
}

func TestPositionMismatchRequiresRegistration(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	start := uint64(3_000)
	registerAsset(t, h, tokenA, wadInt(1_000_000), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.escrow.fund(tokenA, wadInt(1_000_000))

	// Bob's shares predate the engine: seeded without a hook.
	if err := h.pool.Seed(bobAddr, 0, big.NewInt(50)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := h.pool.AddLiquidity(aliceAddr, 0, big.NewInt(100), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	if _, err := h.engine.Claim(bobAddr, nil, start+1_000); !errors.Is(err, ErrPositionMismatch) {
		t.Fatalf("expected ErrPositionMismatch, got %v", err)
	}

	registerAt := start + 2_000
	if err := h.engine.RegisterPosition(bobAddr, 0, registerAt); err != nil {
		t.Fatalf("register position: %v", err)
	}
	if err := h.engine.RegisterPosition(bobAddr, 0, registerAt); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	// Registration seeds the checkpoint at the current accumulator, so the
	// growth that predates it pays bob nothing.
	payouts, err := h.engine.Claim(bobAddr, nil, registerAt)
	if err != nil {
		t.Fatalf("claim after register: %v", err)
	}
	if len(payouts) != 0 {
		t.Fatalf("expected no retroactive payout, got %v", payouts)
	}

	// From here on bob earns his share of future emission.
	payouts, err = h.engine.Claim(bobAddr, nil, registerAt+1_000)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(payouts) != 1 || payouts[0].Paid.Sign() <= 0 {
		t.Fatalf("expected forward earnings, got %v", payouts)
	}

	total, err := h.engine.MarketTotalStakeOf(0)
	if err != nil {
		t.Fatalf("total view: %v", err)
	}
	if total.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("aggregate stake should include registered position, got %s", total)
	}
}

func TestHookImplicitlyRegistersSeededPosition(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	start := uint64(4_000)
	registerAsset(t, h, tokenA, onePerSecond(), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	if err := h.pool.Seed(bobAddr, 0, big.NewInt(50)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A later top-up flows through the hook, which adopts the whole position
	// going forward and announces the registration with its origin.
	if err := h.pool.AddLiquidity(bobAddr, 0, big.NewInt(10), start+100); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	registrations := h.state.eventsOfType(eventPositionRegistered)
	if len(registrations) != 1 {
		t.Fatalf("expected one registration event, got %d", len(registrations))
	}
	if origin := registrations[0].Attributes["origin"]; origin != "hook" {
		t.Fatalf("expected hook origin, got %q", origin)
	}
	if stake := registrations[0].Attributes["stake"]; stake != "60" {
		t.Fatalf("expected adopted stake 60, got %q", stake)
	}

	// The pre-image stake was zero, so the seeded balance earns nothing
	// retroactively, and the explicit flow is no longer available.
	accrued, err := h.engine.AccruedOf(bobAddr, tokenA)
	if err != nil {
		t.Fatalf("accrued view: %v", err)
	}
	if accrued.Sign() != 0 {
		t.Fatalf("seeded balance must not earn retroactively, got %s", accrued)
	}
	if err := h.engine.RegisterPosition(bobAddr, 0, start+200); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	total, err := h.engine.MarketTotalStakeOf(0)
	if err != nil {
		t.Fatalf("total view: %v", err)
	}
	if total.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("hook must adopt the full balance into the aggregate, got %s", total)
	}
}

func TestHookRejectsUntrustedCaller(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	if err := h.engine.OnPositionChanged(aliceAddr, aliceAddr, 0, 1_000); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMarketIndexValidation(t *testing.T) {
	h := newLiquidityHarness(t, 2)
	start := uint64(1_000)
	registerAsset(t, h, tokenA, wadInt(1_000), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	if err := h.engine.Settle(tokenA, 9, start+10); !errors.Is(err, ErrMarketIndexInvalid) {
		t.Fatalf("expected ErrMarketIndexInvalid, got %v", err)
	}
	if err := h.engine.RegisterPosition(aliceAddr, 7, start); !errors.Is(err, ErrMarketIndexInvalid) {
		t.Fatalf("expected ErrMarketIndexInvalid, got %v", err)
	}
	if err := h.engine.Settle(tokenB, 0, start+10); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestCheckpointNeverExceedsAccumulator(t *testing.T) {
	h := newLiquidityHarness(t, 1)
	start := uint64(100)
	registerAsset(t, h, tokenA, wadInt(500_000), []MarketWeight{{Market: 0, WeightBps: 10_000}}, start)
	h.escrow.fund(tokenA, wadInt(500_000))
	if err := h.pool.AddLiquidity(aliceAddr, 0, big.NewInt(10), start); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	for i := uint64(1); i <= 5; i++ {
		now := start + i*10_000
		if _, err := h.engine.Claim(aliceAddr, nil, now); err != nil {
			t.Fatalf("claim: %v", err)
		}
		accrual, err := h.engine.AccrualOf(tokenA, 0)
		if err != nil {
			t.Fatalf("accrual view: %v", err)
		}
		checkpoint, err := h.engine.CheckpointOf(aliceAddr, tokenA, 0)
		if err != nil {
			t.Fatalf("checkpoint view: %v", err)
		}
		if checkpoint.Cmp(accrual.RewardPerUnit) > 0 {
			t.Fatalf("checkpoint above accumulator at step %d", i)
		}
	}
}
