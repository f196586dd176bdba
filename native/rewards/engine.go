package rewards

import (
	"math/big"
	"sync"

	"meridian/core/types"
	nativecommon "meridian/native/common"
	"meridian/observability"
)

const moduleName = "rewards"

// State is the narrow persistence contract the engine mutates through. All
// getters return nil (not an error) when a record does not exist yet.
type State interface {
	RewardAsset(token Address) (*RewardAssetInfo, error)
	PutRewardAsset(info *RewardAssetInfo) error
	RewardAssets() ([]Address, error)

	MarketAccrual(token Address, market uint32) (*MarketAccrualState, error)
	PutMarketAccrual(token Address, market uint32, accrual *MarketAccrualState) error

	MarketRewardAssets(market uint32) ([]Address, error)
	PutMarketRewardAssets(market uint32, tokens []Address) error

	Checkpoint(owner, token Address, market uint32) (*big.Int, error)
	PutCheckpoint(owner, token Address, market uint32, value *big.Int) error

	Position(owner Address, market uint32) (*ParticipantPosition, error)
	PutPosition(owner Address, market uint32, position *ParticipantPosition) error

	MarketTotalStake(market uint32) (*big.Int, error)
	PutMarketTotalStake(market uint32, total *big.Int) error

	BonusState(owner Address, market uint32) (*BonusState, error)
	PutBonusState(owner Address, market uint32, bonus *BonusState) error

	AccruedBalance(owner, token Address) (*big.Int, error)
	PutAccruedBalance(owner, token Address, amount *big.Int) error

	TotalUnclaimed(token Address) (*big.Int, error)
	PutTotalUnclaimed(token Address, amount *big.Int) error

	AppendEvent(evt *types.Event)
}

// StakeSource exposes the external stake balances the engine distributes
// against. Markets are addressed by dense indexes in [0, Markets()).
type StakeSource interface {
	Markets() uint32
	TotalStake(market uint32) (*big.Int, error)
	StakeOf(owner Address, market uint32) (*big.Int, error)
}

// Escrow is the external custodian of reward assets.
type Escrow interface {
	BalanceOf(token Address) (*big.Int, error)
	TransferOut(token Address, to Address, amount *big.Int) error
}

// AuthGate answers the two authorization questions the engine asks.
type AuthGate interface {
	IsGovernance(caller Address) bool
	IsPositionSource(caller Address) bool
}

// AccessList is a static AuthGate for deployments without an external gate.
type AccessList struct {
	Governance      map[Address]bool
	PositionSources map[Address]bool
}

func (l AccessList) IsGovernance(caller Address) bool {
	return l.Governance[caller]
}

func (l AccessList) IsPositionSource(caller Address) bool {
	return l.PositionSources[caller]
}

// Engine orchestrates emission settlement, earnings bookkeeping and claims.
// Every mutating operation is a single step-to-completion critical section;
// the caller supplies the clock.
type Engine struct {
	mu     sync.Mutex
	state  State
	source StakeSource
	escrow Escrow
	auth   AuthGate
	policy BonusPolicy
	pauses nativecommon.PauseView
}

// NewEngine constructs an engine bound to its collaborators. The bonus policy
// selects the deployment flavor and is fixed for the engine's lifetime.
func NewEngine(source StakeSource, escrow Escrow, auth AuthGate, policy BonusPolicy) *Engine {
	return &Engine{source: source, escrow: escrow, auth: auth, policy: policy}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state State) {
	if e == nil {
		return
	}
	e.state = state
}

// SetPauses installs the platform-wide pause view, ORed with per-asset flags.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.source == nil {
		return ErrNilStakeSource
	}
	return nil
}

func (e *Engine) checkMarket(market uint32) error {
	if market >= e.source.Markets() {
		return ErrMarketIndexInvalid
	}
	return nil
}

func (e *Engine) modulePaused() bool {
	return e.pauses != nil && e.pauses.IsPaused(moduleName)
}

func (e *Engine) loadAsset(token Address) (*RewardAssetInfo, error) {
	info, err := e.state.RewardAsset(token)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrAssetNotFound
	}
	return info, nil
}

func (e *Engine) ensurePosition(owner Address, market uint32) (*ParticipantPosition, error) {
	position, err := e.state.Position(owner, market)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &ParticipantPosition{}
	}
	if position.Stake == nil {
		position.Stake = big.NewInt(0)
	}
	return position, nil
}

func (e *Engine) ensureBonus(owner Address, market uint32) (*BonusState, error) {
	bonus, err := e.state.BonusState(owner, market)
	if err != nil {
		return nil, err
	}
	if bonus == nil {
		bonus = &BonusState{}
	}
	return bonus, nil
}

func (e *Engine) marketTotal(market uint32) (*big.Int, error) {
	total, err := e.state.MarketTotalStake(market)
	if err != nil {
		return nil, err
	}
	if total == nil {
		total = big.NewInt(0)
	}
	return total, nil
}

// settleMarket advances the (asset, market) accumulator to now. With no
// weight it is a no-op, with a paused asset or zero stake only the timestamp
// advances, otherwise the weighted emission for the elapsed interval is
// converted into reward-per-unit and added to the accumulator.
func (e *Engine) settleMarket(info *RewardAssetInfo, market uint32, now uint64) (*MarketAccrualState, error) {
	accrual, err := e.state.MarketAccrual(info.Token, market)
	if err != nil {
		return nil, err
	}
	weight := info.WeightOf(market)
	if accrual == nil {
		if weight == 0 {
			return &MarketAccrualState{RewardPerUnit: big.NewInt(0)}, nil
		}
		return nil, ErrNotStarted
	}
	if accrual.RewardPerUnit == nil {
		accrual.RewardPerUnit = big.NewInt(0)
	}
	if weight == 0 || now <= accrual.LastSettledAt {
		return accrual, nil
	}
	if accrual.LastSettledAt == 0 {
		return nil, ErrNotStarted
	}
	elapsed := now - accrual.LastSettledAt

	if info.Paused || e.modulePaused() {
		accrual.LastSettledAt = now
		if err := e.state.PutMarketAccrual(info.Token, market, accrual); err != nil {
			return nil, err
		}
		observability.Rewards().RecordSettlement(attrAddress(info.Token), "paused")
		return accrual, nil
	}

	total, err := e.marketTotal(market)
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		accrual.LastSettledAt = now
		if err := e.state.PutMarketAccrual(info.Token, market, accrual); err != nil {
			return nil, err
		}
		observability.Rewards().RecordSettlement(attrAddress(info.Token), "idle")
		return accrual, nil
	}

	rate := scheduleFor(info).RateAt(now)
	// emission = rate * weight * elapsed / (10000 * yearSeconds), fully
	// multiplied out before the single divide.
	emission := new(big.Int).Mul(rate, new(big.Int).SetUint64(weight))
	emission.Mul(emission, new(big.Int).SetUint64(elapsed))
	emission.Quo(emission, new(big.Int).Mul(bpsDenominator, yearSeconds))

	perUnit := wadDiv(emission, total)
	accrual.RewardPerUnit = new(big.Int).Add(accrual.RewardPerUnit, perUnit)
	accrual.LastSettledAt = now
	if err := e.state.PutMarketAccrual(info.Token, market, accrual); err != nil {
		return nil, err
	}
	observability.Rewards().RecordSettlement(attrAddress(info.Token), "accrued")
	return accrual, nil
}

// bookEarnings computes the delta owed since the participant's checkpoint
// using the pre-image stake, runs it through the bonus policy, advances the
// checkpoint and credits the accrued balance.
func (e *Engine) bookEarnings(owner Address, info *RewardAssetInfo, market uint32, accrual *MarketAccrualState, bonus *BonusState, oldStake, newStake *big.Int, now uint64) (*big.Int, error) {
	checkpoint, err := e.state.Checkpoint(owner, info.Token, market)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		checkpoint = big.NewInt(0)
	}
	delta := new(big.Int).Sub(accrual.RewardPerUnit, checkpoint)
	if delta.Sign() < 0 {
		delta = big.NewInt(0)
	}
	earned := wadMul(oldStake, delta)
	earned = e.policy.Adjust(bonus, earned, oldStake, newStake, now)

	if err := e.state.PutCheckpoint(owner, info.Token, market, copyBigInt(accrual.RewardPerUnit)); err != nil {
		return nil, err
	}
	if earned.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	accrued, err := e.state.AccruedBalance(owner, info.Token)
	if err != nil {
		return nil, err
	}
	accrued = new(big.Int).Add(copyBigInt(accrued), earned)
	if err := e.state.PutAccruedBalance(owner, info.Token, accrued); err != nil {
		return nil, err
	}
	unclaimed, err := e.state.TotalUnclaimed(info.Token)
	if err != nil {
		return nil, err
	}
	unclaimed = new(big.Int).Add(copyBigInt(unclaimed), earned)
	if err := e.state.PutTotalUnclaimed(info.Token, unclaimed); err != nil {
		return nil, err
	}
	e.state.AppendEvent(newEarningsBookedEvent(owner, info.Token, market, earned))
	observability.Rewards().RecordEarningsBooked(attrAddress(info.Token))
	return earned, nil
}

// activeAssets resolves the reward assets currently weighted for a market.
func (e *Engine) activeAssets(market uint32) ([]*RewardAssetInfo, error) {
	tokens, err := e.state.MarketRewardAssets(market)
	if err != nil {
		return nil, err
	}
	infos := make([]*RewardAssetInfo, 0, len(tokens))
	for _, token := range tokens {
		info, err := e.state.RewardAsset(token)
		if err != nil {
			return nil, err
		}
		if info == nil || info.Removed {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Settle advances the accumulator for one (asset, market) pair. It is safe
// for keepers to call at any time.
func (e *Engine) Settle(token Address, market uint32, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMarket(market); err != nil {
		return err
	}
	info, err := e.loadAsset(token)
	if err != nil {
		return err
	}
	if info.Removed {
		return ErrAssetRemoved
	}
	_, err = e.settleMarket(info, market, now)
	return err
}

// OnPositionChanged is the trusted hook the stake source invokes after any
// stake mutation (stake, unstake, transfer, LP add or remove). It settles
// every weighted asset, books earnings against the pre-image stake, updates
// the bonus clock and then records the new position.
func (e *Engine) OnPositionChanged(caller, owner Address, market uint32, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.auth == nil || !e.auth.IsPositionSource(caller) {
		return ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMarket(market); err != nil {
		return err
	}
	newStake, err := e.source.StakeOf(owner, market)
	if err != nil {
		return err
	}
	newStake = copyBigInt(newStake)

	position, err := e.ensurePosition(owner, market)
	if err != nil {
		return err
	}
	oldStake := copyBigInt(position.Stake)

	bonus, err := e.ensureBonus(owner, market)
	if err != nil {
		return err
	}

	infos, err := e.activeAssets(market)
	if err != nil {
		return err
	}
	for _, info := range infos {
		accrual, err := e.settleMarket(info, market, now)
		if err != nil {
			return err
		}
		if _, err := e.bookEarnings(owner, info, market, accrual, bonus, oldStake, newStake, now); err != nil {
			return err
		}
	}

	e.policy.OnStakeChanged(bonus, oldStake, newStake, now)
	if err := e.state.PutBonusState(owner, market, bonus); err != nil {
		return err
	}

	total, err := e.marketTotal(market)
	if err != nil {
		return err
	}
	total = new(big.Int).Sub(new(big.Int).Add(total, newStake), oldStake)
	if total.Sign() < 0 {
		total = big.NewInt(0)
	}
	if err := e.state.PutMarketTotalStake(market, total); err != nil {
		return err
	}

	firstContact := !position.Registered
	position.Stake = newStake
	position.Registered = true
	if err := e.state.PutPosition(owner, market, position); err != nil {
		return err
	}
	if firstContact {
		e.state.AppendEvent(newPositionRegisteredEvent(owner, market, newStake, "hook"))
	}
	return nil
}

// RegisterPosition is the once-only flow for participants whose stake
// predates this engine. Checkpoints are seeded at the current accumulator so
// no retroactive rewards are granted, and the recorded stake and aggregate
// totals are aligned with the stake source.
func (e *Engine) RegisterPosition(owner Address, market uint32, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMarket(market); err != nil {
		return err
	}
	position, err := e.ensurePosition(owner, market)
	if err != nil {
		return err
	}
	if position.Registered {
		return ErrAlreadyRegistered
	}
	stake, err := e.source.StakeOf(owner, market)
	if err != nil {
		return err
	}
	stake = copyBigInt(stake)

	infos, err := e.activeAssets(market)
	if err != nil {
		return err
	}
	for _, info := range infos {
		accrual, err := e.settleMarket(info, market, now)
		if err != nil {
			return err
		}
		if err := e.state.PutCheckpoint(owner, info.Token, market, copyBigInt(accrual.RewardPerUnit)); err != nil {
			return err
		}
	}

	bonus, err := e.ensureBonus(owner, market)
	if err != nil {
		return err
	}
	e.policy.OnStakeChanged(bonus, big.NewInt(0), stake, now)
	if err := e.state.PutBonusState(owner, market, bonus); err != nil {
		return err
	}

	total, err := e.marketTotal(market)
	if err != nil {
		return err
	}
	total = new(big.Int).Add(total, stake)
	if err := e.state.PutMarketTotalStake(market, total); err != nil {
		return err
	}

	position.Stake = stake
	position.Registered = true
	if err := e.state.PutPosition(owner, market, position); err != nil {
		return err
	}
	e.state.AppendEvent(newPositionRegisteredEvent(owner, market, stake, "registration"))
	return nil
}

// verifyPosition confirms the recorded stake matches the stake source. A
// divergence means either a pre-engine position that still needs
// RegisterPosition or a caller-sequencing bug; both are rejected.
func (e *Engine) verifyPosition(owner Address, market uint32, position *ParticipantPosition) error {
	external, err := e.source.StakeOf(owner, market)
	if err != nil {
		return err
	}
	if copyBigInt(external).Cmp(copyBigInt(position.Stake)) != 0 {
		return ErrPositionMismatch
	}
	return nil
}
