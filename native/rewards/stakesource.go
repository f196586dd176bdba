package rewards

import (
	"math/big"
	"sync"
)

// StakedGaugeSource is the staked-token flavor of StakeSource: a set of
// gauges whose balances move by deposit, withdraw and transfer. Every
// balance mutation notifies the bound engine so settlement and bookkeeping
// run against the pre-image stake. The engine hook runs outside the source
// lock because it reads balances back through StakeOf.
type StakedGaugeSource struct {
	mu       sync.RWMutex
	self     Address
	engine   *Engine
	balances []map[Address]*big.Int
	totals   []*big.Int
}

// NewStakedGaugeSource creates a gauge source for a fixed number of markets.
func NewStakedGaugeSource(self Address, markets uint32) *StakedGaugeSource {
	s := &StakedGaugeSource{self: self}
	s.balances = make([]map[Address]*big.Int, markets)
	s.totals = make([]*big.Int, markets)
	for i := range s.balances {
		s.balances[i] = make(map[Address]*big.Int)
		s.totals[i] = big.NewInt(0)
	}
	return s
}

// Bind attaches the engine whose position hook this source drives.
func (s *StakedGaugeSource) Bind(engine *Engine) {
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
}

// Markets returns the number of gauges.
func (s *StakedGaugeSource) Markets() uint32 {
	return uint32(len(s.balances))
}

// TotalStake returns the aggregate staked balance of a gauge.
func (s *StakedGaugeSource) TotalStake(market uint32) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(market) >= len(s.totals) {
		return nil, ErrMarketIndexInvalid
	}
	return copyBigInt(s.totals[market]), nil
}

// StakeOf returns a participant's staked balance in a gauge.
func (s *StakedGaugeSource) StakeOf(owner Address, market uint32) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(market) >= len(s.balances) {
		return nil, ErrMarketIndexInvalid
	}
	return copyBigInt(s.balances[market][owner]), nil
}

func (s *StakedGaugeSource) adjust(owner Address, market uint32, delta *big.Int) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(market) >= len(s.balances) {
		return nil, ErrMarketIndexInvalid
	}
	next := new(big.Int).Add(copyBigInt(s.balances[market][owner]), delta)
	if next.Sign() < 0 {
		return nil, ErrPositionMismatch
	}
	s.balances[market][owner] = next
	s.totals[market] = new(big.Int).Add(s.totals[market], delta)
	return s.engine, nil
}

// Deposit stakes amount for owner and notifies the engine.
func (s *StakedGaugeSource) Deposit(owner Address, market uint32, amount *big.Int, now uint64) error {
	engine, err := s.adjust(owner, market, copyBigInt(amount))
	if err != nil {
		return err
	}
	if engine == nil {
		return ErrNilState
	}
	return engine.OnPositionChanged(s.self, owner, market, now)
}

// Withdraw unstakes amount for owner and notifies the engine.
func (s *StakedGaugeSource) Withdraw(owner Address, market uint32, amount *big.Int, now uint64) error {
	engine, err := s.adjust(owner, market, new(big.Int).Neg(copyBigInt(amount)))
	if err != nil {
		return err
	}
	if engine == nil {
		return ErrNilState
	}
	return engine.OnPositionChanged(s.self, owner, market, now)
}

// Transfer moves stake between participants; both sides are settled.
func (s *StakedGaugeSource) Transfer(from, to Address, market uint32, amount *big.Int, now uint64) error {
	value := copyBigInt(amount)
	engine, err := s.adjust(from, market, new(big.Int).Neg(value))
	if err != nil {
		return err
	}
	if _, err := s.adjust(to, market, value); err != nil {
		return err
	}
	if engine == nil {
		return ErrNilState
	}
	if err := engine.OnPositionChanged(s.self, from, market, now); err != nil {
		return err
	}
	return engine.OnPositionChanged(s.self, to, market, now)
}

// Seed installs a balance without notifying the engine. It models positions
// that existed before the engine was deployed and is the setup path for the
// RegisterPosition flow.
func (s *StakedGaugeSource) Seed(owner Address, market uint32, amount *big.Int) error {
	_, err := s.adjust(owner, market, copyBigInt(amount))
	return err
}

// LiquidityPoolSource is the liquidity-provision flavor of StakeSource: LP
// share balances that move by adding and removing liquidity.
type LiquidityPoolSource struct {
	mu     sync.RWMutex
	self   Address
	engine *Engine
	shares []map[Address]*big.Int
	supply []*big.Int
}

// NewLiquidityPoolSource creates an LP source for a fixed number of pools.
func NewLiquidityPoolSource(self Address, pools uint32) *LiquidityPoolSource {
	s := &LiquidityPoolSource{self: self}
	s.shares = make([]map[Address]*big.Int, pools)
	s.supply = make([]*big.Int, pools)
	for i := range s.shares {
		s.shares[i] = make(map[Address]*big.Int)
		s.supply[i] = big.NewInt(0)
	}
	return s
}

// Bind attaches the engine whose position hook this source drives.
func (s *LiquidityPoolSource) Bind(engine *Engine) {
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
}

// Markets returns the number of pools.
func (s *LiquidityPoolSource) Markets() uint32 {
	return uint32(len(s.shares))
}

// TotalStake returns the outstanding share supply of a pool.
func (s *LiquidityPoolSource) TotalStake(market uint32) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(market) >= len(s.supply) {
		return nil, ErrMarketIndexInvalid
	}
	return copyBigInt(s.supply[market]), nil
}

// StakeOf returns a provider's share balance in a pool.
func (s *LiquidityPoolSource) StakeOf(owner Address, market uint32) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(market) >= len(s.shares) {
		return nil, ErrMarketIndexInvalid
	}
	return copyBigInt(s.shares[market][owner]), nil
}

func (s *LiquidityPoolSource) adjust(owner Address, market uint32, delta *big.Int) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(market) >= len(s.shares) {
		return nil, ErrMarketIndexInvalid
	}
	next := new(big.Int).Add(copyBigInt(s.shares[market][owner]), delta)
	if next.Sign() < 0 {
		return nil, ErrPositionMismatch
	}
	s.shares[market][owner] = next
	s.supply[market] = new(big.Int).Add(s.supply[market], delta)
	return s.engine, nil
}

// AddLiquidity mints shares for a provider and notifies the engine.
func (s *LiquidityPoolSource) AddLiquidity(owner Address, market uint32, shares *big.Int, now uint64) error {
	engine, err := s.adjust(owner, market, copyBigInt(shares))
	if err != nil {
		return err
	}
	if engine == nil {
		return ErrNilState
	}
	return engine.OnPositionChanged(s.self, owner, market, now)
}

// RemoveLiquidity burns shares for a provider and notifies the engine. The
// engine's early-withdrawal policy sees the decrease and applies its ramp.
func (s *LiquidityPoolSource) RemoveLiquidity(owner Address, market uint32, shares *big.Int, now uint64) error {
	engine, err := s.adjust(owner, market, new(big.Int).Neg(copyBigInt(shares)))
	if err != nil {
		return err
	}
	if engine == nil {
		return ErrNilState
	}
	return engine.OnPositionChanged(s.self, owner, market, now)
}

// Seed installs shares without notifying the engine, modelling providers who
// entered the pool before the engine was deployed.
func (s *LiquidityPoolSource) Seed(owner Address, market uint32, shares *big.Int) error {
	_, err := s.adjust(owner, market, copyBigInt(shares))
	return err
}
