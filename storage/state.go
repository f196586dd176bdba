package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"sync"

	"meridian/core/types"
	"meridian/native/rewards"
)

// LedgerState implements rewards.State over a generic Database, encoding
// every ledger record as a JSON document under a typed key prefix. Events
// are buffered in memory for the surrounding processor to drain.
type LedgerState struct {
	db Database

	mu     sync.Mutex
	events []types.Event
}

// NewLedgerState wraps a Database as engine state.
func NewLedgerState(db Database) *LedgerState {
	return &LedgerState{db: db}
}

func addrKey(a rewards.Address) string {
	return hex.EncodeToString(a[:])
}

func marketKey(m uint32) string {
	return strconv.FormatUint(uint64(m), 10)
}

func (s *LedgerState) getJSON(key string, out interface{}) (bool, error) {
	raw, err := s.db.Get([]byte(key))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *LedgerState) putJSON(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), raw)
}

func (s *LedgerState) getBigInt(key string) (*big.Int, error) {
	value := new(big.Int)
	ok, err := s.getJSON(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (s *LedgerState) RewardAsset(token rewards.Address) (*rewards.RewardAssetInfo, error) {
	info := &rewards.RewardAssetInfo{}
	ok, err := s.getJSON("asset/"+addrKey(token), info)
	if err != nil || !ok {
		return nil, err
	}
	return info, nil
}

func (s *LedgerState) PutRewardAsset(info *rewards.RewardAssetInfo) error {
	if info == nil {
		return nil
	}
	tokens, err := s.RewardAssets()
	if err != nil {
		return err
	}
	known := false
	for _, t := range tokens {
		if t == info.Token {
			known = true
			break
		}
	}
	if !known {
		if err := s.putJSON("meta/assets", append(tokens, info.Token)); err != nil {
			return err
		}
	}
	return s.putJSON("asset/"+addrKey(info.Token), info)
}

func (s *LedgerState) RewardAssets() ([]rewards.Address, error) {
	var tokens []rewards.Address
	if _, err := s.getJSON("meta/assets", &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *LedgerState) MarketAccrual(token rewards.Address, market uint32) (*rewards.MarketAccrualState, error) {
	accrual := &rewards.MarketAccrualState{}
	ok, err := s.getJSON("accrual/"+addrKey(token)+"/"+marketKey(market), accrual)
	if err != nil || !ok {
		return nil, err
	}
	return accrual, nil
}

func (s *LedgerState) PutMarketAccrual(token rewards.Address, market uint32, accrual *rewards.MarketAccrualState) error {
	return s.putJSON("accrual/"+addrKey(token)+"/"+marketKey(market), accrual)
}

func (s *LedgerState) MarketRewardAssets(market uint32) ([]rewards.Address, error) {
	var tokens []rewards.Address
	if _, err := s.getJSON("marketassets/"+marketKey(market), &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *LedgerState) PutMarketRewardAssets(market uint32, tokens []rewards.Address) error {
	return s.putJSON("marketassets/"+marketKey(market), tokens)
}

func (s *LedgerState) Checkpoint(owner, token rewards.Address, market uint32) (*big.Int, error) {
	return s.getBigInt("checkpoint/" + addrKey(owner) + "/" + addrKey(token) + "/" + marketKey(market))
}

func (s *LedgerState) PutCheckpoint(owner, token rewards.Address, market uint32, value *big.Int) error {
	return s.putJSON("checkpoint/"+addrKey(owner)+"/"+addrKey(token)+"/"+marketKey(market), value)
}

func (s *LedgerState) Position(owner rewards.Address, market uint32) (*rewards.ParticipantPosition, error) {
	position := &rewards.ParticipantPosition{}
	ok, err := s.getJSON("position/"+addrKey(owner)+"/"+marketKey(market), position)
	if err != nil || !ok {
		return nil, err
	}
	return position, nil
}

func (s *LedgerState) PutPosition(owner rewards.Address, market uint32, position *rewards.ParticipantPosition) error {
	return s.putJSON("position/"+addrKey(owner)+"/"+marketKey(market), position)
}

func (s *LedgerState) MarketTotalStake(market uint32) (*big.Int, error) {
	return s.getBigInt("total/" + marketKey(market))
}

func (s *LedgerState) PutMarketTotalStake(market uint32, total *big.Int) error {
	return s.putJSON("total/"+marketKey(market), total)
}

func (s *LedgerState) BonusState(owner rewards.Address, market uint32) (*rewards.BonusState, error) {
	bonus := &rewards.BonusState{}
	ok, err := s.getJSON("bonus/"+addrKey(owner)+"/"+marketKey(market), bonus)
	if err != nil || !ok {
		return nil, err
	}
	return bonus, nil
}

func (s *LedgerState) PutBonusState(owner rewards.Address, market uint32, bonus *rewards.BonusState) error {
	return s.putJSON("bonus/"+addrKey(owner)+"/"+marketKey(market), bonus)
}

func (s *LedgerState) AccruedBalance(owner, token rewards.Address) (*big.Int, error) {
	return s.getBigInt("accrued/" + addrKey(owner) + "/" + addrKey(token))
}

func (s *LedgerState) PutAccruedBalance(owner, token rewards.Address, amount *big.Int) error {
	return s.putJSON("accrued/"+addrKey(owner)+"/"+addrKey(token), amount)
}

func (s *LedgerState) TotalUnclaimed(token rewards.Address) (*big.Int, error) {
	return s.getBigInt("unclaimed/" + addrKey(token))
}

func (s *LedgerState) PutTotalUnclaimed(token rewards.Address, amount *big.Int) error {
	return s.putJSON("unclaimed/"+addrKey(token), amount)
}

func (s *LedgerState) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	s.mu.Lock()
	s.events = append(s.events, *evt.Clone())
	s.mu.Unlock()
}

// Events drains and returns the buffered events in emission order.
func (s *LedgerState) Events() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.events
	s.events = nil
	return drained
}
