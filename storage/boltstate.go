package storage

import (
	"encoding/json"
	"math/big"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"meridian/core/types"
	"meridian/native/rewards"
)

var (
	bucketAssets       = []byte("assets")
	bucketMeta         = []byte("meta")
	bucketAccruals     = []byte("accruals")
	bucketMarketAssets = []byte("marketassets")
	bucketCheckpoints  = []byte("checkpoints")
	bucketPositions    = []byte("positions")
	bucketTotals       = []byte("totals")
	bucketBonuses      = []byte("bonuses")
	bucketAccrued      = []byte("accrued")
	bucketUnclaimed    = []byte("unclaimed")
)

var boltBuckets = [][]byte{
	bucketAssets, bucketMeta, bucketAccruals, bucketMarketAssets,
	bucketCheckpoints, bucketPositions, bucketTotals, bucketBonuses,
	bucketAccrued, bucketUnclaimed,
}

// BoltState implements rewards.State over a bbolt file, one bucket per
// record type with JSON document values.
type BoltState struct {
	db *bolt.DB

	mu     sync.Mutex
	events []types.Event
}

// OpenBoltState opens or creates the state file and ensures all buckets
// exist.
func OpenBoltState(path string) (*BoltState, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltState{db: db}, nil
}

// Close releases the underlying file.
func (s *BoltState) Close() error {
	return s.db.Close()
}

func (s *BoltState) get(bucket []byte, key string, out interface{}) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, out)
	})
	return found, err
}

func (s *BoltState) put(bucket []byte, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), raw)
	})
}

func (s *BoltState) getBigInt(bucket []byte, key string) (*big.Int, error) {
	value := new(big.Int)
	ok, err := s.get(bucket, key, value)
	if err != nil || !ok {
		return nil, err
	}
	return value, nil
}

func (s *BoltState) RewardAsset(token rewards.Address) (*rewards.RewardAssetInfo, error) {
	info := &rewards.RewardAssetInfo{}
	ok, err := s.get(bucketAssets, addrKey(token), info)
	if err != nil || !ok {
		return nil, err
	}
	return info, nil
}

func (s *BoltState) PutRewardAsset(info *rewards.RewardAssetInfo) error {
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
		if err := s.put(bucketMeta, "assets", append(tokens, info.Token)); err != nil {
			return err
		}
	}
	return s.put(bucketAssets, addrKey(info.Token), info)
}

func (s *BoltState) RewardAssets() ([]rewards.Address, error) {
	var tokens []rewards.Address
	if _, err := s.get(bucketMeta, "assets", &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *BoltState) MarketAccrual(token rewards.Address, market uint32) (*rewards.MarketAccrualState, error) {
	accrual := &rewards.MarketAccrualState{}
	ok, err := s.get(bucketAccruals, addrKey(token)+"/"+marketKey(market), accrual)
	if err != nil || !ok {
		return nil, err
	}
	return accrual, nil
}

func (s *BoltState) PutMarketAccrual(token rewards.Address, market uint32, accrual *rewards.MarketAccrualState) error {
	return s.put(bucketAccruals, addrKey(token)+"/"+marketKey(market), accrual)
}

func (s *BoltState) MarketRewardAssets(market uint32) ([]rewards.Address, error) {
	var tokens []rewards.Address
	if _, err := s.get(bucketMarketAssets, marketKey(market), &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *BoltState) PutMarketRewardAssets(market uint32, tokens []rewards.Address) error {
	return s.put(bucketMarketAssets, marketKey(market), tokens)
}

func (s *BoltState) Checkpoint(owner, token rewards.Address, market uint32) (*big.Int, error) {
	return s.getBigInt(bucketCheckpoints, addrKey(owner)+"/"+addrKey(token)+"/"+marketKey(market))
}

func (s *BoltState) PutCheckpoint(owner, token rewards.Address, market uint32, value *big.Int) error {
	return s.put(bucketCheckpoints, addrKey(owner)+"/"+addrKey(token)+"/"+marketKey(market), value)
}

func (s *BoltState) Position(owner rewards.Address, market uint32) (*rewards.ParticipantPosition, error) {
	position := &rewards.ParticipantPosition{}
	ok, err := s.get(bucketPositions, addrKey(owner)+"/"+marketKey(market), position)
	if err != nil || !ok {
		return nil, err
	}
	return position, nil
}

func (s *BoltState) PutPosition(owner rewards.Address, market uint32, position *rewards.ParticipantPosition) error {
	return s.put(bucketPositions, addrKey(owner)+"/"+marketKey(market), position)
}

func (s *BoltState) MarketTotalStake(market uint32) (*big.Int, error) {
	return s.getBigInt(bucketTotals, marketKey(market))
}

func (s *BoltState) PutMarketTotalStake(market uint32, total *big.Int) error {
	return s.put(bucketTotals, marketKey(market), total)
}

func (s *BoltState) BonusState(owner rewards.Address, market uint32) (*rewards.BonusState, error) {
	bonus := &rewards.BonusState{}
	ok, err := s.get(bucketBonuses, addrKey(owner)+"/"+marketKey(market), bonus)
	if err != nil || !ok {
		return nil, err
	}
	return bonus, nil
}

func (s *BoltState) PutBonusState(owner rewards.Address, market uint32, bonus *rewards.BonusState) error {
	return s.put(bucketBonuses, addrKey(owner)+"/"+marketKey(market), bonus)
}

func (s *BoltState) AccruedBalance(owner, token rewards.Address) (*big.Int, error) {
	return s.getBigInt(bucketAccrued, addrKey(owner)+"/"+addrKey(token))
}

func (s *BoltState) PutAccruedBalance(owner, token rewards.Address, amount *big.Int) error {
	return s.put(bucketAccrued, addrKey(owner)+"/"+addrKey(token), amount)
}

func (s *BoltState) TotalUnclaimed(token rewards.Address) (*big.Int, error) {
	return s.getBigInt(bucketUnclaimed, addrKey(token))
}

func (s *BoltState) PutTotalUnclaimed(token rewards.Address, amount *big.Int) error {
	return s.put(bucketUnclaimed, addrKey(token), amount)
}

func (s *BoltState) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	s.mu.Lock()
	s.events = append(s.events, *evt.Clone())
	s.mu.Unlock()
}

// Events drains and returns the buffered events in emission order.
func (s *BoltState) Events() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.events
	s.events = nil
	return drained
}
