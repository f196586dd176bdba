package rewards

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"meridian/core/types"
)

const (
	eventAssetRegistered    = "rewards.asset.registered"
	eventAssetWeightsSet    = "rewards.asset.weights_updated"
	eventAssetRateSet       = "rewards.asset.rate_updated"
	eventAssetReductionSet  = "rewards.asset.reduction_updated"
	eventAssetPaused        = "rewards.asset.paused"
	eventAssetResumed       = "rewards.asset.resumed"
	eventAssetRemoved       = "rewards.asset.removed"
	eventEarningsBooked     = "rewards.earnings.booked"
	eventClaimed            = "rewards.claimed"
	eventShortfall          = "rewards.claim.shortfall"
	eventPositionRegistered = "rewards.position.registered"
)

func attrAddress(a Address) string {
	return hex.EncodeToString(a[:])
}

func attrAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newAssetEvent(eventType string, token Address) *types.Event {
	return types.NewEvent(eventType).With("token", attrAddress(token))
}

func newEarningsBookedEvent(owner, token Address, market uint32, earned *big.Int) *types.Event {
	return types.NewEvent(eventEarningsBooked).
		With("owner", attrAddress(owner)).
		With("token", attrAddress(token)).
		With("market", strconv.FormatUint(uint64(market), 10)).
		With("earned", attrAmount(earned))
}

func newClaimedEvent(owner, token Address, paid *big.Int) *types.Event {
	return types.NewEvent(eventClaimed).
		With("owner", attrAddress(owner)).
		With("token", attrAddress(token)).
		With("paid", attrAmount(paid))
}

func newShortfallEvent(owner, token Address, outstanding *big.Int) *types.Event {
	return types.NewEvent(eventShortfall).
		With("owner", attrAddress(owner)).
		With("token", attrAddress(token)).
		With("outstanding", attrAmount(outstanding))
}

func newPositionRegisteredEvent(owner Address, market uint32, stake *big.Int, origin string) *types.Event {
	return types.NewEvent(eventPositionRegistered).
		With("owner", attrAddress(owner)).
		With("market", strconv.FormatUint(uint64(market), 10)).
		With("stake", attrAmount(stake)).
		With("origin", origin)
}

func newAssetRemovedEvent(token Address, surplus *big.Int) *types.Event {
	return newAssetEvent(eventAssetRemoved, token).With("surplus", attrAmount(surplus))
}
