package rewards

import "errors"

var (
	ErrNilState               = errors.New("rewards: state not configured")
	ErrNilStakeSource         = errors.New("rewards: stake source not configured")
	ErrNilEscrow              = errors.New("rewards: escrow not configured")
	ErrUnauthorized           = errors.New("rewards: unauthorized")
	ErrZeroAddress            = errors.New("rewards: zero address")
	ErrAssetExists            = errors.New("rewards: reward asset already registered")
	ErrAssetNotFound          = errors.New("rewards: reward asset not found")
	ErrAssetRemoved           = errors.New("rewards: reward asset removed")
	ErrMarketIndexInvalid     = errors.New("rewards: market index out of range")
	ErrInvalidWeightTable     = errors.New("rewards: weight table invalid")
	ErrNotStarted             = errors.New("rewards: market accrual not initialised")
	ErrPositionMismatch       = errors.New("rewards: recorded stake out of sync with stake source")
	ErrAlreadyRegistered      = errors.New("rewards: position already registered")
	ErrInvalidRate            = errors.New("rewards: emission rate must be positive")
	ErrInvalidReductionFactor = errors.New("rewards: reduction factor must be at least one")
	ErrInvalidBonusParams     = errors.New("rewards: bonus parameters out of range")
)
