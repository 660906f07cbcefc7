package ledger

import "errors"

// Public, stable causes. They are wrapped in fault kinds and their text reaches callers.
var (
	ErrUnknownCostume     = errors.New("unknown costume")
	ErrUnknownAchievement = errors.New("unknown achievement")
	ErrInsufficientFunds  = errors.New("costume is too expensive")
	ErrNotOwned           = errors.New("costume not unlocked")
	ErrNegativeStars      = errors.New("num_stars must be non-negative")

	ErrAccountNotFound = errors.New("account not found")
	ErrAccountVanished = errors.New("account vanished")
	ErrRetiredItem     = errors.New("owned item is no longer in the catalog")

	ErrDeleteIncomplete = errors.New("account deletion incomplete")
)
