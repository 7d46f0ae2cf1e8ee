package domain

import "errors"

var (
	// Authorization errors. Surfaced to the caller, never retried, no
	// state change occurs.
	ErrNotAuthorized     = errors.New("caller is not the governor")
	ErrZeroAddress       = errors.New("zero address")
	ErrTooEarly          = errors.New("governance transfer delay has not elapsed")
	ErrNoPendingGovernor = errors.New("no pending governor")

	// Input errors. Rejected atomically, no partial mutation.
	ErrLengthMismatch  = errors.New("array length mismatch")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrUnknownFeed     = errors.New("no price feed registered for token")
	ErrUnknownQuoter   = errors.New("no quoter registered for pool type")
	ErrUnknownRouter   = errors.New("no router registered for pool")
	ErrBadPayload      = errors.New("malformed perform payload")

	// Staleness: treated as "insufficient information" during the
	// decision phase, not as a hard failure.
	ErrStalePrice   = errors.New("oracle price is stale")
	ErrStalePayload = errors.New("perform payload is stale")

	// Economic non-events: recoverable, the execution phase exits
	// cleanly with no reserve mutation.
	ErrJobNotFound        = errors.New("job not found")
	ErrJobInactive        = errors.New("job is not active")
	ErrNoLongerProfitable = errors.New("rebalance is no longer profitable")
	ErrNotPairManager     = errors.New("arbiter is not the pair manager")

	// Execution failures: fatal to the attempt, rolled back atomically.
	ErrSwapFailed         = errors.New("swap execution failed")
	ErrInsufficientOutput = errors.New("swap output below minimum")
	ErrLockHeld           = errors.New("lock already held")
	ErrNotFound           = errors.New("not found")
)
