package valuation

import "errors"

var (
	// ErrInvalidInput marks malformed position, pool or window data. It is
	// not worth retrying.
	ErrInvalidInput = errors.New("invalid valuation input")
	// ErrChainRead wraps failed reads the valuation cannot do without.
	ErrChainRead = errors.New("chain read failed")
	// ErrFeesUnavailable is logged, never returned, when the collect
	// simulation fails and fees are valued at zero.
	ErrFeesUnavailable = errors.New("fee simulation unavailable")
)
