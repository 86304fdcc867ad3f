package derive

import "errors"

var (
	// ErrL1BlockNotFound aborts a Derive call when a block in the requested range
	// cannot be fetched. The watermark is left untouched so the caller can retry
	// once the provider catches up.
	ErrL1BlockNotFound = errors.New("l1 block not found")

	// ErrMalformedDepositLog aborts a Derive call when a deposit event emitted by
	// the bridge portal cannot be decoded. Derivation is consensus-critical, a
	// log we cannot interpret must halt the watermark rather than be skipped.
	ErrMalformedDepositLog = errors.New("malformed deposit log")

	// ErrUnknownSource rejects a deposit whose source hash does not correspond to
	// any L1 block this deriver has processed.
	ErrUnknownSource = errors.New("unknown deposit source hash")

	// ErrGasLimitExceeded rejects a deposit above the configured gas ceiling.
	ErrGasLimitExceeded = errors.New("deposit gas limit exceeds ceiling")

	// ErrUnauthorizedSystemDeposit rejects a system-flagged deposit arriving via
	// an external submission path. Only the deriver constructs system deposits.
	ErrUnauthorizedSystemDeposit = errors.New("system deposit from external submission path")
)
