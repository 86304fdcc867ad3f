package types

// DepositStatus represents the different states a tracked L1 to L2 deposit can be in
type DepositStatus string

const (
	// DepositPending - Deposit has been observed on L1 and is awaiting a matching L2 transaction
	DepositPending DepositStatus = "PENDING"

	// DepositConfirmed - A matching deposit transaction has been observed in a derived L2 block
	DepositConfirmed DepositStatus = "CONFIRMED"

	// DepositNotFound - No matching L2 transaction appeared within the confirmation window.
	// This is an operator-visible terminal state, it is never retried automatically.
	DepositNotFound DepositStatus = "NOT_FOUND_ON_L2"
)

// WithdrawalStatus represents the different states a tracked L2 to L1 withdrawal can be in
type WithdrawalStatus string

const (
	// WithdrawalInitiated - Withdrawal event has been observed on L2
	WithdrawalInitiated WithdrawalStatus = "INITIATED"

	// WithdrawalProvable - Withdrawal is part of the current commitment and a proof can be generated
	WithdrawalProvable WithdrawalStatus = "PROVABLE"
)
