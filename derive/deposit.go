package derive

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lightlink-network/ll-rollup-node/chain"
	"github.com/lightlink-network/ll-rollup-node/types"
)

var (
	// L1AttributesDepositerAddress is the synthetic sender of every system
	// deposit.
	L1AttributesDepositerAddress = common.HexToAddress("0xDeaDDEaDDeAdDeAdDEAdDEaddeAddEAdDEAd0001")

	// L1AttributesAddress is the predeploy the system deposit calls on L2.
	L1AttributesAddress = common.HexToAddress("0x4200000000000000000000000000000000000015")
)

// SystemDepositGasLimit is the fixed gas allowance of the L1 attributes system
// deposit.
const SystemDepositGasLimit = 1_000_000

// DefaultMaxDepositGasLimit caps user deposit gas when no explicit ceiling is
// configured.
const DefaultMaxDepositGasLimit = 10_000_000

// DepositPolicy carries the validation parameters for externally observed
// deposits. AcceptSystem is true only when the deriver validates its own
// synthesized deposits; every external submission path leaves it false.
type DepositPolicy struct {
	MaxGasLimit  uint64
	AcceptSystem bool
	KnownSource  func(common.Hash) bool
}

// ValidateDeposit checks a deposit against the policy. Checks run in order:
// source provenance, gas ceiling, system authorization. Pure, no side effects.
func ValidateDeposit(dep *types.TxDeposit, policy DepositPolicy) error {
	if policy.KnownSource != nil && !policy.KnownSource(dep.SourceHash) {
		return ErrUnknownSource
	}

	max := policy.MaxGasLimit
	if max == 0 {
		max = DefaultMaxDepositGasLimit
	}
	if dep.GasLimit > max {
		return ErrGasLimitExceeded
	}

	if dep.IsSystem && !policy.AcceptSystem {
		return ErrUnauthorizedSystemDeposit
	}

	return nil
}

// L1InfoDeposit synthesizes the system deposit carrying the L1 block attributes.
// It mints nothing and transfers nothing, its input is the encoded attributes.
func L1InfoDeposit(block *chain.BlockView, seqNumber uint64, batcherHash, feeOverhead, feeScalar common.Hash) *types.TxDeposit {
	baseFee := block.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}

	attrs := &types.L1Attributes{
		Number:         block.Number,
		Time:           block.Time,
		BaseFee:        baseFee,
		BlockHash:      block.Hash,
		SequenceNumber: seqNumber,
		BatcherHash:    batcherHash,
		FeeOverhead:    feeOverhead,
		FeeScalar:      feeScalar,
	}

	to := L1AttributesAddress
	return &types.TxDeposit{
		SourceHash: types.L1InfoSourceHash(block.Hash, seqNumber),
		From:       L1AttributesDepositerAddress,
		To:         &to,
		Mint:       new(big.Int),
		Value:      new(big.Int),
		GasLimit:   SystemDepositGasLimit,
		IsSystem:   true,
		Input:      attrs.EncodeInput(),
	}
}
