package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// WithdrawalTransaction is an L2 to L1 withdrawal intent as passed to the message
// passer on L2. Nonce uniqueness per sender is the submitter's responsibility,
// two withdrawals with identical fields and nonce hash identically.
type WithdrawalTransaction struct {
	Nonce    *big.Int
	Sender   common.Address
	Target   common.Address
	Value    *big.Int
	GasLimit *big.Int
	Data     []byte
}

var withdrawalArguments = func() abi.Arguments {
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	bytesType, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "nonce", Type: uint256Type},
		{Name: "sender", Type: addressType},
		{Name: "target", Type: addressType},
		{Name: "value", Type: uint256Type},
		{Name: "gasLimit", Type: uint256Type},
		{Name: "data", Type: bytesType},
	}
}()

// Hash returns the withdrawal hash: keccak256 over the ABI encoding of the
// ordered (nonce, sender, target, value, gasLimit, data) tuple. This is the leaf
// value committed to by the withdrawal Merkle tree and the key the L1 portal
// tracks proven withdrawals by.
func (w *WithdrawalTransaction) Hash() (common.Hash, error) {
	packed, err := withdrawalArguments.Pack(w.Nonce, w.Sender, w.Target, w.Value, w.GasLimit, w.Data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack withdrawal: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}
