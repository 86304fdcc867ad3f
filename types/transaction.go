package types

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Source hash domains. Deposits are keyed by a domain-separated hash of their L1
// provenance so that a user deposit and a system deposit derived from the same L1
// block can never collide.
const (
	UserDepositSourceDomain uint64 = 0
	L1InfoSourceDomain      uint64 = 1
)

// Transaction is the closed set of transaction kinds the pool and deriver operate
// on. Only *TxDeposit and *RegularTx implement it; consumers branch exhaustively
// with a type switch.
type Transaction interface {
	txKind()
}

func (*TxDeposit) txKind() {}
func (*RegularTx) txKind() {}

// TxDeposit is a transaction minted on L2 from an L1 deposit. It is immutable once
// constructed: user deposits are decoded from bridge portal logs by the deriver,
// system deposits are synthesized by the deriver and carry the L1 attributes
// payload. Value is minted 1:1 against the funds locked on L1.
type TxDeposit struct {
	SourceHash common.Hash
	From       common.Address
	To         *common.Address // nil means contract creation
	Mint       *big.Int
	Value      *big.Int
	GasLimit   uint64
	IsSystem   bool
	Input      []byte
}

// RegularTx is a plain L2 transaction submitted through the mempool. It carries
// just enough for pool admission and L1 data-availability cost accounting.
type RegularTx struct {
	Nonce    uint64
	From     common.Address
	To       *common.Address `rlp:"nil"`
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

// Encode returns the RLP serialization of the transaction, the form whose bytes
// are posted to L1 and therefore the form the L1 data cost is measured over.
func (tx *RegularTx) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// Cost returns the L2 execution funds required by the transaction, excluding the
// L1 data fee: value + gasLimit * gasPrice.
func (tx *RegularTx) Cost() *big.Int {
	total := new(big.Int).Mul(tx.GasPrice, new(big.Int).SetUint64(tx.GasLimit))
	return total.Add(total, tx.Value)
}

// Matches reports whether a deposit observed on L1 corresponds to a deposit
// transaction included in an L2 block. Source hashes are not compared: the
// watcher matching an L1 event against L2 contents only knows the user-visible
// fields.
func (d *TxDeposit) Matches(from common.Address, to *common.Address, value *big.Int, gasLimit uint64, input []byte) bool {
	if d.From != from || d.GasLimit != gasLimit {
		return false
	}
	if (d.To == nil) != (to == nil) {
		return false
	}
	if d.To != nil && *d.To != *to {
		return false
	}
	if d.Value.Cmp(value) != 0 {
		return false
	}
	return bytes.Equal(d.Input, input)
}

// UserDepositSourceHash derives the source hash for a user deposit from the L1
// block it was logged in and the log's index within that block.
func UserDepositSourceHash(l1BlockHash common.Hash, logIndex uint64) common.Hash {
	return depositSourceHash(UserDepositSourceDomain, l1BlockHash, logIndex)
}

// L1InfoSourceHash derives the source hash for the system deposit of the L2 block
// with the given sequence number within its L1 origin.
func L1InfoSourceHash(l1BlockHash common.Hash, seqNumber uint64) common.Hash {
	return depositSourceHash(L1InfoSourceDomain, l1BlockHash, seqNumber)
}

func depositSourceHash(domain uint64, l1BlockHash common.Hash, n uint64) common.Hash {
	var input [64]byte
	copy(input[:32], l1BlockHash[:])
	binary.BigEndian.PutUint64(input[56:], n)
	depositID := crypto.Keccak256Hash(input[:])

	var outer [64]byte
	binary.BigEndian.PutUint64(outer[24:32], domain)
	copy(outer[32:], depositID[:])
	return crypto.Keccak256Hash(outer[:])
}
