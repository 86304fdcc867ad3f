package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ErrBlockNotFound is returned by providers when the requested block number is
// beyond the chain head or has been pruned.
var ErrBlockNotFound = errors.New("block not found")

// Provider is the read-only chain access capability. Both L1 and L2 are consumed
// through this same shape, so the deriver and the monitor never care which side
// of the bridge a client points at, and tests can substitute an in-memory fake.
type Provider interface {
	BlockByNumber(ctx context.Context, number uint64) (*BlockView, error)
	ReceiptByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// BlockView is the slice of a block the rollup core reads: header fields that
// feed the L1 attributes and the transaction list that carries deposit traffic.
type BlockView struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Time       uint64
	BaseFee    *big.Int
	Txs        []TxView
}

// TxView is the portion of a transaction relevant to bridge processing.
// IsDeposit marks L2 deposit-type transactions so the monitor can match them
// against deposits observed on L1.
type TxView struct {
	Hash      common.Hash
	From      common.Address
	To        *common.Address
	Value     *big.Int
	GasLimit  uint64
	Input     []byte
	IsDeposit bool
}
