package derive

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lightlink-network/ll-rollup-node/types"
)

var (
	TransactionDepositedEventABI     = "TransactionDeposited(address,address,uint256,uint256,bytes)"
	TransactionDepositedEventABIHash = crypto.Keccak256Hash([]byte(TransactionDepositedEventABI))

	WithdrawalInitiatedEventABI     = "WithdrawalInitiated(address,uint256,uint256,bytes)"
	WithdrawalInitiatedEventABIHash = crypto.Keccak256Hash([]byte(WithdrawalInitiatedEventABI))
)

// DepositEvent is a decoded TransactionDeposited log from the bridge portal.
// Layout: topic[1] = from, topic[2] = to (both right-aligned addresses),
// data = [amount: 32][gasLimit: 32][dataLength: 32][data: variable].
type DepositEvent struct {
	From          common.Address
	To            common.Address
	Amount        *big.Int
	GasLimit      uint64
	Data          []byte
	L1BlockNumber uint64
	L1BlockHash   common.Hash
	L1TxHash      common.Hash
	LogIndex      uint
}

// WithdrawalEvent is a decoded WithdrawalInitiated log from the L2 message
// passer. Layout: topic[1] = to, data as for deposits. The withdrawing sender is
// the transaction sender and is filled in by the caller from the enclosing tx.
type WithdrawalEvent struct {
	From          common.Address
	To            common.Address
	Amount        *big.Int
	GasLimit      uint64
	Data          []byte
	L2BlockNumber uint64
	L2TxHash      common.Hash
	LogIndex      uint
}

// ParseDepositLog decodes a TransactionDeposited log. Errors wrap
// ErrMalformedDepositLog so the deriver can abort without moving its watermark.
func ParseDepositLog(log *ethtypes.Log) (*DepositEvent, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("%w: expected 3 topics, got %d", ErrMalformedDepositLog, len(log.Topics))
	}
	if log.Topics[0] != TransactionDepositedEventABIHash {
		return nil, fmt.Errorf("%w: unexpected event signature %s", ErrMalformedDepositLog, log.Topics[0].Hex())
	}

	amount, gasLimit, data, err := parseEventData(log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDepositLog, err)
	}

	return &DepositEvent{
		From:          common.BytesToAddress(log.Topics[1].Bytes()),
		To:            common.BytesToAddress(log.Topics[2].Bytes()),
		Amount:        amount,
		GasLimit:      gasLimit,
		Data:          data,
		L1BlockNumber: log.BlockNumber,
		L1BlockHash:   log.BlockHash,
		L1TxHash:      log.TxHash,
		LogIndex:      log.Index,
	}, nil
}

// ParseWithdrawalLog decodes a WithdrawalInitiated log.
func ParseWithdrawalLog(log *ethtypes.Log, sender common.Address) (*WithdrawalEvent, error) {
	if len(log.Topics) != 2 {
		return nil, fmt.Errorf("withdrawal log: expected 2 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != WithdrawalInitiatedEventABIHash {
		return nil, fmt.Errorf("withdrawal log: unexpected event signature %s", log.Topics[0].Hex())
	}

	amount, gasLimit, data, err := parseEventData(log.Data)
	if err != nil {
		return nil, fmt.Errorf("withdrawal log: %w", err)
	}

	return &WithdrawalEvent{
		From:          sender,
		To:            common.BytesToAddress(log.Topics[1].Bytes()),
		Amount:        amount,
		GasLimit:      gasLimit,
		Data:          data,
		L2BlockNumber: log.BlockNumber,
		L2TxHash:      log.TxHash,
		LogIndex:      log.Index,
	}, nil
}

// parseEventData unpacks the shared [amount][gasLimit][dataLength][data] layout.
func parseEventData(data []byte) (*big.Int, uint64, []byte, error) {
	if len(data) < 96 {
		return nil, 0, nil, fmt.Errorf("event data too short: %d bytes", len(data))
	}

	amount := new(big.Int).SetBytes(data[0:32])

	gasLimit := new(big.Int).SetBytes(data[32:64])
	if !gasLimit.IsUint64() {
		return nil, 0, nil, fmt.Errorf("gas limit %s overflows uint64", gasLimit)
	}

	dataLen := new(big.Int).SetBytes(data[64:96])
	if !dataLen.IsUint64() || dataLen.Uint64() > uint64(len(data)-96) {
		return nil, 0, nil, fmt.Errorf("data length %s exceeds event payload", dataLen)
	}

	payload := make([]byte, dataLen.Uint64())
	copy(payload, data[96:96+dataLen.Uint64()])

	return amount, gasLimit.Uint64(), payload, nil
}

// ToDeposit converts the event into the deposit transaction the derived L2 block
// will carry. The source hash binds the deposit to its exact L1 provenance.
func (ev *DepositEvent) ToDeposit() *types.TxDeposit {
	to := ev.To
	return &types.TxDeposit{
		SourceHash: types.UserDepositSourceHash(ev.L1BlockHash, uint64(ev.LogIndex)),
		From:       ev.From,
		To:         &to,
		Mint:       new(big.Int).Set(ev.Amount),
		Value:      new(big.Int).Set(ev.Amount),
		GasLimit:   ev.GasLimit,
		IsSystem:   false,
		Input:      ev.Data,
	}
}

// ToWithdrawal converts the event into a withdrawal intent. The nonce is not
// part of the event payload, the caller assigns it from the pending set's
// insertion order.
func (ev *WithdrawalEvent) ToWithdrawal(nonce *big.Int) *types.WithdrawalTransaction {
	return &types.WithdrawalTransaction{
		Nonce:    nonce,
		Sender:   ev.From,
		Target:   ev.To,
		Value:    new(big.Int).Set(ev.Amount),
		GasLimit: new(big.Int).SetUint64(ev.GasLimit),
		Data:     ev.Data,
	}
}
