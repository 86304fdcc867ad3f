package monitor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lightlink-network/ll-rollup-node/chain"
	"github.com/lightlink-network/ll-rollup-node/database/models"
	"github.com/lightlink-network/ll-rollup-node/types"
	"github.com/lightlink-network/ll-rollup-node/withdrawals"
)

// ErrDepositNotFoundOnL2 is surfaced when a deposit observed on L1 never
// appeared on L2 within the confirmation window. A persistent mismatch points at
// a derivation bug or censorship rather than transient delay, so it is reported
// once and never silently retried.
var ErrDepositNotFoundOnL2 = errors.New("deposit not found on l2 within confirmation window")

// Store is the persistence the monitor needs: watermark cursors that only
// advance after a fully processed batch, plus deposit/withdrawal records.
// Implemented by database.Database; tests substitute an in-memory store.
type Store interface {
	GetLastProcessedBlock(ctx context.Context, chain string) (uint64, error)
	SetLastProcessedBlock(ctx context.Context, chain string, blockNumber uint64) error
	CreateDeposit(ctx context.Context, deposit models.Deposit) (bool, error)
	UpdateDepositStatus(ctx context.Context, sourceHash string, status string, l2TxHash string) error
	GetDepositsByStatus(ctx context.Context, status string) ([]models.Deposit, error)
	CreateWithdrawal(ctx context.Context, withdrawal models.Withdrawal) (bool, error)
	HasWithdrawalEvent(ctx context.Context, l2TxHash string, logIndex uint) (bool, error)
	GetWithdrawalsInOrder(ctx context.Context) ([]models.Withdrawal, error)
}

// DepositAlert is the operator-visible report for a deposit that timed out
// waiting for its L2 counterpart.
type DepositAlert struct {
	SourceHash    common.Hash
	From          common.Address
	To            common.Address
	Value         *big.Int
	L1BlockNumber uint64
}

// Monitor reconciles the two chains: one loop confirms that L1 deposits land on
// L2 within a bound, the other extracts withdrawal initiations from L2 blocks
// and feeds them to the proof engine's pending set. The loops run concurrently
// but each owns its own watermark, no cursor has two writers.
type Monitor struct {
	l1      chain.Provider
	l2      chain.Provider
	store   Store
	pending *withdrawals.PendingSet
	logger  *slog.Logger
	opts    MonitorOpts
	alerts  chan DepositAlert
}

type MonitorOpts struct {
	L1      chain.Provider
	L2      chain.Provider
	Store   Store
	Pending *withdrawals.PendingSet

	PortalAddress        common.Address
	MessagePasserAddress common.Address

	// Poll intervals are tied to the respective chain's block time.
	L1PollInterval time.Duration
	L2PollInterval time.Duration

	// ConfirmTimeout bounds the wait for a deposit's L2 counterpart;
	// ConfirmPollInterval is the re-check cadence within that budget.
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration

	// ConfirmLookback is how many recent L2 blocks the confirmation search
	// starts behind the head, covering deposits that landed before the watch
	// loop observed them on L1.
	ConfirmLookback uint64

	MinBatchSize uint64
	MaxBatchSize uint64

	L1StartBlock uint64
	L2StartBlock uint64

	Logger *slog.Logger
}

func NewMonitor(opts MonitorOpts) (*Monitor, error) {
	if opts.L1 == nil || opts.L2 == nil {
		return nil, fmt.Errorf("monitor requires both chain providers")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("monitor requires a store")
	}
	if opts.Pending == nil {
		opts.Pending = withdrawals.NewPendingSet()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.L1PollInterval == 0 {
		opts.L1PollInterval = 12 * time.Second
	}
	if opts.L2PollInterval == 0 {
		opts.L2PollInterval = 2 * time.Second
	}
	if opts.ConfirmTimeout == 0 {
		opts.ConfirmTimeout = 2 * time.Minute
	}
	if opts.ConfirmPollInterval == 0 {
		opts.ConfirmPollInterval = 2 * time.Second
	}
	if opts.ConfirmLookback == 0 {
		opts.ConfirmLookback = 100
	}
	if opts.MinBatchSize == 0 {
		opts.MinBatchSize = 1
	}
	if opts.MaxBatchSize == 0 {
		opts.MaxBatchSize = 1000
	}

	return &Monitor{
		l1:      opts.L1,
		l2:      opts.L2,
		store:   opts.Store,
		pending: opts.Pending,
		logger:  opts.Logger,
		opts:    opts,
		alerts:  make(chan DepositAlert, 64),
	}, nil
}

// Pending returns the withdrawal pending set the monitor feeds.
func (m *Monitor) Pending() *withdrawals.PendingSet {
	return m.pending
}

// Alerts delivers deposit timeout reports. The channel is buffered; if nobody
// drains it the alert is still recorded in the store and the log.
func (m *Monitor) Alerts() <-chan DepositAlert {
	return m.alerts
}

// Run restores the pending withdrawal set and the open deposit confirmation
// waits from the store, then starts both watch loops, returning when the
// context is cancelled or a loop fails.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.restorePending(ctx); err != nil {
		return fmt.Errorf("failed to restore pending withdrawals: %w", err)
	}
	if err := m.resumeDepositConfirmations(ctx); err != nil {
		return fmt.Errorf("failed to resume deposit confirmations: %w", err)
	}

	errChan := make(chan error, 2)

	go func() {
		errChan <- m.watchDeposits(ctx)
	}()

	go func() {
		errChan <- m.watchWithdrawals(ctx)
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errChan; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// restorePending rebuilds the withdrawal commitment from stored records in
// nonce order, so proofs survive a restart with the same root.
func (m *Monitor) restorePending(ctx context.Context) error {
	records, err := m.store.GetWithdrawalsInOrder(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		value, ok := new(big.Int).SetString(rec.Value, 10)
		if !ok {
			return fmt.Errorf("invalid stored withdrawal value %q", rec.Value)
		}
		data, err := hex.DecodeString(rec.Data)
		if err != nil {
			return fmt.Errorf("invalid stored withdrawal data: %w", err)
		}

		w := &types.WithdrawalTransaction{
			Nonce:    new(big.Int).SetUint64(rec.Nonce),
			Sender:   common.HexToAddress(rec.Sender),
			Target:   common.HexToAddress(rec.Target),
			Value:    value,
			GasLimit: new(big.Int).SetUint64(rec.GasLimit),
			Data:     data,
		}
		if _, err := m.pending.Append(w); err != nil {
			return err
		}
	}

	if len(records) > 0 {
		m.logger.Info("restored pending withdrawals",
			"count", len(records),
			"root", m.pending.Root().Hex())
	}

	return nil
}
