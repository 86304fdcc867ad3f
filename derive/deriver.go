package derive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lightlink-network/ll-rollup-node/chain"
	"github.com/lightlink-network/ll-rollup-node/types"
)

// Cursor holds the deriver's watermarks. L1Head is the highest L1 block fully
// derived, SafeHead the highest finalized L1 block acknowledged, L2Head the
// number of the last produced L2 block. All three are monotone and
// SafeHead <= L1Head always.
type Cursor struct {
	L1Head   uint64
	SafeHead uint64
	L2Head   uint64
}

// DerivedBlock is a candidate L2 block computed from one L1 origin block. Txs[0]
// is always the system deposit; user deposits follow in L1 log order. The
// timestamp is inherited verbatim from the origin so any observer re-derives an
// identical chain.
type DerivedBlock struct {
	L2Number     uint64
	L1Origin     uint64
	L1OriginHash common.Hash
	Time         uint64
	Txs          []types.Transaction
}

// EmptyBlockPolicy decides whether an L1 block with no user deposits should
// still produce an (attributes-only) L2 block. Returning true skips the block.
// The predicate must be a pure function of the block or determinism breaks.
type EmptyBlockPolicy func(block *chain.BlockView) bool

// SkipEmptyOutsideInterval produces empty L2 blocks only for L1 origins at the
// given block interval, skipping depositless origins in between.
func SkipEmptyOutsideInterval(interval uint64) EmptyBlockPolicy {
	return func(block *chain.BlockView) bool {
		return interval > 0 && block.Number%interval != 0
	}
}

// Deriver deterministically computes the canonical L2 block sequence from L1
// chain contents. It is logically single-threaded: blocks are processed in
// strictly ascending order and the watermark only moves after a whole range has
// been derived. Concurrent readers may inspect the cursor, the deriver is the
// cursor's only writer.
type Deriver struct {
	l1            chain.Provider
	portalAddress common.Address
	batcherHash   common.Hash
	feeOverhead   common.Hash
	feeScalar     common.Hash
	maxDepositGas uint64
	skipEmpty     EmptyBlockPolicy
	logger        *slog.Logger

	mu       sync.Mutex
	cursor   Cursor
	retained []*DerivedBlock
	sources  map[common.Hash]struct{}
}

type DeriverOpts struct {
	L1            chain.Provider
	PortalAddress common.Address

	// System attributes parameters. Sourcing these from an on-chain system
	// config read is an external concern, they arrive via configuration.
	BatcherHash common.Hash
	FeeOverhead common.Hash
	FeeScalar   common.Hash

	MaxDepositGasLimit uint64
	StartL1Block       uint64
	StartL2Block       uint64
	SkipEmpty          EmptyBlockPolicy
	Logger             *slog.Logger
}

func NewDeriver(opts DeriverOpts) *Deriver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxDepositGasLimit == 0 {
		opts.MaxDepositGasLimit = DefaultMaxDepositGasLimit
	}

	return &Deriver{
		l1:            opts.L1,
		portalAddress: opts.PortalAddress,
		batcherHash:   opts.BatcherHash,
		feeOverhead:   opts.FeeOverhead,
		feeScalar:     opts.FeeScalar,
		maxDepositGas: opts.MaxDepositGasLimit,
		skipEmpty:     opts.SkipEmpty,
		logger:        opts.Logger,
		cursor: Cursor{
			L1Head:   opts.StartL1Block,
			SafeHead: opts.StartL1Block,
			L2Head:   opts.StartL2Block,
		},
		sources: make(map[common.Hash]struct{}),
	}
}

// Cursor returns a snapshot of the watermarks.
func (d *Deriver) Cursor() Cursor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// HasSource reports whether the source hash belongs to a deposit this deriver
// has produced.
func (d *Deriver) HasSource(sourceHash common.Hash) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sources[sourceHash]
	return ok
}

// Policy returns the validation policy for externally submitted deposits.
func (d *Deriver) Policy() DepositPolicy {
	return DepositPolicy{
		MaxGasLimit:  d.maxDepositGas,
		AcceptSystem: false,
		KnownSource:  d.HasSource,
	}
}

// Derive processes every L1 block in (l1Head, target] in ascending order and
// returns the resulting L2 blocks. On any failure it returns with the watermark
// unmoved, no partially derived range is ever committed. Re-running over the
// same L1 contents reproduces a byte-identical block sequence.
func (d *Deriver) Derive(ctx context.Context, target uint64) ([]*DerivedBlock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if target <= d.cursor.L1Head {
		return nil, nil
	}

	var (
		blocks   []*DerivedBlock
		l2Number = d.cursor.L2Head
		sources  []common.Hash
	)

	for number := d.cursor.L1Head + 1; number <= target; number++ {
		block, err := d.l1.BlockByNumber(ctx, number)
		if err != nil {
			if errors.Is(err, chain.ErrBlockNotFound) {
				return nil, fmt.Errorf("%w: block %d", ErrL1BlockNotFound, number)
			}
			return nil, fmt.Errorf("failed to fetch l1 block %d: %w", number, err)
		}

		deposits, err := d.extractDeposits(ctx, block)
		if err != nil {
			return nil, err
		}

		if len(deposits) == 0 && d.skipEmpty != nil && d.skipEmpty(block) {
			continue
		}

		// One L2 block per L1 origin, so the sequence number within the
		// origin is always zero.
		const seqNumber = 0
		systemDeposit := L1InfoDeposit(block, seqNumber, d.batcherHash, d.feeOverhead, d.feeScalar)

		txs := make([]types.Transaction, 0, len(deposits)+1)
		txs = append(txs, types.Transaction(systemDeposit))
		sources = append(sources, systemDeposit.SourceHash)
		for _, dep := range deposits {
			txs = append(txs, types.Transaction(dep))
			sources = append(sources, dep.SourceHash)
		}

		l2Number++
		blocks = append(blocks, &DerivedBlock{
			L2Number:     l2Number,
			L1Origin:     block.Number,
			L1OriginHash: block.Hash,
			Time:         block.Time,
			Txs:          txs,
		})
	}

	// The whole range derived cleanly, commit the watermark.
	for _, src := range sources {
		d.sources[src] = struct{}{}
	}
	d.retained = append(d.retained, blocks...)
	d.cursor.L1Head = target
	d.cursor.L2Head = l2Number

	d.logger.Debug("derived l2 blocks",
		"l1Head", d.cursor.L1Head,
		"l2Head", d.cursor.L2Head,
		"produced", len(blocks))

	return blocks, nil
}

// extractDeposits scans the block's portal-addressed transactions and decodes
// every deposit event, preserving the order logs appeared within the block.
func (d *Deriver) extractDeposits(ctx context.Context, block *chain.BlockView) ([]*types.TxDeposit, error) {
	var deposits []*types.TxDeposit

	for _, tx := range block.Txs {
		if tx.To == nil || *tx.To != d.portalAddress {
			continue
		}

		receipt, err := d.l1.ReceiptByHash(ctx, tx.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch receipt for %s: %w", tx.Hash.Hex(), err)
		}

		for _, log := range receipt.Logs {
			if log.Address != d.portalAddress || len(log.Topics) == 0 || log.Topics[0] != TransactionDepositedEventABIHash {
				continue
			}

			ev, err := ParseDepositLog(log)
			if err != nil {
				return nil, err
			}
			// The provider's log metadata may lack the enclosing block hash
			// depending on how the receipt was fetched. The deriver knows it.
			ev.L1BlockHash = block.Hash
			ev.L1BlockNumber = block.Number

			deposits = append(deposits, ev.ToDeposit())
		}
	}

	return deposits, nil
}

// UpdateSafeHead acknowledges that L1 has finalized up to the given block. It
// never fails: non-increasing values are a no-op and the safe head is clamped to
// the derived head. Retained blocks whose origin is now irreversible are pruned.
func (d *Deriver) UpdateSafeHead(finalized uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if finalized <= d.cursor.SafeHead {
		return
	}
	if finalized > d.cursor.L1Head {
		finalized = d.cursor.L1Head
	}
	d.cursor.SafeHead = finalized

	kept := d.retained[:0]
	for _, block := range d.retained {
		if block.L1Origin > d.cursor.SafeHead {
			kept = append(kept, block)
		}
	}
	d.retained = kept
}

// Retained returns the derived blocks whose L1 origin is not yet finalized.
func (d *Deriver) Retained() []*DerivedBlock {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*DerivedBlock, len(d.retained))
	copy(out, d.retained)
	return out
}
