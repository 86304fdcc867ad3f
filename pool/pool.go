package pool

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lightlink-network/ll-rollup-node/derive"
	"github.com/lightlink-network/ll-rollup-node/types"
)

var oneMillion = big.NewInt(1_000_000)

// BalanceReader supplies sender balances for admission checks. Implemented by
// the external execution engine's state access.
type BalanceReader interface {
	Balance(addr common.Address) *big.Int
}

// RegularSelector is the external fee-market selection logic. It receives the
// gas budget left after deposits and returns a best-effort transaction list.
type RegularSelector interface {
	Select(gasBudget uint64, baseFee *big.Int) []*types.RegularTx
}

// Pool orders cross-chain deposits ahead of regular transactions when building
// an L2 block and charges regular transactions their L1 data-posting cost.
type Pool struct {
	policy   derive.DepositPolicy
	oracle   *L1GasOracle
	balances BalanceReader
	selector RegularSelector
	logger   *slog.Logger

	mu       sync.Mutex
	deposits []*types.TxDeposit
}

type PoolOpts struct {
	// Policy validates deposits at enqueue time and again at block build time.
	// AcceptSystem must be false: the pool is an external submission path.
	Policy   derive.DepositPolicy
	Oracle   *L1GasOracle
	Balances BalanceReader
	Selector RegularSelector
	Logger   *slog.Logger
}

func NewPool(opts PoolOpts) *Pool {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Policy.AcceptSystem = false

	return &Pool{
		policy:   opts.Policy,
		oracle:   opts.Oracle,
		balances: opts.Balances,
		selector: opts.Selector,
		logger:   opts.Logger,
	}
}

// AddDeposit enqueues a deposit for inclusion in the next built block. Deposits
// are validated on arrival; system-flagged deposits always fail here since this
// is an external path.
func (p *Pool) AddDeposit(dep *types.TxDeposit) error {
	if err := derive.ValidateDeposit(dep, p.policy); err != nil {
		return fmt.Errorf("deposit rejected: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.deposits = append(p.deposits, dep)
	return nil
}

// DepositCount returns the number of queued deposits.
func (p *Pool) DepositCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deposits)
}

// BuildBlock drains the deposit queue in FIFO order and fills the remaining gas
// budget with regular transactions from the selector. Deposits are revalidated
// against the current environment and silently dropped when stale, a single bad
// deposit never fails the block. Deposits are never capped by the block gas
// limit: L1 already committed to them, so they are included even when their gas
// sum exceeds the limit, in which case no regular transactions are added.
func (p *Pool) BuildBlock(gasLimit uint64, baseFee *big.Int) []types.Transaction {
	p.mu.Lock()
	queued := p.deposits
	p.deposits = nil
	p.mu.Unlock()

	var (
		txs        []types.Transaction
		depositGas uint64
	)

	for _, dep := range queued {
		if err := derive.ValidateDeposit(dep, p.policy); err != nil {
			p.logger.Warn("dropping stale deposit",
				"sourceHash", dep.SourceHash.Hex(),
				"error", err)
			continue
		}
		txs = append(txs, dep)
		depositGas += dep.GasLimit
	}

	var budget uint64
	if depositGas < gasLimit {
		budget = gasLimit - depositGas
	}

	if p.selector != nil && budget > 0 {
		for _, tx := range p.selector.Select(budget, baseFee) {
			txs = append(txs, tx)
		}
	}

	return txs
}

// CalculateL1GasCost returns the L1 data-availability fee for a transaction.
// Deposits always cost zero, their data was already paid for on L1. Regular
// transactions are charged per byte of their serialized form:
// (zeroes*4 + ones*16 + overhead) * l1BaseFee * scalar / 1e6.
func (p *Pool) CalculateL1GasCost(tx types.Transaction) (*big.Int, error) {
	switch tx := tx.(type) {
	case *types.TxDeposit:
		return new(big.Int), nil
	case *types.RegularTx:
		encoded, err := tx.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode transaction: %w", err)
		}

		var zeroes, ones uint64
		for _, b := range encoded {
			if b == 0 {
				zeroes++
			} else {
				ones++
			}
		}

		l1BaseFee, overhead, scalar, _ := p.oracle.Snapshot()

		dataGas := new(big.Int).SetUint64(zeroes*4 + ones*16)
		dataGas.Add(dataGas, overhead)
		cost := dataGas.Mul(dataGas, l1BaseFee)
		cost.Mul(cost, scalar)
		return cost.Div(cost, oneMillion), nil
	default:
		return nil, fmt.Errorf("unknown transaction kind %T", tx)
	}
}

// ValidateTransaction admits a regular transaction: the sender must cover
// value + gasLimit*gasPrice plus the current L1 data fee.
func (p *Pool) ValidateTransaction(tx *types.RegularTx) error {
	if tx.Value.Sign() < 0 {
		return fmt.Errorf("negative value")
	}

	l1Cost, err := p.CalculateL1GasCost(tx)
	if err != nil {
		return err
	}

	required := new(big.Int).Add(tx.Cost(), l1Cost)
	available := p.balances.Balance(tx.From)
	if available.Cmp(required) < 0 {
		return &InsufficientFundsError{
			Available: new(big.Int).Set(available),
			Required:  required,
		}
	}

	return nil
}
