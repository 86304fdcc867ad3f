package pool

import (
	"math/big"
	"sync"

	"github.com/lightlink-network/ll-rollup-node/chain"
)

// L1GasOracle tracks the L1 fee parameters used to price data availability for
// regular transactions. The base fee is refreshed once per observed L1 block,
// reads between updates see the previous block's value, which is acceptable:
// the pool is eventually consistent with L1 bounded by the L1 block interval.
type L1GasOracle struct {
	mu         sync.RWMutex
	l1BaseFee  *big.Int
	overhead   *big.Int
	scalar     *big.Int
	lastUpdate uint64
}

func NewL1GasOracle(overhead, scalar *big.Int) *L1GasOracle {
	return &L1GasOracle{
		l1BaseFee: new(big.Int),
		overhead:  new(big.Int).Set(overhead),
		scalar:    new(big.Int).Set(scalar),
	}
}

// Update refreshes the tracked base fee from a newly observed L1 block. Blocks
// at or below the last update height are ignored, so replayed observations are
// harmless.
func (o *L1GasOracle) Update(block *chain.BlockView) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if block.Number <= o.lastUpdate && o.lastUpdate != 0 {
		return
	}
	if block.BaseFee != nil {
		o.l1BaseFee = new(big.Int).Set(block.BaseFee)
	}
	o.lastUpdate = block.Number
}

// SetParams replaces the fee constants, e.g. after a system config change.
func (o *L1GasOracle) SetParams(overhead, scalar *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.overhead = new(big.Int).Set(overhead)
	o.scalar = new(big.Int).Set(scalar)
}

// Snapshot returns a consistent view of the oracle state.
func (o *L1GasOracle) Snapshot() (l1BaseFee, overhead, scalar *big.Int, lastUpdate uint64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return new(big.Int).Set(o.l1BaseFee), new(big.Int).Set(o.overhead), new(big.Int).Set(o.scalar), o.lastUpdate
}
