package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// MemoryProvider is an in-memory Provider used by tests and local tooling. It is
// safe for concurrent use.
type MemoryProvider struct {
	mu       sync.RWMutex
	blocks   map[uint64]*BlockView
	receipts map[common.Hash]*ethtypes.Receipt
	latest   uint64
}

var _ Provider = &MemoryProvider{}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		blocks:   make(map[uint64]*BlockView),
		receipts: make(map[common.Hash]*ethtypes.Receipt),
	}
}

// AddBlock registers a block and advances the latest head if needed.
func (p *MemoryProvider) AddBlock(block *BlockView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocks[block.Number] = block
	if block.Number > p.latest {
		p.latest = block.Number
	}
}

// AddReceipt registers the receipt for a transaction hash.
func (p *MemoryProvider) AddReceipt(txHash common.Hash, receipt *ethtypes.Receipt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts[txHash] = receipt
}

// RemoveBlock drops a block, simulating a pruned or reorganized chain segment.
func (p *MemoryProvider) RemoveBlock(number uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.blocks, number)
}

func (p *MemoryProvider) BlockByNumber(ctx context.Context, number uint64) (*BlockView, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	block, ok := p.blocks[number]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return block, nil
}

func (p *MemoryProvider) ReceiptByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	receipt, ok := p.receipts[txHash]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return receipt, nil
}

func (p *MemoryProvider) LatestBlockNumber(ctx context.Context) (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, nil
}
