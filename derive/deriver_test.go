package derive

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightlink-network/ll-rollup-node/chain"
	"github.com/lightlink-network/ll-rollup-node/types"
)

var (
	testPortal = common.HexToAddress("0x00000000000000000000000000000000000000FF")
	addrA      = common.HexToAddress("0x000000000000000000000000000000000000000A")
	addrB      = common.HexToAddress("0x000000000000000000000000000000000000000B")
)

func eventData(amount *big.Int, gasLimit uint64, payload []byte) []byte {
	data := make([]byte, 96+len(payload))
	amount.FillBytes(data[0:32])
	new(big.Int).SetUint64(gasLimit).FillBytes(data[32:64])
	new(big.Int).SetUint64(uint64(len(payload))).FillBytes(data[64:96])
	copy(data[96:], payload)
	return data
}

func depositLog(from, to common.Address, amount *big.Int, gasLimit uint64, payload []byte, index uint) *ethtypes.Log {
	return &ethtypes.Log{
		Address: testPortal,
		Topics: []common.Hash{
			TransactionDepositedEventABIHash,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:  eventData(amount, gasLimit, payload),
		Index: index,
	}
}

func blockHash(number uint64) common.Hash {
	return crypto.Keccak256Hash(new(big.Int).SetUint64(number).Bytes())
}

// addL1Block registers an L1 block whose single portal transaction carries the
// given deposit logs.
func addL1Block(p *chain.MemoryProvider, number uint64, logs ...*ethtypes.Log) *chain.BlockView {
	block := &chain.BlockView{
		Number:     number,
		Hash:       blockHash(number),
		ParentHash: blockHash(number - 1),
		Time:       1700000000 + number*12,
		BaseFee:    big.NewInt(1_000_000_000),
	}

	if len(logs) > 0 {
		to := testPortal
		txHash := crypto.Keccak256Hash(block.Hash[:], []byte("portal-tx"))
		block.Txs = append(block.Txs, chain.TxView{
			Hash:  txHash,
			From:  addrA,
			To:    &to,
			Value: new(big.Int),
		})
		p.AddReceipt(txHash, &ethtypes.Receipt{Logs: logs})
	}

	p.AddBlock(block)
	return block
}

func newTestDeriver(p *chain.MemoryProvider, startL1 uint64) *Deriver {
	return NewDeriver(DeriverOpts{
		L1:            p,
		PortalAddress: testPortal,
		BatcherHash:   common.HexToHash("0x01"),
		FeeOverhead:   common.BigToHash(big.NewInt(188)),
		FeeScalar:     common.BigToHash(big.NewInt(684000)),
		StartL1Block:  startL1,
	})
}

func TestDeriveSingleDeposit(t *testing.T) {
	p := chain.NewMemoryProvider()
	block := addL1Block(p, 100, depositLog(addrA, addrB, big.NewInt(5e18), 100_000, nil, 0))

	d := newTestDeriver(p, 99)
	blocks, err := d.Derive(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	derived := blocks[0]
	assert.Equal(t, uint64(100), derived.L1Origin)
	assert.Equal(t, block.Hash, derived.L1OriginHash)
	assert.Equal(t, block.Time, derived.Time, "l2 timestamp is inherited from the l1 origin")
	require.Len(t, derived.Txs, 2)

	system, ok := derived.Txs[0].(*types.TxDeposit)
	require.True(t, ok)
	assert.True(t, system.IsSystem)

	user, ok := derived.Txs[1].(*types.TxDeposit)
	require.True(t, ok)
	assert.False(t, user.IsSystem)
	assert.Equal(t, addrA, user.From)
	require.NotNil(t, user.To)
	assert.Equal(t, addrB, *user.To)
	assert.Equal(t, big.NewInt(5e18), user.Value)
	assert.Equal(t, big.NewInt(5e18), user.Mint)
	assert.Equal(t, uint64(100_000), user.GasLimit)

	cursor := d.Cursor()
	assert.Equal(t, uint64(100), cursor.L1Head)
	assert.Equal(t, uint64(1), cursor.L2Head)
}

func TestDeriveSystemDepositAttributes(t *testing.T) {
	p := chain.NewMemoryProvider()
	block := addL1Block(p, 10, depositLog(addrA, addrB, big.NewInt(1), 50_000, nil, 0))

	d := newTestDeriver(p, 9)
	blocks, err := d.Derive(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	system := blocks[0].Txs[0].(*types.TxDeposit)
	require.True(t, system.IsSystem)
	require.NotNil(t, system.To)
	assert.Equal(t, L1AttributesAddress, *system.To)
	assert.Equal(t, L1AttributesDepositerAddress, system.From)

	attrs, err := types.ParseL1Attributes(system.Input)
	require.NoError(t, err)
	assert.Equal(t, block.Number, attrs.Number)
	assert.Equal(t, block.Time, attrs.Time)
	assert.Equal(t, block.BaseFee, attrs.BaseFee)
	assert.Equal(t, block.Hash, attrs.BlockHash)
	assert.Equal(t, uint64(0), attrs.SequenceNumber)
}

func TestDeriveDeterminism(t *testing.T) {
	p := chain.NewMemoryProvider()
	addL1Block(p, 1, depositLog(addrA, addrB, big.NewInt(10), 60_000, []byte{0xde, 0xad}, 0))
	addL1Block(p, 2)
	addL1Block(p, 3,
		depositLog(addrB, addrA, big.NewInt(20), 70_000, nil, 0),
		depositLog(addrA, addrB, big.NewInt(30), 80_000, nil, 1),
	)

	first := newTestDeriver(p, 0)
	second := newTestDeriver(p, 0)

	blocksA, err := first.Derive(context.Background(), 3)
	require.NoError(t, err)
	blocksB, err := second.Derive(context.Background(), 3)
	require.NoError(t, err)

	require.Equal(t, blocksA, blocksB, "two derivers over the same l1 contents must agree byte for byte")
}

func TestDeriveEmptyBlockStillHasSystemDeposit(t *testing.T) {
	p := chain.NewMemoryProvider()
	addL1Block(p, 1)

	d := newTestDeriver(p, 0)
	blocks, err := d.Derive(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Txs, 1)
	assert.True(t, blocks[0].Txs[0].(*types.TxDeposit).IsSystem)
}

func TestDeriveSkipEmptyPolicy(t *testing.T) {
	p := chain.NewMemoryProvider()
	addL1Block(p, 1)
	addL1Block(p, 2, depositLog(addrA, addrB, big.NewInt(1), 50_000, nil, 0))
	addL1Block(p, 3)
	addL1Block(p, 4)

	d := NewDeriver(DeriverOpts{
		L1:            p,
		PortalAddress: testPortal,
		SkipEmpty:     SkipEmptyOutsideInterval(4),
	})

	blocks, err := d.Derive(context.Background(), 4)
	require.NoError(t, err)

	// block 1 and 3 skipped (empty, off-interval); block 2 has a deposit,
	// block 4 is on the interval
	require.Len(t, blocks, 2)
	assert.Equal(t, uint64(2), blocks[0].L1Origin)
	assert.Equal(t, uint64(4), blocks[1].L1Origin)
	assert.Equal(t, uint64(1), blocks[0].L2Number)
	assert.Equal(t, uint64(2), blocks[1].L2Number)
}

func TestDeriveDepositOrderPreserved(t *testing.T) {
	p := chain.NewMemoryProvider()
	addL1Block(p, 1,
		depositLog(addrB, addrA, big.NewInt(111), 50_000, nil, 0),
		depositLog(addrA, addrB, big.NewInt(222), 60_000, nil, 1),
		depositLog(addrB, addrB, big.NewInt(333), 70_000, nil, 2),
	)

	d := newTestDeriver(p, 0)
	blocks, err := d.Derive(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Txs, 4)

	values := []int64{111, 222, 333}
	for i, want := range values {
		dep := blocks[0].Txs[i+1].(*types.TxDeposit)
		assert.Equal(t, big.NewInt(want), dep.Value, "deposit %d out of order", i)
	}
}

func TestDeriveMissingBlockAborts(t *testing.T) {
	p := chain.NewMemoryProvider()
	addL1Block(p, 1)
	// block 2 missing, block 3 present
	addL1Block(p, 3)

	d := newTestDeriver(p, 0)
	_, err := d.Derive(context.Background(), 3)
	require.ErrorIs(t, err, ErrL1BlockNotFound)

	// watermark unmoved, nothing partially committed
	assert.Equal(t, uint64(0), d.Cursor().L1Head)
	assert.Empty(t, d.Retained())

	// once the gap is filled the same call succeeds
	addL1Block(p, 2)
	blocks, err := d.Derive(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, blocks, 3)
	assert.Equal(t, uint64(3), d.Cursor().L1Head)
}

func TestDeriveMalformedLogAborts(t *testing.T) {
	p := chain.NewMemoryProvider()
	bad := depositLog(addrA, addrB, big.NewInt(1), 50_000, nil, 0)
	bad.Data = bad.Data[:40] // truncated payload
	addL1Block(p, 1, bad)

	d := newTestDeriver(p, 0)
	_, err := d.Derive(context.Background(), 1)
	require.ErrorIs(t, err, ErrMalformedDepositLog)
	assert.Equal(t, uint64(0), d.Cursor().L1Head)
}

func TestDeriveNoopBelowHead(t *testing.T) {
	p := chain.NewMemoryProvider()
	addL1Block(p, 1)

	d := newTestDeriver(p, 1)
	blocks, err := d.Derive(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestUpdateSafeHeadMonotonic(t *testing.T) {
	p := chain.NewMemoryProvider()
	for n := uint64(1); n <= 5; n++ {
		addL1Block(p, n, depositLog(addrA, addrB, big.NewInt(int64(n)), 50_000, nil, 0))
	}

	d := newTestDeriver(p, 0)
	_, err := d.Derive(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, d.Retained(), 5)

	d.UpdateSafeHead(3)
	assert.Equal(t, uint64(3), d.Cursor().SafeHead)
	assert.Len(t, d.Retained(), 2, "blocks with finalized origins are pruned")

	// non-increasing updates are no-ops
	d.UpdateSafeHead(2)
	assert.Equal(t, uint64(3), d.Cursor().SafeHead)
	d.UpdateSafeHead(3)
	assert.Equal(t, uint64(3), d.Cursor().SafeHead)

	// clamped to the derived head
	d.UpdateSafeHead(100)
	assert.Equal(t, uint64(5), d.Cursor().SafeHead)
	assert.Empty(t, d.Retained())
}

func TestDeriveRecordsSources(t *testing.T) {
	p := chain.NewMemoryProvider()
	block := addL1Block(p, 1, depositLog(addrA, addrB, big.NewInt(1), 50_000, nil, 0))

	d := newTestDeriver(p, 0)
	blocks, err := d.Derive(context.Background(), 1)
	require.NoError(t, err)

	user := blocks[0].Txs[1].(*types.TxDeposit)
	assert.True(t, d.HasSource(user.SourceHash))
	assert.True(t, d.HasSource(types.L1InfoSourceHash(block.Hash, 0)))
	assert.False(t, d.HasSource(common.HexToHash("0xdead")))
}
