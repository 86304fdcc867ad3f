package pool

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightlink-network/ll-rollup-node/chain"
	"github.com/lightlink-network/ll-rollup-node/derive"
	"github.com/lightlink-network/ll-rollup-node/types"
)

var (
	sender    = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000BB")
)

type fixedBalances map[common.Address]*big.Int

func (b fixedBalances) Balance(addr common.Address) *big.Int {
	if bal, ok := b[addr]; ok {
		return bal
	}
	return new(big.Int)
}

type stubSelector struct {
	txs        []*types.RegularTx
	lastBudget uint64
	calls      int
}

func (s *stubSelector) Select(gasBudget uint64, baseFee *big.Int) []*types.RegularTx {
	s.calls++
	s.lastBudget = gasBudget
	return s.txs
}

func newDeposit(gasLimit uint64, seed byte) *types.TxDeposit {
	to := recipient
	return &types.TxDeposit{
		SourceHash: types.UserDepositSourceHash(common.BytesToHash([]byte{seed}), 0),
		From:       sender,
		To:         &to,
		Mint:       big.NewInt(100),
		Value:      big.NewInt(100),
		GasLimit:   gasLimit,
	}
}

func newRegularTx() *types.RegularTx {
	to := recipient
	return &types.RegularTx{
		Nonce:    1,
		From:     sender,
		To:       &to,
		Value:    big.NewInt(1000),
		GasLimit: 21_000,
		GasPrice: big.NewInt(2),
		Data:     []byte{0x00, 0x01, 0x00, 0xff},
	}
}

func newTestPool(selector RegularSelector, balances BalanceReader) (*Pool, *L1GasOracle) {
	oracle := NewL1GasOracle(big.NewInt(188), big.NewInt(684_000))
	pool := NewPool(PoolOpts{
		Policy:   derive.DepositPolicy{MaxGasLimit: 10_000_000},
		Oracle:   oracle,
		Balances: balances,
		Selector: selector,
	})
	return pool, oracle
}

func TestBuildBlockDepositsFirst(t *testing.T) {
	selector := &stubSelector{txs: []*types.RegularTx{newRegularTx(), newRegularTx()}}
	pool, _ := newTestPool(selector, fixedBalances{})

	require.NoError(t, pool.AddDeposit(newDeposit(100_000, 1)))
	require.NoError(t, pool.AddDeposit(newDeposit(200_000, 2)))

	txs := pool.BuildBlock(30_000_000, big.NewInt(1))
	require.Len(t, txs, 4)

	_, ok := txs[0].(*types.TxDeposit)
	assert.True(t, ok)
	_, ok = txs[1].(*types.TxDeposit)
	assert.True(t, ok)
	_, ok = txs[2].(*types.RegularTx)
	assert.True(t, ok)
	_, ok = txs[3].(*types.RegularTx)
	assert.True(t, ok)

	assert.Equal(t, uint64(30_000_000-300_000), selector.lastBudget)
	assert.Zero(t, pool.DepositCount(), "queue drained")
}

func TestBuildBlockDepositsExceedGasLimit(t *testing.T) {
	selector := &stubSelector{txs: []*types.RegularTx{newRegularTx()}}
	pool, _ := newTestPool(selector, fixedBalances{})

	// four deposits of 10M gas against a 30M block
	for seed := byte(1); seed <= 4; seed++ {
		require.NoError(t, pool.AddDeposit(newDeposit(10_000_000, seed)))
	}

	txs := pool.BuildBlock(30_000_000, big.NewInt(1))
	require.Len(t, txs, 4, "every deposit included, no regular transactions")
	for _, tx := range txs {
		_, ok := tx.(*types.TxDeposit)
		assert.True(t, ok)
	}
	assert.Zero(t, selector.calls, "selector skipped when deposits consume the whole budget")
}

func TestBuildBlockDropsStaleDeposits(t *testing.T) {
	pool, _ := newTestPool(nil, fixedBalances{})

	good := newDeposit(100_000, 1)
	require.NoError(t, pool.AddDeposit(good))
	require.NoError(t, pool.AddDeposit(newDeposit(100_000, 2)))

	// tighten the policy so the second deposit fails revalidation
	pool.policy.KnownSource = func(h common.Hash) bool { return h == good.SourceHash }

	txs := pool.BuildBlock(30_000_000, big.NewInt(1))
	require.Len(t, txs, 1)
	assert.Equal(t, good.SourceHash, txs[0].(*types.TxDeposit).SourceHash)
}

func TestAddDepositRejectsSystem(t *testing.T) {
	pool, _ := newTestPool(nil, fixedBalances{})

	dep := newDeposit(100_000, 1)
	dep.IsSystem = true
	err := pool.AddDeposit(dep)
	require.ErrorIs(t, err, derive.ErrUnauthorizedSystemDeposit)
	assert.Zero(t, pool.DepositCount())
}

func TestAddDepositRejectsOversized(t *testing.T) {
	pool, _ := newTestPool(nil, fixedBalances{})

	err := pool.AddDeposit(newDeposit(10_000_001, 1))
	require.ErrorIs(t, err, derive.ErrGasLimitExceeded)
}

func TestL1GasCostDepositIsZero(t *testing.T) {
	pool, oracle := newTestPool(nil, fixedBalances{})
	oracle.Update(&chain.BlockView{Number: 1, BaseFee: big.NewInt(30_000_000_000)})

	cost, err := pool.CalculateL1GasCost(newDeposit(100_000, 1))
	require.NoError(t, err)
	assert.Zero(t, cost.Sign())
}

func TestL1GasCostRegularFormula(t *testing.T) {
	pool, oracle := newTestPool(nil, fixedBalances{})
	oracle.Update(&chain.BlockView{Number: 1, BaseFee: big.NewInt(1_000_000_000)})

	tx := newRegularTx()
	cost, err := pool.CalculateL1GasCost(tx)
	require.NoError(t, err)

	encoded, err := tx.Encode()
	require.NoError(t, err)
	var zeroes, ones int64
	for _, b := range encoded {
		if b == 0 {
			zeroes++
		} else {
			ones++
		}
	}

	want := big.NewInt(zeroes*4 + ones*16)
	want.Add(want, big.NewInt(188))
	want.Mul(want, big.NewInt(1_000_000_000))
	want.Mul(want, big.NewInt(684_000))
	want.Div(want, big.NewInt(1_000_000))

	assert.Equal(t, want, cost)
	assert.Positive(t, cost.Sign())
}

func TestValidateTransactionInsufficientFunds(t *testing.T) {
	balances := fixedBalances{sender: big.NewInt(1)}
	pool, oracle := newTestPool(nil, balances)
	oracle.Update(&chain.BlockView{Number: 1, BaseFee: big.NewInt(1_000_000_000)})

	tx := newRegularTx()
	err := pool.ValidateTransaction(tx)
	require.Error(t, err)

	var insufficient *InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, big.NewInt(1), insufficient.Available)

	l1Cost, err := pool.CalculateL1GasCost(tx)
	require.NoError(t, err)
	want := new(big.Int).Add(tx.Cost(), l1Cost)
	assert.Equal(t, want, insufficient.Required)
}

func TestValidateTransactionCoversL1Cost(t *testing.T) {
	tx := newRegularTx()

	pool, oracle := newTestPool(nil, fixedBalances{})
	oracle.Update(&chain.BlockView{Number: 1, BaseFee: big.NewInt(1_000_000_000)})

	l1Cost, err := pool.CalculateL1GasCost(tx)
	require.NoError(t, err)
	exact := new(big.Int).Add(tx.Cost(), l1Cost)

	pool.balances = fixedBalances{sender: exact}
	assert.NoError(t, pool.ValidateTransaction(tx))

	short := new(big.Int).Sub(exact, big.NewInt(1))
	pool.balances = fixedBalances{sender: short}
	assert.Error(t, pool.ValidateTransaction(tx))
}

func TestOracleUpdatesOncePerBlock(t *testing.T) {
	oracle := NewL1GasOracle(big.NewInt(188), big.NewInt(684_000))

	oracle.Update(&chain.BlockView{Number: 5, BaseFee: big.NewInt(100)})
	baseFee, _, _, last := oracle.Snapshot()
	assert.Equal(t, big.NewInt(100), baseFee)
	assert.Equal(t, uint64(5), last)

	// replayed and stale observations are ignored
	oracle.Update(&chain.BlockView{Number: 5, BaseFee: big.NewInt(200)})
	oracle.Update(&chain.BlockView{Number: 4, BaseFee: big.NewInt(300)})
	baseFee, _, _, last = oracle.Snapshot()
	assert.Equal(t, big.NewInt(100), baseFee)
	assert.Equal(t, uint64(5), last)

	oracle.Update(&chain.BlockView{Number: 6, BaseFee: big.NewInt(400)})
	baseFee, _, _, _ = oracle.Snapshot()
	assert.Equal(t, big.NewInt(400), baseFee)
}

func TestOracleSetParams(t *testing.T) {
	oracle := NewL1GasOracle(big.NewInt(188), big.NewInt(684_000))
	oracle.SetParams(big.NewInt(2100), big.NewInt(1_000_000))

	_, overhead, scalar, _ := oracle.Snapshot()
	assert.Equal(t, big.NewInt(2100), overhead)
	assert.Equal(t, big.NewInt(1_000_000), scalar)
}
