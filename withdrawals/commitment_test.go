package withdrawals

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightlink-network/ll-rollup-node/types"
)

func newWithdrawal(nonce int64) *types.WithdrawalTransaction {
	return &types.WithdrawalTransaction{
		Nonce:    big.NewInt(nonce),
		Sender:   common.HexToAddress("0x00000000000000000000000000000000000000AA"),
		Target:   common.HexToAddress("0x00000000000000000000000000000000000000BB"),
		Value:    big.NewInt(1e15),
		GasLimit: big.NewInt(100_000),
		Data:     []byte{byte(nonce)},
	}
}

func newWithdrawals(n int) []*types.WithdrawalTransaction {
	ws := make([]*types.WithdrawalTransaction, n)
	for i := range ws {
		ws[i] = newWithdrawal(int64(i))
	}
	return ws
}

func TestProofRoundTrip(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 5, 7, 8, 13} {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			c, err := NewCommitment(newWithdrawals(size))
			require.NoError(t, err)
			require.Equal(t, size, c.Len())

			for i := uint64(0); i < uint64(size); i++ {
				proof, err := c.GenerateProof(i)
				require.NoError(t, err)
				assert.True(t, proof.Verify(), "proof for index %d", i)
				assert.Equal(t, c.Root(), proof.Root)
			}
		})
	}
}

func TestProofInvalidIndex(t *testing.T) {
	c, err := NewCommitment(newWithdrawals(4))
	require.NoError(t, err)

	_, err = c.GenerateProof(4)
	require.ErrorIs(t, err, ErrInvalidIndex)
}

func TestProofStaleAfterAppend(t *testing.T) {
	ws := newWithdrawals(4)
	old, err := NewCommitment(ws)
	require.NoError(t, err)

	proof, err := old.GenerateProof(2)
	require.NoError(t, err)
	require.True(t, proof.Verify())

	// a fifth withdrawal changes the root, the old proof must fail against it
	grown, err := NewCommitment(append(ws, newWithdrawal(4)))
	require.NoError(t, err)
	require.NotEqual(t, old.Root(), grown.Root())

	proof.Root = grown.Root()
	assert.False(t, proof.Verify())

	// re-generating against the new commitment works again
	fresh, err := grown.GenerateProof(2)
	require.NoError(t, err)
	assert.True(t, fresh.Verify())
}

func TestProofTamperedWithdrawalFails(t *testing.T) {
	c, err := NewCommitment(newWithdrawals(4))
	require.NoError(t, err)

	proof, err := c.GenerateProof(1)
	require.NoError(t, err)

	tampered := *proof.Withdrawal
	tampered.Value = new(big.Int).Add(tampered.Value, big.NewInt(1))
	proof.Withdrawal = &tampered

	assert.False(t, proof.Verify())
}

func TestRootDependsOnOrder(t *testing.T) {
	a := newWithdrawal(0)
	b := newWithdrawal(1)

	forward, err := NewCommitment([]*types.WithdrawalTransaction{a, b})
	require.NoError(t, err)
	reversed, err := NewCommitment([]*types.WithdrawalTransaction{b, a})
	require.NoError(t, err)

	assert.NotEqual(t, forward.Root(), reversed.Root())
}

func TestWithdrawalFieldsChangeRoot(t *testing.T) {
	base := newWithdrawals(2)
	baseRoot := mustRoot(t, base)

	mutations := []func(w *types.WithdrawalTransaction){
		func(w *types.WithdrawalTransaction) { w.Nonce = big.NewInt(99) },
		func(w *types.WithdrawalTransaction) { w.Sender = common.HexToAddress("0xCC") },
		func(w *types.WithdrawalTransaction) { w.Target = common.HexToAddress("0xDD") },
		func(w *types.WithdrawalTransaction) { w.Value = big.NewInt(1) },
		func(w *types.WithdrawalTransaction) { w.GasLimit = big.NewInt(1) },
		func(w *types.WithdrawalTransaction) { w.Data = []byte{0xff} },
	}

	for i, mutate := range mutations {
		ws := newWithdrawals(2)
		mutate(ws[1])
		assert.NotEqual(t, baseRoot, mustRoot(t, ws), "mutation %d did not change the root", i)
	}
}

func mustRoot(t *testing.T, ws []*types.WithdrawalTransaction) common.Hash {
	t.Helper()
	c, err := NewCommitment(ws)
	require.NoError(t, err)
	return c.Root()
}

func TestPendingSetAppend(t *testing.T) {
	s := NewPendingSet()
	require.Zero(t, s.Len())
	assert.Equal(t, big.NewInt(0), s.NextNonce())

	w := newWithdrawal(0)
	hash, err := s.Append(w)
	require.NoError(t, err)
	want, err := w.Hash()
	require.NoError(t, err)
	assert.Equal(t, want, hash)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, big.NewInt(1), s.NextNonce())

	// duplicate append is a no-op
	again, err := s.Append(w)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
	assert.Equal(t, 1, s.Len())
}

func TestPendingSetRootChangesOnAppend(t *testing.T) {
	s := NewPendingSet()

	_, err := s.Append(newWithdrawal(0))
	require.NoError(t, err)
	first := s.Root()

	_, err = s.Append(newWithdrawal(1))
	require.NoError(t, err)
	assert.NotEqual(t, first, s.Root())
}

func TestPendingSetProofByHash(t *testing.T) {
	s := NewPendingSet()
	w := newWithdrawal(0)
	hash, err := s.Append(w)
	require.NoError(t, err)
	_, err = s.Append(newWithdrawal(1))
	require.NoError(t, err)

	proof, err := s.ProofByHash(hash)
	require.NoError(t, err)
	assert.True(t, proof.Verify())
	assert.Equal(t, s.Root(), proof.Root)
	assert.Equal(t, uint64(0), proof.Index)

	_, err = s.ProofByHash(common.HexToHash("0xdead"))
	require.ErrorIs(t, err, ErrUnknownWithdrawal)
}
