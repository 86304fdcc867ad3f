package withdrawals

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lightlink-network/ll-rollup-node/types"
)

// ErrUnknownWithdrawal is returned when a proof is requested for a withdrawal
// hash absent from the pending set.
var ErrUnknownWithdrawal = errors.New("withdrawal not in pending set")

// PendingSet is the append-only, insertion-ordered set of withdrawals awaiting
// proof submission on L1. The monitor appends withdrawals as it observes their
// initiation events on L2; the commitment is rebuilt on every append, so proofs
// generated before an append no longer verify against the current root.
type PendingSet struct {
	mu          sync.Mutex
	withdrawals []*types.WithdrawalTransaction
	indexByHash map[common.Hash]uint64
	commitment  *Commitment
}

func NewPendingSet() *PendingSet {
	commitment, _ := NewCommitment(nil)
	return &PendingSet{
		indexByHash: make(map[common.Hash]uint64),
		commitment:  commitment,
	}
}

// NextNonce returns the nonce the next appended withdrawal should carry. The
// pending set's insertion index doubles as the nonce, which keeps nonces unique
// without an on-chain read.
func (s *PendingSet) NextNonce() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).SetUint64(uint64(len(s.withdrawals)))
}

// Append adds a withdrawal to the set and rebuilds the commitment. Duplicate
// hashes are ignored so the monitor can safely re-process a block range after a
// restart. Returns the withdrawal hash.
func (s *PendingSet) Append(w *types.WithdrawalTransaction) (common.Hash, error) {
	hash, err := w.Hash()
	if err != nil {
		return common.Hash{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexByHash[hash]; ok {
		return hash, nil
	}

	withdrawals := append(s.withdrawals, w)
	commitment, err := NewCommitment(withdrawals)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to rebuild commitment: %w", err)
	}

	s.withdrawals = withdrawals
	s.indexByHash[hash] = uint64(len(withdrawals) - 1)
	s.commitment = commitment

	return hash, nil
}

// Len returns the number of pending withdrawals.
func (s *PendingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.withdrawals)
}

// Root returns the current commitment root.
func (s *PendingSet) Root() common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitment.Root()
}

// ProofByHash generates a membership proof for the withdrawal with the given
// hash against the current commitment.
func (s *PendingSet) ProofByHash(hash common.Hash) (*Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := s.indexByHash[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWithdrawal, hash.Hex())
	}
	return s.commitment.GenerateProof(index)
}
