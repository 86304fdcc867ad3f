package withdrawals

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lightlink-network/ll-rollup-node/types"
)

// ErrInvalidIndex is returned when a proof is requested for a leaf outside the
// commitment. Caller error, never retried.
var ErrInvalidIndex = errors.New("withdrawal index out of range")

// Commitment is a binary keccak Merkle tree over the ordered sequence of
// withdrawal hashes. Insertion order is part of the commitment: reordering the
// withdrawals changes the root. A commitment is immutable once built, changes to
// the withdrawal set require rebuilding and re-generating any proofs.
type Commitment struct {
	withdrawals []*types.WithdrawalTransaction
	layers      [][]common.Hash
}

// NewCommitment hashes the withdrawals in the given order and builds the tree.
// The order must match the order the withdrawals were finalized on L2.
func NewCommitment(withdrawals []*types.WithdrawalTransaction) (*Commitment, error) {
	leaves := make([]common.Hash, len(withdrawals))
	for i, w := range withdrawals {
		hash, err := w.Hash()
		if err != nil {
			return nil, fmt.Errorf("failed to hash withdrawal %d: %w", i, err)
		}
		leaves[i] = hash
	}

	return &Commitment{
		withdrawals: withdrawals,
		layers:      buildLayers(leaves),
	}, nil
}

func buildLayers(leaves []common.Hash) [][]common.Hash {
	// Pad to a power of two with zero leaves so sibling paths are total.
	width := 1
	for width < len(leaves) {
		width *= 2
	}
	base := make([]common.Hash, width)
	copy(base, leaves)

	layers := [][]common.Hash{base}
	for layer := base; len(layer) > 1; {
		next := make([]common.Hash, len(layer)/2)
		for i := range next {
			next[i] = hashPair(layer[2*i], layer[2*i+1])
		}
		layers = append(layers, next)
		layer = next
	}
	return layers
}

func hashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left[:], right[:])
}

// Root returns the tree's summary digest.
func (c *Commitment) Root() common.Hash {
	top := c.layers[len(c.layers)-1]
	return top[0]
}

// Len returns the number of committed withdrawals, excluding padding.
func (c *Commitment) Len() int {
	return len(c.withdrawals)
}

// GenerateProof returns a membership proof for the withdrawal at index. The
// proof is only valid against the root it was generated from.
func (c *Commitment) GenerateProof(index uint64) (*Proof, error) {
	if index >= uint64(len(c.withdrawals)) {
		return nil, fmt.Errorf("%w: index %d, size %d", ErrInvalidIndex, index, len(c.withdrawals))
	}

	path := make([]common.Hash, 0, len(c.layers)-1)
	pos := index
	for _, layer := range c.layers[:len(c.layers)-1] {
		path = append(path, layer[pos^1])
		pos /= 2
	}

	return &Proof{
		Withdrawal:  c.withdrawals[index],
		SiblingPath: path,
		Root:        c.Root(),
		Index:       index,
	}, nil
}

// Proof is a self-contained withdrawal membership proof: the withdrawal, the
// sibling hashes from its leaf to the root, and the root it commits to.
type Proof struct {
	Withdrawal  *types.WithdrawalTransaction
	SiblingPath []common.Hash
	Root        common.Hash
	Index       uint64
}

// Verify folds the withdrawal's leaf hash up the sibling path and compares the
// result to the stored root. It is pure: it reads no tree state, so a proof
// generated from an older commitment simply fails against a rebuilt root.
func (p *Proof) Verify() bool {
	leaf, err := p.Withdrawal.Hash()
	if err != nil {
		return false
	}

	computed := leaf
	pos := p.Index
	for _, sibling := range p.SiblingPath {
		if pos%2 == 0 {
			computed = hashPair(computed, sibling)
		} else {
			computed = hashPair(sibling, computed)
		}
		pos /= 2
	}

	return computed == p.Root
}
