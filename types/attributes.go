package types

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// L1AttributesFuncSignature is the L1 attributes predeploy setter the system
	// deposit calls on every derived L2 block.
	L1AttributesFuncSignature = "setL1BlockValues(uint64,uint64,uint256,bytes32,uint64,bytes32,uint256,uint256)"
	L1AttributesFuncSelector  = crypto.Keccak256([]byte(L1AttributesFuncSignature))[:4]

	// L1AttributesLen is 4 selector bytes plus eight 32-byte ABI slots.
	L1AttributesLen = 4 + 8*32
)

// L1Attributes is the L1 block metadata recorded on L2 by the system deposit at
// index 0 of every derived block. SequenceNumber is the position of the L2 block
// within the set of L2 blocks sharing the same L1 origin, it resets to zero each
// time the origin advances.
type L1Attributes struct {
	Number         uint64
	Time           uint64
	BaseFee        *big.Int
	BlockHash      common.Hash
	SequenceNumber uint64
	BatcherHash    common.Hash
	FeeOverhead    common.Hash
	FeeScalar      common.Hash
}

// EncodeInput packs the attributes into calldata for the L1 attributes predeploy:
// the 4-byte selector followed by eight 32-byte ABI slots, uint64 values
// right-aligned within their slot.
func (a *L1Attributes) EncodeInput() []byte {
	data := make([]byte, L1AttributesLen)
	offset := 0

	copy(data[offset:4], L1AttributesFuncSelector)
	offset += 4

	binary.BigEndian.PutUint64(data[offset+24:offset+32], a.Number)
	offset += 32
	binary.BigEndian.PutUint64(data[offset+24:offset+32], a.Time)
	offset += 32
	a.BaseFee.FillBytes(data[offset : offset+32])
	offset += 32
	copy(data[offset:offset+32], a.BlockHash[:])
	offset += 32
	binary.BigEndian.PutUint64(data[offset+24:offset+32], a.SequenceNumber)
	offset += 32
	copy(data[offset:offset+32], a.BatcherHash[:])
	offset += 32
	copy(data[offset:offset+32], a.FeeOverhead[:])
	offset += 32
	copy(data[offset:offset+32], a.FeeScalar[:])

	return data
}

// ParseL1Attributes decodes the calldata produced by EncodeInput.
func ParseL1Attributes(data []byte) (*L1Attributes, error) {
	if len(data) != L1AttributesLen {
		return nil, fmt.Errorf("l1 attributes data must be %d bytes, got %d", L1AttributesLen, len(data))
	}
	if string(data[:4]) != string(L1AttributesFuncSelector) {
		return nil, fmt.Errorf("l1 attributes data has unexpected selector %x", data[:4])
	}

	var a L1Attributes
	offset := 4
	a.Number = binary.BigEndian.Uint64(data[offset+24 : offset+32])
	offset += 32
	a.Time = binary.BigEndian.Uint64(data[offset+24 : offset+32])
	offset += 32
	a.BaseFee = new(big.Int).SetBytes(data[offset : offset+32])
	offset += 32
	a.BlockHash = common.BytesToHash(data[offset : offset+32])
	offset += 32
	a.SequenceNumber = binary.BigEndian.Uint64(data[offset+24 : offset+32])
	offset += 32
	a.BatcherHash = common.BytesToHash(data[offset : offset+32])
	offset += 32
	a.FeeOverhead = common.BytesToHash(data[offset : offset+32])
	offset += 32
	a.FeeScalar = common.BytesToHash(data[offset : offset+32])

	return &a, nil
}
