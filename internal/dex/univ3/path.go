package univ3

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knasko/vusd/internal/types"
)

const (
	addrSize = common.AddressLength
	feeSize  = 3
	maxFee   = 1<<24 - 1
)

// EncodePath builds the exactInput route: token | fee(3 bytes, big-endian) | token | ... | token.
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 || len(tokens) != len(fees)+1 {
		return nil, fmt.Errorf("%w (tokens=%d fees=%d)", types.ErrInvalidPathLength, len(tokens), len(fees))
	}
	out := make([]byte, 0, len(tokens)*addrSize+len(fees)*feeSize)
	for i, fee := range fees {
		if fee > maxFee {
			return nil, fmt.Errorf("fee %d does not fit uint24", fee)
		}
		out = append(out, tokens[i].Bytes()...)
		out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
	}
	return append(out, tokens[len(tokens)-1].Bytes()...), nil
}

// DecodePath is the inverse of EncodePath.
func DecodePath(path []byte) ([]common.Address, []uint32, error) {
	if len(path) < 2*addrSize+feeSize || (len(path)-addrSize)%(addrSize+feeSize) != 0 {
		return nil, nil, fmt.Errorf("%w: %d bytes", types.ErrInvalidPathLength, len(path))
	}
	hops := (len(path) - addrSize) / (addrSize + feeSize)
	tokens := make([]common.Address, 0, hops+1)
	fees := make([]uint32, 0, hops)
	off := 0
	for i := 0; i < hops; i++ {
		tokens = append(tokens, common.BytesToAddress(path[off:off+addrSize]))
		off += addrSize
		fees = append(fees, uint32(path[off])<<16|uint32(path[off+1])<<8|uint32(path[off+2]))
		off += feeSize
	}
	tokens = append(tokens, common.BytesToAddress(path[off:]))
	return tokens, fees, nil
}
