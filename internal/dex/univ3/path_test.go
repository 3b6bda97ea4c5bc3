package univ3

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knasko/vusd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc = common.HexToAddress("0xaa5b845F8C9c047779bEDf64829601d8B264076c")
	vusd = common.HexToAddress("0x5b91e29Ae5A71d9052620Acb813d5aC25eC7a4A2")
	weth = common.HexToAddress("0xc1bF55EE54E16229d9b369a5502Bfe5fC9F20b6d")
)

func TestEncodePath_Layout(t *testing.T) {
	path, err := EncodePath([]common.Address{usdc, weth, vusd}, []uint32{500, 3000})
	require.NoError(t, err)
	require.Len(t, path, 20*3+3*2)

	assert.Equal(t, usdc.Bytes(), path[0:20])
	assert.Equal(t, "0001f4", hex.EncodeToString(path[20:23]))
	assert.Equal(t, weth.Bytes(), path[23:43])
	assert.Equal(t, "000bb8", hex.EncodeToString(path[43:46]))
	assert.Equal(t, vusd.Bytes(), path[46:66])
}

func TestEncodeDecodePath_RoundTrip(t *testing.T) {
	cases := []struct {
		tokens []common.Address
		fees   []uint32
	}{
		{[]common.Address{usdc, vusd}, []uint32{500}},
		{[]common.Address{usdc, weth, vusd}, []uint32{3000, 500}},
		{[]common.Address{vusd, weth, usdc, weth}, []uint32{100, 10000, 1<<24 - 1}},
	}
	for _, tc := range cases {
		path, err := EncodePath(tc.tokens, tc.fees)
		require.NoError(t, err)
		tokens, fees, err := DecodePath(path)
		require.NoError(t, err)
		assert.Equal(t, tc.tokens, tokens)
		assert.Equal(t, tc.fees, fees)
	}
}

func TestEncodePath_InvalidLength(t *testing.T) {
	_, err := EncodePath([]common.Address{usdc, weth, vusd}, []uint32{500})
	assert.ErrorIs(t, err, types.ErrInvalidPathLength)

	_, err = EncodePath([]common.Address{usdc}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidPathLength)

	_, err = EncodePath([]common.Address{usdc, vusd}, []uint32{500, 500})
	assert.ErrorIs(t, err, types.ErrInvalidPathLength)
}

func TestEncodePath_FeeOverflow(t *testing.T) {
	_, err := EncodePath([]common.Address{usdc, vusd}, []uint32{1 << 24})
	assert.Error(t, err)
}

func TestDecodePath_BadLength(t *testing.T) {
	_, _, err := DecodePath(make([]byte, 42))
	assert.ErrorIs(t, err, types.ErrInvalidPathLength)
}
