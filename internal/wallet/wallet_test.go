package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/types"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type fakeBackend struct {
	mu        sync.Mutex
	callRet   []byte
	calls     []ethereum.CallMsg
	estimate  uint64
	estErr    error
	sent      []*gethtypes.Transaction
	notFound  int
	status    uint64
	receiptsQ int
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	return f.callRet, nil
}
func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(388), nil }
func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}
func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000), nil
}
func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{BaseFee: big.NewInt(5_000)}, nil
}
func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.estimate, f.estErr
}
func (f *fakeBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	f.mu.Lock()
	f.sent = append(f.sent, tx)
	f.mu.Unlock()
	return nil
}
func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptsQ++
	if f.receiptsQ <= f.notFound {
		return nil, ethereum.NotFound
	}
	return &gethtypes.Receipt{Status: f.status, GasUsed: 21_000, BlockNumber: big.NewInt(42)}, nil
}

func newTestWallet(t *testing.T, fb *fakeBackend) *Wallet {
	t.Helper()
	w, err := New(fb, "0x"+testKey, Opts{GasLimit: 400_000, PollInterval: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	return w
}

func TestNew_NoKey(t *testing.T) {
	_, err := New(&fakeBackend{}, "  ", Opts{}, zap.NewNop())
	assert.ErrorIs(t, err, types.ErrNoSigner)
}

func TestSubmit_SignsDynamicFeeTx(t *testing.T) {
	fb := &fakeBackend{estimate: 100_000}
	w := newTestWallet(t, fb)
	to := common.HexToAddress("0x33d2394f6Ca43aba6716982d6CB0824Db4A912b2")

	conf, err := w.Submit(context.Background(), core.Call{To: to, Data: []byte{0x01, 0x02}})
	require.NoError(t, err)
	require.Len(t, fb.sent, 1)

	tx := fb.sent[0]
	assert.Equal(t, tx.Hash(), conf.Hash())
	assert.Equal(t, uint8(gethtypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, int64(11_000), tx.GasFeeCap().Int64())
	assert.Equal(t, int64(1_000), tx.GasTipCap().Int64())
	assert.Equal(t, to, *tx.To())

	from, err := gethtypes.Sender(gethtypes.NewLondonSigner(big.NewInt(388)), tx)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), from)
}

func TestSubmit_EstimateFailureUsesLimit(t *testing.T) {
	fb := &fakeBackend{estErr: errors.New("execution reverted")}
	w := newTestWallet(t, fb)
	_, err := w.Submit(context.Background(), core.Call{To: common.HexToAddress("0x01")})
	require.NoError(t, err)
	assert.Equal(t, uint64(400_000), fb.sent[0].Gas())
}

func TestSubmit_TipOverride(t *testing.T) {
	fb := &fakeBackend{estimate: 50_000}
	w, err := New(fb, testKey, Opts{MaxPriorityFeeGwei: 0.5}, zap.NewNop())
	require.NoError(t, err)
	_, err = w.Submit(context.Background(), core.Call{To: common.HexToAddress("0x01")})
	require.NoError(t, err)
	assert.Equal(t, int64(500_000_000), fb.sent[0].GasTipCap().Int64())
}

func TestReads(t *testing.T) {
	fb := &fakeBackend{}
	w := newTestWallet(t, fb)
	var err error
	fb.callRet, err = w.erc.Methods["balanceOf"].Outputs.Pack(big.NewInt(1_000_000_000))
	require.NoError(t, err)

	token := common.HexToAddress("0xaa5b845F8C9c047779bEDf64829601d8B264076c")
	bal, err := w.BalanceOf(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), bal.Int64())

	_, err = w.Allowance(context.Background(), token, common.HexToAddress("0x02"))
	require.NoError(t, err)
	require.Len(t, fb.calls, 2)
	assert.Equal(t, token, *fb.calls[1].To)

	_, err = w.Simulate(context.Background(), core.Call{To: common.HexToAddress("0x03"), Data: []byte{0xaa}})
	require.NoError(t, err)
	assert.Equal(t, w.Address(), fb.calls[2].From)
}

func TestApprove_PacksSpenderAndAmount(t *testing.T) {
	fb := &fakeBackend{estimate: 50_000}
	w := newTestWallet(t, fb)
	token := common.HexToAddress("0xaa5b845F8C9c047779bEDf64829601d8B264076c")
	spender := common.HexToAddress("0x39aD8C3067281e60045DF041846EE01c1Dd3a853")

	_, err := w.Approve(context.Background(), token, spender, big.NewInt(99))
	require.NoError(t, err)
	tx := fb.sent[0]
	assert.Equal(t, token, *tx.To())
	args, err := w.erc.Methods["approve"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, spender, args[0])
	assert.Equal(t, int64(99), args[1].(*big.Int).Int64())
}

func TestWait_PollsUntilMined(t *testing.T) {
	fb := &fakeBackend{estimate: 50_000, notFound: 2, status: gethtypes.ReceiptStatusFailed}
	w := newTestWallet(t, fb)
	conf, err := w.Submit(context.Background(), core.Call{To: common.HexToAddress("0x01")})
	require.NoError(t, err)

	r, err := conf.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Equal(t, uint64(42), r.Block)
	assert.Equal(t, 3, fb.receiptsQ)
}

func TestWait_ContextDone(t *testing.T) {
	fb := &fakeBackend{estimate: 50_000, notFound: 1 << 30}
	w := newTestWallet(t, fb)
	conf, err := w.Submit(context.Background(), core.Call{To: common.HexToAddress("0x01")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = conf.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
