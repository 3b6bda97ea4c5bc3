package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/knasko/vusd/internal/dex/core"
	"github.com/knasko/vusd/internal/types"
)

const erc20ABI = `[
 {"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"address","name":"spender","type":"address"}],"name":"allowance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// Backend is the subset of *ethclient.Client the wallet needs.
type Backend interface {
	ethereum.ContractCaller
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

type Opts struct {
	// GasLimit is used when eth_estimateGas fails.
	GasLimit uint64
	// MaxPriorityFeeGwei overrides eth_maxPriorityFeePerGas when > 0.
	MaxPriorityFeeGwei float64
	PollInterval       time.Duration
}

// Wallet signs and submits transactions from one EOA and performs read-only
// calls on its behalf.
type Wallet struct {
	b    Backend
	log  *zap.Logger
	erc  abi.ABI
	pk   *ecdsa.PrivateKey
	addr common.Address
	opts Opts
}

func New(b Backend, hexKey string, opts Opts, log *zap.Logger) (*Wallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, types.ErrNoSigner
	}
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("bad private key: %w", err)
	}
	erc, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = 500_000
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	addr := crypto.PubkeyToAddress(pk.PublicKey)
	return &Wallet{b: b, log: log.With(zap.String("wallet", addr.Hex())), erc: erc, pk: pk, addr: addr, opts: opts}, nil
}

func (w *Wallet) Address() common.Address { return w.addr }

// Simulate runs call as an eth_call from the wallet address against the
// latest block.
func (w *Wallet) Simulate(ctx context.Context, call core.Call) ([]byte, error) {
	to := call.To
	return w.b.CallContract(ctx, ethereum.CallMsg{From: w.addr, To: &to, Data: call.Data, Value: call.Value}, nil)
}

func (w *Wallet) BalanceOf(ctx context.Context, token common.Address) (*big.Int, error) {
	return w.readUint(ctx, token, "balanceOf", w.addr)
}

func (w *Wallet) Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	return w.readUint(ctx, token, "allowance", w.addr, spender)
}

func (w *Wallet) readUint(ctx context.Context, token common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := w.erc.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := w.b.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, token.Hex(), err)
	}
	outs, err := w.erc.Methods[method].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode %s: %v", method, err)
	}
	v, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode %s: unexpected type %T", method, outs[0])
	}
	return v, nil
}

func (w *Wallet) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (types.Confirmation, error) {
	data, err := w.erc.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return w.Submit(ctx, core.Call{To: token, Data: data})
}

// Submit signs call as an EIP-1559 transaction and broadcasts it.
func (w *Wallet) Submit(ctx context.Context, call core.Call) (types.Confirmation, error) {
	tx, err := w.signTx(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := w.b.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	w.log.Info("tx sent", zap.String("tx", tx.Hash().Hex()), zap.String("to", call.To.Hex()), zap.Uint64("gas", tx.Gas()))
	return &pending{w: w, hash: tx.Hash()}, nil
}

func (w *Wallet) signTx(ctx context.Context, call core.Call) (*gethtypes.Transaction, error) {
	chainID, err := w.b.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	nonce, err := w.b.PendingNonceAt(ctx, w.addr)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	var gasTipCap *big.Int
	if w.opts.MaxPriorityFeeGwei > 0 {
		gasTipCap = gweiToWei(w.opts.MaxPriorityFeeGwei)
	} else if gasTipCap, err = w.b.SuggestGasTipCap(ctx); err != nil {
		return nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}

	header, err := w.b.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get header: %w", err)
	}
	if header.BaseFee == nil {
		return nil, errors.New("latest header has no base fee")
	}
	gasFeeCap := new(big.Int).Add(new(big.Int).Mul(header.BaseFee, big.NewInt(2)), gasTipCap)

	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}
	to := call.To
	gas := w.opts.GasLimit
	if est, err := w.b.EstimateGas(ctx, ethereum.CallMsg{From: w.addr, To: &to, Data: call.Data, Value: value}); err != nil {
		w.log.Debug("estimate gas failed, using configured limit", zap.Uint64("gas", gas), zap.Error(err))
	} else if est > 0 {
		gas = est + est/5
	}

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	})
	return gethtypes.SignTx(tx, gethtypes.NewLondonSigner(chainID), w.pk)
}

func gweiToWei(g float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(g), big.NewFloat(1e9)).Int(nil)
	return wei
}

type pending struct {
	w    *Wallet
	hash common.Hash
}

func (p *pending) Hash() common.Hash { return p.hash }

// Wait polls for the receipt until it is mined or ctx is done.
func (p *pending) Wait(ctx context.Context) (types.Receipt, error) {
	t := time.NewTicker(p.w.opts.PollInterval)
	defer t.Stop()
	for {
		rcpt, err := p.w.b.TransactionReceipt(ctx, p.hash)
		switch {
		case err == nil && rcpt != nil:
			r := types.Receipt{
				Success: rcpt.Status == gethtypes.ReceiptStatusSuccessful,
				TxHash:  p.hash,
				GasUsed: rcpt.GasUsed,
			}
			if rcpt.BlockNumber != nil {
				r.Block = rcpt.BlockNumber.Uint64()
			}
			return r, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			p.w.log.Debug("receipt poll failed", zap.String("tx", p.hash.Hex()), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return types.Receipt{TxHash: p.hash}, ctx.Err()
		case <-t.C:
		}
	}
}
