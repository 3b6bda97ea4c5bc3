package rpcselect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type probeResult struct {
	url     string
	latency time.Duration
	block   uint64
	err     error
}

// Select races eth_blockNumber against every candidate and returns the first
// endpoint to answer within timeout. fallback is returned when none does.
func Select(ctx context.Context, candidates []string, fallback string, timeout time.Duration, log *zap.Logger) string {
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			urls = append(urls, c)
		}
	}
	if len(urls) == 0 {
		return fallback
	}
	if timeout <= 0 {
		timeout = 4 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan probeResult, len(urls))
	for _, u := range urls {
		go func(u string) {
			start := time.Now()
			n, err := Probe(ctx, u)
			results <- probeResult{url: u, latency: time.Since(start), block: n, err: err}
		}(u)
	}

	for range urls {
		r := <-results
		if r.err != nil {
			log.Debug("rpc candidate failed", zap.String("url", r.url), zap.Error(r.err))
			continue
		}
		log.Info("rpc endpoint selected",
			zap.String("url", r.url),
			zap.Duration("latency", r.latency),
			zap.Uint64("block", r.block),
		)
		return r.url
	}
	log.Warn("no healthy rpc candidate, using fallback", zap.String("url", fallback))
	return fallback
}

// Probe performs one eth_blockNumber round trip.
func Probe(ctx context.Context, url string) (uint64, error) {
	if strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") {
		return probeWS(ctx, url)
	}
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	var n hexutil.Uint64
	if err := c.CallContext(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type wsResponse struct {
	ID     int              `json:"id"`
	Result *hexutil.Uint64  `json:"result"`
	Error  *json.RawMessage `json:"error"`
}

func probeWS(ctx context.Context, url string) (uint64, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
		_ = conn.SetWriteDeadline(dl)
	}
	if err := conn.WriteJSON(wsRequest{JSONRPC: "2.0", ID: 1, Method: "eth_blockNumber", Params: []interface{}{}}); err != nil {
		return 0, err
	}
	var resp wsResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return 0, err
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("rpc error: %s", string(*resp.Error))
	}
	if resp.Result == nil {
		return 0, errors.New("empty eth_blockNumber result")
	}
	return uint64(*resp.Result), nil
}
