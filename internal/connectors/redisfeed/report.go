package redisfeed

import (
	"strconv"
)

// CycleReport is one line of the cycle feed.
type CycleReport struct {
	ID         string `json:"id,omitempty"`
	TsMs       int64  `json:"ts_ms"`
	Outcome    string `json:"outcome"`
	Direction  string `json:"direction,omitempty"`
	Venue      string `json:"venue,omitempty"`
	AmountIn   string `json:"amount_in,omitempty"`
	AmountOut  string `json:"amount_out,omitempty"`
	Profit     string `json:"profit,omitempty"`
	TxHash     string `json:"tx,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func (r CycleReport) values() map[string]interface{} {
	return map[string]interface{}{
		"ts_ms":       r.TsMs,
		"outcome":     r.Outcome,
		"direction":   r.Direction,
		"venue":       r.Venue,
		"amount_in":   r.AmountIn,
		"amount_out":  r.AmountOut,
		"profit":      r.Profit,
		"tx":          r.TxHash,
		"error":       r.Error,
		"duration_ms": r.DurationMs,
	}
}

func reportFrom(id string, v map[string]interface{}) CycleReport {
	str := func(k string) string {
		s, _ := v[k].(string)
		return s
	}
	num := func(k string) int64 {
		n, _ := strconv.ParseInt(str(k), 10, 64)
		return n
	}
	return CycleReport{
		ID:         id,
		TsMs:       num("ts_ms"),
		Outcome:    str("outcome"),
		Direction:  str("direction"),
		Venue:      str("venue"),
		AmountIn:   str("amount_in"),
		AmountOut:  str("amount_out"),
		Profit:     str("profit"),
		TxHash:     str("tx"),
		Error:      str("error"),
		DurationMs: num("duration_ms"),
	}
}
