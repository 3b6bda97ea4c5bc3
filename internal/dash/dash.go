package dash

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/knasko/vusd/internal/detector"
	"github.com/knasko/vusd/internal/marketdata"
)

// Row: одна строка = (Direction, Venue) последнего цикла
type Row struct {
	Direction string `json:"direction"`
	Pair      string `json:"pair"`
	Venue     string `json:"venue"`
	Kind      string `json:"kind"`
	FeePPM    uint32 `json:"feePpm"`

	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut,omitempty"`
	Profit    string `json:"profit,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs"`

	TS int64 `json:"ts"`
}

type Board struct {
	mu   sync.RWMutex
	rows map[string]Row // key: direction|venue
}

func NewBoard() *Board { return &Board{rows: make(map[string]Row, 16)} }

// Update replaces the rows of the scanned direction.
func (b *Board) Update(scan marketdata.Scan) {
	dir := scan.Leg.Direction.String()
	ts := scan.Ts
	if ts.IsZero() {
		ts = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for k, r := range b.rows {
		if r.Direction == dir {
			delete(b.rows, k)
		}
	}
	for _, res := range scan.Results {
		row := Row{
			Direction: dir,
			Pair:      scan.Leg.Label(),
			Venue:     res.Venue.String(),
			Kind:      string(res.Venue.Kind),
			FeePPM:    res.Venue.TotalFee(),
			AmountIn:  scan.Leg.Size.String(),
			LatencyMs: res.Took.Milliseconds(),
			TS:        ts.UnixMilli(),
		}
		if res.OK() {
			row.AmountOut = res.Quote.Human.String()
			row.Profit = detector.Profit(scan.Leg, res.Quote.AmountOut).String()
			row.Fallback = res.Quote.Fallback
		} else {
			row.Error = res.Err.Error()
		}
		b.rows[dir+"|"+row.Venue] = row
	}
}

func (b *Board) List() []Row {
	b.mu.RLock()
	out := make([]Row, 0, len(b.rows))
	for _, r := range b.rows {
		out = append(out, r)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Direction == out[j].Direction {
			return out[i].Venue < out[j].Venue
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}

// Routes returns the JSON feed and the HTML page for metrics.Serve.
func (b *Board) Routes() map[string]http.Handler {
	return map[string]http.Handler{
		"/quotes": withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(b.List())
		})),
		"/": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, indexHTML)
		}),
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <title>Quote board</title>
  <style>
    body{margin:0;background:#f8fafc;font:14px/1.4 ui-sans-serif,system-ui,-apple-system,Segoe UI,Roboto,Ubuntu;color:#111827;}
    .wrap{max-width:1080px;margin:24px auto;padding:0 16px;}
    table{width:100%;border-collapse:collapse;background:#fff;border-radius:16px;overflow:hidden;box-shadow:0 10px 30px rgba(0,0,0,.06);}
    thead{background:#f3f4f6;} th,td{padding:10px 12px;text-align:left;} tbody tr{border-top:1px solid #f3f4f6;}
    .chip{display:inline-block;font-size:12px;padding:2px 8px;background:#e5e7eb;border-radius:999px;}
    .ok{color:#166534;} .bad{color:#991b1b;} .dim{color:#6b7280;}
  </style>
</head>
<body>
<div class="wrap">
  <h1 style="font-size:22px;font-weight:600">Quote board</h1>
  <table>
    <thead><tr><th>Direction</th><th>Venue</th><th>In</th><th>Out</th><th>Profit</th><th>Fee</th><th style="text-align:right">Updated</th></tr></thead>
    <tbody id="rows"></tbody>
  </table>
</div>
<script>
  function rowHTML(r){
    var p = r.profit ? Number(r.profit) : null;
    return '<tr>'
      + '<td><strong>' + r.pair + '</strong></td>'
      + '<td><span class="chip">' + r.venue + '</span>' + (r.fallback ? ' <span class="chip">slot0</span>' : '') + '</td>'
      + '<td>' + r.amountIn + '</td>'
      + '<td>' + (r.amountOut || '<span class="bad">' + (r.error||'') + '</span>') + '</td>'
      + '<td class="' + (p==null ? 'dim' : (p>0 ? 'ok' : 'bad')) + '">' + (r.profit || '-') + '</td>'
      + '<td>' + (r.feePpm/10000) + '%</td>'
      + '<td style="text-align:right" class="dim">' + new Date(r.ts).toLocaleTimeString() + '</td>'
      + '</tr>';
  }
  async function tick(){
    try{
      var res = await fetch('/quotes', {cache:'no-store'});
      var data = await res.json();
      document.getElementById('rows').innerHTML = data.map(rowHTML).join('');
    }catch(e){}
  }
  tick(); setInterval(tick, 2000);
</script>
</body>
</html>`
