package domain

// TickerState is the latest top-of-book and 24h summary for a symbol.
type TickerState struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	BidQty    float64 `json:"bid_qty"`
	Ask       float64 `json:"ask"`
	AskQty    float64 `json:"ask_qty"`
	Last      float64 `json:"last"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Volume    float64 `json:"volume"`
	VWAP      float64 `json:"vwap"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
}

// Spread returns ask minus bid, or 0 when either side is missing.
func (t TickerState) Spread() float64 {
	if t.Bid <= 0 || t.Ask <= 0 {
		return 0
	}
	return t.Ask - t.Bid
}
