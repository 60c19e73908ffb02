package kraken

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// Request is a v2 method call such as subscribe or unsubscribe.
type Request struct {
	Method string `json:"method"`
	Params Params `json:"params"`
	ReqID  int64  `json:"req_id,omitempty"`
}

// Params selects a channel and its symbols.
type Params struct {
	Channel  string   `json:"channel"`
	Symbol   []string `json:"symbol"`
	Depth    int      `json:"depth,omitempty"`
	Snapshot *bool    `json:"snapshot,omitempty"`
}

// --------------------------------------------------------------------------
// Messages
// --------------------------------------------------------------------------

// Envelope is the outer shape shared by channel messages and method
// responses. Exactly one of Channel and Method is set.
type Envelope struct {
	Channel string          `json:"channel,omitempty"`
	Type    string          `json:"type,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Method  string          `json:"method,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Error   string          `json:"error,omitempty"`
	ReqID   int64           `json:"req_id,omitempty"`
}

// PriceLevel is one price and quantity as sent on the book channel.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

// BookData is one symbol's entry of a book snapshot or update.
type BookData struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Checksum  uint32       `json:"checksum"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// TickerData is one symbol's entry on the ticker channel.
type TickerData struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	BidQty    decimal.Decimal `json:"bid_qty"`
	Ask       decimal.Decimal `json:"ask"`
	AskQty    decimal.Decimal `json:"ask_qty"`
	Last      decimal.Decimal `json:"last"`
	Volume    decimal.Decimal `json:"volume"`
	VWAP      decimal.Decimal `json:"vwap"`
	Low       decimal.Decimal `json:"low"`
	High      decimal.Decimal `json:"high"`
	Change    decimal.Decimal `json:"change"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// StatusData is the connection status entry sent after connecting.
type StatusData struct {
	System       string `json:"system"`
	APIVersion   string `json:"api_version"`
	ConnectionID uint64 `json:"connection_id"`
	Version      string `json:"version"`
}

// Message is a decoded inbound message. Fields not relevant to its channel
// are empty.
type Message struct {
	Channel  string
	Books    []domain.Booked
	Tickers  []domain.TickerState
	Warnings []string
}

// --------------------------------------------------------------------------
// Conversion
// --------------------------------------------------------------------------

func levelsToDomain(in []PriceLevel) []domain.Level {
	out := make([]domain.Level, 0, len(in))
	for _, l := range in {
		out = append(out, domain.Level{Price: l.Price.InexactFloat64(), Quantity: l.Qty.InexactFloat64()})
	}
	return out
}

// BookToDomain converts a book entry. Entries without a timestamp are stamped
// with now.
func BookToDomain(b *BookData, now time.Time) domain.Booked {
	ts := b.Timestamp
	if ts == "" {
		ts = now.UTC().Format(time.RFC3339Nano)
	}
	return domain.Booked{
		Symbol:    b.Symbol,
		Timestamp: ts,
		Bids:      levelsToDomain(b.Bids),
		Asks:      levelsToDomain(b.Asks),
	}
}

// TickerToDomain converts a ticker entry.
func TickerToDomain(t *TickerData) domain.TickerState {
	return domain.TickerState{
		Symbol:    t.Symbol,
		Bid:       t.Bid.InexactFloat64(),
		BidQty:    t.BidQty.InexactFloat64(),
		Ask:       t.Ask.InexactFloat64(),
		AskQty:    t.AskQty.InexactFloat64(),
		Last:      t.Last.InexactFloat64(),
		High:      t.High.InexactFloat64(),
		Low:       t.Low.InexactFloat64(),
		Volume:    t.Volume.InexactFloat64(),
		VWAP:      t.VWAP.InexactFloat64(),
		Change:    t.Change.InexactFloat64(),
		ChangePct: t.ChangePct.InexactFloat64(),
	}
}

// Decode parses one raw message. Heartbeats and successful method responses
// decode to an empty Message. A malformed payload returns an error wrapping
// domain.ErrParse.
func Decode(raw []byte, now time.Time) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("kraken: decode envelope: %w: %v", domain.ErrParse, err)
	}

	if env.Method != "" {
		msg := Message{Channel: env.Method}
		if env.Success != nil && !*env.Success {
			msg.Warnings = append(msg.Warnings, fmt.Sprintf("%s request %d failed: %s", env.Method, env.ReqID, env.Error))
		}
		return msg, nil
	}

	msg := Message{Channel: env.Channel}
	switch env.Channel {
	case "book":
		var data []BookData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Message{}, fmt.Errorf("kraken: decode book %s: %w: %v", env.Type, domain.ErrParse, err)
		}
		for i := range data {
			msg.Books = append(msg.Books, BookToDomain(&data[i], now))
		}

	case "ticker":
		var data []TickerData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Message{}, fmt.Errorf("kraken: decode ticker: %w: %v", domain.ErrParse, err)
		}
		for i := range data {
			msg.Tickers = append(msg.Tickers, TickerToDomain(&data[i]))
		}

	case "status":
		var data []StatusData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Message{}, fmt.Errorf("kraken: decode status: %w: %v", domain.ErrParse, err)
		}
		for _, s := range data {
			if s.System != "" && s.System != "online" {
				msg.Warnings = append(msg.Warnings, fmt.Sprintf("exchange status: %s", s.System))
			}
		}

	case "error":
		msg.Warnings = append(msg.Warnings, fmt.Sprintf("feed error: %s", env.Error))
	}
	return msg, nil
}
