package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// TickerCache implements domain.TickerCache with one hash per symbol at
// "ticker:{symbol}". Every TickerState field is stored as a decimal string.
type TickerCache struct {
	rdb *redis.Client
}

// NewTickerCache creates a TickerCache backed by c.
func NewTickerCache(c *Client) *TickerCache {
	return &TickerCache{rdb: c.Underlying()}
}

func tickerKey(symbol string) string {
	return "ticker:" + symbol
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// tickerFields flattens t into hash fields.
func tickerFields(t domain.TickerState) map[string]interface{} {
	return map[string]interface{}{
		"bid":        formatFloat(t.Bid),
		"bid_qty":    formatFloat(t.BidQty),
		"ask":        formatFloat(t.Ask),
		"ask_qty":    formatFloat(t.AskQty),
		"last":       formatFloat(t.Last),
		"high":       formatFloat(t.High),
		"low":        formatFloat(t.Low),
		"volume":     formatFloat(t.Volume),
		"vwap":       formatFloat(t.VWAP),
		"change":     formatFloat(t.Change),
		"change_pct": formatFloat(t.ChangePct),
	}
}

// parseTicker is the inverse of tickerFields. Missing fields decode as zero.
func parseTicker(symbol string, vals map[string]string) (domain.TickerState, error) {
	t := domain.TickerState{Symbol: symbol}
	targets := map[string]*float64{
		"bid": &t.Bid, "bid_qty": &t.BidQty, "ask": &t.Ask, "ask_qty": &t.AskQty,
		"last": &t.Last, "high": &t.High, "low": &t.Low, "volume": &t.Volume,
		"vwap": &t.VWAP, "change": &t.Change, "change_pct": &t.ChangePct,
	}
	for field, dst := range targets {
		raw, ok := vals[field]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.TickerState{}, fmt.Errorf("redis: parse ticker %s field %s: %w", symbol, field, err)
		}
		*dst = v
	}
	return t, nil
}

// SetTicker stores the latest ticker of t.Symbol.
func (tc *TickerCache) SetTicker(ctx context.Context, t domain.TickerState) error {
	if err := tc.rdb.HSet(ctx, tickerKey(t.Symbol), tickerFields(t)).Err(); err != nil {
		return fmt.Errorf("redis: set ticker %s: %w", t.Symbol, err)
	}
	return nil
}

// GetTicker returns the stored ticker of symbol or domain.ErrNotFound.
func (tc *TickerCache) GetTicker(ctx context.Context, symbol string) (domain.TickerState, error) {
	vals, err := tc.rdb.HGetAll(ctx, tickerKey(symbol)).Result()
	if err != nil {
		return domain.TickerState{}, fmt.Errorf("redis: get ticker %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.TickerState{}, domain.ErrNotFound
	}
	return parseTicker(symbol, vals)
}

var _ domain.TickerCache = (*TickerCache)(nil)
