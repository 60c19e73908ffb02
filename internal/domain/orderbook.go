package domain

// Level is a single price+quantity entry in a book update. A zero quantity
// removes the level when applied as a delta.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"qty"`
}

// Booked is one order-book message for a symbol as emitted by the feed. The
// first Booked seen for a fresh history is treated as a full snapshot; every
// later one is a set of deltas against the most recent snapshot.
type Booked struct {
	Symbol string
	// Timestamp is an RFC 3339 string. It is the authoritative ordering key.
	Timestamp string
	Bids      []Level
	Asks      []Level
}

// Side identifies one half of the book.
type Side string

const (
	SideBids Side = "bids"
	SideAsks Side = "asks"
)
