package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrParse         = errors.New("unparseable update")
	ErrConsistency   = errors.New("book sides evicted out of lockstep")
	ErrUnknownSymbol = errors.New("symbol not subscribed")
	ErrQueueFull     = errors.New("action queue full")
	ErrFeedTimeout   = errors.New("feed read timeout")
	ErrWSDisconnect  = errors.New("websocket disconnected")
)
