// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType represents the type of event.
type EventType string

const (
	// Pair lifecycle
	PairCreated     EventType = "pair.created"
	LiquiditySeeded EventType = "liquidity.seeded"
	TradeExecuted   EventType = "trade.executed"

	// Launch lifecycle
	TokenLaunched   EventType = "token.launched"
	TokenGraduated  EventType = "token.graduated"
	LaunchReserved  EventType = "launch.reserved"
	LaunchExecuted  EventType = "launch.executed"
	LaunchCancelled EventType = "launch.cancelled"

	// Configuration
	TaxParametersUpdated EventType = "tax.updated"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Sequence() uint64
	TokenAddress() solana.PublicKey
	PairAddress() solana.PublicKey
}

// BaseEvent provides common fields for all events. Seq is unique and
// increasing across the whole ledger, so a token's history can be replayed
// in order from any store.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
	Seq       uint64
	Token     solana.PublicKey
	Pair      solana.PublicKey
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// Sequence returns the ledger-wide sequence number.
func (e BaseEvent) Sequence() uint64 {
	return e.Seq
}

// TokenAddress returns the launched token the event belongs to.
func (e BaseEvent) TokenAddress() solana.PublicKey {
	return e.Token
}

// PairAddress returns the pair (or external pool) the event refers to.
func (e BaseEvent) PairAddress() solana.PublicKey {
	return e.Pair
}

// PairCreatedEvent is emitted when the registry creates a pair.
type PairCreatedEvent struct {
	BaseEvent
	Asset     solana.PublicKey
	Model     string
	StartTime time.Time
	Index     int
}

// LiquiditySeededEvent is emitted once per pair when initial liquidity lands.
type LiquiditySeededEvent struct {
	BaseEvent
	TokenAmount uint64
	AssetAmount uint64
	K           string // frozen invariant, empty for balance-model pairs
}

// TradeExecutedEvent carries the four reserve deltas of a swap.
type TradeExecutedEvent struct {
	BaseEvent
	TokenIn  uint64
	TokenOut uint64
	AssetIn  uint64
	AssetOut uint64
}

// IsBuy reports whether the trade moved asset into the pair.
func (e TradeExecutedEvent) IsBuy() bool {
	return e.AssetIn > 0
}

// TokenLaunchedEvent is emitted when a launch record is created.
type TokenLaunchedEvent struct {
	BaseEvent
	Creator         solana.PublicKey
	Asset           solana.PublicKey
	Name            string
	Symbol          string
	Supply          uint64
	Fee             uint64
	InitialPurchase uint64
	Index           int
}

// TokenGraduatedEvent is emitted after liquidity moved to the external venue.
// Pair holds the external pool, BondingPair the retired curve pair.
type TokenGraduatedEvent struct {
	BaseEvent
	BondingPair solana.PublicKey
	AssetAmount uint64
	TokenAmount uint64
	Burned      uint64
	LPMinted    uint64
}

// LaunchReservedEvent is emitted by the first phase of a two-phase launch.
type LaunchReservedEvent struct {
	BaseEvent
	Creator       solana.PublicKey
	StartTime     time.Time
	Escrow        uint64
	ApplicationID uint64
}

// LaunchExecutedEvent is emitted when a reserved launch opens for trading.
type LaunchExecutedEvent struct {
	BaseEvent
	Creator   solana.PublicKey
	TokensOut uint64
}

// LaunchCancelledEvent is emitted when a reservation is abandoned.
type LaunchCancelledEvent struct {
	BaseEvent
	Creator solana.PublicKey
	Refund  uint64
}

// TaxParametersUpdatedEvent is emitted on every registry tax change.
type TaxParametersUpdatedEvent struct {
	BaseEvent
	Vault             solana.PublicKey
	AntiSniperVault   solana.PublicKey
	BuyBp             uint64
	SellBp            uint64
	AntiSniperStartBp uint64
}

// New returns an empty event value for the given type, used when decoding
// stored records.
func New(t EventType) (Event, bool) {
	switch t {
	case PairCreated:
		return &PairCreatedEvent{}, true
	case LiquiditySeeded:
		return &LiquiditySeededEvent{}, true
	case TradeExecuted:
		return &TradeExecutedEvent{}, true
	case TokenLaunched:
		return &TokenLaunchedEvent{}, true
	case TokenGraduated:
		return &TokenGraduatedEvent{}, true
	case LaunchReserved:
		return &LaunchReservedEvent{}, true
	case LaunchExecuted:
		return &LaunchExecutedEvent{}, true
	case LaunchCancelled:
		return &LaunchCancelledEvent{}, true
	case TaxParametersUpdated:
		return &TaxParametersUpdatedEvent{}, true
	}
	return nil, false
}
