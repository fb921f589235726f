package otc

import (
	"math/big"
)

type EventKind string

const (
	KindListingCreated      EventKind = "ListingCreated"
	KindListingExecuted     EventKind = "ListingExecuted"
	KindListingCancelled    EventKind = "ListingCancelled"
	KindFeesWithdrawn       EventKind = "FeesWithdrawn"
	KindFeeRecipientUpdated EventKind = "FeeRecipientUpdated"
)

// Envelope carries the chain position of a decoded log.
type Envelope struct {
	BlockNumber     uint64 `json:"block_number"`
	TransactionHash string `json:"transaction_hash"`
	BlockTimestamp  uint64 `json:"block_timestamp"`
	LogIndex        uint   `json:"log_index"`
}

// ID returns the "{transactionHash}-{logIndex}" key of the log.
func (e Envelope) ID() string {
	return EventID(e.TransactionHash, e.LogIndex)
}

// Event is one of the five marketplace events. The set is closed: only the
// types in this file implement it.
type Event interface {
	Kind() EventKind
	Meta() Envelope

	event()
}

type ListingCreated struct {
	Envelope

	ListingID   *big.Int
	Seller      string
	Token       string
	TokenAmount *big.Int
	USDCPrice   *big.Int
	ExpiresAt   *big.Int
}

type ListingExecuted struct {
	Envelope

	ListingID   *big.Int
	Seller      string
	Buyer       string
	Token       string
	TokenAmount *big.Int
	USDCPrice   *big.Int
	ProtocolFee *big.Int
}

type ListingCancelled struct {
	Envelope

	ListingID *big.Int
	Seller    string
}

type FeesWithdrawn struct {
	Envelope

	Recipient string
	Amount    *big.Int
}

type FeeRecipientUpdated struct {
	Envelope

	OldRecipient string
	NewRecipient string
}

func (e *ListingCreated) Kind() EventKind      { return KindListingCreated }
func (e *ListingExecuted) Kind() EventKind     { return KindListingExecuted }
func (e *ListingCancelled) Kind() EventKind    { return KindListingCancelled }
func (e *FeesWithdrawn) Kind() EventKind       { return KindFeesWithdrawn }
func (e *FeeRecipientUpdated) Kind() EventKind { return KindFeeRecipientUpdated }

func (e *ListingCreated) Meta() Envelope      { return e.Envelope }
func (e *ListingExecuted) Meta() Envelope     { return e.Envelope }
func (e *ListingCancelled) Meta() Envelope    { return e.Envelope }
func (e *FeesWithdrawn) Meta() Envelope       { return e.Envelope }
func (e *FeeRecipientUpdated) Meta() Envelope { return e.Envelope }

func (*ListingCreated) event()      {}
func (*ListingExecuted) event()     {}
func (*ListingCancelled) event()    {}
func (*FeesWithdrawn) event()       {}
func (*FeeRecipientUpdated) event() {}
