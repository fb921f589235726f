package otc

import (
	"context"
	"math/big"
	"strconv"
)

// ListingSnapshot is the wire form of a Listing. Every number is a decimal
// string so uint256 values survive JSON consumers that parse into doubles.
type ListingSnapshot struct {
	ID              string `json:"id"`
	Seller          string `json:"seller"`
	Token           string `json:"token"`
	TokenAmount     string `json:"tokenAmount"`
	USDCPrice       string `json:"usdcPrice"`
	ExpiresAt       string `json:"expiresAt"`
	IsActive        bool   `json:"isActive"`
	BlockNumber     string `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	Timestamp       string `json:"timestamp"`
}

type ExecutionSnapshot struct {
	ID              string `json:"id"`
	ListingID       string `json:"listingId"`
	Seller          string `json:"seller"`
	Buyer           string `json:"buyer"`
	Token           string `json:"token"`
	TokenAmount     string `json:"tokenAmount"`
	USDCPrice       string `json:"usdcPrice"`
	ProtocolFee     string `json:"protocolFee"`
	BlockNumber     string `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	Timestamp       string `json:"timestamp"`
}

type CancellationSnapshot struct {
	ID              string `json:"id"`
	ListingID       string `json:"listingId"`
	Seller          string `json:"seller"`
	BlockNumber     string `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	Timestamp       string `json:"timestamp"`
}

type FeeWithdrawalSnapshot struct {
	ID              string `json:"id"`
	Recipient       string `json:"recipient"`
	Amount          string `json:"amount"`
	BlockNumber     string `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	Timestamp       string `json:"timestamp"`
}

type FeeRecipientUpdateSnapshot struct {
	ID              string `json:"id"`
	OldRecipient    string `json:"oldRecipient"`
	NewRecipient    string `json:"newRecipient"`
	BlockNumber     string `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	Timestamp       string `json:"timestamp"`
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func (l *Listing) Snapshot() *ListingSnapshot {
	return &ListingSnapshot{
		ID:              decimal(l.ID),
		Seller:          l.Seller,
		Token:           l.Token,
		TokenAmount:     decimal(l.TokenAmount),
		USDCPrice:       decimal(l.USDCPrice),
		ExpiresAt:       decimal(l.ExpiresAt),
		IsActive:        l.IsActive,
		BlockNumber:     u64(l.BlockNumber),
		TransactionHash: l.TransactionHash,
		Timestamp:       u64(l.Timestamp),
	}
}

func (e *ListingExecution) Snapshot() *ExecutionSnapshot {
	return &ExecutionSnapshot{
		ID:              e.ID,
		ListingID:       decimal(e.ListingID),
		Seller:          e.Seller,
		Buyer:           e.Buyer,
		Token:           e.Token,
		TokenAmount:     decimal(e.TokenAmount),
		USDCPrice:       decimal(e.USDCPrice),
		ProtocolFee:     decimal(e.ProtocolFee),
		BlockNumber:     u64(e.BlockNumber),
		TransactionHash: e.TransactionHash,
		Timestamp:       u64(e.Timestamp),
	}
}

func (c *ListingCancellation) Snapshot() *CancellationSnapshot {
	return &CancellationSnapshot{
		ID:              c.ID,
		ListingID:       decimal(c.ListingID),
		Seller:          c.Seller,
		BlockNumber:     u64(c.BlockNumber),
		TransactionHash: c.TransactionHash,
		Timestamp:       u64(c.Timestamp),
	}
}

func (w *FeeWithdrawal) Snapshot() *FeeWithdrawalSnapshot {
	return &FeeWithdrawalSnapshot{
		ID:              w.ID,
		Recipient:       w.Recipient,
		Amount:          decimal(w.Amount),
		BlockNumber:     u64(w.BlockNumber),
		TransactionHash: w.TransactionHash,
		Timestamp:       u64(w.Timestamp),
	}
}

func (u *FeeRecipientUpdate) Snapshot() *FeeRecipientUpdateSnapshot {
	return &FeeRecipientUpdateSnapshot{
		ID:              u.ID,
		OldRecipient:    u.OldRecipient,
		NewRecipient:    u.NewRecipient,
		BlockNumber:     u64(u.BlockNumber),
		TransactionHash: u.TransactionHash,
		Timestamp:       u64(u.Timestamp),
	}
}

type NotificationKind string

const (
	NotificationListing   NotificationKind = "listing"
	NotificationExecution NotificationKind = "execution"
)

// Notification is a fact mirrored to external services after commit.
// Exactly one of Listing and Execution is set, matching Kind.
type Notification struct {
	Kind      NotificationKind
	Listing   *ListingSnapshot
	Execution *ExecutionSnapshot
}

// Key identifies the notified fact; used as the message key by mirrors.
func (n Notification) Key() string {
	switch n.Kind {
	case NotificationListing:
		if n.Listing != nil {
			return n.Listing.ID
		}
	case NotificationExecution:
		if n.Execution != nil {
			return n.Execution.ID
		}
	}
	return ""
}

// Payload returns the snapshot to serialize for n.
func (n Notification) Payload() any {
	if n.Kind == NotificationExecution {
		return n.Execution
	}
	return n.Listing
}

// Notifier accepts facts after their store write committed. Implementations
// must not block the caller on I/O and must never fail it.
type Notifier interface {
	Notify(n Notification)
}

// Forwarder delivers one notification to one destination.
type Forwarder interface {
	Forward(ctx context.Context, n Notification)
}
