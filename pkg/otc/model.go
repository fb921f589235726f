package otc

import (
	"math/big"
	"time"
)

// Provenance is recorded on every row.
type Provenance struct {
	BlockNumber     uint64 `json:"block_number"`
	TransactionHash string `json:"transaction_hash"`
	Timestamp       uint64 `json:"timestamp"`
}

func ProvenanceOf(e Envelope) Provenance {
	return Provenance{
		BlockNumber:     e.BlockNumber,
		TransactionHash: e.TransactionHash,
		Timestamp:       e.BlockTimestamp,
	}
}

type Listing struct {
	ID          *big.Int `json:"id"`
	Seller      string   `json:"seller"`
	Token       string   `json:"token"`
	TokenAmount *big.Int `json:"token_amount"`
	USDCPrice   *big.Int `json:"usdc_price"`
	ExpiresAt   *big.Int `json:"expires_at"`
	IsActive    bool     `json:"is_active"`

	Provenance
}

// ListingPatch is a partial update of a Listing. Nil fields are left alone.
type ListingPatch struct {
	IsActive *bool
}

// Apply writes the set fields of p onto l.
func (p ListingPatch) Apply(l *Listing) {
	if p.IsActive != nil {
		l.IsActive = *p.IsActive
	}
}

func (p ListingPatch) Empty() bool {
	return p.IsActive == nil
}

type ListingExecution struct {
	ID          string   `json:"id"`
	ListingID   *big.Int `json:"listing_id"`
	Seller      string   `json:"seller"`
	Buyer       string   `json:"buyer"`
	Token       string   `json:"token"`
	TokenAmount *big.Int `json:"token_amount"`
	USDCPrice   *big.Int `json:"usdc_price"`
	ProtocolFee *big.Int `json:"protocol_fee"`

	Provenance
}

type ListingCancellation struct {
	ID        string   `json:"id"`
	ListingID *big.Int `json:"listing_id"`
	Seller    string   `json:"seller"`

	Provenance
}

type FeeWithdrawal struct {
	ID        string   `json:"id"`
	Recipient string   `json:"recipient"`
	Amount    *big.Int `json:"amount"`

	Provenance
}

type FeeRecipientUpdate struct {
	ID           string `json:"id"`
	OldRecipient string `json:"old_recipient"`
	NewRecipient string `json:"new_recipient"`

	Provenance
}

type CursorState string

const (
	CursorStateQueued   CursorState = "queued"
	CursorStateIndexing CursorState = "indexing"
	CursorStateIndexed  CursorState = "indexed"
)

// Cursor is the position of the last applied log for a contract.
// LastLogIndex is -1 when LastBlock was fully applied.
type Cursor struct {
	Contract     string      `json:"contract"`
	State        CursorState `json:"state"`
	StartBlock   int64       `json:"start_block"`
	LastBlock    int64       `json:"last_block"`
	LastLogIndex int64       `json:"last_log_index"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Covers reports whether the log at block/logIndex was already applied.
func (c *Cursor) Covers(block uint64, logIndex uint) bool {
	if int64(block) != c.LastBlock {
		return int64(block) < c.LastBlock
	}
	return c.LastLogIndex < 0 || int64(logIndex) <= c.LastLogIndex
}

// Advance moves the cursor to the given log.
func (c *Cursor) Advance(block uint64, logIndex uint) {
	c.LastBlock = int64(block)
	c.LastLogIndex = int64(logIndex)
}

// Complete marks every log up to and including block as applied.
func (c *Cursor) Complete(block int64) {
	c.LastBlock = block
	c.LastLogIndex = -1
}
