package sc

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	OTCListingCreated      = "ListingCreated(uint256,address,address,uint256,uint256,uint256)"
	OTCListingExecuted     = "ListingExecuted(uint256,address,address,address,uint256,uint256,uint256)"
	OTCListingCancelled    = "ListingCancelled(uint256,address)"
	OTCFeesWithdrawn       = "FeesWithdrawn(address,uint256)"
	OTCFeeRecipientUpdated = "FeeRecipientUpdated(address,address)"
)

var (
	OTCListingCreatedID      = crypto.Keccak256Hash([]byte(OTCListingCreated))
	OTCListingExecutedID     = crypto.Keccak256Hash([]byte(OTCListingExecuted))
	OTCListingCancelledID    = crypto.Keccak256Hash([]byte(OTCListingCancelled))
	OTCFeesWithdrawnID       = crypto.Keccak256Hash([]byte(OTCFeesWithdrawn))
	OTCFeeRecipientUpdatedID = crypto.Keccak256Hash([]byte(OTCFeeRecipientUpdated))
)

// OverTheCounterABI holds the events of the marketplace contract. Decoding
// reads the indexed flags from here, so a redeployed contract with a
// different indexing only needs this definition updated.
const OverTheCounterABI = `[
	{"type":"event","name":"ListingCreated","anonymous":false,"inputs":[
		{"name":"listingId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true},
		{"name":"token","type":"address","indexed":true},
		{"name":"tokenAmount","type":"uint256","indexed":false},
		{"name":"usdcPrice","type":"uint256","indexed":false},
		{"name":"expiresAt","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"ListingExecuted","anonymous":false,"inputs":[
		{"name":"listingId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true},
		{"name":"buyer","type":"address","indexed":true},
		{"name":"token","type":"address","indexed":false},
		{"name":"tokenAmount","type":"uint256","indexed":false},
		{"name":"usdcPrice","type":"uint256","indexed":false},
		{"name":"protocolFee","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"ListingCancelled","anonymous":false,"inputs":[
		{"name":"listingId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true}
	]},
	{"type":"event","name":"FeesWithdrawn","anonymous":false,"inputs":[
		{"name":"recipient","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"FeeRecipientUpdated","anonymous":false,"inputs":[
		{"name":"oldRecipient","type":"address","indexed":true},
		{"name":"newRecipient","type":"address","indexed":true}
	]}
]`

func GetOTCABI() (*abi.ABI, error) {
	contractAbi, err := abi.JSON(strings.NewReader(OverTheCounterABI))
	if err != nil {
		return nil, err
	}

	return &contractAbi, nil
}

// GetOTCTopics returns the topic filter matching any of the five events.
func GetOTCTopics() [][]common.Hash {
	return [][]common.Hash{{
		OTCListingCreatedID,
		OTCListingExecutedID,
		OTCListingCancelledID,
		OTCFeesWithdrawnID,
		OTCFeeRecipientUpdatedID,
	}}
}
