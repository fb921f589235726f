package index

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/anky/otc-indexer/internal/sc"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrMalformedLog = errors.New("malformed log")

// Decoder turns raw contract logs into marketplace events.
type Decoder struct {
	abi *abi.ABI
}

func NewDecoder() (*Decoder, error) {
	contractAbi, err := sc.GetOTCABI()
	if err != nil {
		return nil, err
	}

	return &Decoder{abi: contractAbi}, nil
}

// Decode parses log with the contract abi. Indexed arguments are read from
// the topics, the rest from the data.
func (d *Decoder) Decode(log types.Log, blockTime uint64) (otc.Event, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("%w: anonymous log", otc.ErrUnknownEvent)
	}

	ev, err := d.abi.EventByID(log.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", otc.ErrUnknownEvent, log.Topics[0].Hex())
	}

	values := map[string]any{}

	err = d.abi.UnpackIntoMap(values, ev.Name, log.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s data: %v", ErrMalformedLog, ev.Name, err)
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	err = abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s topics: %v", ErrMalformedLog, ev.Name, err)
	}

	env := otc.Envelope{
		BlockNumber:     log.BlockNumber,
		TransactionHash: log.TxHash.Hex(),
		BlockTimestamp:  blockTime,
		LogIndex:        log.Index,
	}

	v := &fields{name: ev.Name, values: values}

	var out otc.Event
	switch ev.Name {
	case string(otc.KindListingCreated):
		out = &otc.ListingCreated{
			Envelope:    env,
			ListingID:   v.number("listingId"),
			Seller:      v.address("seller"),
			Token:       v.address("token"),
			TokenAmount: v.number("tokenAmount"),
			USDCPrice:   v.number("usdcPrice"),
			ExpiresAt:   v.number("expiresAt"),
		}
	case string(otc.KindListingExecuted):
		out = &otc.ListingExecuted{
			Envelope:    env,
			ListingID:   v.number("listingId"),
			Seller:      v.address("seller"),
			Buyer:       v.address("buyer"),
			Token:       v.address("token"),
			TokenAmount: v.number("tokenAmount"),
			USDCPrice:   v.number("usdcPrice"),
			ProtocolFee: v.number("protocolFee"),
		}
	case string(otc.KindListingCancelled):
		out = &otc.ListingCancelled{
			Envelope:  env,
			ListingID: v.number("listingId"),
			Seller:    v.address("seller"),
		}
	case string(otc.KindFeesWithdrawn):
		out = &otc.FeesWithdrawn{
			Envelope:  env,
			Recipient: v.address("recipient"),
			Amount:    v.number("amount"),
		}
	case string(otc.KindFeeRecipientUpdated):
		out = &otc.FeeRecipientUpdated{
			Envelope:     env,
			OldRecipient: v.address("oldRecipient"),
			NewRecipient: v.address("newRecipient"),
		}
	default:
		return nil, fmt.Errorf("%w: %s", otc.ErrUnknownEvent, ev.Name)
	}

	if v.err != nil {
		return nil, v.err
	}

	return out, nil
}

// fields reads typed values out of an unpacked log, keeping the first error.
type fields struct {
	name   string
	values map[string]any
	err    error
}

func (f *fields) fail(key string, got any) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: %s.%s has type %T", ErrMalformedLog, f.name, key, got)
	}
}

func (f *fields) number(key string) *big.Int {
	v, ok := f.values[key].(*big.Int)
	if !ok {
		f.fail(key, f.values[key])
		return nil
	}
	return v
}

func (f *fields) address(key string) string {
	v, ok := f.values[key].(common.Address)
	if !ok {
		f.fail(key, f.values[key])
		return ""
	}
	return v.Hex()
}
