package index

import (
	"math/big"
	"testing"

	"github.com/anky/otc-indexer/internal/sc"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	seller       = common.HexToAddress("0xAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaa")
	buyer        = common.HexToAddress("0xCCccCCccCCccCCccCCccCCccCCccCCccCCccCCcc")
	token        = common.HexToAddress("0xBBbbBBbbBBbbBBbbBBbbBBbbBBbbBBbbBBbbBBbb")
)

func topic(v any) common.Hash {
	switch x := v.(type) {
	case *big.Int:
		return common.BigToHash(x)
	case common.Address:
		return common.BytesToHash(x.Bytes())
	}
	panic("unsupported topic")
}

// makeLog packs an event the way the contract emits it.
func makeLog(t *testing.T, name string, block uint64, tx string, index uint, args ...any) types.Log {
	t.Helper()

	contractAbi, err := sc.GetOTCABI()
	require.NoError(t, err)

	ev := contractAbi.Events[name]

	topics := []common.Hash{ev.ID}
	var data []any
	for i, arg := range ev.Inputs {
		if arg.Indexed {
			topics = append(topics, topic(args[i]))
			continue
		}
		data = append(data, args[i])
	}

	var packed []byte
	if len(data) > 0 {
		packed, err = abi.Arguments(ev.Inputs.NonIndexed()).Pack(data...)
		require.NoError(t, err)
	}

	return types.Log{
		Address:     testContract,
		Topics:      topics,
		Data:        packed,
		BlockNumber: block,
		TxHash:      common.HexToHash(tx),
		Index:       index,
	}
}

func createdLog(t *testing.T, id int64, block uint64, tx string, index uint) types.Log {
	return makeLog(t, "ListingCreated", block, tx, index,
		big.NewInt(id), seller, token, big.NewInt(1000), big.NewInt(500), big.NewInt(1700000000))
}

func executedLog(t *testing.T, id int64, block uint64, tx string, index uint) types.Log {
	return makeLog(t, "ListingExecuted", block, tx, index,
		big.NewInt(id), seller, buyer, token, big.NewInt(1000), big.NewInt(500), big.NewInt(4))
}

func TestDecode(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	t.Run("ListingCreated", func(t *testing.T) {
		lg := createdLog(t, 5, 100, "0x01", 0)

		ev, err := d.Decode(lg, 1699999999)
		require.NoError(t, err)

		c, ok := ev.(*otc.ListingCreated)
		require.True(t, ok)
		assert.Equal(t, "5", c.ListingID.String())
		assert.Equal(t, seller.Hex(), c.Seller)
		assert.Equal(t, token.Hex(), c.Token)
		assert.Equal(t, "1000", c.TokenAmount.String())
		assert.Equal(t, "500", c.USDCPrice.String())
		assert.Equal(t, "1700000000", c.ExpiresAt.String())
		assert.Equal(t, uint64(100), c.BlockNumber)
		assert.Equal(t, uint64(1699999999), c.BlockTimestamp)
		assert.Equal(t, lg.TxHash.Hex(), c.TransactionHash)
	})

	t.Run("ListingExecuted", func(t *testing.T) {
		ev, err := d.Decode(executedLog(t, 5, 101, "0x02", 1), 0)
		require.NoError(t, err)

		x, ok := ev.(*otc.ListingExecuted)
		require.True(t, ok)
		assert.Equal(t, buyer.Hex(), x.Buyer)
		assert.Equal(t, token.Hex(), x.Token)
		assert.Equal(t, "4", x.ProtocolFee.String())
		assert.Equal(t, uint(1), x.LogIndex)
	})

	t.Run("ListingCancelled", func(t *testing.T) {
		ev, err := d.Decode(makeLog(t, "ListingCancelled", 1, "0x03", 0, big.NewInt(7), seller), 0)
		require.NoError(t, err)

		c, ok := ev.(*otc.ListingCancelled)
		require.True(t, ok)
		assert.Equal(t, "7", c.ListingID.String())
		assert.Equal(t, seller.Hex(), c.Seller)
	})

	t.Run("FeesWithdrawn", func(t *testing.T) {
		ev, err := d.Decode(makeLog(t, "FeesWithdrawn", 1, "0x04", 2, buyer, big.NewInt(99)), 0)
		require.NoError(t, err)

		w, ok := ev.(*otc.FeesWithdrawn)
		require.True(t, ok)
		assert.Equal(t, buyer.Hex(), w.Recipient)
		assert.Equal(t, "99", w.Amount.String())
	})

	t.Run("FeeRecipientUpdated", func(t *testing.T) {
		ev, err := d.Decode(makeLog(t, "FeeRecipientUpdated", 1, "0x05", 0, seller, buyer), 0)
		require.NoError(t, err)

		u, ok := ev.(*otc.FeeRecipientUpdated)
		require.True(t, ok)
		assert.Equal(t, seller.Hex(), u.OldRecipient)
		assert.Equal(t, buyer.Hex(), u.NewRecipient)
	})

	t.Run("unknown topic", func(t *testing.T) {
		_, err := d.Decode(types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}}, 0)
		assert.ErrorIs(t, err, otc.ErrUnknownEvent)

		_, err = d.Decode(types.Log{}, 0)
		assert.ErrorIs(t, err, otc.ErrUnknownEvent)
	})

	t.Run("missing topics", func(t *testing.T) {
		lg := createdLog(t, 5, 100, "0x01", 0)
		lg.Topics = lg.Topics[:2]

		_, err := d.Decode(lg, 0)
		assert.ErrorIs(t, err, ErrMalformedLog)
	})

	t.Run("truncated data", func(t *testing.T) {
		lg := createdLog(t, 5, 100, "0x01", 0)
		lg.Data = lg.Data[:32]

		_, err := d.Decode(lg, 0)
		assert.ErrorIs(t, err, ErrMalformedLog)
	})
}
