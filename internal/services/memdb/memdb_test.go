package memdb

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(id int64, block uint64, seller string, active bool) *otc.Listing {
	return &otc.Listing{
		ID:          big.NewInt(id),
		Seller:      seller,
		Token:       "0xbb",
		TokenAmount: big.NewInt(1000),
		USDCPrice:   big.NewInt(500),
		ExpiresAt:   big.NewInt(1700000000),
		IsActive:    active,
		Provenance:  otc.Provenance{BlockNumber: block, TransactionHash: "0xt", Timestamp: 1},
	}
}

func TestInsertListingDuplicate(t *testing.T) {
	ctx := context.Background()
	db := New()

	err := db.WithTx(ctx, func(tx otc.Tx) error {
		return tx.InsertListing(ctx, listing(5, 100, "0xaa", true))
	})
	require.NoError(t, err)

	err = db.WithTx(ctx, func(tx otc.Tx) error {
		return tx.InsertListing(ctx, listing(5, 101, "0xaa", true))
	})
	require.ErrorIs(t, err, otc.ErrDuplicateKey)

	l, err := db.GetListing(ctx, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), l.BlockNumber)
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	db := New()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx otc.Tx) error {
		require.NoError(t, tx.InsertListing(ctx, listing(1, 1, "0xaa", true)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = db.GetListing(ctx, big.NewInt(1))
	require.ErrorIs(t, err, otc.ErrNotFound)
	assert.Equal(t, 0, db.Counts()["listings"])
}

func TestUpdateListing(t *testing.T) {
	ctx := context.Background()
	db := New()
	inactive := false

	require.NoError(t, db.WithTx(ctx, func(tx otc.Tx) error {
		return tx.InsertListing(ctx, listing(7, 1, "0xaa", true))
	}))

	var affected, missing int64
	require.NoError(t, db.WithTx(ctx, func(tx otc.Tx) error {
		var err error
		affected, err = tx.UpdateListing(ctx, big.NewInt(7), otc.ListingPatch{IsActive: &inactive})
		if err != nil {
			return err
		}
		missing, err = tx.UpdateListing(ctx, big.NewInt(8), otc.ListingPatch{IsActive: &inactive})
		return err
	}))

	assert.Equal(t, int64(1), affected)
	assert.Equal(t, int64(0), missing)

	l, err := db.GetListing(ctx, big.NewInt(7))
	require.NoError(t, err)
	assert.False(t, l.IsActive)
}

func TestReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	db := New()

	require.NoError(t, db.WithTx(ctx, func(tx otc.Tx) error {
		return tx.InsertListing(ctx, listing(1, 1, "0xaa", true))
	}))

	l, err := db.GetListing(ctx, big.NewInt(1))
	require.NoError(t, err)
	l.IsActive = false

	l, err = db.GetListing(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.True(t, l.IsActive)
}

func TestListListings(t *testing.T) {
	ctx := context.Background()
	db := New()

	require.NoError(t, db.WithTx(ctx, func(tx otc.Tx) error {
		for _, l := range []*otc.Listing{
			listing(1, 10, "0xaa", true),
			listing(2, 11, "0xaa", false),
			listing(3, 11, "0xcc", true),
			listing(4, 12, "0xaa", true),
		} {
			if err := tx.InsertListing(ctx, l); err != nil {
				return err
			}
		}
		return nil
	}))

	active := true
	testCases := []struct {
		name   string
		filter otc.ListingFilter
		ids    []int64
	}{
		{"all", otc.ListingFilter{Page: otc.Page{Limit: 10}}, []int64{4, 3, 2, 1}},
		{"active", otc.ListingFilter{Page: otc.Page{Limit: 10}, Active: &active}, []int64{4, 3, 1}},
		{"seller any case", otc.ListingFilter{Page: otc.Page{Limit: 10}, Seller: "0xAA"}, []int64{4, 2, 1}},
		{"page", otc.ListingFilter{Page: otc.Page{Limit: 2, Offset: 1}}, []int64{3, 2}},
		{"past end", otc.ListingFilter{Page: otc.Page{Limit: 2, Offset: 9}}, []int64{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := db.ListListings(ctx, tc.filter)
			require.NoError(t, err)

			ids := []int64{}
			for _, r := range rows {
				ids = append(ids, r.ID.Int64())
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestCursor(t *testing.T) {
	ctx := context.Background()
	db := New()

	_, err := db.GetCursor(ctx, "0xABC")
	require.ErrorIs(t, err, otc.ErrNotFound)

	require.NoError(t, db.WithTx(ctx, func(tx otc.Tx) error {
		return tx.SetCursor(ctx, &otc.Cursor{Contract: "0xABC", State: otc.CursorStateIndexing, LastBlock: 9, LastLogIndex: 2})
	}))

	c, err := db.GetCursor(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(9), c.LastBlock)
	assert.Equal(t, int64(2), c.LastLogIndex)
}
