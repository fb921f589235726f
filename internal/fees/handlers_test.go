package fees

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	com "github.com/anky/otc-indexer/internal/common"
	"github.com/anky/otc-indexer/internal/services/memdb"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listResponse[T any] struct {
	Array []T            `json:"array"`
	Meta  com.Pagination `json:"meta"`
}

func TestFees(t *testing.T) {
	db := memdb.New()
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx otc.Tx) error {
		for i := 0; i < 3; i++ {
			err := tx.InsertFeeWithdrawal(ctx, &otc.FeeWithdrawal{
				ID:         fmt.Sprintf("0x0%d-0", i),
				Recipient:  "0xcccccccccccccccccccccccccccccccccccccccc",
				Amount:     big.NewInt(int64(100 + i)),
				Provenance: otc.Provenance{BlockNumber: uint64(10 + i), TransactionHash: fmt.Sprintf("0x0%d", i)},
			})
			if err != nil {
				return err
			}
		}

		return tx.InsertFeeRecipientUpdate(ctx, &otc.FeeRecipientUpdate{
			ID:           "0x09-4",
			OldRecipient: "0xcccccccccccccccccccccccccccccccccccccccc",
			NewRecipient: "0xdddddddddddddddddddddddddddddddddddddddd",
			Provenance:   otc.Provenance{BlockNumber: 30, TransactionHash: "0x09"},
		})
	})
	require.NoError(t, err)

	s := NewService(db)

	t.Run("withdrawals", func(t *testing.T) {
		rr := httptest.NewRecorder()
		s.Withdrawals(rr, httptest.NewRequest(http.MethodGet, "/fees/withdrawals?limit=2", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp listResponse[otc.FeeWithdrawalSnapshot]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

		require.Len(t, resp.Array, 2)
		assert.Equal(t, "102", resp.Array[0].Amount)
		assert.Equal(t, "101", resp.Array[1].Amount)
		assert.Equal(t, 2, resp.Meta.Limit)
	})

	t.Run("recipients", func(t *testing.T) {
		rr := httptest.NewRecorder()
		s.Recipients(rr, httptest.NewRequest(http.MethodGet, "/fees/recipients", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp listResponse[otc.FeeRecipientUpdateSnapshot]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

		require.Len(t, resp.Array, 1)
		assert.Equal(t, "0xdddddddddddddddddddddddddddddddddddddddd", resp.Array[0].NewRecipient)
		assert.Equal(t, "30", resp.Array[0].BlockNumber)
	})
}
