package listings

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	com "github.com/anky/otc-indexer/internal/common"
	"github.com/anky/otc-indexer/internal/services/memdb"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seller = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	other  = "0xdddddddddddddddddddddddddddddddddddddddd"
	buyer  = "0xcccccccccccccccccccccccccccccccccccccccc"
	token  = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type listResponse[T any] struct {
	ResponseType com.ResponseType `json:"response_type"`
	Array        []T              `json:"array"`
	Meta         com.Pagination   `json:"meta"`
}

type objectResponse[T any] struct {
	ResponseType com.ResponseType `json:"response_type"`
	Object       T                `json:"object"`
}

func seed(t *testing.T) *memdb.DB {
	t.Helper()

	db := memdb.New()
	ctx := context.Background()

	listing := func(id int64, seller string, block uint64, active bool) *otc.Listing {
		return &otc.Listing{
			ID:          big.NewInt(id),
			Seller:      seller,
			Token:       token,
			TokenAmount: big.NewInt(1000),
			USDCPrice:   big.NewInt(500),
			ExpiresAt:   big.NewInt(1700000000),
			IsActive:    active,
			Provenance:  otc.Provenance{BlockNumber: block, TransactionHash: "0x01", Timestamp: 1000 + block},
		}
	}

	err := db.WithTx(ctx, func(tx otc.Tx) error {
		for _, l := range []*otc.Listing{
			listing(1, seller, 10, false),
			listing(2, seller, 11, true),
			listing(3, other, 12, true),
			listing(4, other, 13, false),
		} {
			if err := tx.InsertListing(ctx, l); err != nil {
				return err
			}
		}

		err := tx.InsertExecution(ctx, &otc.ListingExecution{
			ID:          "0x02-0",
			ListingID:   big.NewInt(1),
			Seller:      seller,
			Buyer:       buyer,
			Token:       token,
			TokenAmount: big.NewInt(1000),
			USDCPrice:   big.NewInt(500),
			ProtocolFee: big.NewInt(2),
			Provenance:  otc.Provenance{BlockNumber: 20, TransactionHash: "0x02", Timestamp: 1020},
		})
		if err != nil {
			return err
		}

		return tx.InsertCancellation(ctx, &otc.ListingCancellation{
			ID:         "0x03-1",
			ListingID:  big.NewInt(4),
			Seller:     other,
			Provenance: otc.Provenance{BlockNumber: 21, TransactionHash: "0x03", Timestamp: 1021},
		})
	})
	require.NoError(t, err)

	return db
}

func serve(s *Service, target string) *httptest.ResponseRecorder {
	cr := chi.NewRouter()
	cr.Get("/listings", s.List)
	cr.Get("/listings/{listing_id}", s.Get)
	cr.Get("/listings/{listing_id}/executions", s.GetExecutions)
	cr.Get("/listings/{listing_id}/cancellations", s.GetCancellations)
	cr.Get("/executions", s.ListExecutions)
	cr.Get("/cancellations", s.ListCancellations)

	rr := httptest.NewRecorder()
	cr.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestList(t *testing.T) {
	s := NewService(seed(t))

	tests := []struct {
		name   string
		target string
		ids    []string
	}{
		{"all newest first", "/listings", []string{"4", "3", "2", "1"}},
		{"active", "/listings?active=true", []string{"3", "2"}},
		{"inactive", "/listings?active=false", []string{"4", "1"}},
		{"seller mixed case", "/listings?seller=0xAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaa", []string{"2", "1"}},
		{"seller and active", "/listings?seller=" + other + "&active=true", []string{"3"}},
		{"token", "/listings?token=" + token + "&limit=2", []string{"4", "3"}},
		{"offset", "/listings?limit=2&offset=2", []string{"2", "1"}},
		{"no match", "/listings?token=" + buyer, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, tt.target)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			resp := decode[listResponse[otc.ListingSnapshot]](t, rr)
			assert.Equal(t, com.ResponseTypeArray, resp.ResponseType)

			ids := []string{}
			for _, l := range resp.Array {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}

	t.Run("bad params", func(t *testing.T) {
		for _, target := range []string{
			"/listings?active=maybe",
			"/listings?seller=0x123",
			"/listings?token=bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		} {
			assert.Equal(t, http.StatusBadRequest, serve(s, target).Code, target)
		}
	})
}

func TestGet(t *testing.T) {
	s := NewService(seed(t))

	rr := serve(s, "/listings/2")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[objectResponse[otc.ListingSnapshot]](t, rr)
	assert.Equal(t, com.ResponseTypeObject, resp.ResponseType)
	assert.Equal(t, otc.ListingSnapshot{
		ID:              "2",
		Seller:          seller,
		Token:           token,
		TokenAmount:     "1000",
		USDCPrice:       "500",
		ExpiresAt:       "1700000000",
		IsActive:        true,
		BlockNumber:     "11",
		TransactionHash: "0x01",
		Timestamp:       "1011",
	}, resp.Object)

	assert.Equal(t, http.StatusNotFound, serve(s, "/listings/99").Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, "/listings/abc").Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, "/listings/-1").Code)
}

func TestExecutions(t *testing.T) {
	s := NewService(seed(t))

	rr := serve(s, "/listings/1/executions")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[listResponse[otc.ExecutionSnapshot]](t, rr)
	require.Len(t, resp.Array, 1)
	assert.Equal(t, "0x02-0", resp.Array[0].ID)
	assert.Equal(t, "1", resp.Array[0].ListingID)
	assert.Equal(t, "2", resp.Array[0].ProtocolFee)

	resp = decode[listResponse[otc.ExecutionSnapshot]](t, serve(s, "/listings/2/executions"))
	assert.Empty(t, resp.Array)

	resp = decode[listResponse[otc.ExecutionSnapshot]](t, serve(s, "/executions?buyer="+buyer))
	assert.Len(t, resp.Array, 1)

	resp = decode[listResponse[otc.ExecutionSnapshot]](t, serve(s, "/executions?seller="+other))
	assert.Empty(t, resp.Array)

	assert.Equal(t, http.StatusBadRequest, serve(s, "/executions?buyer=nope").Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, "/listings/x/executions").Code)
}

func TestCancellations(t *testing.T) {
	s := NewService(seed(t))

	resp := decode[listResponse[otc.CancellationSnapshot]](t, serve(s, "/cancellations"))
	require.Len(t, resp.Array, 1)
	assert.Equal(t, "4", resp.Array[0].ListingID)
	assert.Equal(t, com.Pagination{Limit: com.DefaultLimit, Offset: 0, Total: 1}, resp.Meta)

	resp = decode[listResponse[otc.CancellationSnapshot]](t, serve(s, "/listings/4/cancellations"))
	assert.Len(t, resp.Array, 1)

	resp = decode[listResponse[otc.CancellationSnapshot]](t, serve(s, "/listings/3/cancellations"))
	assert.Empty(t, resp.Array)
}

type failingReader struct {
	otc.Reader
}

func (failingReader) ListListings(context.Context, otc.ListingFilter) ([]*otc.Listing, error) {
	return nil, assert.AnError
}

func (failingReader) GetListing(context.Context, *big.Int) (*otc.Listing, error) {
	return nil, assert.AnError
}

func TestReaderFailure(t *testing.T) {
	s := NewService(failingReader{})

	assert.Equal(t, http.StatusInternalServerError, serve(s, "/listings").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(s, "/listings/1").Code)
}
