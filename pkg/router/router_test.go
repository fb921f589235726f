package router

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	com "github.com/anky/otc-indexer/internal/common"
	"github.com/anky/otc-indexer/internal/observability"
	"github.com/anky/otc-indexer/internal/services/memdb"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/anky/otc-indexer/pkg/projector"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, apiKey string) http.Handler {
	t.Helper()

	db := memdb.New()
	metrics := observability.NewMetrics("otc_test")
	p := projector.New(db, nil, logrus.New(), metrics)

	err := p.Apply(context.Background(), &otc.ListingCreated{
		Envelope:    otc.Envelope{BlockNumber: 10, TransactionHash: "0xabc", BlockTimestamp: 1700000000, LogIndex: 0},
		ListingID:   big.NewInt(42),
		Seller:      "0xAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaa",
		Token:       "0xBBbbBBbbBBbbBBbbBBbbBBbbBBbbBBbbBBbbBBbb",
		TokenAmount: big.NewInt(1000),
		USDCPrice:   big.NewInt(500),
		ExpiresAt:   big.NewInt(1800000000),
	})
	require.NoError(t, err)

	return NewServer(apiKey, "0x00000000000000000000000000000000000000c0", db, logrus.New(), metrics).Handler()
}

func get(h http.Handler, target, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRoutes(t *testing.T) {
	h := setup(t, "")

	tests := []struct {
		target string
		want   int
	}{
		{"/health", http.StatusOK},
		{"/listings", http.StatusOK},
		{"/listings/42", http.StatusOK},
		{"/listings/43", http.StatusNotFound},
		{"/listings/nope", http.StatusBadRequest},
		{"/listings/42/executions", http.StatusOK},
		{"/listings/42/cancellations", http.StatusOK},
		{"/executions", http.StatusOK},
		{"/cancellations", http.StatusOK},
		{"/fees/withdrawals", http.StatusOK},
		{"/fees/recipients", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/version", http.StatusOK},
		{"/status", http.StatusOK},
		{"/transfers", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, get(h, tt.target, "").Code)
		})
	}
}

func TestListingEnvelope(t *testing.T) {
	h := setup(t, "")

	rr := get(h, "/listings/42", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		ResponseType com.ResponseType    `json:"response_type"`
		Object       otc.ListingSnapshot `json:"object"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, com.ResponseTypeObject, resp.ResponseType)
	assert.Equal(t, "42", resp.Object.ID)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", resp.Object.Seller)
	assert.Equal(t, "1800000000", resp.Object.ExpiresAt)
	assert.True(t, resp.Object.IsActive)
}

func TestAuth(t *testing.T) {
	h := setup(t, "secret")

	assert.Equal(t, http.StatusOK, get(h, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/listings", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/listings", "wrong").Code)
	assert.Equal(t, http.StatusOK, get(h, "/listings", "secret").Code)
}

func TestMetrics(t *testing.T) {
	h := setup(t, "")

	rr := get(h, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)

	assert.True(t, strings.Contains(rr.Body.String(), "otc_test_events_projected_total"))
}
