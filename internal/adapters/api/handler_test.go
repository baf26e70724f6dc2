package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larry-a4/bidmore/internal/domain/auctions"
	"github.com/larry-a4/bidmore/pkg/auth"
	"github.com/larry-a4/bidmore/pkg/kvstore"
)

// testAuth injects a fixed caller address, standing in for the JWT
// middleware.
func testAuth(address string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if address == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), auth.AddressKey, address)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestServer(t *testing.T, address string) *http.ServeMux {
	t.Helper()

	store := auctions.NewRecords(kvstore.NewMemoryStore())
	service := auctions.NewService(store, nil, nil)
	handler := NewHandler(service, nil, nil)

	mux := http.NewServeMux()
	handler.Register(mux, testAuth(address))
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func atHeight(h uint64) auctions.Expiration {
	return auctions.Expiration{AtHeight: &h}
}

func createBody(id string, expiresAt uint64) createRequest {
	return createRequest{
		ID:      id,
		Expires: atHeight(expiresAt),
		Deposit: balancePayload{Token: "tokenA", Amount: "100"},
	}
}

func TestCreateAuction(t *testing.T) {
	t.Run("creates an auction", func(t *testing.T) {
		mux := newTestServer(t, "seller0001")

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody("swap0001", 200), nil)

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp createResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "swap0001", resp.ID)
	})

	t.Run("rejects missing caller address", func(t *testing.T) {
		mux := newTestServer(t, "")

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody("swap0001", 200), nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		mux := newTestServer(t, "seller0001")

		req := httptest.NewRequest(http.MethodPost, "/v1/auctions", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects identifier out of bounds", func(t *testing.T) {
		mux := newTestServer(t, "seller0001")

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody("ab", 200), nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an expiration already in the past", func(t *testing.T) {
		mux := newTestServer(t, "seller0001")

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody("swap0001", 100),
			map[string]string{"X-Block-Height": "100"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects duplicate identifier", func(t *testing.T) {
		mux := newTestServer(t, "seller0001")

		first := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody("swap0001", 200), nil)
		require.Equal(t, http.StatusCreated, first.Code)

		second := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody("swap0001", 200), nil)
		assert.Equal(t, http.StatusConflict, second.Code)
	})

	t.Run("rejects invalid block height header", func(t *testing.T) {
		mux := newTestServer(t, "seller0001")

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody("swap0001", 200),
			map[string]string{"X-Block-Height": "not-a-number"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid deposit amount", func(t *testing.T) {
		mux := newTestServer(t, "seller0001")

		body := createRequest{
			ID:      "swap0001",
			Expires: atHeight(200),
			Deposit: balancePayload{Token: "tokenA", Amount: "lots"},
		}
		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions", body, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPlaceBid(t *testing.T) {
	setup := func(t *testing.T) *http.ServeMux {
		mux := newTestServer(t, "seller0001")
		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody("swap0001", 200), nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		return mux
	}

	bid := func(token, amount string) bidRequest {
		return bidRequest{Bid: balancePayload{Token: token, Amount: amount}}
	}

	t.Run("accepts a higher bid and reports the transfer", func(t *testing.T) {
		mux := setup(t)

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions/swap0001/bids", bid("tokenA", "150"), nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp bidResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Transfer)
		assert.Equal(t, "swap0001", resp.Transfer.AuctionID)
		assert.Equal(t, "seller0001", resp.Transfer.Recipient)
		assert.Equal(t, "tokenA", resp.Transfer.Balance.Token)
		assert.Equal(t, "100", resp.Transfer.Balance.Amount)
	})

	t.Run("returns 404 for an unknown auction", func(t *testing.T) {
		mux := setup(t)

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions/nosuch01/bids", bid("tokenA", "150"), nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("returns 409 for an expired auction", func(t *testing.T) {
		mux := setup(t)

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions/swap0001/bids", bid("tokenA", "150"),
			map[string]string{"X-Block-Height": "200"})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("returns 409 for a token mismatch", func(t *testing.T) {
		mux := setup(t)

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions/swap0001/bids", bid("tokenB", "150"), nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("returns 409 for a bid at or below the current balance", func(t *testing.T) {
		mux := setup(t)

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions/swap0001/bids", bid("tokenA", "100"), nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rejects missing caller address", func(t *testing.T) {
		mux := newTestServer(t, "")

		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions/swap0001/bids", bid("tokenA", "150"), nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestListAuctions(t *testing.T) {
	mux := newTestServer(t, "seller0001")
	for _, id := range []string{"zen00001", "assign01", "lazy0001"} {
		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody(id, 200), nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	t.Run("lists identifiers in ascending byte order", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/v1/auctions", nil, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp listResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"assign01", "lazy0001", "zen00001"}, resp.Auctions)
	})

	t.Run("start_after is exclusive", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/v1/auctions?start_after=assign01", nil, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp listResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"lazy0001", "zen00001"}, resp.Auctions)
	})

	t.Run("limit bounds the page", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/v1/auctions?limit=2", nil, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp listResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"assign01", "lazy0001"}, resp.Auctions)
	})

	t.Run("rejects a non-numeric limit", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/v1/auctions?limit=ten", nil, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty store yields an empty array", func(t *testing.T) {
		empty := newTestServer(t, "seller0001")

		rec := doJSON(t, empty, http.MethodGet, "/v1/auctions", nil, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"auctions":[]}`, rec.Body.String())
	})
}

func TestGetDetails(t *testing.T) {
	mux := newTestServer(t, "seller0001")
	rec := doJSON(t, mux, http.MethodPost, "/v1/auctions", createBody("swap0001", 200), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("returns the full auction state", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/v1/auctions/swap0001", nil, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp detailsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "swap0001", resp.ID)
		assert.Equal(t, "seller0001", resp.Winner)
		assert.Equal(t, "seller0001", resp.Source)
		require.NotNil(t, resp.Expires.AtHeight)
		assert.Equal(t, uint64(200), *resp.Expires.AtHeight)
		assert.Equal(t, "tokenA", resp.Balance.Token)
		assert.Equal(t, "100", resp.Balance.Amount)
	})

	t.Run("returns 404 for an unknown auction", func(t *testing.T) {
		rec := doJSON(t, mux, http.MethodGet, "/v1/auctions/nosuch01", nil, nil)

		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "nosuch01")
	})
}

func TestWinnerAdvancesAcrossBids(t *testing.T) {
	store := auctions.NewRecords(kvstore.NewMemoryStore())
	service := auctions.NewService(store, nil, nil)
	handler := NewHandler(service, nil, nil)

	newMux := func(address string) *http.ServeMux {
		mux := http.NewServeMux()
		handler.Register(mux, testAuth(address))
		return mux
	}

	seller := newMux("seller0001")
	rec := doJSON(t, seller, http.MethodPost, "/v1/auctions", createBody("swap0001", 200), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	for i, bidder := range []string{"bidder0001", "bidder0002"} {
		mux := newMux(bidder)
		amount := fmt.Sprintf("%d", 150+i*50)
		rec := doJSON(t, mux, http.MethodPost, "/v1/auctions/swap0001/bids",
			bidRequest{Bid: balancePayload{Token: "tokenA", Amount: amount}}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	details := doJSON(t, seller, http.MethodGet, "/v1/auctions/swap0001", nil, nil)
	require.Equal(t, http.StatusOK, details.Code)

	var resp detailsResponse
	require.NoError(t, json.Unmarshal(details.Body.Bytes(), &resp))
	assert.Equal(t, "bidder0002", resp.Winner)
	assert.Equal(t, "seller0001", resp.Source)
	assert.Equal(t, "200", resp.Balance.Amount)
}
