// Package api exposes the auction service over JSON HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/larry-a4/bidmore/internal/domain/auctions"
	"github.com/larry-a4/bidmore/internal/metrics"
	"github.com/larry-a4/bidmore/pkg/auth"
)

// Block context headers supplied by the collaborating execution layer.
// Absent headers fall back to server wall-clock time with height 0.
const (
	blockHeightHeader = "X-Block-Height"
	blockTimeHeader   = "X-Block-Time"
)

// Handler serves the auction HTTP API.
type Handler struct {
	service *auctions.Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler creates the API handler. metrics may be nil.
func NewHandler(service *auctions.Service, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		metrics: m,
		logger:  logger,
	}
}

// Register installs the API routes. Mutating endpoints are wrapped with
// authMW, which must inject the caller's ledger address into the context.
func (h *Handler) Register(mux *http.ServeMux, authMW func(http.Handler) http.Handler) {
	mux.Handle("POST /v1/auctions", authMW(h.timed("create", http.HandlerFunc(h.CreateAuction))))
	mux.Handle("POST /v1/auctions/{id}/bids", authMW(h.timed("bid", http.HandlerFunc(h.PlaceBid))))
	mux.Handle("GET /v1/auctions", h.timed("list", http.HandlerFunc(h.ListAuctions)))
	mux.Handle("GET /v1/auctions/{id}", h.timed("details", http.HandlerFunc(h.GetDetails)))
}

// timed wraps a route with a request duration observation.
func (h *Handler) timed(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.metrics.ObserveRequest(route, time.Since(start).Seconds())
	})
}

type balancePayload struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type createRequest struct {
	ID      string              `json:"id"`
	Expires auctions.Expiration `json:"expires"`
	Deposit balancePayload      `json:"deposit"`
}

type createResponse struct {
	ID string `json:"id"`
}

type bidRequest struct {
	Bid balancePayload `json:"bid"`
}

type transferPayload struct {
	AuctionID string         `json:"auction_id"`
	Recipient string         `json:"recipient"`
	Balance   balancePayload `json:"balance"`
}

type bidResponse struct {
	ID       string           `json:"id"`
	Transfer *transferPayload `json:"transfer,omitempty"`
}

type listResponse struct {
	Auctions []string `json:"auctions"`
}

type detailsResponse struct {
	ID      string              `json:"id"`
	Winner  string              `json:"winner"`
	Source  string              `json:"source"`
	Expires auctions.Expiration `json:"expires"`
	Balance balancePayload      `json:"balance"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// blockContext builds the BlockInfo an operation is evaluated at.
func (h *Handler) blockContext(r *http.Request) (auctions.BlockInfo, error) {
	block := auctions.BlockInfo{Time: time.Now().UTC()}

	if raw := r.Header.Get(blockHeightHeader); raw != "" {
		height, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return auctions.BlockInfo{}, errors.New("invalid " + blockHeightHeader + " header")
		}
		block.Height = height
	}

	if raw := r.Header.Get(blockTimeHeader); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return auctions.BlockInfo{}, errors.New("invalid " + blockTimeHeader + " header")
		}
		block.Time = at
	}

	return block, nil
}

func parseBalance(p balancePayload) (auctions.Balance, error) {
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return auctions.Balance{}, errors.New("invalid balance amount")
	}
	return auctions.Balance{Token: p.Token, Amount: amount}, nil
}

func renderBalance(b auctions.Balance) balancePayload {
	return balancePayload{Token: b.Token, Amount: b.Amount.String()}
}

// CreateAuction handles POST /v1/auctions.
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	address, ok := auth.GetAddress(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("missing caller address"))
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	block, err := h.blockContext(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	deposit, err := parseBalance(req.Deposit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	err = h.service.CreateAuction(r.Context(), auctions.CreateCommand{
		ID:        req.ID,
		Expires:   req.Expires,
		Depositor: auctions.Address(address),
		Deposit:   deposit,
		Block:     block,
	})
	if err != nil {
		h.metrics.ObserveCreate("rejected")
		h.writeDomainError(w, err)
		return
	}

	h.metrics.ObserveCreate("created")
	h.writeJSON(w, http.StatusCreated, createResponse{ID: req.ID})
}

// PlaceBid handles POST /v1/auctions/{id}/bids.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	address, ok := auth.GetAddress(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("missing caller address"))
		return
	}

	id := r.PathValue("id")

	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	block, err := h.blockContext(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	bid, err := parseBalance(req.Bid)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.PlaceBid(r.Context(), auctions.BidCommand{
		ID:     id,
		Bidder: auctions.Address(address),
		Bid:    bid,
		Block:  block,
	})
	if err != nil {
		h.metrics.ObserveBid("rejected")
		h.writeDomainError(w, err)
		return
	}

	h.metrics.ObserveBid("accepted")

	resp := bidResponse{ID: id}
	if result.Transfer != nil {
		h.metrics.ObserveTransfer()
		resp.Transfer = &transferPayload{
			AuctionID: result.Transfer.AuctionID,
			Recipient: string(result.Transfer.Recipient),
			Balance:   renderBalance(result.Transfer.Balance),
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ListAuctions handles GET /v1/auctions.
func (h *Handler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	query := auctions.ListQuery{}

	if raw := r.URL.Query().Get("start_after"); raw != "" {
		query.StartAfter = &raw
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.writeError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		query.Limit = &limit
	}

	ids, err := h.service.ListAuctions(r.Context(), query)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, listResponse{Auctions: ids})
}

// GetDetails handles GET /v1/auctions/{id}.
func (h *Handler) GetDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, detailsResponse{
		ID:      details.ID,
		Winner:  string(details.Winner),
		Source:  string(details.Source),
		Expires: details.Expires,
		Balance: renderBalance(details.Balance),
	})
}

// writeDomainError maps the closed error taxonomy to HTTP status codes.
// Errors are surfaced unchanged; nothing is swallowed or downgraded.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		invalidID  *auctions.InvalidIdentifierError
		expired    *auctions.AlreadyExpiredError
		exists     *auctions.AlreadyExistsError
		notFound   *auctions.NotFoundError
		bidExpired *auctions.AuctionExpiredError
		mismatch   *auctions.TokenMismatchError
		tooLow     *auctions.BidTooLowError
		corrupt    *auctions.CorruptStateError
	)

	switch {
	case errors.As(err, &invalidID), errors.As(err, &expired):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.As(err, &notFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.As(err, &exists), errors.As(err, &bidExpired),
		errors.As(err, &mismatch), errors.As(err, &tooLow):
		h.writeError(w, http.StatusConflict, err)
	case errors.As(err, &corrupt):
		h.logger.Error("corrupt auction state", "error", err)
		h.writeError(w, http.StatusInternalServerError, err)
	default:
		h.logger.Error("internal error", "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
