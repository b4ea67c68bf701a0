// Package httpapi exposes the auction and lock-verification services over
// REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	app "github.com/chopshop-gg/platform/internal/app"
	"github.com/chopshop-gg/platform/internal/app/domain/auction"
	"github.com/chopshop-gg/platform/internal/app/domain/ethlock"
	"github.com/chopshop-gg/platform/internal/app/metrics"
	ethlocksvc "github.com/chopshop-gg/platform/internal/app/services/ethlock"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/auction/tick", h.auctionTick)
	mux.HandleFunc("/auction/round", h.auctionRound)
	mux.HandleFunc("/auction/bids", h.auctionBids)
	mux.HandleFunc("/auction/submissions", h.auctionSubmissions)
	mux.HandleFunc("/auction/history", h.auctionHistory)
	mux.HandleFunc("/eth-lock/verify", h.ethLockVerify)
	mux.HandleFunc("/healthz", h.healthz)
	mux.Handle("/metrics", metrics.Handler())
	return metrics.Instrument(mux)
}

func (h *handler) auctionTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	report, err := h.app.Auction.Tick(r.Context())
	if err != nil {
		if errors.Is(err, auction.ErrTickBusy) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Auction tick is already running."})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) auctionRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	round, bids, err := h.app.Auction.ActiveRound(r.Context())
	if err != nil {
		if errors.Is(err, auction.ErrNoActiveRound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Round auction.Round `json:"round"`
		Bids  []auction.Bid `json:"bids"`
	}{Round: round, Bids: bids})
}

func (h *handler) auctionBids(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Wallet string  `json:"wallet"`
		Amount float64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	bid, round, err := h.app.Auction.PlaceBid(r.Context(), payload.Wallet, payload.Amount)
	if err != nil {
		switch {
		case errors.Is(err, auction.ErrNoActiveRound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, auction.ErrRoundClosed), errors.Is(err, auction.ErrStaleBid):
			writeError(w, http.StatusConflict, err)
		default:
			writeError(w, http.StatusBadRequest, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Bid   auction.Bid   `json:"bid"`
		Round auction.Round `json:"round"`
	}{Bid: bid, Round: round})
}

func (h *handler) auctionSubmissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Wallet string `json:"wallet"`
		PartID string `json:"part_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sub, err := h.app.Auction.SubmitPart(r.Context(), payload.Wallet, payload.PartID)
	if err != nil {
		switch {
		case errors.Is(err, auction.ErrNoActiveRound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, auction.ErrSubmissionsClosed), errors.Is(err, auction.ErrDuplicateSubmission):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, auction.ErrPartIneligible):
			writeError(w, http.StatusUnprocessableEntity, err)
		default:
			writeError(w, http.StatusBadRequest, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *handler) auctionHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	entries, err := h.app.Auction.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []auction.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ethLockVerify accepts both the direct client shape and the database
// webhook shape that nests the fields under "record".
func (h *handler) ethLockVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Webhook deliveries carry extra envelope fields, so this payload is
	// decoded leniently rather than through decodeJSON.
	var payload struct {
		WalletAddress string `json:"walletAddress"`
		TxHash        string `json:"txHash"`
		Record        *struct {
			WalletAddress string `json:"wallet_address"`
			TxHash        string `json:"tx_hash"`
		} `json:"record"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	wallet := payload.WalletAddress
	txHash := payload.TxHash
	if payload.Record != nil {
		wallet = payload.Record.WalletAddress
		txHash = payload.Record.TxHash
	}
	wallet = strings.TrimSpace(wallet)
	txHash = strings.TrimSpace(txHash)

	if !ethlocksvc.ValidAddress(wallet) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid wallet address"))
		return
	}
	if !ethlocksvc.ValidTxHash(txHash) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid transaction hash"))
		return
	}

	result, err := h.app.Locks.Verify(r.Context(), wallet, txHash)
	if err != nil {
		switch {
		case errors.Is(err, ethlock.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, ethlock.ErrTxHashMismatch):
			writeError(w, http.StatusConflict, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	status := http.StatusOK
	switch result.Status {
	case ethlock.StatusError:
		status = http.StatusUnprocessableEntity
	case ethlock.StatusVerifying:
		status = http.StatusAccepted
	}
	writeJSON(w, status, struct {
		Status        ethlock.Status `json:"status"`
		Message       string         `json:"message"`
		Confirmations int64          `json:"confirmations"`
	}{Status: result.Status, Message: result.Message, Confirmations: result.Confirmations})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
