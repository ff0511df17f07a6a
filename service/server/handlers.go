package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"permafeed/service/activity"
	"permafeed/service/config"
	"permafeed/service/db"
	"permafeed/service/format"
	"permafeed/service/pricing"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for session updates
	defaultSessionKey  = "default"
)

// recordResponse is the display-ready API shape of one activity record.
type recordResponse struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	Counterparty string `json:"counterparty,omitempty"`
	Quantity     string `json:"quantity"`
	Denomination string `json:"denomination,omitempty"`
	Timestamp    *int64 `json:"timestamp,omitempty"`
	Height       *int64 `json:"height,omitempty"`
	Day          int    `json:"day"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	ISODate      string `json:"iso_date,omitempty"`

	Description string `json:"description"`
	Amount      string `json:"amount"`
	FiatAmount  string `json:"fiat_amount"`
	DateLabel   string `json:"date_label"`
}

// recordToResponse formats one record against the current rate, if any.
func recordToResponse(txn activity.Transaction, rate pricing.Rate, hasRate bool) recordResponse {
	resp := recordResponse{
		ID:           txn.ID,
		Category:     string(txn.Category),
		Counterparty: txn.Counterparty,
		Quantity:     txn.Quantity,
		Denomination: txn.Denomination,
		Day:          txn.Day,
		Month:        txn.Month,
		Year:         txn.Year,
		ISODate:      txn.ISODate,
		Description:  format.Description(txn),
		Amount:       format.Amount(txn),
		DateLabel:    format.DateLabel(txn),
	}

	if txn.Confirmation != nil {
		ts := txn.Confirmation.Timestamp
		height := txn.Confirmation.Height
		resp.Timestamp = &ts
		resp.Height = &height
	}

	if hasRate {
		resp.FiatAmount = format.FiatAmount(txn, rate.Value, rate.Currency)
	} else {
		resp.FiatAmount = format.Unknown
	}

	return resp
}

// handleGetActivity returns a handler that serves the aggregated activity for
// an address. Requesting an address other than the active one switches the
// session to it, which starts a fetch cycle; the response then reports the
// loading state and the client polls until settled.
// GET /api/v1/wallets/{address}/activity
func handleGetActivity(svc *activity.Service, rates *pricing.Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := activity.ValidateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		state, active, records := svc.Snapshot()
		if address != active {
			if err := svc.SetAddress(r.Context(), address); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, map[string]any{
				"address": address,
				"state":   activity.StateLoading,
				"records": []recordResponse{},
			}, http.StatusOK)
			return
		}

		rate, hasRate := rates.Latest()

		resp := make([]recordResponse, len(records))
		for i, txn := range records {
			resp[i] = recordToResponse(txn, rate, hasRate)
		}

		logger.Debug("activity served",
			"address", address,
			"state", state,
			"count", len(resp),
		)

		body := map[string]any{
			"address": address,
			"state":   state,
			"records": resp,
		}
		if hasRate {
			body["rate"] = rate
		}
		writeJSON(w, body, http.StatusOK)
	})
}

// handleGetRecord returns a handler that serves a single settled record by id,
// used by the consumer to route to a detail view.
// GET /api/v1/wallets/{address}/activity/{id}
func handleGetRecord(svc *activity.Service, rates *pricing.Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		id := r.PathValue("id")

		if err := activity.ValidateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		_, active, _ := svc.Snapshot()
		if address != active {
			writeError(w, "address is not the active session address", http.StatusConflict)
			return
		}

		txn, ok := svc.Record(id)
		if !ok {
			writeError(w, "record not found", http.StatusNotFound)
			return
		}

		rate, hasRate := rates.Latest()
		writeJSON(w, recordToResponse(txn, rate, hasRate), http.StatusOK)
	})
}

// handleGetSession returns the stored session preferences plus the live
// pipeline state.
// GET /api/v1/session
func handleGetSession(store *db.Store, svc *activity.Service, rates *pricing.Service, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefs, err := store.GetPreferences(r.Context(), sessionKey(r))
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			logger.Error("failed to get preferences", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		state, active, _ := svc.Snapshot()

		body := map[string]any{
			"state":    state,
			"address":  active,
			"currency": cfg.DefaultCurrency,
		}
		if prefs != nil {
			body["currency"] = prefs.DisplayCurrency
		}
		if rate, ok := rates.Latest(); ok {
			body["rate"] = rate
		}
		writeJSON(w, body, http.StatusOK)
	})
}

// handleSetAddress switches the active address. This is the trigger for a new
// fetch cycle; it never re-triggers a rate refresh.
// PUT /api/v1/session/address
func handleSetAddress(store *db.Store, svc *activity.Service, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := svc.SetAddress(r.Context(), req.Address); err != nil {
			logger.Debug("invalid address", "address", req.Address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		currency := cfg.DefaultCurrency
		if prefs, err := store.GetPreferences(r.Context(), sessionKey(r)); err == nil {
			currency = prefs.DisplayCurrency
		}

		if _, err := store.UpsertPreferences(r.Context(), db.UpsertPreferencesParams{
			SessionKey:      sessionKey(r),
			ActiveAddress:   req.Address,
			DisplayCurrency: currency,
		}); err != nil {
			logger.Error("failed to persist preferences", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Info("active address updated", "address", req.Address)
		writeJSON(w, map[string]any{
			"address": req.Address,
			"state":   activity.StateLoading,
		}, http.StatusOK)
	})
}

// handleSetCurrency switches the display currency. This triggers a rate
// refresh only; it never re-triggers transaction fetching.
// PUT /api/v1/session/currency
func handleSetCurrency(store *db.Store, svc *activity.Service, rates *pricing.Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Currency string `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		currency := strings.ToLower(strings.TrimSpace(req.Currency))
		if currency == "" || len(currency) > 8 {
			writeError(w, "invalid currency code", http.StatusBadRequest)
			return
		}

		rates.SetCurrency(r.Context(), currency)

		_, active, _ := svc.Snapshot()
		if _, err := store.UpsertPreferences(r.Context(), db.UpsertPreferencesParams{
			SessionKey:      sessionKey(r),
			ActiveAddress:   active,
			DisplayCurrency: currency,
		}); err != nil {
			logger.Error("failed to persist preferences", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Info("display currency updated", "currency", currency)
		writeJSON(w, map[string]any{"currency": currency}, http.StatusOK)
	})
}

// handleClearSession removes the stored preferences for the calling session.
// The live pipeline state is untouched; only the persisted preferences go.
// DELETE /api/v1/session
func handleClearSession(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := store.DeletePreferences(r.Context(), sessionKey(r))
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "no stored session", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to delete preferences", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Info("session preferences cleared")
		writeJSON(w, map[string]string{"status": "cleared"}, http.StatusOK)
	})
}

// sessionKey identifies the calling session; single-consumer deployments fall
// back to a shared default.
func sessionKey(r *http.Request) string {
	if key := r.Header.Get("X-Session-Key"); key != "" {
		return key
	}
	return defaultSessionKey
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, map[string]string{"error": msg}, status)
}
