package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"namocoins/internal/service"
)

func BuyHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		order, err := orderSvc.Buy(r.Context(), caller, chi.URLParam(r, "productID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	}
}

func PaymentInfoHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		info, err := orderSvc.PaymentInfo(r.Context(), caller, chi.URLParam(r, "orderID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, info)
	}
}

type proofRequest struct {
	UPITxnID string `json:"upi_txn_id"`
	ProofURL string `json:"proof_url"`
}

func AttachProofHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		var req proofRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		err := orderSvc.AttachProof(r.Context(), caller, chi.URLParam(r, "orderID"), req.UPITxnID, req.ProofURL)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ListOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		orders, err := orderSvc.ListForUser(r.Context(), caller)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		writeJSON(w, http.StatusOK, orders)
	}
}
