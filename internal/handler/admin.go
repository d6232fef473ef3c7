package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"namocoins/internal/service"
)

func AdminOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		orders, err := orderSvc.ListAll(r.Context(), caller)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, orders)
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatusHandler applies an admin status change. Grant and mail
// failures are part of the 200 report, never an error status.
func UpdateStatusHandler(statusSvc *service.StatusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		var req statusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		report, err := statusSvc.Transition(r.Context(), caller, chi.URLParam(r, "orderID"), req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

type rateRequest struct {
	CoinRate json.Number `json:"coinRate"`
	Recalc   bool        `json:"recalc"`
}

func UpdateRateHandler(rateSvc *service.RateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		var req rateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		rate, err := service.ParseRate(req.CoinRate.String())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		update, err := rateSvc.UpdateRate(r.Context(), caller, rate, req.Recalc)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, update)
	}
}

func AdminProductsHandler(rateSvc *service.RateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		products, err := rateSvc.AllProducts(r.Context(), caller)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, products)
	}
}

func UpdateProductHandler(rateSvc *service.RateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		var edit service.ProductEdit
		if !decodeJSON(w, r, &edit) {
			return
		}

		p, err := rateSvc.UpdateProduct(r.Context(), caller, chi.URLParam(r, "productID"), edit)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func RecalcProductHandler(rateSvc *service.RateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		p, err := rateSvc.RecalcProduct(r.Context(), caller, chi.URLParam(r, "productID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}
