package handler

import (
	"net/http"

	"namocoins/internal/service"
)

func GetBalanceHandler(balanceSvc *service.BalanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOrUnauthorized(w, r)
		if !ok {
			return
		}

		balance, err := balanceSvc.Get(r.Context(), caller)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, balance)
	}
}
