package handler

import (
	"net/http"

	"namocoins/internal/service"
)

func ShopHandler(rateSvc *service.RateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop, err := rateSvc.Shop(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, shop)
	}
}
