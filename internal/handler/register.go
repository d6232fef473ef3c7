package handler

import (
	"errors"
	"net/http"

	"namocoins/internal/model"
	"namocoins/internal/service"
)

func RegisterHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.Registration
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := authSvc.Register(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrEmailTaken):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, service.ErrMissingFields),
				errors.Is(err, service.ErrPasswordMismatch),
				errors.Is(err, service.ErrPasswordTooShort),
				errors.Is(err, service.ErrInvalidHandle):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				writeServiceError(w, r, err)
			}
			return
		}

		tokenString, err := authSvc.IssueToken(model.UserCaller(user.ID))
		if err != nil {
			http.Error(w, "token generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Authorization", "Bearer "+tokenString)
		writeJSON(w, http.StatusOK, user)
	}
}
