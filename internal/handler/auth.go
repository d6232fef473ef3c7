package handler

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"namocoins/internal/model"
	"namocoins/internal/service"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func LoginHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := authSvc.Authenticate(r.Context(), req.Identifier, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				http.Error(w, "invalid login or password", http.StatusUnauthorized)
				return
			}
			writeServiceError(w, r, err)
			return
		}

		issueToken(w, authSvc, model.UserCaller(user.ID))
	}
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func AdminLoginHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminLoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := authSvc.AuthenticateAdmin(req.Email, req.Password); err != nil {
			log.WithField("remote", r.RemoteAddr).Warn("admin login rejected")
			http.Error(w, "wrong admin credentials", http.StatusUnauthorized)
			return
		}

		issueToken(w, authSvc, model.AdminCaller())
	}
}

func issueToken(w http.ResponseWriter, authSvc *service.AuthService, caller model.Caller) {
	tokenString, err := authSvc.IssueToken(caller)
	if err != nil {
		http.Error(w, "token generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", "Bearer "+tokenString)
	w.WriteHeader(http.StatusOK)
}
