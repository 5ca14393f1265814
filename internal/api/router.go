package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"attendance.service/internal/api/handler"
	"attendance.service/internal/core"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(issuer *core.TokenIssuer, redeemer *core.TokenRedeemer, apiKey string) *mux.Router {

	tokenHandler := handler.TokenHandler{
		Issuer:   issuer,
		Redeemer: redeemer,
	}

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.Handle("/tokens/issue",
		handler.AdminAuth(apiKey)(http.HandlerFunc(tokenHandler.Issue))).Methods(http.MethodPost)

	// Redemption is reachable from unauthenticated scan hardware; the token
	// secret is the credential.
	api.HandleFunc("/tokens/redeem", tokenHandler.Redeem).Methods(http.MethodPost)

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
