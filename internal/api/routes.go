package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes.
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Reference data
	api.HandleFunc("/reference/{symbols}", handler.GetReference).Methods("GET")
	api.HandleFunc("/reference/{symbol}/cache", handler.InvalidateReference).Methods("DELETE")

	// Earnings calendar
	api.HandleFunc("/earnings", handler.GetEarnings).Methods("GET")
	api.HandleFunc("/earnings/primary", handler.GetPrimaryEarnings).Methods("GET")
	api.HandleFunc("/earnings/secondary", handler.GetSecondaryEarnings).Methods("GET")
	api.HandleFunc("/earnings/cache", handler.InvalidateEarnings).Methods("DELETE")

	// Branding
	api.HandleFunc("/branding/{symbol}", handler.GetBranding).Methods("GET")
	api.HandleFunc("/branding/{symbol}/refresh", handler.RefreshBranding).Methods("POST")
	api.HandleFunc("/branding/{symbol}/cache", handler.InvalidateBranding).Methods("DELETE")

	// News
	api.HandleFunc("/news", handler.GetNews).Methods("GET")

	return r
}
