package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/JeduDev/lugx/internal/security"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Rentals  *RentalHandler
	Garments *GarmentHandler
	Clients  *ClientHandler
	Auth     *AuthHandler
	Health   *HealthHandler
	Tokens   security.TokenManager
}

// NewRouter wires all endpoints. Health and login are public; everything
// else sits behind bearer token authentication.
func NewRouter(deps RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", deps.Health.Check).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", deps.Auth.Login).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(Authenticate(deps.Tokens))

	protected.HandleFunc("/rentals", deps.Rentals.Create).Methods(http.MethodPost)
	protected.HandleFunc("/rentals", deps.Rentals.List).Methods(http.MethodGet)
	protected.HandleFunc("/rentals/active", deps.Rentals.ListActive).Methods(http.MethodGet)
	protected.HandleFunc("/rentals/stats", deps.Rentals.Stats).Methods(http.MethodGet)
	protected.HandleFunc("/rentals/{id:[0-9]+}", deps.Rentals.Get).Methods(http.MethodGet)
	protected.HandleFunc("/rentals/{id:[0-9]+}", deps.Rentals.Update).Methods(http.MethodPut)
	protected.HandleFunc("/rentals/{id:[0-9]+}/cancel", deps.Rentals.Cancel).Methods(http.MethodPost)
	protected.HandleFunc("/rentals/{id:[0-9]+}", deps.Rentals.Cancel).Methods(http.MethodDelete)

	protected.HandleFunc("/garments", deps.Garments.Create).Methods(http.MethodPost)
	protected.HandleFunc("/garments", deps.Garments.List).Methods(http.MethodGet)
	protected.HandleFunc("/garments/available", deps.Garments.ListAvailable).Methods(http.MethodGet)
	protected.HandleFunc("/garments/{id:[0-9]+}", deps.Garments.Get).Methods(http.MethodGet)
	protected.HandleFunc("/garments/{id:[0-9]+}", deps.Garments.Update).Methods(http.MethodPut)
	protected.HandleFunc("/garments/{id:[0-9]+}", deps.Garments.Delete).Methods(http.MethodDelete)

	protected.HandleFunc("/clients", deps.Clients.Create).Methods(http.MethodPost)
	protected.HandleFunc("/clients", deps.Clients.List).Methods(http.MethodGet)
	protected.HandleFunc("/clients/{id:[0-9]+}", deps.Clients.Get).Methods(http.MethodGet)
	protected.HandleFunc("/clients/{id:[0-9]+}", deps.Clients.Update).Methods(http.MethodPut)
	protected.HandleFunc("/clients/{id:[0-9]+}", deps.Clients.Delete).Methods(http.MethodDelete)

	return r
}
