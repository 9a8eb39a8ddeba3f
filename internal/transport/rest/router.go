package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/alexdean/worst-idea/internal/cache"
	"github.com/alexdean/worst-idea/internal/identity"
	"github.com/alexdean/worst-idea/internal/service"
	"github.com/alexdean/worst-idea/internal/store"
	"github.com/alexdean/worst-idea/internal/transport/rest/handler"
	"github.com/alexdean/worst-idea/internal/transport/rest/middleware"
	"github.com/alexdean/worst-idea/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	Identity    *identity.Provider
	GameService *service.GameService
	Docs        store.DocumentStore
	Lobby       cache.LobbyCache
	WSHub       *ws.Hub
	JoinBaseURL string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.Identity)
	gameHandler := handler.NewGameHandler(c.GameService, c.Lobby, c.JoinBaseURL)
	playerHandler := handler.NewPlayerHandler(c.Docs)
	operatorHandler := handler.NewOperatorHandler(c.GameService)
	wsHandler := ws.NewHandler(c.WSHub, c.Identity)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.Identity)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes. Game reads are public so the lobby works before sign-in
	// and the projector never needs credentials.
	v1.HandleFunc("/auth/anonymous", authHandler.Anonymous).Methods("POST", "OPTIONS")
	v1.HandleFunc("/auth/operator", authHandler.Operator).Methods("POST", "OPTIONS")
	v1.HandleFunc("/games", gameHandler.List).Methods("GET", "OPTIONS")
	v1.HandleFunc("/games/{id}", gameHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/games/{id}/questions", gameHandler.Questions).Methods("GET", "OPTIONS")
	v1.HandleFunc("/games/{id}/qr", gameHandler.JoinQR).Methods("GET")

	// WebSocket routes (player token in query param)
	v1.HandleFunc("/ws/games/{id}/projector", wsHandler.ProjectorWS).Methods("GET")
	v1.HandleFunc("/ws/games/{id}/player", wsHandler.PlayerWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Player routes (any signed-in principal; the rule engine does the rest)
	playerRoutes := v1.NewRoute().Subrouter()
	playerRoutes.Use(authMW.RequirePrincipal)

	playerRoutes.HandleFunc("/games/{id}/join", playerHandler.Join).Methods("POST", "OPTIONS")
	playerRoutes.HandleFunc("/games/{id}/answer", playerHandler.Answer).Methods("PUT", "OPTIONS")

	// Operator routes (trusted writer)
	operatorRoutes := v1.NewRoute().Subrouter()
	operatorRoutes.Use(authMW.RequireOperator)

	operatorRoutes.HandleFunc("/games", operatorHandler.CreateGame).Methods("POST", "OPTIONS")
	operatorRoutes.HandleFunc("/games/{id}/questions", operatorHandler.AddQuestion).Methods("POST", "OPTIONS")
	operatorRoutes.HandleFunc("/games/{id}/stage", operatorHandler.AdvanceStage).Methods("POST", "OPTIONS")
	operatorRoutes.HandleFunc("/games/{id}/questions/{qid}/open", operatorHandler.OpenQuestion).Methods("POST", "OPTIONS")
	operatorRoutes.HandleFunc("/games/{id}/close", operatorHandler.CloseQuestion).Methods("POST", "OPTIONS")
	operatorRoutes.HandleFunc("/games/{id}/results", operatorHandler.ShowResults).Methods("POST", "OPTIONS")
	operatorRoutes.HandleFunc("/games/{id}/finish", operatorHandler.Finish).Methods("POST", "OPTIONS")
	operatorRoutes.HandleFunc("/games/{id}/leader", operatorHandler.SetLeader).Methods("POST", "OPTIONS")
	operatorRoutes.HandleFunc("/games/{id}/eliminate", operatorHandler.Eliminate).Methods("POST", "OPTIONS")
	operatorRoutes.HandleFunc("/games/{id}/summary/recompute", operatorHandler.RecomputeSummary).Methods("POST", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
