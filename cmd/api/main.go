package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/malnajdi/fatoora/docs"
	"github.com/malnajdi/fatoora/internal/balance"
	"github.com/malnajdi/fatoora/internal/config"
	"github.com/malnajdi/fatoora/internal/database"
	"github.com/malnajdi/fatoora/internal/ledger"
	"github.com/malnajdi/fatoora/internal/receipt"
	"github.com/malnajdi/fatoora/internal/user"
	mw "github.com/malnajdi/fatoora/pkg/middleware"
)

// @title        Fatoora API
// @version      1.0
// @description  Bill-splitting back end: receipts, splits, ledger and balances.
// @BasePath     /api/v1
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	// User directory
	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService)

	// Receipt feature
	receiptRepo := receipt.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	receiptService := receipt.NewService(receiptRepo, userRepo, ledgerRepo)
	receiptHandler := receipt.NewHandler(receiptService)

	// Ledger feature (settlement reconciles back into the receipt summary)
	ledgerService := ledger.NewService(ledgerRepo, receiptService)
	ledgerHandler := ledger.NewHandler(ledgerService)

	// Balance feature
	balanceService := balance.NewService(ledgerRepo)
	balanceHandler := balance.NewHandler(balanceService)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(mw.TestUserMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/users", userHandler.Routes())
		r.Mount("/receipts", receiptHandler.Routes())
		r.Mount("/ledger", ledgerHandler.Routes())
		r.Mount("/balances", balanceHandler.Routes())
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
