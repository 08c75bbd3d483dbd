package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gogpu/gg"
	"github.com/gorilla/mux"

	"github.com/plantrace/plantrace/backend-go/internal/asset"
	"github.com/plantrace/plantrace/backend-go/internal/auth"
	"github.com/plantrace/plantrace/backend-go/internal/collab"
	"github.com/plantrace/plantrace/backend-go/internal/config"
	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/export"
	mw "github.com/plantrace/plantrace/backend-go/internal/middleware"
	"github.com/plantrace/plantrace/backend-go/internal/plan"
	"github.com/plantrace/plantrace/backend-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))
	gg.SetLogger(slog.Default().With("component", "render"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	authService := auth.NewService(st, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	planService := plan.NewService(st, cfg.SaveRequiresAuth)
	planHandler := plan.NewHandler(planService)

	assetHandler := asset.NewHandler(cfg.AssetDir)
	exportHandler := export.NewHandler(planService, assetHandler)

	hub := collab.NewHub(planPort{planService}, backgroundPort{assetHandler})
	go hub.Run()

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	r.Handle("/auth/me", authService.AuthMiddleware(http.HandlerFunc(authHandler.Me))).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Asset endpoints (public)
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST")
	r.HandleFunc("/assets/{file}/size", assetHandler.Size).Methods("GET")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Export endpoint (public, like the load port)
	r.HandleFunc("/export/plans/{planId}.png", exportHandler.ExportPlan).Methods("GET")

	// Load and save ports. Loading is public; the plan service decides
	// whether an anonymous save is allowed.
	r.HandleFunc("/api/plans/{planId}/data", planHandler.LoadData).Methods("GET")
	r.Handle("/api/plans/{planId}/data", authService.OptionalAuth(http.HandlerFunc(planHandler.SaveData))).Methods("POST")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/plans", planHandler.List).Methods("GET")
	api.HandleFunc("/plans", planHandler.Create).Methods("POST")
	api.HandleFunc("/plans/{planId}", planHandler.Get).Methods("GET")
	api.HandleFunc("/plans/{planId}", planHandler.Delete).Methods("DELETE")
	api.HandleFunc("/plans/{planId}/versions", planHandler.Versions).Methods("GET")

	// WebSocket endpoint
	r.HandleFunc("/ws/plans/{planId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, cfg.OriginPatterns())
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(cfg.Origins())(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.Driver())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Driver() == "sqlite" {
		path := cfg.SQLitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return store.Open(ctx, "sqlite", path)
	}
	return store.Open(ctx, cfg.Driver(), cfg.DatabaseURL)
}

// handleWebSocket joins a live plan session. A token in the query string
// identifies the user; without one the viewer is anonymous.
func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, originPatterns []string) {
	planID := mux.Vars(r)["planId"]

	peer := collab.Peer{DisplayName: "Anonymous"}
	if token := r.URL.Query().Get("token"); token != "" {
		userID, err := authSvc.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		user, err := authSvc.GetUser(r.Context(), userID)
		if err != nil {
			http.Error(w, "user not found", http.StatusUnauthorized)
			return
		}
		peer = collab.Peer{UserID: user.ID, DisplayName: user.DisplayName}
	}

	hub.Accept(w, r, planID, peer, originPatterns)
}

// planPort adapts the plan service to the live session ports.
type planPort struct {
	plans *plan.Service
}

func (p planPort) Load(ctx context.Context, planID string) (*document.LoadResponse, error) {
	return p.plans.Load(ctx, planID)
}

func (p planPort) Save(ctx context.Context, planID, userID string, req *document.SaveRequest) (*document.SaveRequest, int, error) {
	res, err := p.plans.Save(ctx, planID, userID, req)
	if err != nil {
		return nil, 0, err
	}
	return res.Data, res.Version, nil
}

type backgroundPort struct {
	assets *asset.Handler
}

func (b backgroundPort) Measure(ctx context.Context, src string) (float64, float64, error) {
	size, err := b.assets.Measure(ctx, src)
	if err != nil {
		return 0, 0, err
	}
	return size.Width, size.Height, nil
}
