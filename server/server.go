package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ringforgeapp/ringforge/internal/config"
	"github.com/ringforgeapp/ringforge/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.CORS)
	r.HandleFunc("/healthz", h.Health).Methods("GET").Name("health")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/metal-rates", h.MetalRates).Methods("GET").Name("rates.all")
	api.HandleFunc("/gold-rate", h.GoldRate).Methods("GET").Name("rates.gold")

	api.HandleFunc("/diamonds", h.Diamonds).Methods("GET").Name("diamonds.search")
	api.HandleFunc("/diamonds/{id}", h.DiamondByID).Methods("GET").Name("diamonds.by_id")

	api.HandleFunc("/shopify/products", h.Products).Methods("GET").Name("shopify.products")
	api.HandleFunc("/shopify/products/{handle}", h.ProductByHandle).Methods("GET").Name("shopify.product")
	api.HandleFunc("/shopify/collections", h.Collections).Methods("GET").Name("shopify.collections")
	api.HandleFunc("/shopify/top-sellers", h.TopSellers).Methods("GET").Name("shopify.top_sellers")
	api.HandleFunc("/shopify/storefront", h.StorefrontProxy).Methods("POST").Name("shopify.storefront")

	api.HandleFunc("/cart", h.CreateCart).Methods("POST").Name("cart.create")
	api.HandleFunc("/orders", h.CreateOrder).Methods("POST").Name("orders.create")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	})

	return r
}
