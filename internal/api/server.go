package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxkit/license-server/internal/config"
	"github.com/voxkit/license-server/internal/database"
	"github.com/voxkit/license-server/internal/service"
)

type Server struct {
	cfg           config.Config
	log           *slog.Logger
	licenses      *service.LicenseService
	coupons       *service.CouponService
	notifications *service.NotificationService
	router        *chi.Mux
}

func NewServer(
	cfg config.Config,
	log *slog.Logger,
	licenses *service.LicenseService,
	coupons *service.CouponService,
	notifications *service.NotificationService,
) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(cfg.CORSAllowedOrigins))

	s := &Server{
		cfg:           cfg,
		log:           log,
		licenses:      licenses,
		coupons:       coupons,
		notifications: notifications,
		router:        r,
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/status", s.handleStatus)
		r.Post("/validate", s.handleValidate)
		r.Post("/use", s.handleUse)
		r.Post("/activate", s.handleActivate)
		r.Post("/notifications", s.handleNotifications)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(s.adminAuthMiddleware())
		admin.Route("/admin", func(r chi.Router) {
			r.Get("/stats", s.handleAdminStats)
			r.Get("/coupons", s.handleAdminListCoupons)
			r.Post("/coupons", s.handleAdminIssueCoupons)
			r.Get("/devices", s.handleAdminListDevices)
			r.Get("/devices/{deviceID}", s.handleAdminDeviceDetail)
			r.Post("/suspend", s.handleAdminSuspend)
			r.Post("/unsuspend", s.handleAdminUnsuspend)
			r.Post("/bonus", s.handleAdminBonus)
			r.Post("/penalty", s.handleAdminPenalty)
		})
	})

	return s
}

// Handler exposes the router (tests run it under httptest).
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.RequestTimeout,
		WriteTimeout: s.cfg.RequestTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown error", "err", err)
		}
	}()

	s.log.Info("license server listening", "addr", s.cfg.ListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "license-server",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service outcomes onto HTTP statuses. Unknown errors
// become an opaque 500.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCoupon),
		errors.Is(err, service.ErrCouponUsed),
		errors.Is(err, service.ErrInvalidCouponClass),
		errors.Is(err, service.ErrInvalidAmount):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSuspended):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrDeviceNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrBusy):
		s.writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		s.log.Error("handler error", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeError(w, http.StatusBadRequest, msg)
}
