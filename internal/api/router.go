package api

import (
	"context"
	"log/slog"
	"net/http"

	"miniloan/internal/api/handler"
	mw "miniloan/internal/api/middleware"
	"miniloan/internal/config"
	"miniloan/internal/domain/loan"
	"miniloan/internal/domain/user"
	"miniloan/internal/event"
	"miniloan/internal/session"

	_ "miniloan/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Tokens interface {
	handler.TokenIssuer
	mw.TokenParser
}

// Services are the dependencies the HTTP layer is built from.
type Services struct {
	Quotes    handler.QuoteService
	Users     user.Service
	Loans     loan.LoanService
	Tokens    Tokens
	Denylist  session.Denylist
	Publisher event.Publisher
	// Health reports whether the backing stores are reachable. Optional.
	Health func(ctx context.Context) error
}

// SetupRouter wires the routes. The returned stop func releases background
// resources held by the middleware.
func SetupRouter(svc Services, cfg *config.Config, logger *slog.Logger) (*chi.Mux, func()) {
	if svc.Denylist == nil {
		svc.Denylist = session.NopDenylist{}
	}
	router := chi.NewRouter()

	limiter := mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger)
	setupMiddleware(router, cfg, limiter, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupHealthEndpoint(router, svc.Health, logger)
	setupSwaggerEndpoint(router, logger)
	setupPublicRoutes(router, svc, logger)
	setupSessionRoutes(router, svc, logger)
	setupAdminRoutes(router, svc, logger)

	return router, limiter.Stop
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, limiter *mw.RateLimiterMiddleware, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	if cfg.Server.RequestTimeout > 0 {
		router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	}
	router.Use(limiter.Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupHealthEndpoint(router *chi.Mux, check func(ctx context.Context) error, logger *slog.Logger) {
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			if err := check(r.Context()); err != nil {
				logger.Error("Health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupPublicRoutes(router *chi.Mux, svc Services, logger *slog.Logger) {
	emiHandler := handler.NewEmiHandler(svc.Quotes, logger)
	authHandler := handler.NewAuthHandler(svc.Users, svc.Tokens, svc.Denylist, svc.Publisher, logger)

	router.Route("/emi", func(r chi.Router) {
		r.Post("/calculate", emiHandler.Calculate)
		r.Get("/rates", emiHandler.Rates)
	})

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/register-admin", authHandler.RegisterAdmin)
		r.Post("/login", authHandler.Login)
		r.Post("/login-admin", authHandler.LoginAdmin)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.With(mw.Authenticate(svc.Tokens, svc.Denylist, logger)).Post("/logout", authHandler.Logout)
	})
}

func setupSessionRoutes(router *chi.Mux, svc Services, logger *slog.Logger) {
	userHandler := handler.NewUserHandler(svc.Users, logger)
	loanHandler := handler.NewLoanHandler(svc.Loans, logger)

	router.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(svc.Tokens, svc.Denylist, logger))

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", userHandler.GetMe)
			r.Put("/", userHandler.UpdateMe)
			r.Put("/password", userHandler.ChangePassword)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/", loanHandler.Apply)
			r.Get("/", loanHandler.History)
			r.Get("/current", loanHandler.Current)
			r.Route("/{loanID}", func(r chi.Router) {
				r.Get("/", loanHandler.Get)
				r.Post("/payments", loanHandler.Pay)
				r.Get("/payments", loanHandler.Payments)
			})
		})
	})
}

func setupAdminRoutes(router *chi.Mux, svc Services, logger *slog.Logger) {
	adminHandler := handler.NewAdminHandler(svc.Loans, svc.Users, logger)

	router.Route("/admin", func(r chi.Router) {
		r.Use(mw.Authenticate(svc.Tokens, svc.Denylist, logger))
		r.Use(mw.RequireAdmin(logger))
		r.Get("/loans", adminHandler.ListLoans)
		r.Post("/loans/{loanID}/approve", adminHandler.Approve)
		r.Post("/loans/{loanID}/reject", adminHandler.Reject)
		r.Get("/users", adminHandler.ListUsers)
	})
}
