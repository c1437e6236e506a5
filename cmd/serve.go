package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/handler"
	"github.com/ayubfarah/dealer-ops-core/internal/middleware"
	"github.com/ayubfarah/dealer-ops-core/internal/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP+WS server and the scrape scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func runServe() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx := context.Background()
	a, err := buildApp(ctx, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.db.Close()
	logger.Info("database_connected")

	if a.cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              a.cfg.SentryDSN,
			Environment:      a.cfg.Environment,
			TracesSampleRate: 0.1,
		}); err != nil {
			logger.Error("failed to init sentry", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	tracingShutdown, err := tracing.Init(ctx, "dealer-ops-core", a.cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("failed to init tracing", "error", err)
	} else {
		defer tracingShutdown(ctx)
	}

	a.scheduler.Start()
	defer a.scheduler.Stop()

	a.engine.Start()
	defer a.engine.Stop()

	r := buildRouter(a, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server_starting", "port", a.cfg.Port, "environment", a.cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	logger.Info("server_stopped")
}

func buildRouter(a *app, logger *slog.Logger) *chi.Mux {
	healthHandler := handler.NewHealthHandler(a.db)
	vehicleHandler := handler.NewVehicleHandler(a.stores, logger)
	imageHandler := handler.NewImageHandler(a.stores, a.fetcher, a.blob, logger)
	importHandler := handler.NewImportHandler(a.importer, a.stores, logger)
	authHandler := handler.NewAuthHandler(a.stores, a.jwt, a.impersonation, a.passwordResets, a.cfg.BcryptCost, logger)
	tenancyHandler := handler.NewTenancyHandler(a.stores, a.cfg.BcryptCost, logger)
	conversationHandler := handler.NewConversationHandler(a.stores, a.outbound, logger)
	webhookHandler := handler.NewWebhookHandler(a.stores, a.hub, a.runner, a.clock, logger)
	postingHandler := handler.NewPostingHandler(a.stores, a.tokens, a.clock, logger)

	tenantAuth := middleware.NewTenantAuth(a.resolver, a.cfg.PublicZoneDomain, true)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Dealership-Id", "X-Extension-Signature", "X-Extension-Timestamp"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle(a.cfg.MetricsPath, promhttp.Handler())

	r.Get("/ws", a.realtime.Accept)

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/trigger-scrape", webhookHandler.TriggerScrape)
		r.Post("/ghl", webhookHandler.GHLWebhook)
		r.Post("/ghl/call", webhookHandler.GHLWebhook)
		r.Post("/pbs", webhookHandler.PBSWebhook)
	})

	r.Post("/auth/login", authHandler.Login)
	r.Post("/auth/password-reset", authHandler.RequestPasswordReset)
	r.Post("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)
	r.With(middleware.NewTenantAuth(a.resolver, a.cfg.PublicZoneDomain, false).Middleware, middleware.RequireRole(domain.RoleSuperAdmin)).
		Post("/dealerships", tenancyHandler.CreateDealership)

	r.Group(func(r chi.Router) {
		r.Use(tenantAuth.Middleware)

		r.Get("/auth/me", authHandler.Me)
		r.Put("/auth/me", authHandler.UpdateProfile)
		r.With(middleware.RequireRole(domain.RoleSuperAdmin)).Post("/auth/impersonate", authHandler.Impersonate)
		r.Post("/auth/impersonate/end", authHandler.EndImpersonation)

		r.Get("/me", tenancyHandler.Me)
		r.With(middleware.RequireRole(domain.RoleAdmin)).Post("/users", tenancyHandler.CreateUser)
		r.With(middleware.RequireRole(domain.RoleAdmin)).Get("/users", tenancyHandler.ListUsers)
		r.With(middleware.RequireRole(domain.RoleAdmin)).Post("/tokens", tenancyHandler.CreateAPIToken)
		r.With(middleware.RequireRole(domain.RoleAdmin)).Delete("/tokens/{id}", tenancyHandler.RevokeAPIToken)

		r.Get("/vehicles", vehicleHandler.ListVehicles)
		r.Get("/vehicles/{id}", vehicleHandler.GetVehicle)
		r.With(middleware.RequireRole(domain.RoleManager)).Post("/vehicles", vehicleHandler.CreateVehicle)
		r.With(middleware.RequireRole(domain.RoleManager)).Put("/vehicles/{id}", vehicleHandler.UpdateVehicle)
		r.With(middleware.RequireRole(domain.RoleAdmin)).Delete("/vehicles/{id}", vehicleHandler.DeleteVehicle)
		r.With(middleware.RequireRole(domain.RoleManager)).Post("/vehicles/{id}/images", imageHandler.AddImage)
		r.With(middleware.RequireRole(domain.RoleManager)).Delete("/vehicles/{id}/images/{imageId}", imageHandler.DeleteImage)

		r.With(middleware.RequireRole(domain.RoleAdmin)).Post("/import/bulk", importHandler.BulkImport)
		r.With(middleware.RequireRole(domain.RoleAdmin)).Post("/import/sync", importHandler.SyncVehicles)

		r.Get("/conversations", conversationHandler.ListConversations)
		r.Get("/conversations/{id}", conversationHandler.GetConversation)
		r.Post("/conversations/{id}/messages", conversationHandler.SendMessage)
		r.Put("/conversations/{id}/ai", conversationHandler.SetAI)
		r.Put("/conversations/{id}", conversationHandler.UpdateMetadata)

		r.Get("/extension/inventory", postingHandler.Inventory)
		r.Get("/extension/limits", postingHandler.Limits)
		r.Post("/extension/posting-token", postingHandler.PostingToken)
		r.Post("/extension/postings", postingHandler.Postings)
	})

	// External API-token surface: Capability permissions (distinct from
	// staff Role) are carried by ExternalApiToken and resolved via the
	// byAPIToken leg of tenant.Resolver, so these routes sit behind
	// RequireCapabilities rather than RequireRole.
	r.Group(func(r chi.Router) {
		r.Use(tenantAuth.Middleware)
		r.With(middleware.RequireCapabilities(domain.CapReadVehicles)).Get("/api/v1/vehicles", vehicleHandler.ListVehicles)
		r.With(middleware.RequireCapabilities(domain.CapReadVehicles)).Get("/api/v1/vehicles/{id}", vehicleHandler.GetVehicle)
		r.With(middleware.RequireCapabilities(domain.CapUpdateVehicles)).Put("/api/v1/vehicles/{id}", vehicleHandler.UpdateVehicle)
		r.With(middleware.RequireCapabilities(domain.CapDeleteVehicles)).Delete("/api/v1/vehicles/{id}", vehicleHandler.DeleteVehicle)
		r.With(middleware.RequireCapabilities(domain.CapImportVehicles)).Post("/api/v1/import/bulk", importHandler.BulkImport)
		r.With(middleware.RequireCapabilities(domain.CapImportVehicles)).Post("/api/v1/import/sync", importHandler.SyncVehicles)
	})

	r.Post("/extension/auto-post", postingHandler.AutoPost)

	return r
}
