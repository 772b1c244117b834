package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certcanvas/certcanvas/backend-go/internal/asset"
	"github.com/certcanvas/certcanvas/backend-go/internal/auth"
	"github.com/certcanvas/certcanvas/backend-go/internal/config"
	"github.com/certcanvas/certcanvas/backend-go/internal/export"
	mw "github.com/certcanvas/certcanvas/backend-go/internal/middleware"
	"github.com/certcanvas/certcanvas/backend-go/internal/observability"
	"github.com/certcanvas/certcanvas/backend-go/internal/render"
	"github.com/certcanvas/certcanvas/backend-go/internal/session"
	"github.com/certcanvas/certcanvas/backend-go/internal/template"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TraceConfig{
		ServiceName:    "certcanvas",
		ServiceVersion: version,
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       true,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("flush traces", "error", err)
		}
	}()

	store, err := openTemplateStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	assets, local, err := openAssetStorage(ctx, cfg)
	if err != nil {
		return err
	}

	loaderOpts := render.HTTPLoaderOptions{
		BaseURL: cfg.PublicBaseURL,
		Timeout: cfg.ImageFetchTimeout,
	}
	if local != nil {
		loaderOpts.Files = local.FS()
	}
	loader, err := render.NewHTTPLoader(loaderOpts)
	if err != nil {
		return err
	}

	renderOpts := []render.Option{render.WithQRFallback(cfg.QRDefaultURL)}
	exportOpts := []export.Option{export.WithTimeout(cfg.ExportTimeout)}
	if cfg.MetricsEnabled {
		renderOpts = append(renderOpts, render.WithMetrics(render.NewMetrics()))
		exportOpts = append(exportOpts, export.WithMetrics(export.NewMetrics()))
	}
	renderer := render.New(loader, renderOpts...)

	var templateOpts []template.ServiceOption
	if cfg.StoreThumbnails {
		templateOpts = append(templateOpts, template.WithThumbnailStorage(assets))
	}
	templateService := template.NewService(store, renderer, templateOpts...)
	templateHandler := template.NewHandler(templateService)

	var pdfRenderer export.PDFRenderer
	switch cfg.ExportRenderer {
	case "chrome":
		pdfRenderer = export.NewChromeRenderer(export.ChromeOptions{
			RemoteURL:  cfg.ChromeURL,
			BaseURL:    cfg.PublicBaseURL,
			QRFallback: cfg.QRDefaultURL,
		})
	default:
		pdfRenderer = export.NewRasterRenderer(renderer, cfg.RenderScale)
	}
	exportService := export.NewService(templateService, pdfRenderer, assets, exportOpts...)
	exportHandler := export.NewHandler(exportService)

	authService := auth.NewService(auth.Options{
		JWTSecret:  cfg.JWTSecret,
		Disabled:   cfg.AuthDisabled,
		DefaultOrg: cfg.DefaultOrgID,
	})
	authHandler := auth.NewHandler(authService)
	if cfg.AuthDisabled {
		slog.Warn("authentication disabled", "org", cfg.DefaultOrgID)
	}

	assetHandler := asset.NewHandler(assets)

	hub := session.NewHub()
	go hub.Run()
	sessionHandler := session.NewHandler(hub, session.HandlerOptions{
		Templates:      templateService,
		Exporter:       exportService,
		QRFallback:     cfg.QRDefaultURL,
		OriginPatterns: cfg.OriginHosts(),
	})

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.RequestID)
	r.Use(mw.Logger)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	r.Handle("/assets/upload", authService.AuthMiddleware(http.HandlerFunc(assetHandler.Upload))).Methods("POST")
	if local != nil {
		r.PathPrefix("/assets/").Handler(local.Serve()).Methods("GET")
	}

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/templates", templateHandler.List).Methods("GET")
	api.HandleFunc("/templates", templateHandler.Create).Methods("POST")
	api.HandleFunc("/templates/{templateId}", templateHandler.Get).Methods("GET")
	api.HandleFunc("/templates/{templateId}", templateHandler.Update).Methods("PUT")
	api.HandleFunc("/templates/{templateId}", templateHandler.Delete).Methods("DELETE")
	api.HandleFunc("/templates/{templateId}/fields", templateHandler.Fields).Methods("GET")
	api.HandleFunc("/templates/{templateId}/preview", templateHandler.Preview).Methods("POST")
	api.HandleFunc("/export/certificate", exportHandler.Certificate).Methods("POST")

	// WebSocket endpoint; browsers pass the token as ?token=
	r.Handle("/ws/editor", authService.AuthMiddleware(sessionHandler)).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(cfg.Origins())(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr, "storage", cfg.StorageType, "assets", cfg.AssetBackend, "renderer", cfg.ExportRenderer)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-sigCh:
	}

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}

	// Editing sessions are hijacked connections that Shutdown does not
	// wait for; stopping the hub lets pending saves finish.
	slog.Info("closing editing sessions", "count", hub.Count())
	hub.Stop()
	return nil
}

func openTemplateStore(ctx context.Context, cfg *config.Config) (template.Store, error) {
	switch cfg.StorageType {
	case "sqlite":
		return template.NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return template.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		slog.Warn("using in-memory template store; templates are lost on restart")
		return template.NewMemoryStore(), nil
	}
}

// openAssetStorage returns the configured storage and, for the local
// backend, the LocalStorage so its files can be served and read directly.
func openAssetStorage(ctx context.Context, cfg *config.Config) (asset.Storage, *asset.LocalStorage, error) {
	if cfg.AssetBackend == "s3" {
		s3Store, err := asset.NewS3Storage(ctx, asset.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3Store, nil, nil
	}
	local, err := asset.NewLocalStorage(cfg.AssetDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}
