package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"fbcarch/internal/config"
	apierrors "fbcarch/internal/errors"
	"fbcarch/internal/infrastructure"
	"fbcarch/internal/license"
	customMiddleware "fbcarch/internal/middleware"
	"fbcarch/internal/security"
	"fbcarch/internal/services"
	handlers "fbcarch/internal/transport/http"
	"fbcarch/pkg/contracts"
)

// RunMainEnv suppresses the browser launch when set to "true", as a
// reloading supervisor does for its child process.
const RunMainEnv = "RUN_MAIN"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders

	provider      security.HardwareProvider
	browserOpener func(url string) error
	listener      net.Listener
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Deriver   *security.Deriver
	Validator *license.Validator
	License   services.LicenseService
	Health    *services.HealthService
	Metrics   *infrastructure.LicenseMetrics
}

// Option customizes an Application before it is wired
type Option func(*Application)

// WithHardwareProvider replaces the host hardware provider
func WithHardwareProvider(p security.HardwareProvider) Option {
	return func(a *Application) { a.provider = p }
}

// WithBrowserOpener replaces the function used to launch the browser
func WithBrowserOpener(fn func(url string) error) Option {
	return func(a *Application) { a.browserOpener = fn }
}

// NewApplication wires services, router and server from cfg
func NewApplication(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		browserOpener: openBrowser,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.provider == nil {
		a.provider = security.NewHostProvider(cfg.Fingerprint, logger)
	}

	logger.Info("Application starting",
		slog.String("version", contracts.GetVersionString()),
		slog.String("policy", cfg.License.Policy),
		slog.String("dist_dir", cfg.Paths.DistDir))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = otelProviders

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices builds the deriver, validator and services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateLicenseMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create license metrics: %w", err)
	}

	validator, err := license.NewValidatorFromConfig(a.Config.License, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create license validator: %w", err)
	}

	deriver := security.NewDeriver(a.Config.Fingerprint.Namespace, a.provider, a.Logger)

	a.Services = &ServiceContainer{
		Deriver:   deriver,
		Validator: validator,
		License:   services.NewLicenseService(deriver, validator, metrics, a.Logger),
		Health:    services.NewHealthService(contracts.Version, deriver, a.Logger),
		Metrics:   metrics,
	}
	return nil
}

// setupRouter configures middleware and routes.
// Order: RequestID → RealIP → CORS, then OTel → Logger → Recoverer →
// SecurityHeaders → RateLimit for everything except /metrics. CORS sits on
// the root so preflights are answered for any path.
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.CORS(a.getCORSConfig()))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Services.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(errHandler.Recoverer)
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		static := handlers.NewStaticHandler(a.Config.Paths.DistDir, a.Config.Paths.LogoFile,
			infrastructure.WithComponent(a.Logger, "static"))
		a.setupAPIRoutes(r, static)
		static.Mount(r)
	})

	r.NotFound(errHandler.NotFound)
	r.MethodNotAllowed(errHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, static *handlers.StaticHandler) {
	licenseHandler := handlers.NewLicenseHandler(
		a.Services.License,
		a.Services.Metrics,
		a.Config.Security.MaxBodyBytes,
		infrastructure.WithComponent(a.Logger, "license_handler"),
	)
	healthHandler := handlers.NewHealthHandler(a.Services.Health, infrastructure.WithComponent(a.Logger, "health_handler"))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		licenseHandler.Register(r)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)
		r.Get("/logo", static.Logo)
	})
}

// getCORSConfig builds the CORS policy from security config
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		ExposedHeaders:   []string{customMiddleware.RequestIDHeader},
		AllowCredentials: a.Config.Security.AllowCredentials,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server. Addr is filled in by Listen.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Listen binds the configured port, trying up to PortFallbacks following
// ports when it is taken.
func (a *Application) Listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	var errs []error

	first := a.Config.Server.Port
	last := first + a.Config.Server.PortFallbacks
	if last > 65535 {
		last = 65535
	}

	for port := first; port <= last; port++ {
		addr := a.Config.Server.Address(port)
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			a.Logger.WarnContext(ctx, "port unavailable",
				slog.String("address", addr),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}

		a.listener = ln
		a.Server.Addr = ln.Addr().String()
		a.Logger.InfoContext(ctx, "listening", slog.String("address", a.Server.Addr))
		return ln, nil
	}

	return nil, fmt.Errorf("no free port in %d-%d: %w", first, last, errors.Join(errs...))
}

// URL returns the browser address of the bound listener
func (a *Application) URL() string {
	if a.listener == nil {
		return fmt.Sprintf("http://%s", a.Config.Server.Address(a.Config.Server.Port))
	}

	host, port, err := net.SplitHostPort(a.listener.Addr().String())
	if err != nil {
		return "http://" + a.listener.Addr().String()
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = infrastructure.EnsureTraceID(ctx)

	ln, err := a.Listen(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.Background())
	})

	if a.shouldOpenBrowser() {
		g.Go(func() error {
			a.openBrowserWhenReady(gctx)
			return nil
		})
	}

	a.Logger.InfoContext(ctx, "Application started", slog.String("url", a.URL()))
	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

func (a *Application) shouldOpenBrowser() bool {
	return a.Config.Server.OpenBrowser && os.Getenv(RunMainEnv) != "true"
}

// openBrowserWhenReady polls /api/health and opens the browser once the
// server answers. It gives up when ctx ends or after maxRetries attempts.
func (a *Application) openBrowserWhenReady(ctx context.Context) {
	const maxRetries = 10

	url := a.URL()
	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/api/health", nil)
		if err != nil {
			return
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				if err := a.browserOpener(url); err != nil {
					a.Logger.WarnContext(ctx, "Failed to open browser, open it manually",
						slog.String("url", url),
						slog.String("error", err.Error()))
					return
				}
				a.Logger.InfoContext(ctx, "Browser opened", slog.String("url", url), slog.Int("attempts", attempt))
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	a.Logger.WarnContext(ctx, "Server did not become ready for browser opening",
		slog.String("url", url),
		slog.Int("max_retries", maxRetries))
}

// openBrowser opens the default browser, trying each platform method in turn
func openBrowser(url string) error {
	var lastErr error
	for _, method := range getBrowserOpenMethods(url) {
		cmd := exec.Command(method.cmd, method.args...)
		if err := cmd.Start(); err != nil {
			lastErr = err
			slog.Debug("Browser open method failed",
				slog.String("method", method.name),
				slog.String("error", err.Error()))
			continue
		}
		go cmd.Wait()
		return nil
	}
	return fmt.Errorf("failed to open browser: %w", lastErr)
}

// browserMethod represents a method to open the browser
type browserMethod struct {
	name string
	cmd  string
	args []string
}

// getBrowserOpenMethods returns platform-specific browser opening methods
func getBrowserOpenMethods(url string) []browserMethod {
	switch runtime.GOOS {
	case "windows":
		return []browserMethod{
			{name: "rundll32", cmd: "rundll32", args: []string{"url.dll,FileProtocolHandler", url}},
			{name: "start_command", cmd: "cmd", args: []string{"/c", "start", "", url}},
		}
	case "darwin":
		return []browserMethod{
			{name: "open", cmd: "open", args: []string{url}},
		}
	default:
		return []browserMethod{
			{name: "xdg-open", cmd: "xdg-open", args: []string{url}},
			{name: "sensible-browser", cmd: "sensible-browser", args: []string{url}},
		}
	}
}
