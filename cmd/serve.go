package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-accounts/app/controller"
	accountsgrpc "github.com/vibast-solutions/ms-go-accounts/app/grpc"
	"github.com/vibast-solutions/ms-go-accounts/app/metrics"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/ratelimit"
	"github.com/vibast-solutions/ms-go-accounts/app/storage"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start both HTTP (Echo) and gRPC servers for the accounts service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize application")
	}
	defer app.Close()

	if app.index != nil {
		if err := app.index.EnsureIndex(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to ensure search index")
		}
	}

	var rateLimit echo.MiddlewareFunc
	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.Redis)
	switch {
	case errors.Is(err, ratelimit.ErrNotConfigured):
		logrus.Info("Redis not configured, rate limiting disabled")
	case err != nil:
		logrus.WithError(err).Fatal("Failed to connect to redis")
	default:
		defer redisClient.Close()
		rateLimit = middleware.RateLimit(ratelimit.New(redisClient, cfg.Redis.RateLimit, cfg.Redis.RateWindow))
	}

	go startGRPCServer(ctx, cfg, app)

	startHTTPServer(ctx, cfg, app, rateLimit)
}

func startHTTPServer(ctx context.Context, cfg *config.Config, app *application, rateLimit echo.MiddlewareFunc) {
	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.BodyLimit("4M"))

	if cfg.Metrics.Enabled {
		e.Use(app.collector.Middleware())
		handler := echo.WrapHandler(metrics.Handler(app.registry))
		if cfg.Metrics.RequireAPIKey {
			e.GET("/metrics", handler, middleware.NewAPIKeyMiddleware(app.internal).RequireAPIKey)
		} else {
			e.GET("/metrics", handler)
		}
	}

	if cfg.Storage.Driver == "" || cfg.Storage.Driver == storage.DriverLocal {
		e.Static("/storage", cfg.Storage.LocalDir)
	}

	router := &controller.Router{
		Auth:         controller.NewAuthController(app.accounts, cfg.App.DiscloseUnknownEmail),
		Verification: controller.NewVerificationController(app.accounts, cfg.App.DiscloseUnknownEmail),
		Account:      controller.NewAccountController(app.accounts),
		Profile:      controller.NewProfileController(app.profiles, app.blobs.URL),
		Directory:    controller.NewDirectoryController(app.directory, app.blobs.URL),
		Health:       controller.NewHealthController(app.db),
		RequireAuth:  middleware.NewAuthMiddleware(app.accounts).RequireAuth,
		RateLimit:    rateLimit,
	}
	router.Register(e)

	httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	go func() {
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Failed to shut down HTTP server")
	}
	logrus.Info("HTTP server stopped")
}

func startGRPCServer(ctx context.Context, cfg *config.Config, app *application) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcServer := accountsgrpc.NewServer(app.accounts, app.internal)
	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
	if err := grpcServer.Serve(lis); err != nil {
		logrus.WithError(err).Fatal("Failed to start gRPC server")
	}
}
