package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/roastdirect/internal/auth"
	"github.com/joao-fontenele/roastdirect/internal/catalog"
	"github.com/joao-fontenele/roastdirect/internal/config"
	"github.com/joao-fontenele/roastdirect/internal/memstore"
	"github.com/joao-fontenele/roastdirect/internal/messaging"
	"github.com/joao-fontenele/roastdirect/internal/orders"
	"github.com/joao-fontenele/roastdirect/internal/postgres"
	"github.com/joao-fontenele/roastdirect/internal/pricing"
	"github.com/joao-fontenele/roastdirect/internal/store"
	"github.com/joao-fontenele/roastdirect/internal/telemetry"
	"github.com/joao-fontenele/roastdirect/internal/users"
)

const (
	serviceName    = "api"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8081")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateAPI(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if cfg.TelemetryEnabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("failed to initialize tracer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdownTracer(ctx) }()
	} else {
		telemetry.SetPropagator()
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err, "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	var display pricing.ProductFinder = st.Products()
	if cfg.RedisAddr != "" {
		client, err := catalog.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()
		display = catalog.NewDisplayCache(client, st.Products(), cfg.RedisTTL, logger)
	}

	engine, err := orders.NewEngine(st, logger, orders.WithDisplayLookup(display))
	if err != nil {
		logger.Error("failed to create order engine", "error", err)
		os.Exit(1)
	}

	var publisher orders.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	accounts, err := users.NewService(st.Users(), users.NewBcrypt(cfg.BcryptCost),
		auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer), logger,
		users.WithTokenTTL(cfg.JWTTTL),
		users.WithAdminSignup(cfg.AdminSignup),
	)
	if err != nil {
		logger.Error("failed to create users service", "error", err)
		os.Exit(1)
	}

	authn := auth.Middleware(auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer), logger)
	routed := func(h http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(authn(h))
	}

	mux := http.NewServeMux()
	orders.NewHandler(engine, publisher, logger).Register(mux, routed)
	catalog.NewHandler(st.Products(), display, logger).Register(mux, routed)
	users.NewHandler(accounts, logger).Register(mux, telemetry.WithHTTPRoute)
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.InstrumentServer(mux, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", cfg.Port, "store", cfg.StoreDriver,
			"events", publisher != nil, "display_cache", cfg.RedisAddr != "")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		s := memstore.New()
		for _, p := range memstore.DemoCatalog(time.Now().UTC()) {
			s.PutProduct(p)
		}
		logger.Warn("using in-memory store, data is lost on restart")
		return s, nil
	}

	dsn, err := postgres.WithSearchPath(cfg.PostgresURL, cfg.PostgresSchema)
	if err != nil {
		return nil, err
	}

	db, err := telemetry.OpenDB("postgres", dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return postgres.NewStore(db), nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
