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

	authhandler "certledger/internal/authority/handler"
	authservice "certledger/internal/authority/service"
	"certledger/internal/certificate/filestore"
	certhandler "certledger/internal/certificate/handler"
	certmetrics "certledger/internal/certificate/metrics"
	certservice "certledger/internal/certificate/service"
	certstore "certledger/internal/certificate/store"
	"certledger/internal/health"
	jwttoken "certledger/internal/jwt_token"
	"certledger/internal/ledger"
	"certledger/internal/ledger/ethkey"
	"certledger/internal/ledger/rpc"
	"certledger/internal/ledger/simulated"
	"certledger/internal/platform/config"
	"certledger/internal/platform/database"
	"certledger/internal/platform/httpserver"
	"certledger/internal/platform/kafka"
	"certledger/internal/platform/logger"
	"certledger/internal/platform/metrics"
	redisclient "certledger/internal/platform/redis"
	"certledger/internal/ratelimit/limiter"
	rlmetrics "certledger/internal/ratelimit/metrics"
	rlmiddleware "certledger/internal/ratelimit/middleware"
	rlmodels "certledger/internal/ratelimit/models"
	"certledger/internal/ratelimit/store/window"
	httptransport "certledger/internal/transport/http"
	"certledger/pkg/platform/audit"
	"certledger/pkg/platform/audit/publisher"
	"certledger/pkg/platform/audit/publishers/ops"
	auditkafka "certledger/pkg/platform/audit/store/kafka"
	auditmemory "certledger/pkg/platform/audit/store/memory"
	"certledger/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	m := metrics.New()

	records, tx, recordsHealth, closeDB, err := buildRecordStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	files, err := filestore.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	auditStore, closeAudit, err := buildAuditStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()
	auditPublisher := publisher.NewPublisher(auditStore, publisher.WithLogger(log))
	defer auditPublisher.Close()
	opsTracker := ops.New(auditStore, ops.WithMetrics(ops.NewMetrics(m.Registry)), ops.WithLogger(log))

	ledgerClient, admin, err := buildLedger(cfg, log, m)
	if err != nil {
		return err
	}

	certOpts := []certservice.Option{
		certservice.WithAuthorityModel(cfg.Ledger.AuthorityModel),
		certservice.WithLookupPolicy(cfg.Ledger.LookupPolicy),
		certservice.WithAuditPublisher(auditPublisher),
		certservice.WithOpsTracker(opsTracker),
		certservice.WithMetrics(certmetrics.New(m.Registry)),
		certservice.WithLogger(log),
	}
	if ledgerClient != nil {
		certOpts = append(certOpts, certservice.WithLedger(ledgerClient))
	}
	certificates := certservice.New(records, tx, files, certOpts...)

	rateLimiter, closeRedis, err := buildRateLimiter(ctx, cfg, log, m, auditPublisher)
	if err != nil {
		return err
	}
	defer closeRedis()

	proberOpts := []health.Option{health.WithGauges(m), health.WithLogger(log)}
	if ledgerClient != nil {
		proberOpts = append(proberOpts, health.WithLedger(ledgerClient))
	}
	prober := health.NewProber(recordsHealth, proberOpts...)
	if err := prober.Start(cfg.Ledger.HealthInterval); err != nil {
		return fmt.Errorf("start health prober: %w", err)
	}
	defer prober.Stop()

	registrars := []httptransport.Registrar{
		health.NewHandler(prober),
		certhandler.New(certificates, certhandler.Config{
			LedgerEnabled:  ledgerClient != nil,
			AuthorityModel: cfg.Ledger.AuthorityModel,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}, log,
			certhandler.WithWriteMiddleware(rateLimiter.RateLimit(rlmodels.ClassWrite)),
			certhandler.WithReadMiddleware(rateLimiter.RateLimit(rlmodels.ClassRead)),
		),
	}
	if ledgerClient != nil {
		jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
		authority := authservice.New(ledgerClient, admin,
			authservice.WithAuditPublisher(auditPublisher),
			authservice.WithLogger(log),
		)
		registrars = append(registrars, authhandler.New(authority, jwttoken.NewJWTServiceAdapter(jwtService), log,
			authhandler.WithMiddleware(rateLimiter.RateLimit(rlmodels.ClassAdmin))))
	}

	srv := httpserver.New(cfg.Server, httptransport.NewRouter(log, m, registrars...))

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting certledger",
			"addr", cfg.Server.Addr,
			"ledger_mode", cfg.Ledger.Mode,
			"authority_model", cfg.Ledger.AuthorityModel,
			"lookup_policy", cfg.Ledger.LookupPolicy,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

type recordStore interface {
	certservice.Store
	health.Checker
}

func buildRecordStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (certservice.Store, certservice.TxRunner, health.Checker, func(), error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if db == nil {
		log.Warn("no database configured, certificate records are kept in memory")
		mem := certstore.NewInMemoryStore()
		return mem, certservice.NewShardedTx(mem, 0), mem, func() {}, nil
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	var store recordStore = certstore.NewSQLStore(db)
	return store, newCertificateSQLTx(db), store, func() { _ = db.Close() }, nil
}

func buildAuditStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (audit.Store, func(), error) {
	client, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return auditmemory.NewInMemoryStore(), func() {}, nil
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic); err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info("streaming audit events to kafka", "topic", cfg.Kafka.Topic)
	return auditkafka.New(client, cfg.Kafka.Topic), client.Close, nil
}

// buildLedger returns a nil ledger when the ledger is disabled. In simulated
// mode without a configured admin key an ephemeral one is generated, so the
// authority endpoints work against the in-process ledger.
func buildLedger(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (ledger.Ledger, ledger.Authority, error) {
	admin := ledger.Authority{PrivateKey: cfg.Ledger.AdminPrivateKey}

	var backend ledger.Ledger
	switch cfg.Ledger.Mode {
	case config.LedgerDisabled:
		return nil, admin, nil
	case config.LedgerSimulated:
		if admin.PrivateKey == "" {
			key, err := ethkey.GenerateKey()
			if err != nil {
				return nil, admin, fmt.Errorf("generate simulated admin key: %w", err)
			}
			admin.PrivateKey = key
			log.Warn("no admin private key configured, generated an ephemeral one for the simulated ledger")
		}
		addr, err := ethkey.AddressFromPrivateKey(admin.PrivateKey)
		if err != nil {
			return nil, admin, fmt.Errorf("admin private key: %w", err)
		}
		admin.Address = addr
		var opts []simulated.Option
		if cfg.Ledger.AuthorityModel == config.AuthorityInstitution {
			opts = append(opts, simulated.WithInstitutionAuthority())
		}
		backend = simulated.New(addr, opts...)
	case config.LedgerRPC:
		backend = rpc.New(cfg.Ledger.RPCURL)
	default:
		return nil, admin, fmt.Errorf("unknown ledger mode %q", cfg.Ledger.Mode)
	}

	return ledger.NewGuarded(backend,
		ledger.WithTimeout(cfg.Ledger.Timeout),
		ledger.WithBreaker(circuit.New("ledger")),
		ledger.WithMetrics(ledger.NewMetrics(m.Registry)),
		ledger.WithLogger(log),
	), admin, nil
}

func buildRateLimiter(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics, auditPublisher rlmiddleware.AuditPublisher) (*rlmiddleware.Middleware, func(), error) {
	rlm := rlmetrics.New(m.Registry)
	closeFn := func() {}

	var primary limiter.Store
	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		primary = window.NewRedisStore(client.Client)
		closeFn = func() { _ = client.Close() }
	}

	l := limiter.New(primary, window.NewInMemoryStore(), limiter.WithMetrics(rlm), limiter.WithLogger(log))
	mw := rlmiddleware.New(l, log,
		rlmiddleware.WithDisabled(!cfg.RateLimit.Enabled),
		rlmiddleware.WithLimit(rlmodels.ClassWrite, rlmodels.Limit{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            cfg.RateLimit.Window,
		}),
		rlmiddleware.WithAuditPublisher(auditPublisher),
		rlmiddleware.WithMetrics(rlm),
	)
	return mw, closeFn, nil
}
