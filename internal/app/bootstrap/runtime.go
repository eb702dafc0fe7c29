package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/tradeforge/settlement/internal/adapters/accounts"
	"github.com/tradeforge/settlement/internal/adapters/assets"
	cacheadapter "github.com/tradeforge/settlement/internal/adapters/cache"
	eventadapter "github.com/tradeforge/settlement/internal/adapters/events"
	grpcadapter "github.com/tradeforge/settlement/internal/adapters/grpc"
	httpadapter "github.com/tradeforge/settlement/internal/adapters/http"
	"github.com/tradeforge/settlement/internal/adapters/postgres"
	"github.com/tradeforge/settlement/internal/adapters/security"
	"github.com/tradeforge/settlement/internal/application"
	"github.com/tradeforge/settlement/internal/ports"
)

// Runtime owns every wired component. The api binary serves HTTP and gRPC;
// the worker binary drives the outbox. Both share this construction path so
// configuration and adapters never drift between them.
type Runtime struct {
	cfg     Config
	logger  *slog.Logger
	api     *http.Server
	grpcSrv *grpc.Server
	grpcLis net.Listener
	outbox  *eventadapter.OutboxWorker
	cleanup func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping settlement service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"chain_id", cfg.ChainID,
		"authority", cfg.AuthorityAddress,
	)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(db)

	var verifier ports.TokenVerifier
	verifier, err = security.NewCallerTokenVerifier(cfg.AuthTokenPublicKeyPEM)
	if err != nil {
		if !cfg.AllowEphemeralAuth {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init token verifier: %w", err)
		}
		logger.Warn("using ephemeral caller token keys for local/dev runtime")
		signer, signerErr := security.NewEphemeralCallerSigner("")
		if signerErr != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init ephemeral token signer: %w", signerErr)
		}
		verifier = signer
	}

	hubClient := assets.NewClient(assets.Config{
		BaseURL:      cfg.AssetHubBaseURL,
		ServiceToken: cfg.AssetHubServiceToken,
		HTTPClient:   &http.Client{Timeout: cfg.AssetHubTimeout},
	})
	ledger := assets.NewLedger(hubClient)
	royalties := assets.NewOracle(hubClient)
	issuer := assets.NewIssuer(hubClient)
	prober := cacheadapter.NewCachedCapabilityProber(redisClient, royalties, cfg.CapabilityCacheTTL)

	authority := common.HexToAddress(cfg.AuthorityAddress)
	signers := accounts.NewRegistry(db, authority)

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ChainID:        big.NewInt(cfg.ChainID),
			Authority:      authority,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
		Consumptions:  repos.Consumptions,
		Settlements:   repos.Settlements,
		Attempts:      repos.Attempts,
		Idempotency:   repos.Idempotency,
		Signers:       signers,
		Fungibles:     ledger,
		SemiFungibles: ledger,
		Prober:        prober,
		Royalties:     royalties,
		Issuer:        issuer,
	})

	handler := httpadapter.NewHandler(svc, verifier)
	api := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcSrv, grpcadapter.NewSettlementInternalServer(svc))

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	var publisher ports.EventPublisher = eventadapter.NewLoggingPublisher(logger)
	var kafkaPub *eventadapter.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err = eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			application.EventTypeOrderFulfilled: cfg.KafkaTopicFulfilled,
			application.EventTypeOrderCancelled: cfg.KafkaTopicCancelled,
		})
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			_ = grpcLis.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		publisher = kafkaPub
	}

	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, eventadapter.OutboxWorkerConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		LeaseTTL:     cfg.OutboxLeaseTTL,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	})

	return &Runtime{
		cfg:     cfg,
		logger:  logger,
		api:     api,
		grpcSrv: grpcSrv,
		grpcLis: grpcLis,
		outbox:  outbox,
		cleanup: func(ctx context.Context) {
			if kafkaPub != nil {
				_ = kafkaPub.Close()
			}
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// RunAPI serves HTTP and gRPC until a signal or a listener failure, then
// drains both servers and releases shared clients.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	failures := make(chan error, 2)
	go r.serveHTTP(failures)
	go r.serveGRPC(failures)

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-failures:
		r.logger.Error("server failure", "error", err)
	}
	return r.drain()
}

func (r *Runtime) serveHTTP(failures chan<- error) {
	r.logger.Info("http server started", "addr", r.api.Addr)
	if err := r.api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		failures <- fmt.Errorf("http server: %w", err)
	}
}

func (r *Runtime) serveGRPC(failures chan<- error) {
	r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
	if err := r.grpcSrv.Serve(r.grpcLis); err != nil {
		failures <- fmt.Errorf("grpc server: %w", err)
	}
}

func (r *Runtime) drain() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.api.Shutdown(shutdownCtx)
	r.grpcSrv.GracefulStop()
	r.cleanup(shutdownCtx)
	return nil
}

// RunWorker drives the outbox delivery loop. It owns no listeners; shared
// clients are still released on the way out, even when the loop fails.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("settlement outbox worker started")
	err := r.outbox.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanup(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
