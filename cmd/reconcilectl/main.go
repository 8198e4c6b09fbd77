// Command reconcilectl wires the reconciliation core's dependencies
// together and runs pending database migrations. The core itself exposes
// no HTTP surface or wire protocol; this binary stands up the storage
// layer, cache, progress registry, repositories, audit log and tenant
// config loader, then waits for a shutdown signal. It does not construct
// the matching engines or the ingestion pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/invoicereconcile/core/internal/application/service/audit"
	"github.com/invoicereconcile/core/internal/application/service/progress"
	"github.com/invoicereconcile/core/internal/application/service/tenantconfig"
	"github.com/invoicereconcile/core/internal/config"
	"github.com/invoicereconcile/core/internal/infrastructure/cache"
	"github.com/invoicereconcile/core/internal/infrastructure/persistence/postgres"
	"github.com/invoicereconcile/core/internal/infrastructure/persistence/repository"
	"github.com/invoicereconcile/core/internal/infrastructure/wsfanout"
	"github.com/invoicereconcile/core/pkg/database"
	"github.com/invoicereconcile/core/pkg/utils"
)

// Core bundles every constructed collaborator an embedding program needs
// to run matching and ingestion for a tenant.
type Core struct {
	DB       *postgres.DB
	Cache    *cache.Redis
	WS       *wsfanout.Adapter
	Progress *progress.Registry

	Tenants       *repository.TenantRepository
	Vendors       *repository.VendorRepository
	POs           *repository.PurchaseOrderRepository
	Invoices      *repository.InvoiceRepository
	Receipts      *repository.ReceiptRepository
	Tolerances    *repository.ToleranceRepository
	MatchingCfg   *repository.MatchingConfigRepository
	MatchResults  *repository.MatchResultRepository
	AuditEvents   *repository.AuditEventRepository
	ImportBatches *repository.ImportBatchRepository

	AuditLog     *audit.Log
	ConfigLoader *tenantconfig.Loader

	Logger *zap.Logger
}

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build reconciliation core", zap.Error(err))
	}
	defer core.DB.Close()

	if err := database.NewMigrator(core.DB, logger).RunMigrations(ctx, cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}

	logger.Info("reconciliation core ready", zap.String("db", "postgres"), zap.String("cache", cfg.Cache.Addr))

	<-ctx.Done()
	logger.Info("shutting down")
}

// build constructs the infrastructure adapters, repositories, progress
// registry, audit log and tenant config loader, in dependency order.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Core, error) {
	db, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxOpenConns,
		MinConns:        cfg.Database.MinOpenConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	redisCache, err := cache.New(ctx, cache.Config{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		PoolSize: cfg.Cache.PoolSize,
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to cache: %w", err)
	}

	ws := wsfanout.New(logger)
	registry := progress.NewRegistry(redisCache, ws, logger)

	tenants := repository.NewTenantRepository(db)
	vendors := repository.NewVendorRepository(db)
	pos := repository.NewPurchaseOrderRepository(db)
	invoices := repository.NewInvoiceRepository(db)
	receipts := repository.NewReceiptRepository(db)
	tolerances := repository.NewToleranceRepository(db)
	matchingCfg := repository.NewMatchingConfigRepository(db)
	matchResults := repository.NewMatchResultRepository(db)
	auditEvents := repository.NewAuditEventRepository(db)
	importBatches := repository.NewImportBatchRepository(db)

	return &Core{
		DB:            db,
		Cache:         redisCache,
		WS:            ws,
		Progress:      registry,
		Tenants:       tenants,
		Vendors:       vendors,
		POs:           pos,
		Invoices:      invoices,
		Receipts:      receipts,
		Tolerances:    tolerances,
		MatchingCfg:   matchingCfg,
		MatchResults:  matchResults,
		AuditEvents:   auditEvents,
		ImportBatches: importBatches,
		AuditLog:      audit.NewLog(auditEvents),
		ConfigLoader:  tenantconfig.NewLoader(matchingCfg),
		Logger:        logger,
	}, nil
}
