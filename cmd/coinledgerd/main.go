package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lumicall/coinledger/internal/adminapi"
	"github.com/lumicall/coinledger/internal/store/gormstore"
	"github.com/lumicall/coinledger/pkg/coinledger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL         = "database-url"
	flagListenAddr          = "listen-addr"
	flagAllowedOrigins      = "allowed-origins"
	flagAdminSigningKey     = "admin-signing-key"
	flagAdminTokenIssuer    = "admin-token-issuer"
	flagRefundMaxAgeDays    = "refund-max-age-days"
	flagLargeTxThreshold    = "large-transaction-threshold"
	flagReconcileSampleSize = "reconcile-sample-size"
	flagSweepInterval       = "sweep-interval"

	configKeyDatabaseURL         = "database_url"
	configKeyListenAddr          = "listen_addr"
	configKeyAllowedOrigins      = "allowed_origins"
	configKeyAdminSigningKey     = "admin_signing_key"
	configKeyAdminTokenIssuer    = "admin_token_issuer"
	configKeyRefundMaxAgeDays    = "refund_max_age_days"
	configKeyLargeTxThreshold    = "large_transaction_threshold"
	configKeyReconcileSampleSize = "reconcile_sample_size"
	configKeySweepInterval       = "sweep_interval"

	defaultDatabaseURL = "sqlite://coinledger.db"
	defaultListenAddr  = ":8600"
)

type runtimeConfig struct {
	DatabaseURL          string
	ListenAddr           string
	AllowedOrigins       string
	AdminSigningKey      string
	AdminTokenIssuer     string
	RefundMaxAgeDays     int64
	LargeTxThreshold     int64
	ReconcileSampleSize  int
	ReconcileSweepPeriod time.Duration
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "coinledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "coinledgerd",
		Short:         "Coin ledger and settlement engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-delimited CORS origins")
	cmd.Flags().String(flagAdminSigningKey, "", "HS256 signing key for admin bearer tokens")
	cmd.Flags().String(flagAdminTokenIssuer, "", "expected issuer of admin bearer tokens")
	cmd.Flags().Int64(flagRefundMaxAgeDays, 0, "block refunds for calls older than this many days (0 disables)")
	cmd.Flags().Int64(flagLargeTxThreshold, 0, "amount at which transactions are reported as large (0 keeps the default)")
	cmd.Flags().Int(flagReconcileSampleSize, 0, "accounts sampled per global reconciliation check (0 keeps the default)")
	cmd.Flags().Duration(flagSweepInterval, 0, "period between reconciliation sweeps (0 disables)")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		configKeyDatabaseURL:         "DATABASE_URL",
		configKeyListenAddr:          "LISTEN_ADDR",
		configKeyAllowedOrigins:      "ALLOWED_ORIGINS",
		configKeyAdminSigningKey:     "ADMIN_SIGNING_KEY",
		configKeyAdminTokenIssuer:    "ADMIN_TOKEN_ISSUER",
		configKeyRefundMaxAgeDays:    "REFUND_MAX_AGE_DAYS",
		configKeyLargeTxThreshold:    "LARGE_TRANSACTION_THRESHOLD",
		configKeyReconcileSampleSize: "RECONCILE_SAMPLE_SIZE",
		configKeySweepInterval:       "RECONCILE_SWEEP_INTERVAL",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flagBindings := map[string]string{
		configKeyDatabaseURL:         flagDatabaseURL,
		configKeyListenAddr:          flagListenAddr,
		configKeyAllowedOrigins:      flagAllowedOrigins,
		configKeyAdminSigningKey:     flagAdminSigningKey,
		configKeyAdminTokenIssuer:    flagAdminTokenIssuer,
		configKeyRefundMaxAgeDays:    flagRefundMaxAgeDays,
		configKeyLargeTxThreshold:    flagLargeTxThreshold,
		configKeyReconcileSampleSize: flagReconcileSampleSize,
		configKeySweepInterval:       flagSweepInterval,
	}
	for key, flag := range flagBindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.AdminSigningKey = viper.GetString(configKeyAdminSigningKey)
	cfg.AdminTokenIssuer = viper.GetString(configKeyAdminTokenIssuer)
	cfg.RefundMaxAgeDays = viper.GetInt64(configKeyRefundMaxAgeDays)
	cfg.LargeTxThreshold = viper.GetInt64(configKeyLargeTxThreshold)
	cfg.ReconcileSampleSize = viper.GetInt(configKeyReconcileSampleSize)
	cfg.ReconcileSweepPeriod = viper.GetDuration(configKeySweepInterval)

	if cfg.AdminSigningKey == "" {
		return fmt.Errorf("admin signing key is required")
	}
	if cfg.RefundMaxAgeDays < 0 {
		return fmt.Errorf("refund max age days must not be negative")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	store := gormstore.New(gormDB)
	clock := func() int64 { return time.Now().UTC().Unix() }
	service, err := coinledger.NewService(store, clock,
		coinledger.WithOperationLogger(&zapOperationLogger{logger: logger}),
		coinledger.WithRefundMaxAgeDays(cfg.RefundMaxAgeDays),
		coinledger.WithLargeTransactionThreshold(cfg.LargeTxThreshold),
		coinledger.WithReconcileSampleSize(cfg.ReconcileSampleSize),
	)
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}

	if cfg.ReconcileSweepPeriod > 0 {
		go runReconciliationSweep(ctx, service, logger, cfg.ReconcileSweepPeriod)
	}

	apiConfig := adminapi.Config{
		ListenAddr:       cfg.ListenAddr,
		AllowedOrigins:   adminapi.ParseAllowedOrigins(cfg.AllowedOrigins),
		AdminSigningKey:  cfg.AdminSigningKey,
		AdminTokenIssuer: cfg.AdminTokenIssuer,
	}
	if err := apiConfig.Validate(); err != nil {
		return fmt.Errorf("admin api config: %w", err)
	}
	return adminapi.Run(ctx, apiConfig, service, store, logger)
}

func runReconciliationSweep(ctx context.Context, service *coinledger.Service, logger *zap.Logger, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check, err := service.CheckGlobal(ctx)
			if err != nil {
				logger.Error("reconciliation sweep failed", zap.Error(err))
				continue
			}
			if !check.Healthy() || check.DriftedAccounts > 0 {
				logger.Error("reconciliation drift detected",
					zap.Int64("drift", check.Drift),
					zap.Int64("circulation", check.TotalInCirculation),
					zap.Int64("minted", check.AllTimeMinted),
					zap.Int64("burned", check.AllTimeBurned),
					zap.Int("drifted_accounts", check.DriftedAccounts),
				)
				continue
			}
			logger.Info("reconciliation sweep clean",
				zap.Int64("circulation", check.TotalInCirculation),
				zap.Int("sampled_accounts", len(check.SampledAccounts)),
			)
		}
	}
}

type zapOperationLogger struct {
	logger *zap.Logger
}

func (operationLogger *zapOperationLogger) LogOperation(_ context.Context, entry coinledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.UserID.String() != "" {
		fields = append(fields, zap.String("user_id", entry.UserID.String()))
	}
	if entry.CallID != nil {
		fields = append(fields, zap.String("call_id", entry.CallID.String()))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount))
	}
	if entry.AdminID != "" {
		fields = append(fields, zap.String("admin_id", entry.AdminID))
	}
	if entry.Error != nil {
		operationLogger.logger.Error("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("ledger operation", fields...)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var (
		db  *gorm.DB
		cfg *gorm.Config
	)
	cfg = &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), cfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "coinledger.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := db.AutoMigrate(
		&gormstore.Account{},
		&gormstore.Transaction{},
		&gormstore.Call{},
		&gormstore.RefundRecord{},
		&gormstore.AdminAction{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
