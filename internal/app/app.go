package app

import (
	"context"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/voxshop/merchantd/config"
	"github.com/voxshop/merchantd/internal/cart"
	"github.com/voxshop/merchantd/internal/catalog"
	"github.com/voxshop/merchantd/internal/domain"
	"github.com/voxshop/merchantd/internal/ledger"
	"github.com/voxshop/merchantd/internal/merchantapi"
	"github.com/voxshop/merchantd/internal/notify"
	"github.com/voxshop/merchantd/internal/query"
	"github.com/voxshop/merchantd/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

const defaultCartIdleTTL = 2 * time.Hour

// Application wires the commerce components together and owns their
// lifecycle.
type Application struct {
	appConfig     *config.AppConfig
	gormDB        *gorm.DB
	sched         *cron.Cron
	configManager *ConfigManager

	catalogStore *catalog.Store
	cartManager  *cart.Manager
	orderLedger  *ledger.Ledger
	queryEngine  *query.Engine
	notifier     *notify.Notifier
	api          *merchantapi.API
}

// Ensure Application implements all interfaces
var (
	_ DBProvider            = (*Application)(nil)
	_ ConfigProvider        = (*Application)(nil)
	_ SettingsProvider      = (*Application)(nil)
	_ SchedulerProvider     = (*Application)(nil)
	_ ConfigManagerProvider = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

// API returns the merchant function-call surface.
func (a *Application) API() *merchantapi.API {
	return a.api
}

// Catalog returns the immutable product store.
func (a *Application) Catalog() *catalog.Store {
	return a.catalogStore
}

// Carts returns the per-session cart manager.
func (a *Application) Carts() *cart.Manager {
	return a.cartManager
}

// Ledger returns the order ledger.
func (a *Application) Ledger() *ledger.Ledger {
	return a.orderLedger
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.OutputPaths = []string{"stdout"}
	if cfg.Logger.FileEnable {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, cfg.Logger.Filename)
	}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	cfg.InitDirs()

	// Initialize metrics with workdir convention
	if err := metrics.InitMetrics(cfg.System.Workdir); err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	// Ensure database schema is migrated before loading configs
	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.checkSettings()

	// Initialize the configuration manager
	a.configManager = NewConfigManager(a.gormDB)

	a.initComponents()
	a.initJob()
}

// initComponents constructs the commerce core: catalog, carts, ledger,
// query engine and the API surface over them.
func (a *Application) initComponents() {
	a.checkCatalogFile()

	store, err := catalog.LoadFile(a.appConfig.Catalog.Path)
	if err != nil {
		zap.S().Panicf("catalog load failed: %v", err)
	}
	a.catalogStore = store

	idleTTL := defaultCartIdleTTL
	if raw := a.appConfig.Cart.IdleTTL; raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			idleTTL = d
		} else {
			zap.S().Warnf("invalid cart idle_ttl %q, using default", raw)
		}
	}
	a.cartManager = cart.NewManager(store, idleTTL)

	node, err := snowflake.NewNode(a.appConfig.Ledger.NodeID)
	if err != nil {
		zap.S().Panicf("snowflake node init failed: %v", err)
	}

	orderStore, err := a.openOrderStore()
	if err != nil {
		zap.S().Panicf("order store init failed: %v", err)
	}

	a.notifier, err = notify.New(a.appConfig.Notify)
	if err != nil {
		zap.S().Panicf("notifier init failed: %v", err)
	}
	// metrics ride on the same order.created event as webhook/email
	err = a.notifier.Subscribe(func(order domain.Order) {
		metrics.RecordOrderCreated(order.Total, order.Currency)
	})
	if err != nil {
		zap.S().Warnf("metrics subscription failed: %v", err)
	}

	a.orderLedger = ledger.New(store, orderStore, node,
		ledger.WithNotifier(a.notifier),
		ledger.WithAppendRetries(a.appConfig.Ledger.AppendRetries, 0),
	)
	a.queryEngine = query.NewEngine(orderStore)
	a.api = merchantapi.New(store, a.cartManager, a.orderLedger, a.queryEngine)
}

// openOrderStore selects the ledger backend: the shared database, or a
// standalone append-only bbolt journal.
func (a *Application) openOrderStore() (ledger.Store, error) {
	if a.appConfig.Ledger.Store == "bolt" {
		return ledger.NewBoltStore(a.appConfig.Ledger.BoltFile)
	}
	return ledger.NewGormStore(a.gormDB), nil
}

func (a *Application) MigrateDB(track bool) (err error) {
	if track {
		return a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...)
	}
	return a.gormDB.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
		zap.S().Error(err)
	}
}

// ConfigMgr returns the configuration manager
func (a *Application) ConfigMgr() *ConfigManager {
	return a.configManager
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(category, key string) string {
	return a.configManager.GetString(category, key)
}

// GetSettingsInt64Value retrieves an int64 configuration value
func (a *Application) GetSettingsInt64Value(category, key string) int64 {
	return a.configManager.GetInt64(category, key)
}

// GetSettingsBoolValue retrieves a boolean configuration value
func (a *Application) GetSettingsBoolValue(category, key string) bool {
	return a.configManager.GetBool(category, key)
}

// StartBackgroundJobs runs the scheduler until the context is cancelled.
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	a.sched.Start()
	go func() {
		<-ctx.Done()
		a.sched.Stop()
	}()
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.orderLedger != nil {
		_ = a.orderLedger.Store().Close()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
