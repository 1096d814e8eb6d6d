package app

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/voxshop/merchantd/config"
	"github.com/voxshop/merchantd/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed acp_catalog_default.json
var defaultCatalogData []byte

// settingSchema seeds the sys_config table on first boot; existing values
// are never overwritten.
type settingSchema struct {
	Type    string
	Name    string
	Default string
	Remark  string
}

var settingSchemas = []settingSchema{
	{"merchant", "Name", "Voxshop Demo Store", "Merchant display name"},
	{"merchant", "Currency", "INR", "Default display currency (ISO 4217)"},
	{"export", "DailyEnabled", "true", "Write a daily CSV export of yesterday's orders"},
	{"export", "HistoryDays", "365", "How long exported CSV files are kept"},
}

// getDatabase opens the configured database. sqlite keeps a single file
// under the workdir for standalone deployments.
func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	logLevel := gormlogger.Silent
	if cfg.Debug {
		logLevel = gormlogger.Info
	}
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case "sqlite":
		dbfile := filepath.Join(workdir, "data", fmt.Sprintf("%s.db", cfg.Name))
		db, err = gorm.Open(sqlite.Open(dbfile), gormCfg)
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, time.Local.String())
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	}
	if err != nil {
		zap.S().Panicf("database connect failed: %v", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		if cfg.MaxConn > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxConn)
		}
		if cfg.IdleConn > 0 {
			sqlDB.SetMaxIdleConns(cfg.IdleConn)
		}
	}
	return db
}

// checkSettings seeds missing runtime settings with their defaults.
func (a *Application) checkSettings() {
	for sort, schema := range settingSchemas {
		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", schema.Type, schema.Name).
			Count(&count)
		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				Sort:   sort,
				Type:   schema.Type,
				Name:   schema.Name,
				Value:  schema.Default,
				Remark: schema.Remark,
			})
			zap.L().Info("initialized setting",
				zap.String("key", schema.Type+"."+schema.Name),
				zap.String("default", schema.Default))
		}
	}
}

// checkCatalogFile writes the embedded demo catalog when no catalog file
// exists yet, so a fresh install serves a browsable store.
func (a *Application) checkCatalogFile() {
	path := a.appConfig.Catalog.Path
	if _, err := os.Stat(path); err == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		zap.L().Error("failed to create catalog dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, defaultCatalogData, 0o644); err != nil {
		zap.L().Error("failed to write default catalog", zap.Error(err))
		return
	}
	zap.L().Info("initialized default catalog", zap.String("path", path))
}
