package app

import (
	"sync"

	"github.com/spf13/cast"
	"github.com/voxshop/merchantd/internal/domain"
	"gorm.io/gorm"
)

// ConfigManager reads runtime settings from the sys_config table with a
// small in-process cache. Values are stored as strings and coerced on read.
type ConfigManager struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[string]string
}

// NewConfigManager creates a settings reader over the database.
func NewConfigManager(db *gorm.DB) *ConfigManager {
	return &ConfigManager{db: db, cache: make(map[string]string)}
}

// GetString returns the setting value, "" when absent.
func (m *ConfigManager) GetString(category, name string) string {
	key := category + "." + name

	m.mu.RLock()
	if v, ok := m.cache[key]; ok {
		m.mu.RUnlock()
		return v
	}
	m.mu.RUnlock()

	var cfg domain.SysConfig
	if err := m.db.Where("type = ? and name = ?", category, name).First(&cfg).Error; err != nil {
		return ""
	}

	m.mu.Lock()
	m.cache[key] = cfg.Value
	m.mu.Unlock()
	return cfg.Value
}

// GetInt64 returns the setting coerced to int64, 0 when absent or invalid.
func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(m.GetString(category, name))
}

// GetInt returns the setting coerced to int.
func (m *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(m.GetString(category, name))
}

// GetBool returns the setting coerced to bool.
func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(m.GetString(category, name))
}

// SetValue updates a setting and refreshes the cache.
func (m *ConfigManager) SetValue(category, name, value string) error {
	err := m.db.Model(&domain.SysConfig{}).
		Where("type = ? and name = ?", category, name).
		Update("value", value).Error
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cache[category+"."+name] = value
	m.mu.Unlock()
	return nil
}
