package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// SysConfig holds process-level settings.
type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WebConfig holds the HTTP listener settings.
type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// DBConfig holds the database connection settings. Type is "postgres" or
// "sqlite"; sqlite keeps everything in a single file under the workdir for
// standalone deployments.
type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// CatalogConfig locates the product catalog file.
type CatalogConfig struct {
	Path string `yaml:"path" json:"path"`
}

// CartConfig controls cart lifecycle. IdleTTL is a Go duration string; empty
// or "0" disables idle eviction.
type CartConfig struct {
	IdleTTL string `yaml:"idle_ttl" json:"idle_ttl"`
}

// LedgerConfig selects the order store. Store is "database" (orders live in
// the configured database) or "bolt" (append-only journal file).
type LedgerConfig struct {
	Store         string `yaml:"store" json:"store"`
	BoltFile      string `yaml:"bolt_file" json:"bolt_file"`
	NodeID        int64  `yaml:"node_id" json:"node_id"`
	AppendRetries int    `yaml:"append_retries" json:"append_retries"`
}

// NotifyConfig controls best-effort order notifications.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
	SMTPHost   string `yaml:"smtp_host" json:"smtp_host"`
	SMTPPort   int    `yaml:"smtp_port" json:"smtp_port"`
	SMTPUser   string `yaml:"smtp_user" json:"smtp_user"`
	SMTPPasswd string `yaml:"smtp_passwd" json:"smtp_passwd"`
	EmailFrom  string `yaml:"email_from" json:"email_from"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig     `yaml:"system" json:"system"`
	Web      WebConfig     `yaml:"web" json:"web"`
	Database DBConfig      `yaml:"database" json:"database"`
	Catalog  CatalogConfig `yaml:"catalog" json:"catalog"`
	Cart     CartConfig    `yaml:"cart" json:"cart"`
	Ledger   LedgerConfig  `yaml:"ledger" json:"ledger"`
	Notify   NotifyConfig  `yaml:"notify" json:"notify"`
	Logger   LogConfig     `yaml:"logger" json:"logger"`
}

func (c *AppConfig) InitDirs() {
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "data"), 0o755)
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "logs"), 0o755)
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "exports"), 0o755)
}

func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "merchantd",
			Location: "Asia/Kolkata",
			Workdir:  "/var/merchantd",
			Debug:    true,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 1899,
		},
		Database: DBConfig{
			Type:     "postgres",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "merchantd",
			User:     "postgres",
			Passwd:   "myroot",
			MaxConn:  100,
			IdleConn: 10,
		},
		Catalog: CatalogConfig{
			Path: "/var/merchantd/acp_catalog.json",
		},
		Cart: CartConfig{
			IdleTTL: "2h",
		},
		Ledger: LedgerConfig{
			Store:         "database",
			BoltFile:      "/var/merchantd/data/orders.db",
			NodeID:        1,
			AppendRetries: 3,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: true,
			Filename:   "/var/merchantd/merchantd.log",
		},
	}
}

// LoadConfig reads the yaml config file and applies environment overrides.
// A missing file yields the defaults.
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig()
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}
	setEnvValue("MERCHANTD_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvValue("MERCHANTD_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBoolValue("MERCHANTD_SYSTEM_DEBUG", &cfg.System.Debug)
	setEnvValue("MERCHANTD_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("MERCHANTD_WEB_PORT", &cfg.Web.Port)
	setEnvValue("MERCHANTD_DB_TYPE", &cfg.Database.Type)
	setEnvValue("MERCHANTD_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("MERCHANTD_DB_PORT", &cfg.Database.Port)
	setEnvValue("MERCHANTD_DB_NAME", &cfg.Database.Name)
	setEnvValue("MERCHANTD_DB_USER", &cfg.Database.User)
	setEnvValue("MERCHANTD_DB_PWD", &cfg.Database.Passwd)
	setEnvValue("MERCHANTD_CATALOG_PATH", &cfg.Catalog.Path)
	setEnvValue("MERCHANTD_CART_IDLE_TTL", &cfg.Cart.IdleTTL)
	setEnvValue("MERCHANTD_LEDGER_STORE", &cfg.Ledger.Store)
	setEnvValue("MERCHANTD_LEDGER_BOLT_FILE", &cfg.Ledger.BoltFile)
	setEnvInt64Value("MERCHANTD_LEDGER_NODE_ID", &cfg.Ledger.NodeID)
	setEnvValue("MERCHANTD_NOTIFY_WEBHOOK_URL", &cfg.Notify.WebhookURL)
	setEnvValue("MERCHANTD_LOGGER_MODE", &cfg.Logger.Mode)
	return cfg
}

func setEnvValue(name string, val *string) {
	if v, ok := os.LookupEnv(name); ok {
		*val = v
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v, ok := os.LookupEnv(name); ok {
		*val = cast.ToBool(v)
	}
}

func setEnvIntValue(name string, val *int) {
	if v, ok := os.LookupEnv(name); ok {
		*val = cast.ToInt(v)
	}
}

func setEnvInt64Value(name string, val *int64) {
	if v, ok := os.LookupEnv(name); ok {
		*val = cast.ToInt64(v)
	}
}
