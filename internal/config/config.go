package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "geoquest.cfg.json"

// ServerConfig holds HTTP/WebSocket listener settings
type ServerConfig struct {
	Address        string
	AllowedOrigins []string
	WriteWait      time.Duration
	PongWait       time.Duration
}

// GameConfig holds orchestrator tuning
type GameConfig struct {
	ProximityRadius  float64       // start a mission when within this many meters of its target
	CompleteRadius   float64       // default completion radius for missions without one
	LocationThrottle time.Duration // minimum interval between processed location fixes
	SaveDebounce     time.Duration
	StrictLifecycle  bool
	EnforceGeofence  bool
	MaxAccuracy      float64 // fixes less accurate than this (meters) are ignored; 0 disables
}

// SQLiteConfig holds SQLite storage settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// InfluxConfig holds telemetry sink settings
type InfluxConfig struct {
	Enabled    bool
	Protocol   string
	Host       string
	Port       string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// URL returns the InfluxDB server URL.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

// StatusConfig holds status file settings
type StatusConfig struct {
	Path     string
	Interval time.Duration
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.allowedOrigins", []string{})
	viper.SetDefault("server.writeWait", "10s")
	viper.SetDefault("server.pongWait", "60s")

	viper.SetDefault("missions.file", "./missions.json")

	viper.SetDefault("game.proximityRadius", 150.0)
	viper.SetDefault("game.completeRadius", 25.0)
	viper.SetDefault("game.locationThrottle", "1s")
	viper.SetDefault("game.saveDebounce", "2s")
	viper.SetDefault("game.strictLifecycle", false)
	viper.SetDefault("game.enforceGeofence", true)
	viper.SetDefault("game.maxAccuracy", 100.0)

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./geoquest.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "geoquest")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "geoquest")
	viper.SetDefault("influx.bucket", "player_telemetry")
	viper.SetDefault("influx.backupPath", "./telemetry.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "geoquest")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("status.path", "./status.json")
	viper.SetDefault("status.interval", "10s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the listener configuration.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Address:        viper.GetString("server.address"),
		AllowedOrigins: viper.GetStringSlice("server.allowedOrigins"),
		WriteWait:      viper.GetDuration("server.writeWait"),
		PongWait:       viper.GetDuration("server.pongWait"),
	}
}

// GetGameConfig returns the orchestrator configuration.
func GetGameConfig() GameConfig {
	return GameConfig{
		ProximityRadius:  viper.GetFloat64("game.proximityRadius"),
		CompleteRadius:   viper.GetFloat64("game.completeRadius"),
		LocationThrottle: viper.GetDuration("game.locationThrottle"),
		SaveDebounce:     viper.GetDuration("game.saveDebounce"),
		StrictLifecycle:  viper.GetBool("game.strictLifecycle"),
		EnforceGeofence:  viper.GetBool("game.enforceGeofence"),
		MaxAccuracy:      viper.GetFloat64("game.maxAccuracy"),
	}
}

// GetStorageConfig returns the persistence configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetInfluxConfig returns the telemetry sink configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Protocol:   viper.GetString("influx.protocol"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetGraylogConfig returns the GELF configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetStatusConfig returns the status file configuration.
func GetStatusConfig() StatusConfig {
	return StatusConfig{
		Path:     viper.GetString("status.path"),
		Interval: viper.GetDuration("status.interval"),
	}
}
