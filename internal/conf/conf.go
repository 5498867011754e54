package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents application configuration
type Config struct {
	// Storage locations
	Storage StorageConfig

	// Runtime configuration of projects and dispatch
	Runtime RuntimeConfig

	// Notification pipeline switches
	Notification NotificationConfig

	// Feishu configuration (optional notification source)
	Feishu FeishuConfig

	// LLM configuration for the prompt language (optional)
	LLM LLMConfig

	// HTTP control API
	API APIConfig

	// Debug mode
	Debug bool
}

// StorageConfig contains storage locations
type StorageConfig struct {
	Home        string
	ProjectsDir string
	DBPath      string
}

// RuntimeConfig contains project runtime settings
type RuntimeConfig struct {
	CallTimeout     time.Duration
	DefaultPoolSize int
	BusCapacity     int
	RoomCacheSize   int
}

// NotificationConfig contains notification pipeline settings
type NotificationConfig struct {
	GlobalPower                bool
	LegacyEvent                bool
	UseNotificationPostedEvent bool
	LogReceivedMessage         bool
	AutoRule                   bool
	PlatformSDKVersion         int
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// Enabled reports whether the Feishu source should be started
func (c FeishuConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// LLMConfig contains OpenAI-compatible endpoint configuration
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// APIConfig contains HTTP API configuration
type APIConfig struct {
	Port int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	home := os.Getenv("STARLIGHT_HOME")
	if home == "" {
		homeDir, _ := os.UserHomeDir()
		home = filepath.Join(homeDir, ".starlight")
	}

	projectsDir := os.Getenv("PROJECTS_DIR")
	if projectsDir == "" {
		projectsDir = filepath.Join(home, "projects")
	}

	dbPath := os.Getenv("STARLIGHT_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(home, "starlight.db")
	}

	return &Config{
		Storage: StorageConfig{
			Home:        home,
			ProjectsDir: projectsDir,
			DBPath:      dbPath,
		},
		Runtime: RuntimeConfig{
			CallTimeout:     time.Duration(envInt("CALL_TIMEOUT_SECONDS", 10)) * time.Second,
			DefaultPoolSize: envInt("DEFAULT_POOL_SIZE", 1),
			BusCapacity:     envInt("BUS_CAPACITY", 256),
			RoomCacheSize:   envInt("ROOM_CACHE_SIZE", 512),
		},
		Notification: NotificationConfig{
			GlobalPower:                envBool("GLOBAL_POWER", true),
			LegacyEvent:                envBool("USE_LEGACY_EVENT", false),
			UseNotificationPostedEvent: envBool("USE_NOTIFICATION_POSTED_EVENT", false),
			LogReceivedMessage:         envBool("LOG_RECEIVED_MESSAGE", false),
			AutoRule:                   envBool("AUTO_RULE", false),
			PlatformSDKVersion:         envInt("PLATFORM_SDK_VERSION", 30),
		},
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			BaseURL: os.Getenv("LLM_BASE_URL"),
			Model:   os.Getenv("LLM_MODEL"),
		},
		API: APIConfig{
			Port: envInt("API_PORT", 9876),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.ProjectsDir == "" {
		return &ConfigError{Field: "PROJECTS_DIR", Message: "required"}
	}
	if c.Runtime.CallTimeout <= 0 {
		return &ConfigError{Field: "CALL_TIMEOUT_SECONDS", Message: "must be positive"}
	}
	if c.Runtime.DefaultPoolSize <= 0 {
		return &ConfigError{Field: "DEFAULT_POOL_SIZE", Message: "must be positive"}
	}
	if c.Runtime.BusCapacity <= 0 {
		return &ConfigError{Field: "BUS_CAPACITY", Message: "must be positive"}
	}
	if c.Runtime.RoomCacheSize <= 0 {
		return &ConfigError{Field: "ROOM_CACHE_SIZE", Message: "must be positive"}
	}
	if (c.Feishu.AppID == "") != (c.Feishu.AppSecret == "") {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "must be set together"}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "out of range"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
