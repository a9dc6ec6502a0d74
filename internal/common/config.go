package common

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server      ServerConfig      `toml:"server"`
	Platform    PlatformConfig    `toml:"platform"`
	Integration IntegrationConfig `toml:"integration"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
}

type ServerConfig struct {
	Name        string `toml:"name"`
	Environment string `toml:"environment"`
	Port        int    `toml:"port"`
	// JiraTimeout bounds each outbound Jira call, in seconds.
	JiraTimeout int `toml:"jira_timeout"`
}

// PlatformConfig describes the crash-reporting platform this bridge serves.
// BaseURL is the public origin webhook callbacks are registered under.
type PlatformConfig struct {
	BaseURL string `toml:"base_url"`
}

// IntegrationConfig carries the Jira workflow constants. The defaults match a
// stock Jira workflow; a differently configured instance can substitute its
// own transition ids without a code change.
type IntegrationConfig struct {
	ResolveTransitionID string `toml:"resolve_transition_id"`
	ReopenTransitionID  string `toml:"reopen_transition_id"`
	IssueTypeID         string `toml:"issue_type_id"`
}

type StorageConfig struct {
	DatabasePath  string `toml:"database_path"`
	BackupDir     string `toml:"backup_dir"`
	RetentionDays int    `toml:"retention_days"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

func DefaultConfig() *Config {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]

	defaultDBPath := filepath.Join(execDir, "data", execName+".db")

	return &Config{
		Server: ServerConfig{
			Name:        execName,
			Environment: "development",
			Port:        8080,
			JiraTimeout: 30,
		},
		Platform: PlatformConfig{
			BaseURL: "https://crashlytics.com",
		},
		Integration: IntegrationConfig{
			ResolveTransitionID: "2",
			ReopenTransitionID:  "3",
			IssueTypeID:         "1",
		},
		Storage: StorageConfig{
			DatabasePath:  defaultDBPath,
			BackupDir:     "./backups",
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		// Auto-detect config file
		execPath, _ := os.Executable()
		execDir := filepath.Dir(execPath)
		execName := filepath.Base(execPath)
		execName = execName[:len(execName)-len(filepath.Ext(execName))]

		possiblePaths := []string{
			filepath.Join(execDir, execName+".toml"),
			filepath.Join(execDir, "config.toml"),
			"config.toml",
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			return config, nil
		}
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Storage.DatabasePath = dbPath
	}
	if backupDir := os.Getenv("BACKUP_DIR"); backupDir != "" {
		config.Storage.BackupDir = backupDir
	}
	if baseURL := os.Getenv("PLATFORM_BASE_URL"); baseURL != "" {
		config.Platform.BaseURL = baseURL
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Server.Port = portNum
		}
	}
}

func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database_path is required")
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.JiraTimeout <= 0 {
		c.Server.JiraTimeout = 30
	}

	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform base_url is required")
	}
	if u, err := url.Parse(c.Platform.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("platform base_url must be an absolute URL: %s", c.Platform.BaseURL)
	}

	if c.Integration.ResolveTransitionID == "" {
		c.Integration.ResolveTransitionID = "2"
	}
	if c.Integration.ReopenTransitionID == "" {
		c.Integration.ReopenTransitionID = "3"
	}
	if c.Integration.IssueTypeID == "" {
		c.Integration.IssueTypeID = "1"
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validOutputs := []string{"console", "file", "both"}
	validOutput := false
	for _, output := range validOutputs {
		if c.Logging.Output == output {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}

// CallbackURL builds the webhook callback URL the platform exposes for a
// given application. This exact value is what the registrar deduplicates on.
func (c *Config) CallbackURL(appID string) string {
	return fmt.Sprintf("%s/api/v3/projects/%s/service_hooks/jira/responses", c.Platform.BaseURL, appID)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
