package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/cardscan/internal/common"
)

// Defaults.
const (
	DefaultDatabasePath = "$HOME/.local/share/cardscan/cardscan.db"
	DefaultInputName    = "input"
	DefaultOutputName   = "output"
	DefaultThreads      = 4
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
)

// RuntimeLibraryEnv is consulted when no runtime library path is configured.
const RuntimeLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// Config is the application configuration.
type Config struct {
	Models   ModelsConfig
	Runtime  RuntimeConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// ModelsConfig locates the neural models.
type ModelsConfig struct {
	GridPath  string
	DigitPath string
	Threads   int
}

// RuntimeConfig configures the inference runtime.
type RuntimeConfig struct {
	LibraryPath string
	InputName   string
	OutputName  string
}

// DatabaseConfig configures scan history storage.
type DatabaseConfig struct {
	Path string
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("models.threads", DefaultThreads)
	v.SetDefault("runtime.input_name", DefaultInputName)
	v.SetDefault("runtime.output_name", DefaultOutputName)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}

// Load reads the configuration from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v. It follows this precedence:
// 1. Viper configuration (from flags, config file or CARDSCAN_ env vars)
// 2. Direct environment variables (ONNXRUNTIME_SHARED_LIBRARY_PATH)
// 3. Default values
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Models: ModelsConfig{
			GridPath:  ExpandPath(v.GetString("models.grid_path")),
			DigitPath: ExpandPath(v.GetString("models.digit_path")),
			Threads:   v.GetInt("models.threads"),
		},
		Runtime: RuntimeConfig{
			LibraryPath: ExpandPath(v.GetString("runtime.library_path")),
			InputName:   v.GetString("runtime.input_name"),
			OutputName:  v.GetString("runtime.output_name"),
		},
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	// Override with direct environment variables if not set
	if cfg.Runtime.LibraryPath == "" {
		cfg.Runtime.LibraryPath = ExpandPath(os.Getenv(RuntimeLibraryEnv))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if c.Models.Threads < 1 {
		return fmt.Errorf("%w: models.threads must be at least 1, got %d", common.ErrInvalidConfig, c.Models.Threads)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	return nil
}

// RequireModels checks the settings needed to run recognition.
func (c *Config) RequireModels() error {
	if c.Models.GridPath == "" {
		return fmt.Errorf("%w: models.grid_path", common.ErrMissingConfig)
	}
	if c.Models.DigitPath == "" {
		return fmt.Errorf("%w: models.digit_path", common.ErrMissingConfig)
	}
	for _, p := range []string{c.Models.GridPath, c.Models.DigitPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: model %s: %w", common.ErrInvalidConfig, p, err)
		}
	}
	if c.Runtime.InputName == "" || c.Runtime.OutputName == "" {
		return fmt.Errorf("%w: runtime.input_name and runtime.output_name", common.ErrMissingConfig)
	}
	return nil
}
