package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tmc/nbfix/internal/logger"
)

// EnvPrefix is prepended to every environment override, e.g. NBFIX_REPAIR_POLICY.
const EnvPrefix = "NBFIX"

// Config holds all configuration for nbfix
type Config struct {
	Repair RepairConfig  `mapstructure:"repair"`
	Backup BackupConfig  `mapstructure:"backup"`
	Logger logger.Config `mapstructure:"logger"`
	Server ServerConfig  `mapstructure:"server"`
}

// RepairConfig controls how a document is repaired
type RepairConfig struct {
	Policy            string `mapstructure:"policy" validate:"oneof=ensure-state strip-widgets"`
	Indent            int    `mapstructure:"indent" validate:"min=1,max=8"`
	PersistTextFixes  bool   `mapstructure:"persist_text_fixes"`
	CompleteTruncated bool   `mapstructure:"complete_truncated"`
}

// BackupConfig controls the backup taken before a file is rewritten
type BackupConfig struct {
	Suffix string `mapstructure:"suffix" validate:"required"`
	// Required makes a failed backup abort the repair instead of proceeding
	// without a safety net.
	Required bool   `mapstructure:"required"`
	Cleanup  string `mapstructure:"cleanup" validate:"oneof=keep-always remove-on-success remove-on-no-op"`
}

// ServerConfig holds configuration for `nbfix serve`
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" validate:"min=1"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"policy":         "repair.policy",
	"indent":         "repair.indent",
	"backup-suffix":  "backup.suffix",
	"backup-cleanup": "backup.cleanup",
	"log-level":      "logger.level",
	"host":           "server.host",
	"port":           "server.port",
}

// Load reads configuration from, in increasing precedence: defaults, the
// config file, a .env file, NBFIX_* environment variables and flags. An
// explicit configFile must exist; otherwise nbfix.yaml is looked up in the
// working directory and $HOME/.config/nbfix.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("nbfix")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "nbfix"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("repair.policy", "ensure-state")
	v.SetDefault("repair.indent", 1)
	v.SetDefault("repair.persist_text_fixes", true)
	v.SetDefault("repair.complete_truncated", false)

	v.SetDefault("backup.suffix", ".backup")
	v.SetDefault("backup.required", true)
	v.SetDefault("backup.cleanup", "remove-on-no-op")

	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.filename", "")
	v.SetDefault("logger.max_size_mb", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 32<<20)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
}

var validate = validator.New()

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if strings.ContainsAny(cfg.Backup.Suffix, `/\`) {
		return fmt.Errorf("backup suffix %q must not contain a path separator", cfg.Backup.Suffix)
	}
	return nil
}
