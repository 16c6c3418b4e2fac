package config

import (
	"io/fs"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/thoreinstein/pnpm-catalog/internal/errors"
	"github.com/thoreinstein/pnpm-catalog/internal/paths"
)

// EnvPrefix is the prefix for environment overrides, e.g. PNPM_CATALOG_BACKUP_DIR.
const EnvPrefix = "PNPM_CATALOG"

// Config keys.
const (
	KeyBackupDir      = "backup_dir"
	KeyDefaultCatalog = "default_catalog"
	KeyAssumeYes      = "assume_yes"
)

// Config represents the tool configuration after merging defaults, the
// config file, environment variables, and bound flags.
type Config struct {
	BackupDir      string `mapstructure:"backup_dir" yaml:"backup_dir"`
	DefaultCatalog string `mapstructure:"default_catalog" yaml:"default_catalog"`
	AssumeYes      bool   `mapstructure:"assume_yes" yaml:"assume_yes"`
}

// Workspace is the resolved location every engine operates on. It is
// passed explicitly to constructors rather than held globally.
type Workspace struct {
	Root      string
	BackupDir string
}

// Init configures v with search paths, environment support, and defaults.
// Config files are looked up in root first, then the user config directory.
func Init(v *viper.Viper, root string) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if root != "" {
		v.AddConfigPath(root)
	}
	v.AddConfigPath(paths.AppConfigDir())

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv applies during Unmarshal.
	v.SetDefault(KeyBackupDir, "")
	v.SetDefault(KeyDefaultCatalog, "")
	v.SetDefault(KeyAssumeYes, false)
}

// Load reads the configuration file into a Config.
// If path is provided, it reads from that specific file and a missing file
// is an error. If path is empty, the search paths are used and a missing
// file falls back to defaults.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
		case errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound):
			return nil, errors.NewConfigError(errors.Wrapf(errors.ErrNotFound, "config file %s", path))
		default:
			return nil, errors.NewConfigError(errors.Wrap(err, "reading config file"))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError(errors.Wrap(err, "unmarshaling config"))
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.NewConfigError(errors.Mark(errors.Join(errs...), errors.ErrInvalidConfig))
	}

	return &cfg, nil
}

// Resolve combines the workspace root with cfg into a Workspace.
func Resolve(root string, cfg *Config) Workspace {
	if cfg == nil {
		cfg = &Config{}
	}
	root = filepath.Clean(root)
	return Workspace{
		Root:      root,
		BackupDir: paths.BackupDir(root, cfg.BackupDir),
	}
}

// ConfigFileUsed reports the file v loaded, or "" when defaults were used.
func ConfigFileUsed(v *viper.Viper) string {
	return v.ConfigFileUsed()
}
