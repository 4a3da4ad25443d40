package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// ServerConfig holds the HTTP listener and proxy configuration.
type ServerConfig struct {
	Listen      string `mapstructure:"listen"`
	ProxyDomain string `mapstructure:"proxy_domain"` // apps serve under <name>.<domain>
}

// BuildConfig holds the build-step configuration.
type BuildConfig struct {
	Workspace string `mapstructure:"workspace"` // staging dir for build contexts
	Pull      bool   `mapstructure:"pull"`      // refresh base images on every build
}

// RuntimeConfig holds the container runtime configuration.
type RuntimeConfig struct {
	StopTimeout    time.Duration `mapstructure:"stop_timeout"`
	StartupGrace   time.Duration `mapstructure:"startup_grace"`
	ResyncInterval time.Duration `mapstructure:"resync_interval"`
}

// LoggingConfig holds the logging-related configuration.
type LoggingConfig struct {
	Level string `mapstructure:"log_level"`
}

// AppConfig is one app declared in the config file. Unset fields fall back
// to the domain defaults when converted.
type AppConfig struct {
	Name      string `mapstructure:"name"`
	Source    string `mapstructure:"source"`
	Branch    string `mapstructure:"branch"`
	BaseImage string `mapstructure:"base_image"`
	Manifest  string `mapstructure:"manifest"`
	Entry     string `mapstructure:"entry"`
	EntryFile string `mapstructure:"entry_file"`
	Port      int    `mapstructure:"port"`
	HostPort  int    `mapstructure:"host_port"`
}

// App converts the config entry to its domain form.
func (a AppConfig) App() domain.App {
	return domain.App{
		Name:      a.Name,
		Source:    a.Source,
		Branch:    a.Branch,
		BaseImage: a.BaseImage,
		Manifest:  a.Manifest,
		Entry:     a.Entry,
		EntryFile: a.EntryFile,
		Port:      a.Port,
		HostPort:  a.HostPort,
	}
}

// Config is the top-level configuration struct.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Build   BuildConfig   `mapstructure:"build"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Logging LoggingConfig `mapstructure:"log"`
	Apps    []AppConfig   `mapstructure:"apps"`
}

// InitConfig performs the initial configuration: setting defaults,
// specifying the config file, and reading it. An explicit cfgFile wins over
// the search path.
func InitConfig(cfgFile string) error {
	viper.SetDefault("server.listen", ":3000")
	viper.SetDefault("server.proxy_domain", "localhost")
	viper.SetDefault("build.workspace", filepath.Join(xdg.StateHome, "pixelart", "builds"))
	viper.SetDefault("build.pull", false)
	viper.SetDefault("runtime.stop_timeout", "10s")
	viper.SetDefault("runtime.startup_grace", "3s")
	viper.SetDefault("runtime.resync_interval", "30s")
	viper.SetDefault("log.log_level", "INFO")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config") // Looks for config.yaml
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".") // current directory
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "pixelart"))
	}

	// Read the config file if available.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// If the file is not found, just continue with defaults and env vars.
	}

	// Enable automatic environment variable binding.
	viper.SetEnvPrefix("PIXELART")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return nil
}

// Load unmarshals the configuration into the Config struct.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Build.Workspace == "" {
		return fmt.Errorf("build.workspace must not be empty")
	}
	if c.Runtime.StopTimeout <= 0 {
		return fmt.Errorf("runtime.stop_timeout must be positive")
	}
	seen := make(map[string]bool, len(c.Apps))
	for _, app := range c.Apps {
		if app.Name == "" {
			return fmt.Errorf("every configured app needs a name")
		}
		if seen[app.Name] {
			return fmt.Errorf("app %s is configured twice", app.Name)
		}
		seen[app.Name] = true
	}
	return nil
}
