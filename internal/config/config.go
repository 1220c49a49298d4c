package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("idverify version %s, commit %s, built at %s", version, commit, date)
}

// DefaultDiiaTokenURL is the Diia test environment token endpoint
const DefaultDiiaTokenURL = "https://test.id.gov.ua/get-access-token"

// ErrMissingCredentials is returned when a Diia client credential is not configured
var ErrMissingCredentials = errors.New("diia client_id, client_secret and redirect_uri are required")

type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Diia    DiiaConfig    `mapstructure:"diia" yaml:"diia"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins" yaml:"allow_origins"`
}

// Addr returns the listen address of the server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level             string `mapstructure:"level" yaml:"level"`
	Format            string `mapstructure:"format" yaml:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace" yaml:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path" yaml:"output_path"`
	MaxSizeMB         int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups        int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays        int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress          bool   `mapstructure:"compress" yaml:"compress"`
	DisableConsole    bool   `mapstructure:"disable_console" yaml:"disable_console"`
}

// DiiaConfig holds the OAuth client registration issued by Diia
type DiiaConfig struct {
	ClientID     string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string        `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURI  string        `mapstructure:"redirect_uri" yaml:"redirect_uri"`
	TokenURL     string        `mapstructure:"token_url" yaml:"token_url"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Validate reports ErrMissingCredentials when any credential is empty
func (d *DiiaConfig) Validate() error {
	if d.ClientID == "" || d.ClientSecret == "" || d.RedirectURI == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Validate checks the values that cannot be defaulted
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if err := c.Diia.Validate(); err != nil {
		return err
	}
	return nil
}

// flag name -> config key
var flagKeys = map[string]string{
	"host":               "server.host",
	"port":               "server.port",
	"log-level":          "logging.level",
	"log-format":         "logging.format",
	"diia-client-id":     "diia.client_id",
	"diia-client-secret": "diia.client_secret",
	"diia-redirect-uri":  "diia.redirect_uri",
	"diia-token-url":     "diia.token_url",
}

// legacy environment names still honored for the Diia credentials
var legacyEnv = map[string]string{
	"diia.client_id":     "DIIA_CLIENT_ID",
	"diia.client_secret": "DIIA_CLIENT_SECRET",
	"diia.redirect_uri":  "DIIA_CALLBACK",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.disable_stacktrace", false)
	v.SetDefault("logging.output_path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", false)
	v.SetDefault("logging.disable_console", false)

	v.SetDefault("diia.client_id", "")
	v.SetDefault("diia.client_secret", "")
	v.SetDefault("diia.redirect_uri", "")
	v.SetDefault("diia.token_url", DefaultDiiaTokenURL)
	v.SetDefault("diia.timeout", 10*time.Second)
}

// InitFlags registers the command line flags understood by Load (without parsing)
func InitFlags(fs *pflag.FlagSet) {
	fs.String("host", "", "Address the HTTP server binds to")
	fs.Int("port", 0, "Port the HTTP server listens on")
	fs.String("log-level", "", "Log level (debug|info|warn|error)")
	fs.String("log-format", "", "Log format (console|json)")
	fs.String("diia-client-id", "", "Diia OAuth client id")
	fs.String("diia-client-secret", "", "Diia OAuth client secret")
	fs.String("diia-redirect-uri", "", "Diia OAuth redirect URI")
	fs.String("diia-token-url", "", "Diia token endpoint")
}

// Load reads configuration from defaults, the YAML file, the environment and flags,
// in increasing order of precedence. A missing config file is not an error.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("IDVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "IDVERIFY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/idverify")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Diia.TokenURL == "" {
		config.Diia.TokenURL = DefaultDiiaTokenURL
	}

	return &config, nil
}
