package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "PAPYRUS"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabasePath   = "papyrus.db"
	defaultLogLevel       = "info"
	defaultGuestNoteLimit = 10
	defaultAccountTTL     = 7 * 24 * time.Hour
	defaultGuestTTL       = 30 * 24 * time.Hour
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	SigningSecret   string
	LogLevel        string
	GuestNoteLimit  int
	AccountTokenTTL time.Duration
	GuestTokenTTL   time.Duration
	BcryptCost      int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("guest.note_limit", defaultGuestNoteLimit)
	configViper.SetDefault("token.account_ttl", defaultAccountTTL.String())
	configViper.SetDefault("token.guest_ttl", defaultGuestTTL.String())
	configViper.SetDefault("auth.bcrypt_cost", 0)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		SigningSecret:   configViper.GetString("auth.signing_secret"),
		LogLevel:        configViper.GetString("log.level"),
		GuestNoteLimit:  configViper.GetInt("guest.note_limit"),
		AccountTokenTTL: configViper.GetDuration("token.account_ttl"),
		GuestTokenTTL:   configViper.GetDuration("token.guest_ttl"),
		BcryptCost:      configViper.GetInt("auth.bcrypt_cost"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.GuestNoteLimit <= 0 {
		return fmt.Errorf("guest.note_limit must be positive")
	}
	return nil
}
