package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "RELAY"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "relay.db"
	defaultLogLevel     = "info"

	// CredentialsEnvKey names the environment variable holding the optional
	// service credentials JSON blob.
	CredentialsEnvKey = "RELAY_SERVICE_CREDENTIALS"
)

// AppConfig captures runtime configuration for the relay server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string
}

// ServiceCredentials is the shape of the credentials JSON blob supplied by
// the environment at process start. When present it overrides the configured
// datastore location.
type ServiceCredentials struct {
	DatastorePath string `json:"datastore_path"`
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
}

// Load parses runtime configuration from viper and the optional credentials
// blob. A present-but-malformed credentials blob is a startup failure.
func Load(configViper *viper.Viper, credentialsBlob string) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:  configViper.GetString("http.address"),
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),
	}

	if strings.TrimSpace(credentialsBlob) != "" {
		credentials, err := parseCredentials(credentialsBlob)
		if err != nil {
			return AppConfig{}, err
		}
		if credentials.DatastorePath != "" {
			cfg.DatabasePath = credentials.DatastorePath
		}
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func parseCredentials(blob string) (ServiceCredentials, error) {
	var credentials ServiceCredentials
	if err := json.Unmarshal([]byte(blob), &credentials); err != nil {
		return ServiceCredentials{}, fmt.Errorf("malformed %s: %w", CredentialsEnvKey, err)
	}
	return credentials, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
