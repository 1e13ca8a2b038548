package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"jastip/pkg/log"
)

// GlobalConfig holds the global configuration instance
var GlobalConfig *Config

// activeViper is the viper instance behind GlobalConfig; WatchConfig needs
// the same instance LoadConfig read from or file events never arrive.
var activeViper *viper.Viper

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("/etc/jastip")
	}

	// Environment variables, e.g. JASTIP_DATABASE_HOST
	v.SetEnvPrefix("JASTIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Warn("Config file not found, using defaults and environment variables")
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	GlobalConfig = config
	activeViper = v

	return config, nil
}

// MustLoadConfig loads configuration and panics on error
func MustLoadConfig(configPath string) *Config {
	config, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return config
}

// GetConfig returns the global configuration instance
func GetConfig() *Config {
	if GlobalConfig == nil {
		panic("Config not loaded. Call LoadConfig first.")
	}
	return GlobalConfig
}

// WatchConfig watches the loaded config file for changes and reloads
// GlobalConfig on each write. Callers needing to react to a reload pass a
// callback; nil is fine.
func WatchConfig(callback func(*Config)) {
	v := activeViper
	if v == nil || v.ConfigFileUsed() == "" {
		log.Warn("No config file loaded, hot reload disabled")
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.WithFields(map[string]interface{}{
			"file": e.Name,
		}).Info("Config file changed, reloading")

		newConfig, err := LoadConfig(v.ConfigFileUsed())
		if err != nil {
			log.WithFields(map[string]interface{}{
				"error": err.Error(),
			}).Error("Failed to reload config")
			return
		}

		if callback != nil {
			callback(newConfig)
		}
	})
	v.WatchConfig()
}
