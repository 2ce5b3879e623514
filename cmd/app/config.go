package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/repository"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`
	Loyalty  LoyaltyConfig     `yaml:"loyalty"`
	Admin    AdminConfig       `yaml:"admin"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type LoyaltyConfig struct {
	TargetStamps        int    `yaml:"targetStamps"`
	ScanCooldownSeconds int    `yaml:"scanCooldownSeconds"`
	PublicBaseURL       string `yaml:"publicBaseURL"`
}

type AdminConfig struct {
	Token string `yaml:"token"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("loyalty.targetStamps", 5)
	viper.SetDefault("loyalty.scanCooldownSeconds", 30)
	viper.SetDefault("loyalty.publicBaseURL", "http://localhost:8080")
	viper.SetDefault("logLevel", "info")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
