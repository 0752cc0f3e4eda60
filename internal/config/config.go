// Package config loads the service configuration from a YAML file with
// ${ENV} expansion, so secrets stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	NATS     NATSConfig     `yaml:"nats"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	LogLevel    string `yaml:"log_level"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Database    string        `yaml:"database"`
	SSLMode     string        `yaml:"sslmode"`
	MaxConns    int32         `yaml:"max_conns"`
	MinConns    int32         `yaml:"min_conns"`
	MaxConnTime time.Duration `yaml:"max_conn_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

type SMTPConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	FromName    string        `yaml:"from_name"`
	FromAddress string        `yaml:"from_address"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	QueueSize   int           `yaml:"queue_size"`
}

// NATSConfig is optional; an empty URL disables event publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads the YAML file at path, expands ${ENV} references and validates
// the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func defaults() Config {
	return Config{
		Service: ServiceConfig{
			Name:        "be-reimbursements",
			Environment: "development",
			Version:     "dev",
			LogLevel:    "info",
		},
		Server: ServerConfig{
			Port:            4000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Host:        "localhost",
			Port:        5432,
			SSLMode:     "disable",
			MaxConns:    10,
			MinConns:    2,
			MaxConnTime: time.Hour,
			MaxIdleTime: 30 * time.Minute,
		},
		SMTP: SMTPConfig{
			Port:        587,
			FromName:    "ERNIt Reimbursements",
			SendTimeout: 30 * time.Second,
			QueueSize:   256,
		},
		NATS: NATSConfig{
			SubjectPrefix: "notifications.reimbursements",
		},
	}
}

// Validate checks the invariants the service cannot start without.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Database.User == "" || c.Database.Database == "" {
		return fmt.Errorf("config: database user and database name are required")
	}
	if c.SMTP.Host != "" {
		if c.SMTP.FromAddress == "" {
			return fmt.Errorf("config: smtp.from_address is required when smtp.host is set")
		}
		if c.SMTP.SendTimeout <= 0 {
			return fmt.Errorf("config: smtp.send_timeout must be positive")
		}
	}
	return nil
}
