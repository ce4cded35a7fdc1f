package postgres

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"user"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"pass"`
	DBName   string `env:"POSTGRES_DATABASE"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
}

// NewConfig reads connection settings from the environment; fallbackDBName
// is used when POSTGRES_DATABASE is unset so each service can default to
// its own database.
func NewConfig(fallbackDBName string) (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.DBName == "" {
		cfg.DBName = fallbackDBName
	}
	return &cfg, nil
}

func (c *Config) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// AdminURL is the URL form used by the migration runner, pointed at the
// maintenance database so it can create the service database first.
func (c *Config) AdminURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.SSLMode)
}

func (c *Config) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}
