package config

import (
	"fmt"
	"net"
	"strconv"
)

// DBConfig contains the postgres connection settings.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"agentrun"`
	Password string `env:"PASSWORD" envDefault:"agentrun"`
	Name     string `env:"NAME"     envDefault:"agentrun"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
	// RunMigrationsOnStart applies pending migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`

	MaxOpenConns int `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int `env:"MAX_IDLE_CONNS" envDefault:"5"`
}

// DSN renders the postgres connection string.
func (c DBConfig) DSN() string {
	hostPort := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		c.User, c.Password, hostPort, c.Name, c.SSLMode)
}

// RedisConfig contains the redis settings for the job event stream.
type RedisConfig struct {
	// EventsEnabled turns job event publishing on. Off by default so the
	// system runs without redis.
	EventsEnabled bool   `env:"EVENTS_ENABLED" envDefault:"false"`
	Addr          string `env:"ADDR"           envDefault:"localhost:6379"`
	Password      string `env:"PASSWORD"       envDefault:""`
	DB            int    `env:"DB"             envDefault:"0"`
}
