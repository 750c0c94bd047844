// Package config содержит логику чтения конфигурации сервиса начисления баллов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmeshcher/point-service/internal/fault"
	"github.com/mmeshcher/point-service/internal/repository"
)

// Поддерживаемые драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const defaultPort = "8001"

// Config содержит параметры конфигурации сервиса.
type Config struct {
	Port        string `env:"PORT"`
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"point"`
	DBMaxConns int    `env:"DB_MAX_CONNS" envDefault:"10"`

	FaultRate int   `env:"FAULT_RATE"`
	FaultSeed int64 `env:"FAULT_SEED"`

	RabbitMQURL   string `env:"RABBITMQ_URL"`
	RabbitMQQueue string `env:"RABBITMQ_QUEUE" envDefault:"points_added"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"point-service"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env необязателен: в контейнере переменные приходят из окружения.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envFaultRate := cfg.FaultRate
	_, faultRateSet := os.LookupEnv("FAULT_RATE")

	flag.StringVar(&cfg.RunAddress, "a", "", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.IntVar(&cfg.FaultRate, "r", fault.DefaultRate, "fail 1 in N total-points requests, 0 disables")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if faultRateSet {
		cfg.FaultRate = envFaultRate
	}

	if cfg.RunAddress == "" {
		port := cfg.Port
		if port == "" {
			port = defaultPort
		}
		cfg.RunAddress = ":" + port
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.FaultRate < 0 {
		return errors.New("fault rate must not be negative")
	}
	return nil
}

// DSN возвращает строку подключения к хранилищу. DATABASE_URI имеет приоритет
// над отдельными параметрами DB_*.
func (c *Config) DSN() string {
	if c.DatabaseURI != "" {
		return c.DatabaseURI
	}

	port := c.DBPort
	if port == 0 {
		port = c.defaultDBPort()
	}

	if c.DBDriver == DriverMySQL {
		return repository.MySQLDSN(c.DBHost, port, c.DBUser, c.DBPassword, c.DBName)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(port)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// RedactedDSN возвращает адрес хранилища без учётных данных, для логов.
func (c *Config) RedactedDSN() string {
	port := c.DBPort
	if port == 0 {
		port = c.defaultDBPort()
	}
	if c.DatabaseURI != "" {
		if u, err := url.Parse(c.DatabaseURI); err == nil && u.Host != "" {
			return u.Redacted()
		}
		return "<database uri>"
	}
	return fmt.Sprintf("%s://%s/%s", c.DBDriver, net.JoinHostPort(c.DBHost, strconv.Itoa(port)), c.DBName)
}

func (c *Config) defaultDBPort() int {
	if c.DBDriver == DriverMySQL {
		return 3306
	}
	return 5432
}
