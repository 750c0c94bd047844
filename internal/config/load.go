package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadConfig содержит параметры нагрузочного стенда.
type LoadConfig struct {
	Target       string        `env:"LOAD_TARGET" envDefault:"http://localhost:8001"`
	PathTemplate string        `env:"LOAD_PATH" envDefault:"/api/v1/points/user/{userId}/total"`
	Users        int           `env:"LOAD_USERS" envDefault:"5"`
	Concurrency  int           `env:"LOAD_CONCURRENCY" envDefault:"10"`
	Duration     time.Duration `env:"LOAD_DURATION" envDefault:"1m"`
	Ramp         time.Duration `env:"LOAD_RAMP" envDefault:"30s"`
	Pause        time.Duration `env:"LOAD_SLEEP" envDefault:"1s"`
	Timeout      time.Duration `env:"LOAD_TIMEOUT" envDefault:"5s"`
	Retries      int           `env:"LOAD_RETRIES"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
}

// ParseLoad считывает параметры стенда из переменных окружения и флагов.
// В отличие от сервиса, флаги имеют приоритет: стенд запускают вручную.
func ParseLoad() (*LoadConfig, error) {
	_ = godotenv.Load()

	cfg := &LoadConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	flag.StringVar(&cfg.Target, "target", cfg.Target, "base URL of the service under load")
	flag.StringVar(&cfg.PathTemplate, "path", cfg.PathTemplate, "request path, {userId} is replaced with a random user id")
	flag.IntVar(&cfg.Users, "users", cfg.Users, "user ids are drawn from [1, users]")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "number of concurrent virtual users")
	flag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "total run time")
	flag.DurationVar(&cfg.Ramp, "ramp", cfg.Ramp, "time over which virtual users are started")
	flag.DurationVar(&cfg.Pause, "sleep", cfg.Pause, "pause between requests of one virtual user")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	flag.IntVar(&cfg.Retries, "retries", cfg.Retries, "client retries on 5xx, 0 reports raw statuses")

	flag.Parse()

	if cfg.Ramp > cfg.Duration {
		return nil, fmt.Errorf("ramp %s exceeds duration %s", cfg.Ramp, cfg.Duration)
	}

	return cfg, nil
}
