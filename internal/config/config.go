// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmynk/courtledger/internal/models"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Notification backends.
const (
	NotifyNone  = "none"
	NotifyLog   = "log"
	NotifyAMQP  = "amqp"
	NotifyKafka = "kafka"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Timezone    string `env:"TIMEZONE" envDefault:"Asia/Kolkata"`

	DataBackend string `env:"DATA_BACKEND" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"./data/courtledger.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"1m"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	RedisAddr string        `env:"REDIS_ADDR"`

	NotifyBackend  string   `env:"NOTIFY_BACKEND" envDefault:"none"`
	AMQPURL        string   `env:"AMQP_URL"`
	AMQPExchange   string   `env:"AMQP_EXCHANGE" envDefault:"courtledger"`
	AMQPRoutingKey string   `env:"AMQP_ROUTING_KEY" envDefault:"ledger.events"`
	AMQPQueue      string   `env:"AMQP_QUEUE"`
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string   `env:"KAFKA_TOPIC" envDefault:"courtledger.events"`

	ParticipantA ParticipantConfig `envPrefix:"PARTICIPANT_A_"`
	ParticipantB ParticipantConfig `envPrefix:"PARTICIPANT_B_"`
}

// ParticipantConfig describes one slot of the pair.
type ParticipantConfig struct {
	Key          string `env:"KEY"`
	Name         string `env:"NAME"`
	PasswordHash string `env:"PASSWORD_HASH"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables only.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATA_BACKEND %q", c.DataBackend))
	}

	switch c.NotifyBackend {
	case NotifyNone, NotifyLog:
	case NotifyAMQP:
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required for the amqp notifier"))
		}
	case NotifyKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_BACKEND %q", c.NotifyBackend))
	}

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Port == c.MetricsPort {
		errs = append(errs, errors.New("PORT and METRICS_PORT must differ"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err))
	}

	slots := []struct {
		name string
		p    ParticipantConfig
	}{
		{"A", c.ParticipantA},
		{"B", c.ParticipantB},
	}
	for _, slot := range slots {
		if slot.p.Key == "" {
			errs = append(errs, fmt.Errorf("PARTICIPANT_%s_KEY is required", slot.name))
		}
		if slot.p.PasswordHash == "" {
			errs = append(errs, fmt.Errorf("PARTICIPANT_%s_PASSWORD_HASH is required", slot.name))
		}
	}
	if _, err := c.Pair(); err != nil && c.ParticipantA.Key != "" && c.ParticipantB.Key != "" {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Pair returns the configured participants. A missing display name falls back
// to the key.
func (c *Config) Pair() (models.Pair, error) {
	return models.NewPair(c.ParticipantA.participant(), c.ParticipantB.participant())
}

func (p ParticipantConfig) participant() models.Participant {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = p.Key
	}
	return models.Participant{Key: models.ParticipantKey(strings.TrimSpace(p.Key)), DisplayName: name}
}

// PasswordHashes maps each participant key to its bcrypt hash.
func (c *Config) PasswordHashes() map[models.ParticipantKey]string {
	return map[models.ParticipantKey]string{
		c.ParticipantA.participant().Key: c.ParticipantA.PasswordHash,
		c.ParticipantB.participant().Key: c.ParticipantB.PasswordHash,
	}
}

// Location returns the time zone calendar days and months are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether logs should be machine-readable JSON.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
