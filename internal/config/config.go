// Package config describes the MakerAdmin configuration file and loads it once at startup.
// The resulting Config is passed explicitly to the components that need it and is not
// modified after loading.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all settings of the API server.
type Config struct {
	Env                     string `yaml:"env" env:"MAKERADMIN_ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	PaymentProvider         `yaml:"payment_provider"`
	Shop                    `yaml:"shop"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer configures the HTTP listener.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// Requests per second allowed on the unauthenticated login and register endpoints.
	PublicRateLimit float64 `yaml:"public_rate_limit" env-default:"1"`
	PublicRateBurst int     `yaml:"public_rate_burst" env-default:"5"`
}

// RedisConnection configures the catalog cache.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	CatalogTTL   time.Duration `yaml:"catalog_ttl" env-default:"10m"`
}

// RabbitMQ configures the domain event publisher. An empty URL disables publishing.
type RabbitMQ struct {
	URL          string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange     string        `yaml:"exchange" env-default:"makeradmin"`
	ConnRetries  int           `yaml:"conn_retries" env-default:"5"`
	ConnRetryGap time.Duration `yaml:"conn_retry_gap" env-default:"2s"`
}

// JWTToken configures member session tokens.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// PaymentProvider configures the card payment provider client.
type PaymentProvider struct {
	APIURL    string `yaml:"api_url" env-default:"https://api.stripe.com/v1"`
	SecretKey string `yaml:"secret_key" env:"PAYMENT_SECRET_KEY"`
	ReturnURL string `yaml:"return_url" env-default:"http://localhost:8080/shop/receipt"`
	Currency  string `yaml:"currency" env-default:"sek"`
}

// Shop configures webshop behaviour.
type Shop struct {
	// Default number of members returned per page by list endpoints.
	PageSize int `yaml:"page_size" env-default:"100"`
}

// SMTP configures the e-mail dispatcher. It runs only when both SMTPHost and the RabbitMQ
// URL are set.
type SMTP struct {
	SMTPHost    string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort    string `yaml:"port" env-default:"587"`
	SMTPUser    string `yaml:"user" env:"SMTP_USER"`
	SMTPPass    string `yaml:"password" env:"SMTP_PASSWORD"`
	MailFrom    string `yaml:"from" env-default:"info@makerspace.se"`
	MailWorkers int    `yaml:"workers" env-default:"4"`
}

// Load reads the config file at path, applying environment overrides and defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads the config file named by CONFIG_PATH and exits the process on failure.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("%s", err)
	}
	return cfg
}

// String renders the config for startup logs with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"Redis: %s (db %d)\n"+
			"RabbitMQ exchange: %s\n"+
			"HTTPServer: %s timeout=%s idle=%s\n"+
			"TokenTTL: %s\n"+
			"PaymentProvider: %s\n"+
			"SMTP: %s:%s from %s\n",
		c.Env,
		c.MigrationsPath,
		c.AddressRedis, c.DB,
		c.Exchange,
		c.AddressHTTP, c.TimeoutHTTP, c.IdleTimeout,
		c.TokenTTL,
		c.APIURL,
		c.SMTPHost, c.SMTPPort, c.MailFrom,
	)
}
