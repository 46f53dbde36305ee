// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"DATABASE_URL"`
	AppURL                  string `yaml:"app_url" env:"APP_URL" env-default:"http://localhost:8080"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Billing                 `yaml:"billing"`
	Assistant               `yaml:"assistant"`
	RabbitMQ                `yaml:"rabbitmq"`
	Reconciler              `yaml:"reconciler"`
	SMTP                    `yaml:"smtp"`
	Credentials             `yaml:"credentials"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ChatRPS     float64       `yaml:"chat_rps" env-default:"1"`
	ChatBurst   int           `yaml:"chat_burst" env-default:"3"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
	SessionTTL   time.Duration `yaml:"session_ttl" env-default:"24h"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Billing настройки платёжного провайдера и цены Pro-плана.
type Billing struct {
	KeyID         string `yaml:"key_id" env:"RAZORPAY_KEY_ID"`
	KeySecret     string `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret string `yaml:"webhook_secret" env:"RAZORPAY_WEBHOOK_SECRET"`
	APIURL        string `yaml:"api_url" env-default:"https://api.razorpay.com/v1"`
	ProPrice      int64  `yaml:"pro_price" env:"PRO_PRICE_PAISE" env-default:"19900"`
	Currency      string `yaml:"currency" env:"CURRENCY" env-default:"INR"`
}

// Assistant настройки клиента чат-модели.
type Assistant struct {
	APIKey      string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL     string        `yaml:"base_url" env-default:"https://api.openai.com/v1"`
	Model       string        `yaml:"model" env-default:"gpt-4o-mini"`
	Temperature float64       `yaml:"temperature" env-default:"0.7"`
	Timeout     time.Duration `yaml:"timeout" env-default:"60s"`
}

// RabbitMQ настройки подключения к брокеру. Пустой URL отключает публикацию событий.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Reconciler настройки периодического отчёта о брошенных заказах.
type Reconciler struct {
	Interval       time.Duration `yaml:"interval" env-default:"1h"`
	AbandonedAfter time.Duration `yaml:"abandoned_after" env-default:"24h"`
}

// SMTP настройки почтового сервера для писем об оплате.
type SMTP struct {
	SMTPHost string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"smtp_port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPass string `yaml:"smtp_pass" env:"SMTP_PASS"`
}

// Credentials учётные записи для входа по логину и паролю.
type Credentials struct {
	Usernames map[string]Credential `yaml:"usernames"`
}

// Credential одна учётная запись; Password хранится как bcrypt-хэш.
type Credential struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Load читает конфиг по пути и накладывает значения из окружения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"AppURL: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  SessionTTL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Billing:\n"+
			"  KeyID: %s\n"+
			"  ProPrice: %d %s\n"+
			"Assistant:\n"+
			"  Model: %s\n"+
			"Credentials: %d\n",
		c.Env,
		c.AppURL,
		c.AddressRedis,
		c.DB,
		c.SessionTTL,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.KeyID,
		c.ProPrice, c.Currency,
		c.Model,
		len(c.Usernames),
	)
}
