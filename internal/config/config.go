package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env          string             `yaml:"env" env-default:"development"` // environment
	Log          LogConfig          `yaml:"log"`
	HTTPServer   HTTPServerConfig   `yaml:"http_server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	Migrations   MigrationsConfig   `yaml:"migrations"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Checkout     CheckoutConfig     `yaml:"checkout"`
	CatalogCache CatalogCacheConfig `yaml:"catalog_cache"`
	Notifier     NotifierConfig     `yaml:"notifier"`
	Poller       PollerConfig       `yaml:"poller"`
}

// LogConfig - переопределения логгера поверх уровня окружения
type LogConfig struct {
	Level     string `yaml:"level" env:"LOG_LEVEL"`
	AddSource bool   `yaml:"add_source"`
	Service   string `yaml:"service" env-default:"storefront-payments"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
}

// JWTConfig настройка jwt для админских токенов
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// GatewayConfig - платёжный шлюз. Пароль терминала только из окружения.
type GatewayConfig struct {
	BaseURL         string        `yaml:"base_url" env-default:"https://securepay.tinkoff.ru/v2"`
	TerminalKey     string        `yaml:"terminal_key" env:"GATEWAY_TERMINAL_KEY" env-required:"true"`
	Password        string        `yaml:"-" env:"GATEWAY_PASSWORD" env-required:"true"`
	SuccessURL      string        `yaml:"success_url"`
	FailURL         string        `yaml:"fail_url"`
	NotificationURL string        `yaml:"notification_url"`
	Language        string        `yaml:"language" env-default:"ru"`
	Timeout         time.Duration `yaml:"timeout" env-default:"10s"`
	Receipt         ReceiptConfig `yaml:"receipt"`
}

// ReceiptConfig - параметры фискального чека
type ReceiptConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Taxation string `yaml:"taxation" env-default:"usn_income"`
	Tax      string `yaml:"tax" env-default:"none"`
}

type CheckoutConfig struct {
	Currency          string                 `yaml:"currency" env-default:"RUB"`
	MaxQuantity       int                    `yaml:"max_quantity" env-default:"99"`
	DescriptionPrefix string                 `yaml:"description_prefix" env-default:"Заказ"`
	PromoCodes        map[string]PromoConfig `yaml:"promo_codes"`
}

// PromoConfig - скидка в процентах и/или фиксированная в копейках
type PromoConfig struct {
	Percent int   `yaml:"percent"`
	Fixed   int64 `yaml:"fixed"`
}

type CatalogCacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" env-default:"localhost:6379"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"`
	TTL      time.Duration `yaml:"ttl" env-default:"5m"`
}

// NotifierConfig - канал уведомлений: telegram, kafka или log
type NotifierConfig struct {
	Kind     string         `yaml:"kind" env-default:"log"`
	Telegram TelegramConfig `yaml:"telegram"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

type TelegramConfig struct {
	BaseURL string        `yaml:"base_url" env-default:"https://api.telegram.org"`
	Token   string        `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
	ChatID  string        `yaml:"chat_id"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" env-default:"payment-notifications"`
}

// PollerConfig - фоновая сверка зависших заказов
type PollerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval" env-default:"1m"`
	StaleAfter time.Duration `yaml:"stale_after" env-default:"5m"`
	MaxAge     time.Duration `yaml:"max_age" env-default:"72h"`
	BatchSize  int           `yaml:"batch_size" env-default:"50"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}
