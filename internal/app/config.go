package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverFile     = "file"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

// DefaultAdminPassword — пароль администратора по умолчанию. При старте с ним пишется предупреждение.
const DefaultAdminPassword = "password123"

const envPrefix = "SHOP"

// Config описывает настройки запуска приложения.
type Config struct {
	StorageDriver       string        `mapstructure:"storage_driver"`
	DataDir             string        `mapstructure:"data_dir"`
	SQLitePath          string        `mapstructure:"sqlite_path"`
	PostgresDSN         string        `mapstructure:"postgres_dsn"`
	PostgresAutoMigrate bool          `mapstructure:"postgres_auto_migrate"`
	ImagesDir           string        `mapstructure:"images_dir"`
	LockTimeout         time.Duration `mapstructure:"lock_timeout"`

	// MetricsAddr — адрес HTTP для /metrics и health checks. Пустой адрес отключает сервер.
	MetricsAddr string `mapstructure:"metrics_addr"`
	LogLevel    string `mapstructure:"log_level"`

	Currency      string `mapstructure:"currency"`
	CurrencyScale int32  `mapstructure:"currency_scale"`
	AdminPassword string `mapstructure:"admin_password"`
	// Discounts — таблица код → ставка. Из окружения задаётся строкой "CODE=0.1,OTHER=0.2".
	Discounts map[string]string `mapstructure:"-"`

	PaymentMaxFailures  int           `mapstructure:"payment_max_failures"`
	PaymentResetTimeout time.Duration `mapstructure:"payment_reset_timeout"`
	// PaymentDeclineAbove — порог песочницы: суммы выше отклоняются. "0" отключает порог.
	PaymentDeclineAbove string        `mapstructure:"payment_decline_above"`
	PaymentRetries      int           `mapstructure:"payment_retries"`
	PaymentRetryDelay   time.Duration `mapstructure:"payment_retry_delay"`

	KafkaBrokers  []string `mapstructure:"kafka_brokers"`
	KafkaClientID string   `mapstructure:"kafka_client_id"`
	KafkaTopic    string   `mapstructure:"kafka_topic"`
	KafkaDLQTopic string   `mapstructure:"kafka_dlq_topic"`

	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	OutboxMaxAttempts  int           `mapstructure:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `mapstructure:"outbox_retry_delay"`
	OutboxMaxAge       time.Duration `mapstructure:"outbox_max_age"`
}

// DefaultConfig возвращает настройки для локального запуска: файлы в ./data, без Kafka.
func DefaultConfig() Config {
	return Config{
		StorageDriver:       StorageDriverFile,
		DataDir:             "data",
		SQLitePath:          "data/shop.db",
		PostgresAutoMigrate: true,
		ImagesDir:           "data/images",
		LockTimeout:         storage.DefaultLockTimeout,
		MetricsAddr:         "",
		LogLevel:            "warn",
		Currency:            "CLP",
		CurrencyScale:       0,
		AdminPassword:       DefaultAdminPassword,
		Discounts:           map[string]string{},
		PaymentMaxFailures:  5,
		PaymentResetTimeout: 30 * time.Second,
		PaymentDeclineAbove: "0",
		PaymentRetries:      3,
		PaymentRetryDelay:   100 * time.Millisecond,
		KafkaClientID:       "shop",
		KafkaTopic:          kafka.TopicOrderEvents,
		KafkaDLQTopic:       kafka.TopicDeadLetterQueue,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    200 * time.Millisecond,
		OutboxMaxAge:        5 * time.Minute,
	}
}

// LoadConfig читает конфигурацию: значения по умолчанию, затем YAML-файл, затем переменные SHOP_*.
// Пустой path означает поиск shop.yaml в текущем каталоге; отсутствие файла не ошибка.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shop")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	discounts, err := discountTable(v.Get("discounts"))
	if err != nil {
		return Config{}, err
	}
	cfg.Discounts = discounts
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("storage_driver", cfg.StorageDriver)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("sqlite_path", cfg.SQLitePath)
	v.SetDefault("postgres_dsn", cfg.PostgresDSN)
	v.SetDefault("postgres_auto_migrate", cfg.PostgresAutoMigrate)
	v.SetDefault("images_dir", cfg.ImagesDir)
	v.SetDefault("lock_timeout", cfg.LockTimeout)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("currency", cfg.Currency)
	v.SetDefault("currency_scale", cfg.CurrencyScale)
	v.SetDefault("admin_password", cfg.AdminPassword)
	v.SetDefault("discounts", "")
	v.SetDefault("payment_max_failures", cfg.PaymentMaxFailures)
	v.SetDefault("payment_reset_timeout", cfg.PaymentResetTimeout)
	v.SetDefault("payment_decline_above", cfg.PaymentDeclineAbove)
	v.SetDefault("payment_retries", cfg.PaymentRetries)
	v.SetDefault("payment_retry_delay", cfg.PaymentRetryDelay)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_client_id", cfg.KafkaClientID)
	v.SetDefault("kafka_topic", cfg.KafkaTopic)
	v.SetDefault("kafka_dlq_topic", cfg.KafkaDLQTopic)
	v.SetDefault("outbox_poll_interval", cfg.OutboxPollInterval)
	v.SetDefault("outbox_batch_size", cfg.OutboxBatchSize)
	v.SetDefault("outbox_max_attempts", cfg.OutboxMaxAttempts)
	v.SetDefault("outbox_retry_delay", cfg.OutboxRetryDelay)
	v.SetDefault("outbox_max_age", cfg.OutboxMaxAge)
}

// discountTable принимает таблицу скидок из YAML (map) или из окружения ("A=0.1,B=0.2").
func discountTable(raw any) (map[string]string, error) {
	table := make(map[string]string)
	switch value := raw.(type) {
	case nil:
	case string:
		for _, pair := range splitList([]string{value}) {
			code, rate, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(code) == "" {
				return nil, fmt.Errorf("discounts: entry %q must look like CODE=rate", pair)
			}
			table[strings.TrimSpace(code)] = strings.TrimSpace(rate)
		}
	case map[string]any:
		for code, rate := range value {
			table[code] = fmt.Sprint(rate)
		}
	case map[string]string:
		for code, rate := range value {
			table[code] = rate
		}
	default:
		return nil, fmt.Errorf("discounts: unsupported value of type %T", raw)
	}
	return table, nil
}

// splitList раскрывает элементы вида "a,b" и отбрасывает пустые.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverFile:
		if strings.TrimSpace(c.DataDir) == "" {
			errs = append(errs, errors.New("data_dir is required for the file storage driver"))
		}
	case StorageDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("sqlite_path is required for the sqlite storage driver"))
		}
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres_dsn is required for the postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage_driver %q", c.StorageDriver))
	}

	if c.LockTimeout <= 0 {
		errs = append(errs, errors.New("lock_timeout must be positive"))
	}
	if strings.TrimSpace(c.Currency) == "" {
		errs = append(errs, errors.New("currency is required"))
	}
	if c.CurrencyScale < 0 || c.CurrencyScale > 8 {
		errs = append(errs, errors.New("currency_scale must be between 0 and 8"))
	}
	if c.PaymentRetries <= 0 {
		errs = append(errs, errors.New("payment_retries must be positive"))
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		errs = append(errs, errors.New("kafka_topic is required when kafka_brokers is set"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox_poll_interval must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox_batch_size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox_max_attempts must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
