package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig `mapstructure:"cors"`
	LLM        LLMConfig  `mapstructure:"llm"`
	Generation GenerationConfig
	Export     ExportConfig
	Email      EmailConfig
	RateLimit  RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
	MaxIdleConns   int    `mapstructure:"max_idle_conns"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Адрес для режима 'single', если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // мс
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // мс
}

// JWTConfig настройки проверки токенов. Токены выпускает внешний сервис авторизации.
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// CORSConfig разрешенные источники
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LLMConfig настройки провайдера генерации
type LLMConfig struct {
	// Provider: "openai" или "azure"
	Provider   string   `mapstructure:"provider"`
	APIKey     string   `mapstructure:"api_key"`
	BaseURL    string   `mapstructure:"base_url"`
	Endpoint   string   `mapstructure:"endpoint"`
	APIVersion string   `mapstructure:"api_version"`
	Models     []string `mapstructure:"allowed_models"`
	// EconomyModel модель для анонимных запросов и неизвестных идентификаторов
	EconomyModel string `mapstructure:"economy_model"`
	DefaultModel string `mapstructure:"default_model"`
	TitleModel   string `mapstructure:"title_model"`
}

// GenerationConfig настройки оркестратора и черновиков
type GenerationConfig struct {
	CallTimeoutSec int           `mapstructure:"call_timeout_sec"`
	// SyncBudgetSec ограничивает синхронную генерацию набора, должен быть меньше server.write_timeout
	SyncBudgetSec  int           `mapstructure:"sync_budget_sec"`
	DraftTTL       time.Duration `mapstructure:"draft_ttl"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

// ExportConfig настройки экспорта
type ExportConfig struct {
	TemplatePath string `mapstructure:"template_path"`
}

// EmailConfig настройки отправки экспорта по почте
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	FromEmail    string `mapstructure:"from_email"`
	FromName     string `mapstructure:"from_name"`
}

// RateLimitConfig лимиты генерации за минуту
type RateLimitConfig struct {
	AnonymousPerMinute     int `mapstructure:"anonymous_per_minute"`
	AuthenticatedPerMinute int `mapstructure:"authenticated_per_minute"`
	// PublicPerMinute лимит по IP для экспорта без сохранения и публичных ссылок
	PublicPerMinute int `mapstructure:"public_per_minute"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// CallTimeout таймаут одного вызова провайдера
func (g GenerationConfig) CallTimeout() time.Duration {
	return time.Duration(g.CallTimeoutSec) * time.Second
}

// SyncBudget время, за которое POST /api/generate/quiz обязан ответить
func (g GenerationConfig) SyncBudget() time.Duration {
	return time.Duration(g.SyncBudgetSec) * time.Second
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 120)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "migrations")
	vip.SetDefault("database.max_open_conns", 25)
	vip.SetDefault("database.max_idle_conns", 10)
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("jwt.expirationHrs", 24)
	vip.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	vip.SetDefault("llm.provider", "openai")
	vip.SetDefault("llm.allowed_models", []string{"gpt-4o", "gpt-5", "gpt-5-mini", "gpt-5.2"})
	vip.SetDefault("llm.economy_model", "gpt-5-mini")
	vip.SetDefault("llm.default_model", "gpt-5-mini")
	vip.SetDefault("llm.title_model", "gpt-5-mini")
	vip.SetDefault("generation.call_timeout_sec", 45)
	vip.SetDefault("generation.sync_budget_sec", 100)
	vip.SetDefault("generation.draft_ttl", 24*time.Hour)
	vip.SetDefault("generation.lock_ttl", 2*time.Minute)
	vip.SetDefault("export.template_path", "templates/KahootQuizTemplate.xlsx")
	vip.SetDefault("email.from_name", "Quiz Aide")
	vip.SetDefault("ratelimit.anonymous_per_minute", 5)
	vip.SetDefault("ratelimit.authenticated_per_minute", 30)
	vip.SetDefault("ratelimit.public_per_minute", 60)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	setDefaults(vip)

	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	// Привязка для LLM
	vip.BindEnv("llm.provider", "LLM_PROVIDER")
	vip.BindEnv("llm.api_key", "LLM_API_KEY")
	vip.BindEnv("llm.base_url", "LLM_BASE_URL")
	vip.BindEnv("llm.endpoint", "AZURE_OPENAI_ENDPOINT")
	vip.BindEnv("llm.api_version", "AZURE_OPENAI_API_VERSION")

	// Привязка для Email и экспорта
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from_email", "EMAIL_FROM")
	vip.BindEnv("export.template_path", "EXPORT_TEMPLATE_PATH")

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файла может не быть, значения придут из env
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("LLM Provider: %s", cfg.LLM.Provider)
		log.Printf("LLM API Key Set: %t", cfg.LLM.APIKey != "")
		log.Printf("Economy Model: %s", cfg.LLM.EconomyModel)
		log.Printf("Export Template: %s", cfg.Export.TemplatePath)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("-----------------------------------------")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate проверяет обязательные параметры
func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required in config (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api key is required in config (check LLM_API_KEY env var)")
	}
	if c.LLM.Provider == "azure" && c.LLM.Endpoint == "" {
		return fmt.Errorf("azure provider requires llm.endpoint (check AZURE_OPENAI_ENDPOINT env var)")
	}
	if c.Generation.CallTimeoutSec <= 0 {
		return fmt.Errorf("generation.call_timeout_sec must be positive")
	}
	if c.Generation.SyncBudgetSec <= 0 {
		return fmt.Errorf("generation.sync_budget_sec must be positive")
	}
	if c.Server.WriteTimeout > 0 && c.Generation.SyncBudgetSec >= c.Server.WriteTimeout {
		return fmt.Errorf("generation.sync_budget_sec (%d) must be less than server.write_timeout (%d)",
			c.Generation.SyncBudgetSec, c.Server.WriteTimeout)
	}
	if os.Getenv("GIN_MODE") == "release" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in production mode (check DATABASE_PASSWORD env var)")
	}
	return nil
}
