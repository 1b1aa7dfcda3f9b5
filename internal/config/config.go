// Пакет config — загрузка и валидация конфигурации сайта
// из переменных окружения (и опционального .env файла).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сайта.
// Создаётся один раз при старте процесса и передаётся компонентам явно.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Сессии ---

	// Секрет подписи session cookie (обязательный)
	SessionSecret string
	// Secure flag для session cookie (true за HTTPS)
	SessionCookieSecure bool

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Email (Resend) ---

	// Базовый домен, из которого строятся адреса по умолчанию
	BaseDomain string
	// API-ключ Resend
	ResendAPIKey string
	// Адрес отправителя (по умолчанию info@<BaseDomain>)
	EmailFrom string
	// Адрес получателя (по умолчанию info@<BaseDomain>)
	EmailTo string
	// Тема письма из контактной формы
	EmailSubject string

	// --- Объектное хранилище (S3-совместимое, R2) ---

	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	// Публичный базовый URL бакета (опционально)
	S3PublicURL string
	// Префикс ключей изображений
	S3Folder string
	// Максимальный размер тела запроса загрузки
	MaxUploadBytes int64

	// --- Сверка хранилища ---

	// Cron-расписание сверки; пустая строка выключает сверку по расписанию
	ReconcileSchedule string
	// Объекты моложе этого возраста не считаются осиротевшими
	ReconcileGrace time.Duration
	// Удалять осиротевшие объекты из бакета
	ReconcileDeleteOrphans bool

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// LoadDotEnv загружает переменные из .env файла, если он существует.
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("ошибка чтения .env: %w", err)
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("HNF_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("HNF_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("HNF_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("HNF_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("HNF_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("HNF_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("HNF_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Сессии ---

	// HNF_SESSION_SECRET обязателен: без него cookie нельзя подписать
	cfg.SessionSecret, err = getEnvRequired("HNF_SESSION_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.SessionCookieSecure, err = getEnvBool("HNF_SESSION_COOKIE_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("HNF_SESSION_COOKIE_SECURE: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("HNF_DB_HOST", "localhost")
	cfg.DBPort, err = getEnvInt("HNF_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("HNF_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("HNF_DB_NAME", "hnf")
	cfg.DBUser = getEnvDefault("HNF_DB_USER", "postgres")
	cfg.DBPassword = os.Getenv("HNF_DB_PASSWORD")

	cfg.DBSSLMode = getEnvDefault("HNF_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("HNF_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Email ---

	cfg.BaseDomain = getEnvDefault("HNF_BASE_DOMAIN", "nordqvist.tech")
	cfg.ResendAPIKey = os.Getenv("HNF_RESEND_API_KEY")
	cfg.EmailFrom = getEnvDefault("HNF_EMAIL_FROM", "info@"+cfg.BaseDomain)
	cfg.EmailTo = getEnvDefault("HNF_EMAIL_TO", "info@"+cfg.BaseDomain)
	cfg.EmailSubject = getEnvDefault("HNF_EMAIL_SUBJECT", "New message from HNF webshop")

	// --- Объектное хранилище ---

	cfg.S3Endpoint = strings.TrimRight(os.Getenv("HNF_S3_ENDPOINT"), "/")
	if cfg.S3Endpoint != "" {
		if _, err := url.ParseRequestURI(cfg.S3Endpoint); err != nil {
			return nil, fmt.Errorf("HNF_S3_ENDPOINT: некорректный URL %q", cfg.S3Endpoint)
		}
	}
	cfg.S3Region = getEnvDefault("HNF_S3_REGION", "auto")
	cfg.S3Bucket = os.Getenv("HNF_S3_BUCKET")
	cfg.S3AccessKeyID = os.Getenv("HNF_S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv("HNF_S3_SECRET_ACCESS_KEY")
	cfg.S3PublicURL = strings.TrimRight(os.Getenv("HNF_S3_PUBLIC_URL"), "/")
	cfg.S3Folder = strings.Trim(getEnvDefault("HNF_S3_FOLDER", "inspiration"), "/")
	if cfg.S3Folder == "" {
		return nil, errors.New("HNF_S3_FOLDER: префикс ключей не может быть пустым")
	}

	cfg.MaxUploadBytes, err = getEnvInt64("HNF_MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("HNF_MAX_UPLOAD_BYTES: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("HNF_MAX_UPLOAD_BYTES: значение %d должно быть положительным", cfg.MaxUploadBytes)
	}

	// --- Сверка хранилища ---

	cfg.ReconcileSchedule = strings.TrimSpace(os.Getenv("HNF_RECONCILE_SCHEDULE"))
	cfg.ReconcileGrace, err = getEnvDuration("HNF_RECONCILE_GRACE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("HNF_RECONCILE_GRACE: %w", err)
	}
	cfg.ReconcileDeleteOrphans, err = getEnvBool("HNF_RECONCILE_DELETE_ORPHANS", false)
	if err != nil {
		return nil, fmt.Errorf("HNF_RECONCILE_DELETE_ORPHANS: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("HNF_DEPHEALTH_GROUP", "hnf")
	cfg.DephealthCheckInterval, err = getEnvDuration("HNF_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("HNF_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("HNF_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("HNF_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// StorageEnabled сообщает, заданы ли все параметры объектного хранилища.
func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != "" &&
		c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для метрик и логов).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool принимает true/false/1/0 (регистр не важен).
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(val))
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
