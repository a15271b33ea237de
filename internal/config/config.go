// Пакет config — загрузка и валидация конфигурации Drive Module.
//
// Источники (по убыванию приоритета):
//  1. Переменные окружения с префиксом DM_ (DM_SERVER_PORT, DM_BLOB_S3_BUCKET)
//  2. YAML-файл, путь к которому задаёт DM_CONFIG_FILE (опционально)
//  3. Значения по умолчанию
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "DM"

// ConfigFileEnv — переменная окружения с путём к YAML-файлу конфигурации.
const ConfigFileEnv = "DM_CONFIG_FILE"

// Config содержит все параметры конфигурации Drive Module.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Share     ShareConfig     `mapstructure:"share"`
	Dephealth DephealthConfig `mapstructure:"dephealth"`
}

// ServerConfig — параметры HTTP-сервера.
type ServerConfig struct {
	// Порт HTTP-сервера
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	// Внешний базовый URL для ссылок на содержимое файлов (опционально).
	// Пустое значение — ссылки относительные.
	PublicBaseURL string `mapstructure:"public_base_url" validate:"omitempty,url"`
}

// LogConfig — параметры логирования.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// DBConfig — параметры подключения к PostgreSQL.
type DBConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Name     string `mapstructure:"name" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	SSLMode  string `mapstructure:"sslmode" validate:"oneof=disable require verify-ca verify-full"`
	// Размер пула подключений (0 — значение pgxpool по умолчанию)
	MaxConns int32 `mapstructure:"max_conns" validate:"gte=0"`
	MinConns int32 `mapstructure:"min_conns" validate:"gte=0,ltefield=MaxConns"`
}

// JWTConfig — параметры валидации JWT пользователей.
type JWTConfig struct {
	// URL JWKS endpoint Identity Provider
	JWKSURL string `mapstructure:"jwks_url" validate:"required,url"`
	// Ожидаемый issuer (пустое значение — не проверяется)
	Issuer string `mapstructure:"issuer"`
	// Допуск по времени при проверке exp/nbf
	Leeway time.Duration `mapstructure:"leeway" validate:"gte=0"`
	// Интервал обновления JWKS
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"gt=0"`
	// Claim с отображаемым именем пользователя
	UsernameClaim string `mapstructure:"username_claim" validate:"required"`
}

// BlobConfig — выбор и параметры хранилища содержимого файлов.
type BlobConfig struct {
	// Бэкенд: fs, s3, badger
	Backend string           `mapstructure:"backend" validate:"oneof=fs s3 badger"`
	FS      FSBlobConfig     `mapstructure:"fs"`
	S3      S3BlobConfig     `mapstructure:"s3"`
	Badger  BadgerBlobConfig `mapstructure:"badger"`
}

// FSBlobConfig — локальная файловая система.
type FSBlobConfig struct {
	Root string `mapstructure:"root"`
}

// S3BlobConfig — S3-совместимое объектное хранилище.
type S3BlobConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint" validate:"omitempty,url"`
	KeyPrefix string `mapstructure:"key_prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// BadgerBlobConfig — встроенное KV-хранилище.
type BadgerBlobConfig struct {
	Dir string `mapstructure:"dir"`
}

// QuotaConfig — ограничения на хранение.
type QuotaConfig struct {
	// Лимит хранилища для новых пользователей, байт
	DefaultStorageLimit int64 `mapstructure:"default_storage_limit" validate:"gt=0"`
	// Максимальный размер одного файла, байт
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"gt=0"`
	// Разрешённые MIME-типы (пустой список — любые)
	AllowedMIMETypes []string `mapstructure:"allowed_mime_types"`
}

// ShareConfig — параметры публичных ссылок.
type ShareConfig struct {
	// Размер LRU-кэша токенов (0 — кэш отключён)
	CacheSize int `mapstructure:"cache_size" validate:"gte=0"`
	// TTL записи в кэше
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	// Интервал удаления просроченных ссылок (0 — отключено)
	ReaperInterval time.Duration `mapstructure:"reaper_interval" validate:"gte=0"`
}

// DephealthConfig — параметры topologymetrics.
type DephealthConfig struct {
	Group         string        `mapstructure:"group" validate:"required"`
	CheckInterval time.Duration `mapstructure:"check_interval" validate:"gt=0"`
}

// defaults — значения по умолчанию. Регистрация ключей через SetDefault
// нужна ещё и для того, чтобы AutomaticEnv находил вложенные ключи.
var defaults = map[string]any{
	"server.port":             8010,
	"server.shutdown_timeout": 5 * time.Second,
	"server.read_timeout":     30 * time.Second,
	"server.write_timeout":    5 * time.Minute,
	"server.idle_timeout":     2 * time.Minute,
	"server.public_base_url":  "",

	"log.level":  "info",
	"log.format": "json",

	"db.host":      "",
	"db.port":      5432,
	"db.name":      "",
	"db.user":      "",
	"db.password":  "",
	"db.sslmode":   "disable",
	"db.max_conns": 10,
	"db.min_conns": 0,

	"jwt.jwks_url":         "",
	"jwt.issuer":           "",
	"jwt.leeway":           5 * time.Second,
	"jwt.refresh_interval": 15 * time.Second,
	"jwt.username_claim":   "preferred_username",

	"blob.backend":       "fs",
	"blob.fs.root":       "/data/drive",
	"blob.s3.bucket":     "",
	"blob.s3.region":     "us-east-1",
	"blob.s3.endpoint":   "",
	"blob.s3.key_prefix": "",
	"blob.s3.access_key": "",
	"blob.s3.secret_key": "",
	"blob.badger.dir":    "/data/drive-badger",

	"quota.default_storage_limit": int64(10 << 30),
	"quota.max_upload_size":       int64(1 << 30),
	"quota.allowed_mime_types":    "",

	"share.cache_size":      1024,
	"share.cache_ttl":       30 * time.Second,
	"share.reaper_interval": time.Hour,

	"dephealth.group":          "drive",
	"dephealth.check_interval": 15 * time.Second,
}

// validate — экземпляр валидатора (потокобезопасен).
var validate = validator.New()

// Load загружает конфигурацию из переменных окружения и файла,
// валидирует её и возвращает Config или ошибку.
func Load() (*Config, error) {
	v := viper.New()
	setupViper(v)

	if err := readConfigFile(v, os.Getenv(ConfigFileEnv)); err != nil {
		return nil, err
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}
	return cfg, nil
}

// setupViper настраивает префикс окружения и значения по умолчанию.
func setupViper(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}
}

// readConfigFile читает YAML-файл, если путь задан.
// Отсутствующий файл — не ошибка: используются окружение и значения по умолчанию.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("ошибка чтения файла конфигурации %s: %w", path, err)
	}
	return nil
}

// decode преобразует плоскую карту настроек viper в Config.
// Строки из окружения приводятся к числам, длительностям и спискам.
func decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToTrimmedSliceHook(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания декодера конфигурации: %w", err)
	}
	if err := dec.Decode(settings); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}
	return cfg, nil
}

// stringToTrimmedSliceHook разбирает строку CSV в []string.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func stringToTrimmedSliceHook(sep string) mapstructure.DecodeHookFuncKind {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Slice {
			return data, nil
		}
		return parseCSV(data.(string), sep), nil
	}
}

// Validate проверяет конфигурацию по тегам и правилам,
// которые тегами не выражаются.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules — проверки, зависящие от выбранного бэкенда.
func validateCustomRules(cfg *Config) error {
	switch cfg.Blob.Backend {
	case "fs":
		if cfg.Blob.FS.Root == "" {
			return errors.New("blob.fs.root: обязателен для бэкенда fs")
		}
	case "s3":
		if cfg.Blob.S3.Bucket == "" {
			return errors.New("blob.s3.bucket: обязателен для бэкенда s3")
		}
		if (cfg.Blob.S3.AccessKey == "") != (cfg.Blob.S3.SecretKey == "") {
			return errors.New("blob.s3: access_key и secret_key задаются только вместе")
		}
	case "badger":
		if cfg.Blob.Badger.Dir == "" {
			return errors.New("blob.badger.dir: обязателен для бэкенда badger")
		}
	}

	if cfg.Quota.MaxUploadSize > cfg.Quota.DefaultStorageLimit {
		return fmt.Errorf("quota.max_upload_size (%d) превышает quota.default_storage_limit (%d)",
			cfg.Quota.MaxUploadSize, cfg.Quota.DefaultStorageLimit)
	}

	if cfg.Share.CacheSize > 0 && cfg.Share.CacheTTL == 0 {
		return errors.New("share.cache_ttl: должен быть больше 0 при включённом кэше")
	}
	return nil
}

// formatValidationError приводит ошибку валидатора к читаемому виду.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: не пройдена проверка '%s' (значение: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

// LogLevel возвращает уровень логирования как slog.Level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLogLevel(c.Log.Level)
	return level
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.Name, c.DB.User, c.DB.Password, c.DB.SSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL (для меток topologymetrics).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=" + c.DB.SSLMode,
	}
	return u.String()
}

// MigrateURL возвращает URL в формате драйвера pgx5 golang-migrate.
func (c *Config) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(c.DatabaseURL(), "postgres")
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
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

// parseCSV разбирает строку, разделённую sep, на срез строк.
func parseCSV(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
