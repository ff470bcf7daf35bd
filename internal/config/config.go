package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minispace/minispace/internal/security/filecrypt"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
		// BaseURL arma los links de invitación y reset: {scheme}://{tenant}.{host}
		BaseURL       string `yaml:"base_url"`
		DefaultLocale string `yaml:"default_locale"`
		ServiceName   string `yaml:"service_name"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		DSN             string `yaml:"dsn"`
		MaxConns        int    `yaml:"max_conns"`
		MinConns        int    `yaml:"min_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
		// TenantTTL: cuánto se cachea la existencia/nombre de un tenant.
		TenantTTL string `yaml:"tenant_ttl"`
	} `yaml:"cache"`

	JWT struct {
		Secret        string `yaml:"secret"`
		RefreshSecret string `yaml:"refresh_secret"`
		AccessTTL     string `yaml:"access_ttl"`
		RefreshTTL    string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		FromName           string `yaml:"from_name"`
		TLS                string `yaml:"tls"` // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`

	Security struct {
		// MasterKey: 64 caracteres hex (32 bytes). Nunca se persiste derivado.
		MasterKey       string `yaml:"master_key"`
		HashConcurrency int    `yaml:"hash_concurrency"`
		DeviceCookie    struct {
			Name     string `yaml:"name"`
			Domain   string `yaml:"domain"`
			Insecure bool   `yaml:"insecure"`
		} `yaml:"device_cookie"`
		PasswordPolicy struct {
			MinLength     int  `yaml:"min_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
	} `yaml:"security"`

	Media struct {
		Dir string `yaml:"dir"`
	} `yaml:"media"`

	masterKey []byte
}

var (
	ErrMissingJWTSecret = errors.New("config: jwt.secret and jwt.refresh_secret are required")
	ErrWeakJWTSecret    = errors.New("config: jwt secrets must be at least 32 bytes")
	ErrSharedJWTSecret  = errors.New("config: jwt.secret and jwt.refresh_secret must differ")
	ErrMissingDSN       = errors.New("config: storage.dsn is required")
)

// Load lee el YAML (si path no está vacío), aplica defaults, overrides por
// env y valida. Un master key inválido es fatal.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Normalizar ruta de blacklist (si relativa) respecto al directorio del YAML
	if p := strings.TrimSpace(c.Security.PasswordBlacklistPath); p != "" && path != "" && !filepath.IsAbs(p) {
		c.Security.PasswordBlacklistPath = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.BaseURL == "" {
		c.App.BaseURL = "https://minispace.app"
	}
	if c.App.DefaultLocale == "" {
		c.App.DefaultLocale = "fr"
	}
	if c.App.ServiceName == "" {
		c.App.ServiceName = "minispace"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.MaxConns == 0 {
		c.Storage.MaxConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "minispace:"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Cache.TenantTTL == "" {
		c.Cache.TenantTTL = "5m"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.SMTP.FromName == "" {
		c.SMTP.FromName = "Minispace"
	}
	if c.Security.HashConcurrency <= 0 {
		c.Security.HashConcurrency = runtime.NumCPU()
	}
	if c.Security.DeviceCookie.Name == "" {
		c.Security.DeviceCookie.Name = "tdt"
	}
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "./media"
	}
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_BASE_URL"); ok {
		c.App.BaseURL = v
	}
	if v, ok := getEnvStr("APP_DEFAULT_LOCALE"); ok {
		c.App.DefaultLocale = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// STORAGE
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("DB_MAX_CONNS"); ok {
		c.Storage.MaxConns = v
	}
	if v, ok := getEnvInt("DB_MIN_CONNS"); ok {
		c.Storage.MinConns = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvDur("CACHE_TENANT_TTL"); ok {
		c.Cache.TenantTTL = v.String()
	}

	// JWT: se aceptan las variables históricas en segundos/días
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_SECRET"); ok {
		c.JWT.RefreshSecret = v
	}
	if v, ok := getEnvInt("JWT_EXPIRY_SECONDS"); ok && v > 0 {
		c.JWT.AccessTTL = (time.Duration(v) * time.Second).String()
	}
	if v, ok := getEnvInt("JWT_REFRESH_EXPIRY_DAYS"); ok && v > 0 {
		c.JWT.RefreshTTL = (time.Duration(v) * 24 * time.Hour).String()
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_FROM_NAME"); ok {
		c.SMTP.FromName = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v)
	}

	// SECURITY
	if v, ok := getEnvStr("ENCRYPTION_MASTER_KEY"); ok {
		c.Security.MasterKey = v
	}
	if v, ok := getEnvInt("HASH_CONCURRENCY"); ok && v > 0 {
		c.Security.HashConcurrency = v
	}
	if v, ok := getEnvBool("DEVICE_COOKIE_SECURE"); ok {
		c.Security.DeviceCookie.Insecure = !v
	}
	if v, ok := getEnvStr("DEVICE_COOKIE_DOMAIN"); ok {
		c.Security.DeviceCookie.Domain = v
	}
	if v, ok := getEnvInt("PASSWORD_MIN_LENGTH"); ok {
		c.Security.PasswordPolicy.MinLength = v
	}
	if v, ok := getEnvBool("PASSWORD_REQUIRE_UPPER"); ok {
		c.Security.PasswordPolicy.RequireUpper = v
	}
	if v, ok := getEnvBool("PASSWORD_REQUIRE_DIGIT"); ok {
		c.Security.PasswordPolicy.RequireDigit = v
	}
	if v, ok := getEnvStr("PASSWORD_BLACKLIST_PATH"); ok {
		c.Security.PasswordBlacklistPath = v
	}

	// MEDIA
	if v, ok := getEnvStr("MEDIA_DIR"); ok {
		c.Media.Dir = v
	}
}

// Validate valida los valores críticos. Un master key que no decodifica a
// 32 bytes devuelve filecrypt.ErrInvalidMasterKeyLength.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.DSN) == "" {
		return ErrMissingDSN
	}
	if c.JWT.Secret == "" || c.JWT.RefreshSecret == "" {
		return ErrMissingJWTSecret
	}
	if len(c.JWT.Secret) < 32 || len(c.JWT.RefreshSecret) < 32 {
		return ErrWeakJWTSecret
	}
	if c.JWT.Secret == c.JWT.RefreshSecret {
		return ErrSharedJWTSecret
	}
	for name, s := range map[string]string{
		"jwt.access_ttl":           c.JWT.AccessTTL,
		"jwt.refresh_ttl":          c.JWT.RefreshTTL,
		"cache.tenant_ttl":         c.Cache.TenantTTL,
		"cache.memory.default_ttl": c.Cache.Memory.DefaultTTL,
	} {
		if d, err := time.ParseDuration(s); err != nil || d <= 0 {
			return fmt.Errorf("config: invalid %s %q", name, s)
		}
	}
	if c.Storage.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: invalid storage.conn_max_lifetime: %w", err)
		}
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache.kind %q", c.Cache.Kind)
	}

	key, err := filecrypt.ParseMasterKeyHex(c.Security.MasterKey)
	if err != nil {
		return fmt.Errorf("config: security.master_key: %w", err)
	}
	c.masterKey = key
	return nil
}

// MasterKey devuelve el master key decodificado (32 bytes). Solo es válido
// después de Validate().
func (c *Config) MasterKey() []byte {
	out := make([]byte, len(c.masterKey))
	copy(out, c.masterKey)
	return out
}

func (c *Config) AccessTTL() time.Duration  { return mustDur(c.JWT.AccessTTL) }
func (c *Config) RefreshTTL() time.Duration { return mustDur(c.JWT.RefreshTTL) }
func (c *Config) TenantTTL() time.Duration  { return mustDur(c.Cache.TenantTTL) }
func (c *Config) MemoryTTL() time.Duration  { return mustDur(c.Cache.Memory.DefaultTTL) }

// ConnMaxLifetime devuelve 0 si no está configurado.
func (c *Config) ConnMaxLifetime() time.Duration { return mustDur(c.Storage.ConnMaxLifetime) }

// SMTPEnabled indica si hay un servidor configurado. Sin SMTP no hay 2FA
// posible y el login falla con EmailServiceUnavailable.
func (c *Config) SMTPEnabled() bool { return strings.TrimSpace(c.SMTP.Host) != "" }

func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

func mustDur(s string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return d
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
