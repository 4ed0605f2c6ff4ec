package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the process-wide configuration, loaded once at startup.
var Conf = NewConfig()

type (
	ServerConfig struct {
		Address                   string
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimit                 float64 // requests per second per client
		RateBurst                 int
		MaxUploadSize             int64 // bytes
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	AIConfig struct {
		Provider    string // openai | ollama | gemini
		Model       string
		APIKey      string
		BaseURL     string
		MaxTokens   int
		Temperature float64
		Timeout     time.Duration
		CacheTTL    time.Duration
	}

	CacheConfig struct {
		RedisURL string
	}

	StorageConfig struct {
		Backend            string // local | gcs
		LocalDir           string
		GCSBucket          string
		GCSCredentialsFile string
	}

	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string
		SendgridApiKey            string

		Server   ServerConfig
		Database DatabaseConfig
		AI       AIConfig
		Cache    CacheConfig
		Storage  StorageConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig reads the configuration of the current ENV (DEV by default) from the environment,
// after loading config/.env.<env> (or $ENV_FILE) when present.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	testMode := env == "TEST" || testing.Testing()

	// defaults
	v.SetDefault("debug", env == "DEV" && !testMode)
	v.SetDefault("build", "develop")
	v.SetDefault("app_name", "Muziki")
	v.SetDefault("secret_key", "x8k#2v!q@zt-mu5ik1_)p0w$d9+n7e&f3r(h6jy4gb%sc*la")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "Muziki <noreply@localhost>")
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")

	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_debug_host", ":4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 4*time.Hour)
	v.SetDefault("rate_limit", 2.0)
	v.SetDefault("rate_burst", 10)
	v.SetDefault("max_upload_size", int64(20<<20))

	v.SetDefault("db_engine", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_name", "muziki")
	v.SetDefault("db_user", "muziki")
	v.SetDefault("db_password", "muziki")
	v.SetDefault("db_admin_user", "postgres")
	v.SetDefault("db_admin_password", "postgres")
	v.SetDefault("db_disable_tls", env == "DEV" || testMode)

	v.SetDefault("ai_provider", "ollama")
	v.SetDefault("ai_model", "llama3.2")
	v.SetDefault("ai_api_key", "")
	v.SetDefault("ai_base_url", "")
	v.SetDefault("ai_max_tokens", 500)
	v.SetDefault("ai_temperature", 0.7)
	v.SetDefault("ai_timeout", 60*time.Second)
	v.SetDefault("ai_cache_ttl", 24*time.Hour)

	v.SetDefault("redis_url", "")

	v.SetDefault("storage_backend", "local")
	v.SetDefault("storage_local_dir", "media")
	v.SetDefault("storage_gcs_bucket", "")
	v.SetDefault("storage_gcs_credentials_file", "")

	// load .env if it exists (ignore if it does not)
	dotEnvPath := os.Getenv("ENV_FILE")
	if dotEnvPath == "" {
		dotEnvPath = filepath.Join("config", ".env."+strings.ToLower(env))
	}
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("default_from_email"))
	if err != nil {
		log.Fatalf("config: invalid default_from_email: %v", err)
	}

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  testMode,
		AppName:                   v.GetString("app_name"),
		SecretKey:                 v.GetString("secret_key"),
		FrontendBaseURL:           v.GetString("frontend_base_url"),
		DefaultFromEmail:          *from,
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
		RollbarToken:              v.GetString("rollbar_token"),
		SendgridApiKey:            v.GetString("sendgrid_api_key"),
		Server: ServerConfig{
			Address:                   v.GetString("server_address"),
			Host:                      v.GetString("server_host"),
			DebugHost:                 v.GetString("server_debug_host"),
			ShutdownTimeout:           v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
			RateLimit:                 v.GetFloat64("rate_limit"),
			RateBurst:                 v.GetInt("rate_burst"),
			MaxUploadSize:             v.GetInt64("max_upload_size"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("db_engine"),
			Host:          v.GetString("db_host"),
			Port:          v.GetString("db_port"),
			Name:          v.GetString("db_name"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_admin_user"),
			AdminPassword: v.GetString("db_admin_password"),
			DisableTLS:    v.GetBool("db_disable_tls"),
		},
		AI: AIConfig{
			Provider:    strings.ToLower(v.GetString("ai_provider")),
			Model:       v.GetString("ai_model"),
			APIKey:      v.GetString("ai_api_key"),
			BaseURL:     v.GetString("ai_base_url"),
			MaxTokens:   v.GetInt("ai_max_tokens"),
			Temperature: v.GetFloat64("ai_temperature"),
			Timeout:     v.GetDuration("ai_timeout"),
			CacheTTL:    v.GetDuration("ai_cache_ttl"),
		},
		Cache: CacheConfig{
			RedisURL: v.GetString("redis_url"),
		},
		Storage: StorageConfig{
			Backend:            strings.ToLower(v.GetString("storage_backend")),
			LocalDir:           v.GetString("storage_local_dir"),
			GCSBucket:          v.GetString("storage_gcs_bucket"),
			GCSCredentialsFile: v.GetString("storage_gcs_credentials_file"),
		},
	}
}
