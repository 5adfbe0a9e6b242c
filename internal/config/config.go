package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	API       APIConfig
	CORS      CORSConfig
	Remover   RemoverConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Log       LogConfig
}

type APIConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
	MetricsEnabled bool
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

type RemoverConfig struct {
	Backend      string
	Model        string
	HTTPEndpoint string
	HTTPTimeout  time.Duration
	ExecCommand  string
	ExecArgs     []string
	ExecTimeout  time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Capacity      int
	Window        time.Duration
	SubjectHeader string
}

type TracingConfig struct {
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults(v *viper.Viper) {
	v.SetDefault("API_ADDR", ":8080")
	v.SetDefault("API_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("API_WRITE_TIMEOUT", 2*time.Minute)
	v.SetDefault("API_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("API_MAX_UPLOAD_BYTES", 0)
	v.SetDefault("API_METRICS_ENABLED", true)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("CORS_ALLOWED_METHODS", "*")
	v.SetDefault("CORS_ALLOWED_HEADERS", "*")
	v.SetDefault("CORS_ALLOW_CREDENTIALS", true)

	v.SetDefault("REMBG_BACKEND", "http")
	v.SetDefault("REMBG_MODEL", "u2net")
	v.SetDefault("REMBG_URL", "http://localhost:7000/api/remove")
	v.SetDefault("REMBG_HTTP_TIMEOUT", 60*time.Second)
	v.SetDefault("REMBG_EXEC_COMMAND", "rembg")
	v.SetDefault("REMBG_EXEC_ARGS", "")
	v.SetDefault("REMBG_EXEC_TIMEOUT", 2*time.Minute)

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_CAPACITY", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	// Only set behind a proxy that overwrites the header; clients can forge it.
	v.SetDefault("RATE_LIMIT_SUBJECT_HEADER", "")

	v.SetDefault("OTEL_SERVICE_NAME", "bgremove-api")
	v.SetDefault("OTEL_TRACES_EXPORTER", "none")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load reads configuration from, in increasing priority: built-in defaults,
// ./config/config.yaml, a .env file and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	defaults(v)
	v.AutomaticEnv()

	cfg := Config{
		API: APIConfig{
			Addr:           v.GetString("API_ADDR"),
			ReadTimeout:    v.GetDuration("API_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("API_WRITE_TIMEOUT"),
			IdleTimeout:    v.GetDuration("API_IDLE_TIMEOUT"),
			MaxUploadBytes: v.GetInt64("API_MAX_UPLOAD_BYTES"),
			MetricsEnabled: v.GetBool("API_METRICS_ENABLED"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   list(v.GetString("CORS_ALLOWED_ORIGINS")),
			AllowedMethods:   list(v.GetString("CORS_ALLOWED_METHODS")),
			AllowedHeaders:   list(v.GetString("CORS_ALLOWED_HEADERS")),
			AllowCredentials: v.GetBool("CORS_ALLOW_CREDENTIALS"),
		},
		Remover: RemoverConfig{
			Backend:      strings.ToLower(strings.TrimSpace(v.GetString("REMBG_BACKEND"))),
			Model:        strings.TrimSpace(v.GetString("REMBG_MODEL")),
			HTTPEndpoint: strings.TrimSpace(v.GetString("REMBG_URL")),
			HTTPTimeout:  v.GetDuration("REMBG_HTTP_TIMEOUT"),
			ExecCommand:  strings.TrimSpace(v.GetString("REMBG_EXEC_COMMAND")),
			ExecArgs:     strings.Fields(v.GetString("REMBG_EXEC_ARGS")),
			ExecTimeout:  v.GetDuration("REMBG_EXEC_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			Capacity:      v.GetInt("RATE_LIMIT_CAPACITY"),
			Window:        v.GetDuration("RATE_LIMIT_WINDOW"),
			SubjectHeader: v.GetString("RATE_LIMIT_SUBJECT_HEADER"),
		},
		Tracing: TracingConfig{
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
			Exporter:     v.GetString("OTEL_TRACES_EXPORTER"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			OTLPInsecure: v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	// An empty value means "use the rembg CLI defaults".
	if len(cfg.Remover.ExecArgs) == 0 {
		cfg.Remover.ExecArgs = nil
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.API.Addr) == "" {
		return errors.New("API_ADDR is required")
	}
	if c.API.MaxUploadBytes < 0 {
		return errors.New("API_MAX_UPLOAD_BYTES must not be negative")
	}
	switch c.Remover.Backend {
	case "http", "exec":
	default:
		return fmt.Errorf("REMBG_BACKEND must be http or exec, got %q", c.Remover.Backend)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Capacity <= 0 {
			return errors.New("RATE_LIMIT_CAPACITY must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

func list(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
