package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Poll      PollConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type BackendConfig struct {
	BaseURL string
	APIKey  string
	Timeout int // seconds
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	Enabled      bool
	SubmitPerMin int
}

type PollConfig struct {
	IntervalSeconds int // job-status poll cadence
	TickSeconds     int // presentation tick cadence
	StageSeconds    int // simulated stage advance cadence between polls
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("BACKEND_API_KEY")
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("backend.base_url", "BACKEND_BASE_URL")
	_ = viper.BindEnv("backend.api_key", "BACKEND_API_KEY")
	_ = viper.BindEnv("backend.timeout", "BACKEND_TIMEOUT")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("ratelimit.enabled", "RATELIMIT_ENABLED")
	_ = viper.BindEnv("ratelimit.submit_per_min", "RATELIMIT_SUBMIT_PER_MIN")
	_ = viper.BindEnv("poll.interval_seconds", "POLL_INTERVAL_SECONDS")
	_ = viper.BindEnv("poll.tick_seconds", "POLL_TICK_SECONDS")
	_ = viper.BindEnv("poll.stage_seconds", "POLL_STAGE_SECONDS")

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("backend.base_url", "http://localhost:8000")
	viper.SetDefault("backend.api_key", "")
	viper.SetDefault("backend.timeout", 60)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("ratelimit.enabled", false)
	viper.SetDefault("ratelimit.submit_per_min", 10)
	viper.SetDefault("poll.interval_seconds", 3)
	viper.SetDefault("poll.tick_seconds", 1)
	viper.SetDefault("poll.stage_seconds", 15)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Backend: BackendConfig{
			BaseURL: viper.GetString("backend.base_url"),
			APIKey:  viper.GetString("backend.api_key"),
			Timeout: viper.GetInt("backend.timeout"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			Enabled:      viper.GetBool("ratelimit.enabled"),
			SubmitPerMin: viper.GetInt("ratelimit.submit_per_min"),
		},
		Poll: PollConfig{
			IntervalSeconds: viper.GetInt("poll.interval_seconds"),
			TickSeconds:     viper.GetInt("poll.tick_seconds"),
			StageSeconds:    viper.GetInt("poll.stage_seconds"),
		},
	}

	return cfg, nil
}
