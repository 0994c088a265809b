package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	JWTIssuer              string
	JWTTTL                 time.Duration
	BcryptCost             int
	AIServiceURL           string
	AITimeout              time.Duration
	AIMediaMaxMB           int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	StatsCacheTTL          time.Duration
	RelayChannel           string
	CORSOrigins            string
	AuthRateLimit          int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// MediaStorageEnabled reports whether Cloudinary credentials are present.
func (c Config) MediaStorageEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("THERAPY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Therapy API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3000")
	v.SetDefault("jwt.issuer", "therapy-api")
	v.SetDefault("jwt.ttl", "168h")
	v.SetDefault("bcrypt.cost", 10)
	v.SetDefault("ai.url", "http://localhost:8000")
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("ai.media_max_mb", 25)
	v.SetDefault("cloudinary.folder", "therapy/analysis")
	v.SetDefault("stats.cache_ttl", "1m")
	v.SetDefault("relay.channel", "therapy:relay")
	v.SetDefault("cors.origins", "http://localhost:5173")
	v.SetDefault("auth.rate_limit", 20)

	jwtTTL, err := parseDuration(v, "jwt.ttl")
	if err != nil {
		return Config{}, err
	}

	aiTimeout, err := parseDuration(v, "ai.timeout")
	if err != nil {
		return Config{}, err
	}

	statsTTL, err := parseDuration(v, "stats.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTIssuer:              v.GetString("jwt.issuer"),
		JWTTTL:                 jwtTTL,
		BcryptCost:             v.GetInt("bcrypt.cost"),
		AIServiceURL:           strings.TrimRight(v.GetString("ai.url"), "/"),
		AITimeout:              aiTimeout,
		AIMediaMaxMB:           v.GetInt("ai.media_max_mb"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		StatsCacheTTL:          statsTTL,
		RelayChannel:           v.GetString("relay.channel"),
		CORSOrigins:            v.GetString("cors.origins"),
		AuthRateLimit:          v.GetInt("auth.rate_limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 7 * 24 * time.Hour
	}

	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 30 * time.Second
	}

	if cfg.AIMediaMaxMB <= 0 {
		cfg.AIMediaMaxMB = 25
	}

	if cfg.AuthRateLimit <= 0 {
		cfg.AuthRateLimit = 20
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}
