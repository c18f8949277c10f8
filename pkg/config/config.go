// Package config loads the environment-driven configuration for every
// subsystem: durable store, transient store, LLM gateway, object storage,
// JWT auth, HTTP server, rate limiter, and world defaults. Each subsystem
// gets its own Config struct with a LoadFromEnv constructor; every one
// except WorldConfig also has a Validate method.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) (int, error) {
	raw := getEnvOrDefault(key, strconv.Itoa(defaultVal))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDurationOrDefault(key, defaultVal string) (time.Duration, error) {
	raw := getEnvOrDefault(key, defaultVal)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBoolOrDefault(key string, defaultVal bool) (bool, error) {
	raw := getEnvOrDefault(key, strconv.FormatBool(defaultVal))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// DurableConfig configures the Postgres-backed durable store.
type DurableConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoadDurableConfigFromEnv loads DurableConfig from the DB_* environment
// variables.
func LoadDurableConfigFromEnv() (DurableConfig, error) {
	port, err := getEnvIntOrDefault("DB_PORT", 5432)
	if err != nil {
		return DurableConfig{}, err
	}
	maxOpen, err := getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return DurableConfig{}, err
	}
	maxIdle, err := getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return DurableConfig{}, err
	}
	maxLifetime, err := getEnvDurationOrDefault("DB_CONN_MAX_LIFETIME", "1h")
	if err != nil {
		return DurableConfig{}, err
	}
	cfg := DurableConfig{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "worldforge"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnvOrDefault("DB_NAME", "worldforge"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: maxLifetime,
	}
	if err := cfg.Validate(); err != nil {
		return DurableConfig{}, err
	}
	return cfg, nil
}

// Validate checks DurableConfig invariants.
func (c DurableConfig) Validate() error {
	if c.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	return nil
}

// DSN renders the libpq connection string pgx expects.
func (c DurableConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// TransientConfig configures the Redis-backed transient store.
type TransientConfig struct {
	URL      string
	Password string
	DB       int
}

// LoadTransientConfigFromEnv loads TransientConfig.
func LoadTransientConfigFromEnv() (TransientConfig, error) {
	db, err := getEnvIntOrDefault("REDIS_DB", 0)
	if err != nil {
		return TransientConfig{}, err
	}
	cfg := TransientConfig{
		URL:      getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}
	if err := cfg.Validate(); err != nil {
		return TransientConfig{}, err
	}
	return cfg, nil
}

// Validate checks TransientConfig invariants.
func (c TransientConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}

// ImageProvider selects the image-generation backend.
type ImageProvider string

// Supported image providers.
const (
	ImageProviderOpenAI ImageProvider = "openai"
	ImageProviderFlux   ImageProvider = "flux_schnell"
)

// LLMConfig configures the LLM Gateway's upstream text/image/3D providers.
type LLMConfig struct {
	TextAPIKey       string
	ImageProvider    ImageProvider
	ImageAPIKey      string
	ImageEnabled     bool
	ModelAPIKey      string
	ModelID          string
	ModelEnabled     bool
	RequestTimeout   time.Duration
	ImageWidth       int
	ImageHeight      int
}

// LoadLLMConfigFromEnv loads LLMConfig.
func LoadLLMConfigFromEnv() (LLMConfig, error) {
	imageEnabled, err := getEnvBoolOrDefault("IMAGE_GENERATION_ENABLED", true)
	if err != nil {
		return LLMConfig{}, err
	}
	timeout, err := getEnvDurationOrDefault("LLM_REQUEST_TIMEOUT", "10s")
	if err != nil {
		return LLMConfig{}, err
	}
	width, err := getEnvIntOrDefault("IMAGE_WIDTH", 1024)
	if err != nil {
		return LLMConfig{}, err
	}
	height, err := getEnvIntOrDefault("IMAGE_HEIGHT", 576)
	if err != nil {
		return LLMConfig{}, err
	}
	modelEnabled, err := getEnvBoolOrDefault("MODEL_3D_GENERATION_ENABLED", false)
	if err != nil {
		return LLMConfig{}, err
	}
	cfg := LLMConfig{
		TextAPIKey:     os.Getenv("LLM_TEXT_API_KEY"),
		ImageProvider:  ImageProvider(getEnvOrDefault("IMAGE_PROVIDER", string(ImageProviderOpenAI))),
		ImageAPIKey:    os.Getenv("LLM_IMAGE_API_KEY"),
		ImageEnabled:   imageEnabled,
		ModelAPIKey:    os.Getenv("LLM_MODEL_API_KEY"),
		ModelID:        getEnvOrDefault("LLM_3D_MODEL_ID", ""),
		ModelEnabled:   modelEnabled,
		RequestTimeout: timeout,
		ImageWidth:     width,
		ImageHeight:    height,
	}
	if err := cfg.Validate(); err != nil {
		return LLMConfig{}, err
	}
	return cfg, nil
}

// Validate checks LLMConfig invariants.
func (c LLMConfig) Validate() error {
	if c.TextAPIKey == "" {
		return fmt.Errorf("LLM_TEXT_API_KEY is required")
	}
	if c.ImageEnabled && c.ImageAPIKey == "" {
		return fmt.Errorf("LLM_IMAGE_API_KEY is required when IMAGE_GENERATION_ENABLED=true")
	}
	switch c.ImageProvider {
	case ImageProviderOpenAI, ImageProviderFlux:
	default:
		return fmt.Errorf("unsupported IMAGE_PROVIDER: %q", c.ImageProvider)
	}
	return nil
}

// ObjectStorageConfig configures the S3-compatible room-image/3D-model buckets.
type ObjectStorageConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ImagesBucket    string
	ModelsBucket    string
}

// LoadObjectStorageConfigFromEnv loads ObjectStorageConfig.
func LoadObjectStorageConfigFromEnv() (ObjectStorageConfig, error) {
	cfg := ObjectStorageConfig{
		Region:          getEnvOrDefault("S3_REGION", "us-east-1"),
		Endpoint:        os.Getenv("S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		ImagesBucket:    getEnvOrDefault("S3_IMAGES_BUCKET", "room-images"),
		ModelsBucket:    getEnvOrDefault("S3_MODELS_BUCKET", "room-models"),
	}
	if err := cfg.Validate(); err != nil {
		return ObjectStorageConfig{}, err
	}
	return cfg, nil
}

// Validate checks ObjectStorageConfig invariants.
func (c ObjectStorageConfig) Validate() error {
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required")
	}
	return nil
}

// AuthConfig configures JWT verification and the API-key gate.
type AuthConfig struct {
	JWTSecret      string
	JWTAudience    string
	APIKey         string
	APIKeyRequired bool
}

// LoadAuthConfigFromEnv loads AuthConfig.
func LoadAuthConfigFromEnv() (AuthConfig, error) {
	apiKey := os.Getenv("API_KEY")
	cfg := AuthConfig{
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTAudience:    getEnvOrDefault("JWT_AUDIENCE", "authenticated"),
		APIKey:         apiKey,
		APIKeyRequired: apiKey != "",
	}
	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, err
	}
	return cfg, nil
}

// Validate checks AuthConfig invariants. A missing JWT secret is fatal:
// callers should refuse to start authenticated routes rather than
// silently run unauthenticated.
func (c AuthConfig) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// ServerConfig configures the HTTP listener and CORS policy.
type ServerConfig struct {
	Host           string
	Port           int
	CORSOrigins    []string
	RoomPlayerCap  int
}

// LoadServerConfigFromEnv loads ServerConfig.
func LoadServerConfigFromEnv() (ServerConfig, error) {
	port, err := getEnvIntOrDefault("SERVER_PORT", 8080)
	if err != nil {
		return ServerConfig{}, err
	}
	cap, err := getEnvIntOrDefault("ROOM_PLAYER_CAP", 20)
	if err != nil {
		return ServerConfig{}, err
	}
	origins := strings.Split(getEnvOrDefault("CORS_ALLOW_ORIGINS", "*"), ",")
	cfg := ServerConfig{
		Host:          getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
		Port:          port,
		CORSOrigins:   origins,
		RoomPlayerCap: cap,
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate checks ServerConfig invariants.
func (c ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Port)
	}
	if c.RoomPlayerCap < 1 {
		return fmt.Errorf("ROOM_PLAYER_CAP must be at least 1")
	}
	return nil
}

// RateLimitConfig configures the per-player sliding-window action limiter.
type RateLimitConfig struct {
	Limit          int
	Interval       time.Duration
	LogRetention   time.Duration
}

// LoadRateLimitConfigFromEnv loads RateLimitConfig, defaulting to 50
// actions per 30 minutes.
func LoadRateLimitConfigFromEnv() (RateLimitConfig, error) {
	limit, err := getEnvIntOrDefault("RATE_LIMIT_ACTIONS", 50)
	if err != nil {
		return RateLimitConfig{}, err
	}
	interval, err := getEnvDurationOrDefault("RATE_LIMIT_INTERVAL", "30m")
	if err != nil {
		return RateLimitConfig{}, err
	}
	retention, err := getEnvDurationOrDefault("RATE_LIMIT_LOG_RETENTION", "2160h") // 90 days
	if err != nil {
		return RateLimitConfig{}, err
	}
	cfg := RateLimitConfig{Limit: limit, Interval: interval, LogRetention: retention}
	if err := cfg.Validate(); err != nil {
		return RateLimitConfig{}, err
	}
	return cfg, nil
}

// Validate checks RateLimitConfig invariants.
func (c RateLimitConfig) Validate() error {
	if c.Limit < 1 {
		return fmt.Errorf("RATE_LIMIT_ACTIONS must be at least 1")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("RATE_LIMIT_INTERVAL must be positive")
	}
	return nil
}

// WorldConfig configures world-generation defaults.
type WorldConfig struct {
	DefaultSeed          string
	AllowAnyCombatMove   bool
	PreloadLockTTL       time.Duration
	GenerationWaitLimit  time.Duration
}

// LoadWorldConfigFromEnv loads WorldConfig.
func LoadWorldConfigFromEnv() (WorldConfig, error) {
	allowAny, err := getEnvBoolOrDefault("ALLOW_ANY_COMBAT_MOVE", false)
	if err != nil {
		return WorldConfig{}, err
	}
	lockTTL, err := getEnvDurationOrDefault("PRELOAD_LOCK_TTL", "300s")
	if err != nil {
		return WorldConfig{}, err
	}
	waitLimit, err := getEnvDurationOrDefault("GENERATION_WAIT_LIMIT", "60s")
	if err != nil {
		return WorldConfig{}, err
	}
	return WorldConfig{
		DefaultSeed:         getEnvOrDefault("DEFAULT_WORLD_SEED", "worldforge-genesis"),
		AllowAnyCombatMove:  allowAny,
		PreloadLockTTL:      lockTTL,
		GenerationWaitLimit: waitLimit,
	}, nil
}
