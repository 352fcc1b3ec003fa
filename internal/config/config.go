package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Clone backends.
const (
	CloneBackendExec   = "exec"
	CloneBackendDocker = "docker"
)

// Config holds runtime configuration values for the gradebook service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	NATSURL         string
	NATSSubjectBase string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	ScanCacheTTL   time.Duration
	CloneBackend   string
	CloneWorkspace string
	CloneTimeout   time.Duration
	CloneDepth     int
	GitImage       string
	DockerHost     string
	CloneMemoryMB  int64

	MaxFileBytes  int64
	MaxFiles      int
	MaxTotalBytes int64
	ScanWorkers   int
	ContextLines  int

	UploadPolicy     string
	UploadMode       string
	RepositoryPolicy string
	RepositoryMode   string

	ScoringRateLimit  int
	ScoringRateWindow time.Duration

	OpenAIAPIKey string
	OpenAIModel  string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether bundle archival is configured.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// ScoringSubject is the NATS subject scan completion events are published on.
func (c Config) ScoringSubject() string {
	return strings.TrimSuffix(c.NATSSubjectBase, ".") + ".scoring.completed"
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADEBOOK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Gradebook API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject_base", "gradebook")
	v.SetDefault("cloudinary.folder", "gradebook/submissions")
	v.SetDefault("scan.cache_ttl", "10m")
	v.SetDefault("clone.backend", CloneBackendExec)
	v.SetDefault("clone.timeout", "2m")
	v.SetDefault("clone.depth", 1)
	v.SetDefault("clone.git_image", "alpine/git:latest")
	v.SetDefault("clone.memory_mb", 256)
	v.SetDefault("corpus.max_file_bytes", 1<<20)
	v.SetDefault("corpus.max_files", 5000)
	v.SetDefault("corpus.max_total_bytes", 64<<20)
	v.SetDefault("scan.workers", 8)
	v.SetDefault("scan.context_lines", 1)
	v.SetDefault("scoring.upload_policy", "all-or-nothing")
	v.SetDefault("scoring.upload_mode", "collapsed")
	v.SetDefault("scoring.repository_policy", "partial-credit")
	v.SetDefault("scoring.repository_mode", "insensitive")
	v.SetDefault("scoring.rate_limit", 30)
	v.SetDefault("scoring.rate_window", "1m")

	cacheTTL, err := parseDuration(v, "scan.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	cloneTimeout, err := parseDuration(v, "clone.timeout")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "scoring.rate_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubjectBase:        v.GetString("nats.subject_base"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		ScanCacheTTL:           cacheTTL,
		CloneBackend:           strings.ToLower(strings.TrimSpace(v.GetString("clone.backend"))),
		CloneWorkspace:         v.GetString("clone.workspace"),
		CloneTimeout:           cloneTimeout,
		CloneDepth:             v.GetInt("clone.depth"),
		GitImage:               v.GetString("clone.git_image"),
		DockerHost:             v.GetString("docker_host"),
		CloneMemoryMB:          v.GetInt64("clone.memory_mb"),
		MaxFileBytes:           v.GetInt64("corpus.max_file_bytes"),
		MaxFiles:               v.GetInt("corpus.max_files"),
		MaxTotalBytes:          v.GetInt64("corpus.max_total_bytes"),
		ScanWorkers:            v.GetInt("scan.workers"),
		ContextLines:           v.GetInt("scan.context_lines"),
		UploadPolicy:           v.GetString("scoring.upload_policy"),
		UploadMode:             v.GetString("scoring.upload_mode"),
		RepositoryPolicy:       v.GetString("scoring.repository_policy"),
		RepositoryMode:         v.GetString("scoring.repository_mode"),
		ScoringRateLimit:       v.GetInt("scoring.rate_limit"),
		ScoringRateWindow:      rateWindow,
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIModel:            v.GetString("openai_model"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.CloneBackend {
	case CloneBackendExec, CloneBackendDocker:
	default:
		return Config{}, fmt.Errorf("unsupported clone backend %q", cfg.CloneBackend)
	}

	if cfg.ScanWorkers <= 0 {
		cfg.ScanWorkers = 8
	}
	if cfg.ContextLines < 0 {
		cfg.ContextLines = 0
	}
	if cfg.ScoringRateLimit <= 0 {
		cfg.ScoringRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}
