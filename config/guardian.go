package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIBaseURL     = "http://localhost:8000"
	DefaultRequestTimeout = 60 * time.Second
	DefaultMaskStyle      = "box"
	DefaultMaxFileSize    = 10 * 1024 * 1024
	DefaultListenAddr     = ":8080"
	DefaultSessionIdleTTL = 30 * time.Minute
)

// DefaultCORSOrigins are the local dev origins allowed when CORS_ORIGINS is unset.
var DefaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:8000",
	"http://127.0.0.1:8000",
}

var (
	guardianOnce   sync.Once
	guardianConfig *GuardianConfig
	guardianErr    error
)

// APIConfig describes the remote detection/masking backend.
type APIConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaskStyle      string        `yaml:"maskStyle"`
	// MinConfidence is forwarded as min_confidence when > 0.
	MinConfidence float64 `yaml:"minConfidence"`
}

type WorkflowConfig struct {
	MaxFileSize         int64 `yaml:"maxFileSize"`
	PreviewMaxDimension int   `yaml:"previewMaxDimension"`
}

type ServerConfig struct {
	ListenAddr     string        `yaml:"listenAddr"`
	CORSOrigins    []string      `yaml:"corsOrigins"`
	SessionIdleTTL time.Duration `yaml:"sessionIdleTtl"`
}

type LogConfig struct {
	Level    string   `yaml:"level"`
	Encoding string   `yaml:"encoding"`
	Outputs  []string `yaml:"outputs"`
}

// DownloadConfig selects where masked images are saved: local, s3 or minio.
type DownloadConfig struct {
	Sink string `yaml:"sink"`
	Dir  string `yaml:"dir"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	DB          int    `yaml:"db"`
	Concurrency int    `yaml:"concurrency"`
}

// GuardianConfig is the full runtime configuration.
type GuardianConfig struct {
	API      APIConfig      `yaml:"api"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Download DownloadConfig `yaml:"download"`
	Redis    RedisConfig    `yaml:"redis"`
	S3       S3Config       `yaml:"s3"`
	Minio    MinioConfig    `yaml:"minio"`
}

// GetGuardianConfig loads the configuration once per process.
func GetGuardianConfig() (*GuardianConfig, error) {
	guardianOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found, falling back to environment variables")
		}
		guardianConfig, guardianErr = Load(os.Getenv("GUARDIAN_CONFIG"))
	})
	return guardianConfig, guardianErr
}

// Load reads the optional YAML file at path, applies environment overrides and
// fills the remaining zero values with defaults.
func Load(path string) (*GuardianConfig, error) {
	cfg := &GuardianConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	env := &envLookup{get: os.Getenv}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *GuardianConfig) applyEnv(env *envLookup) error {
	env.str("PII_API_BASE_URL", &c.API.BaseURL)
	env.str("PII_MASK_STYLE", &c.API.MaskStyle)
	env.duration("PII_API_TIMEOUT", &c.API.RequestTimeout)
	env.float("PII_MIN_CONFIDENCE", &c.API.MinConfidence)

	env.integer64("GUARDIAN_MAX_FILE_SIZE", &c.Workflow.MaxFileSize)
	env.integer("GUARDIAN_PREVIEW_MAX_DIM", &c.Workflow.PreviewMaxDimension)

	if port := strings.TrimSpace(env.get("PORT")); port != "" {
		c.Server.ListenAddr = ":" + port
	}
	env.str("GUARDIAN_LISTEN_ADDR", &c.Server.ListenAddr)
	env.list("CORS_ORIGINS", &c.Server.CORSOrigins)
	env.duration("GUARDIAN_SESSION_TTL", &c.Server.SessionIdleTTL)

	env.str("LOG_LEVEL", &c.Log.Level)
	env.str("LOG_ENCODING", &c.Log.Encoding)
	env.list("LOG_OUTPUTS", &c.Log.Outputs)

	env.str("DOWNLOAD_SINK", &c.Download.Sink)
	env.str("DOWNLOAD_DIR", &c.Download.Dir)

	env.str("REDIS_ADDR", &c.Redis.Addr)
	env.integer("REDIS_DB", &c.Redis.DB)
	env.integer("WORKER_CONCURRENCY", &c.Redis.Concurrency)

	c.S3.applyEnv(env)
	c.Minio.applyEnv(env)
	return env.err
}

func (c *GuardianConfig) applyDefaults() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.RequestTimeout <= 0 {
		c.API.RequestTimeout = DefaultRequestTimeout
	}
	if c.API.MaskStyle == "" {
		c.API.MaskStyle = DefaultMaskStyle
	}
	if c.Workflow.MaxFileSize <= 0 {
		c.Workflow.MaxFileSize = DefaultMaxFileSize
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = append([]string{}, DefaultCORSOrigins...)
	}
	if c.Server.SessionIdleTTL <= 0 {
		c.Server.SessionIdleTTL = DefaultSessionIdleTTL
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}
	if c.Download.Sink == "" {
		c.Download.Sink = "local"
	}
	if c.Download.Dir == "" {
		c.Download.Dir = "downloads"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Concurrency <= 0 {
		c.Redis.Concurrency = 5
	}
}

// Validate checks values that cannot be defaulted.
func (c *GuardianConfig) Validate() error {
	switch c.API.MaskStyle {
	case "box", "blur":
	default:
		return fmt.Errorf("invalid mask style %q: want box or blur", c.API.MaskStyle)
	}
	switch c.Download.Sink {
	case "local", "s3", "minio":
	default:
		return fmt.Errorf("invalid download sink %q: want local, s3 or minio", c.Download.Sink)
	}
	if c.API.MinConfidence < 0 || c.API.MinConfidence > 1 {
		return fmt.Errorf("min confidence %v out of range [0,1]", c.API.MinConfidence)
	}
	return nil
}

// envLookup overrides fields only for variables that are set and non-blank.
// The first parse failure is kept in err.
type envLookup struct {
	get func(string) string
	err error
}

func (e *envLookup) value(key string) (string, bool) {
	v := strings.TrimSpace(e.get(key))
	return v, v != ""
}

func (e *envLookup) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (e *envLookup) str(key string, dst *string) {
	if v, ok := e.value(key); ok {
		*dst = v
	}
}

func (e *envLookup) list(key string, dst *[]string) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *envLookup) boolean(key string, dst *bool) {
	if v, ok := e.value(key); ok {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func (e *envLookup) integer(key string, dst *int) {
	if v, ok := e.value(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envLookup) integer64(key string, dst *int64) {
	if v, ok := e.value(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envLookup) float(key string, dst *float64) {
	if v, ok := e.value(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = f
	}
}

func (e *envLookup) duration(key string, dst *time.Duration) {
	if v, ok := e.value(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}
