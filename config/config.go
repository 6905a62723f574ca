// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	CacheBackendPostgres = "postgres"
	CacheBackendMongo    = "mongo"
	CacheBackendMemory   = "memory"
)

// Config is the full runtime configuration, read once from the environment at startup.
type Config struct {
	Port           string
	AllowedOrigins []string
	DatabaseURL    string
	ServiceToken   string
	RequestTimeout time.Duration

	// Match cache
	CacheBackend    string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Agent content cache
	RedisURL           string
	ContentCacheTTL    time.Duration
	ValorantContentURL string

	// Riot upstream
	RiotAPIKey          string
	RiotRegionURL       string
	RiotRequestInterval time.Duration
	RiotBurst           int
	RiotMaxRetries      int
	RiotFetchTimeline   bool
	RiotDetailAttempts  int
	RiotRetryBackoff    time.Duration
	MatchHistoryCount   int

	// Model scripts
	PythonBin         string
	ScriptsDir        string
	ScriptTimeout     time.Duration
	ArtifactMaxAge    time.Duration
	ModelRunRetention time.Duration

	// Valorant mock files
	MocksDir string

	// Background refresh
	TrackedPUUIDs   []string
	RefreshInterval time.Duration

	// Cloudflare R2 (optional)
	CloudflareAccountID string
	R2AccessKeyID       string
	R2AccessKeySecret   string
	R2BucketName        string
	CDNBaseURL          string

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from environment variables. Call godotenv.Load before it
// if a .env file should be honoured.
func Load() (*Config, error) {
	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		d, err := getDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return d
	}
	num := func(key string, def int) int {
		n, err := getInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return n
	}
	flag := func(key string, def bool) bool {
		b, err := getBool(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return b
	}

	cfg := &Config{
		Port:           getEnv("PORT", "5000"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServiceToken:   os.Getenv("SERVICE_TOKEN"),
		RequestTimeout: dur("REQUEST_TIMEOUT", 2*time.Minute),

		CacheBackend:    strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendPostgres)),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "valorant-stats"),
		MongoCollection: getEnv("MONGODB_COLLECTION", "lol_raw_matches"),

		RedisURL:           os.Getenv("REDIS_URL"),
		ContentCacheTTL:    dur("CONTENT_CACHE_TTL", time.Hour),
		ValorantContentURL: getEnv("VALORANT_CONTENT_URL", "https://valorant-api.com/v1/agents?language=pt-BR&isPlayableCharacter=true"),

		RiotAPIKey:          os.Getenv("RIOT_API_KEY"),
		RiotRegionURL:       strings.TrimRight(getEnv("RIOT_REGION_URL", "https://americas.api.riotgames.com"), "/"),
		RiotRequestInterval: dur("RIOT_REQUEST_INTERVAL", 1200*time.Millisecond),
		RiotBurst:           num("RIOT_BURST", 1),
		RiotMaxRetries:      num("RIOT_MAX_RETRIES", 2),
		RiotFetchTimeline:   flag("RIOT_FETCH_TIMELINE", true),
		RiotDetailAttempts:  num("RIOT_DETAIL_ATTEMPTS", 1),
		RiotRetryBackoff:    dur("RIOT_RETRY_BACKOFF", 2*time.Second),
		MatchHistoryCount:   num("MATCH_HISTORY_COUNT", 20),

		PythonBin:         getEnv("PYTHON_BIN", "python"),
		ScriptsDir:        getEnv("SCRIPTS_DIR", "."),
		ScriptTimeout:     dur("SCRIPT_TIMEOUT", 5*time.Minute),
		ArtifactMaxAge:    dur("ARTIFACT_MAX_AGE", time.Hour),
		ModelRunRetention: dur("MODEL_RUN_RETENTION", 30*24*time.Hour),

		MocksDir: getEnv("MOCKS_DIR", "mocks"),

		TrackedPUUIDs:   splitList(os.Getenv("TRACKED_PUUIDS")),
		RefreshInterval: dur("REFRESH_INTERVAL", 15*time.Minute),

		CloudflareAccountID: os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:       os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret:   os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2BucketName:        os.Getenv("R2_BUCKET_NAME"),
		CDNBaseURL:          os.Getenv("CDN_BASE_URL"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if c.RiotAPIKey == "" {
		return fmt.Errorf("RIOT_API_KEY environment variable not set")
	}
	switch c.CacheBackend {
	case CacheBackendPostgres, CacheBackendMemory:
	case CacheBackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when CACHE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q (want postgres, mongo or memory)", c.CacheBackend)
	}
	if c.MatchHistoryCount < 1 || c.MatchHistoryCount > 100 {
		return fmt.Errorf("MATCH_HISTORY_COUNT must be between 1 and 100, got %d", c.MatchHistoryCount)
	}
	if c.RiotRequestInterval <= 0 {
		return fmt.Errorf("RIOT_REQUEST_INTERVAL must be positive")
	}
	if c.RiotBurst < 1 {
		return fmt.Errorf("RIOT_BURST must be at least 1")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.RiotDetailAttempts < 1 {
		return fmt.Errorf("RIOT_DETAIL_ATTEMPTS must be at least 1")
	}
	return nil
}

// R2Enabled reports whether every Cloudflare R2 setting needed for uploads is present.
func (c *Config) R2Enabled() bool {
	return c.CloudflareAccountID != "" && c.R2AccessKeyID != "" &&
		c.R2AccessKeySecret != "" && c.R2BucketName != ""
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// splitList splits a comma-separated value, trimming spaces and dropping empties.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
