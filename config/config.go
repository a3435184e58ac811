package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	JWTIssuer          string
	DBDriver           string
	DatabaseURI        string
	DBHost             string
	DBPort             string
	DBUser             string
	DBPassword         string
	DBName             string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for caching, check-in locks and codes
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Admins in addition to the "admin" role claim
	AdminUsernames []string
	// Company used when a token carries no company claim
	DefaultCompany string
	// Check-in defaults for companies without stored settings
	CheckIn CheckInDefaults
	// Lifetime of a rotated check-in code
	CheckInCodeTTLMinutes int
}

// CheckInDefaults seeds the company check-in settings.
type CheckInDefaults struct {
	WindowStart         string
	WindowEnd           string
	Timezone            string
	EarlyCutoff         string
	OnTimeCutoff        string
	EarlyPoints         int
	OnTimePoints        int
	LatePoints          int
	PerfectWeekBonus    int
	StreakBonus         int
	StreakBonusInterval int
	StreakPolicy        string
	RequireCode         bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> .env -> defaults -> environment variable overrides
	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)

	// .env only fills variables that are not already set in the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("ignoring unreadable .env: %v", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration. Intended for tests and tools.
func Set(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}
	applyJSON(raw, out)
	return nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]any, key string) int {
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case float64:
			return int(t)
		case int:
			return t
		case json.Number:
			i, _ := t.Int64()
			return int(i)
		}
	}
	return 0
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func getStringSlice(m map[string]any, key string) []string {
	if v, ok := m[key]; ok {
		if arr, ok := v.([]any); ok {
			res := make([]string, 0, len(arr))
			for _, it := range arr {
				if s, ok := it.(string); ok {
					res = append(res, s)
				}
			}
			return res
		}
	}
	return nil
}

func applyJSON(raw map[string]any, out *AppConfig) {
	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.JWTIssuer = getString(app, "JWTIssuer")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		if list := getStringSlice(app, "AdminUsernames"); len(list) > 0 {
			out.AdminUsernames = list
		}
		if v := getString(app, "DefaultCompany"); v != "" {
			out.DefaultCompany = v
		}
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v := getString(lg, "Level"); v != "" {
			out.LogLevel = v
		}
		if v := getString(lg, "Path"); v != "" {
			out.LogPath = v
		}
		if v := getString(lg, "GinMode"); v != "" {
			out.GinMode = v
		}
		if v := getString(lg, "GinPath"); v != "" {
			out.GinPath = v
		}
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	if ci, ok := raw["checkin"].(map[string]any); ok {
		c := &out.CheckIn
		c.WindowStart = getString(ci, "WindowStart")
		c.WindowEnd = getString(ci, "WindowEnd")
		c.Timezone = getString(ci, "Timezone")
		c.EarlyCutoff = getString(ci, "EarlyCutoff")
		c.OnTimeCutoff = getString(ci, "OnTimeCutoff")
		c.EarlyPoints = getInt(ci, "EarlyPoints")
		c.OnTimePoints = getInt(ci, "OnTimePoints")
		c.LatePoints = getInt(ci, "LatePoints")
		c.PerfectWeekBonus = getInt(ci, "PerfectWeekBonus")
		c.StreakBonus = getInt(ci, "StreakBonus")
		c.StreakBonusInterval = getInt(ci, "StreakBonusInterval")
		c.StreakPolicy = getString(ci, "StreakPolicy")
		c.RequireCode = getBool(ci, "RequireCode")
		if v := getInt(ci, "CodeTTLMinutes"); v != 0 {
			out.CheckInCodeTTLMinutes = v
		}
	}
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		if c.DBDriver == "postgres" {
			c.DBPort = "5432"
		} else {
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "staffrewards"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.DefaultCompany == "" {
		c.DefaultCompany = "default"
	}
	if c.CheckInCodeTTLMinutes == 0 {
		c.CheckInCodeTTLMinutes = 15
	}

	ci := &c.CheckIn
	if ci.WindowStart == "" {
		ci.WindowStart = "06:00"
	}
	if ci.WindowEnd == "" {
		ci.WindowEnd = "09:00"
	}
	if ci.Timezone == "" {
		ci.Timezone = "America/Denver"
	}
	if ci.EarlyCutoff == "" {
		ci.EarlyCutoff = "07:45"
	}
	if ci.OnTimeCutoff == "" {
		ci.OnTimeCutoff = "08:01"
	}
	// Zero is a valid late/early value, so only the all-zero table gets defaults.
	if ci.EarlyPoints == 0 && ci.OnTimePoints == 0 && ci.LatePoints == 0 {
		ci.EarlyPoints = 2
		ci.OnTimePoints = 1
	}
	if ci.PerfectWeekBonus == 0 {
		ci.PerfectWeekBonus = 5
	}
	if ci.StreakBonus == 0 {
		ci.StreakBonus = 10
	}
	if ci.StreakBonusInterval == 0 {
		ci.StreakBonusInterval = 10
	}
	if ci.StreakPolicy == "" {
		ci.StreakPolicy = "calendar"
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("JWT_ISSUER", ""); v != "" {
		c.JWTIssuer = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = strings.ToLower(v)
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	}
	if v := getEnv("ADMIN_USERNAMES", ""); v != "" {
		c.AdminUsernames = readListEnv("ADMIN_USERNAMES", c.AdminUsernames)
	}
	if v := getEnv("DEFAULT_COMPANY", ""); v != "" {
		c.DefaultCompany = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("CHECKIN_WINDOW_START", ""); v != "" {
		c.CheckIn.WindowStart = v
	}
	if v := getEnv("CHECKIN_WINDOW_END", ""); v != "" {
		c.CheckIn.WindowEnd = v
	}
	if v := getEnv("CHECKIN_TIMEZONE", ""); v != "" {
		c.CheckIn.Timezone = v
	}
	if v := getEnv("CHECKIN_EARLY_CUTOFF", ""); v != "" {
		c.CheckIn.EarlyCutoff = v
	}
	if v := getEnv("CHECKIN_ON_TIME_CUTOFF", ""); v != "" {
		c.CheckIn.OnTimeCutoff = v
	}
	if v := getEnv("CHECKIN_EARLY_POINTS", ""); v != "" {
		c.CheckIn.EarlyPoints = mustParseInt(v)
	}
	if v := getEnv("CHECKIN_ON_TIME_POINTS", ""); v != "" {
		c.CheckIn.OnTimePoints = mustParseInt(v)
	}
	if v := getEnv("CHECKIN_LATE_POINTS", ""); v != "" {
		c.CheckIn.LatePoints = mustParseInt(v)
	}
	if v := getEnv("CHECKIN_PERFECT_WEEK_BONUS", ""); v != "" {
		c.CheckIn.PerfectWeekBonus = mustParseInt(v)
	}
	if v := getEnv("CHECKIN_STREAK_BONUS", ""); v != "" {
		c.CheckIn.StreakBonus = mustParseInt(v)
	}
	if v := getEnv("CHECKIN_STREAK_BONUS_INTERVAL", ""); v != "" {
		c.CheckIn.StreakBonusInterval = mustParseInt(v)
	}
	if v := getEnv("CHECKIN_STREAK_POLICY", ""); v != "" {
		c.CheckIn.StreakPolicy = v
	}
	if v := getEnv("CHECKIN_REQUIRE_CODE", ""); v != "" {
		c.CheckIn.RequireCode = v == "true"
	}
	if v := getEnv("CHECKIN_CODE_TTL_MINUTES", ""); v != "" {
		c.CheckInCodeTTLMinutes = mustParseInt(v)
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
