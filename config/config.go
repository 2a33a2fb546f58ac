/*
config.go - Process configuration

PURPOSE:
  Reads the server configuration from the environment. A .env file in the
  working directory is loaded first when present; variables already set in
  the environment win over the file.

KEYS:
  PORT                 HTTP port (8080)
  STORE                sqlite | mongo | memory (sqlite)
  SQLITE_PATH          database file, ":memory:" allowed (hours.db)
  MONGODB_URI          mongodb://localhost:27017
  MONGODB_DATABASE     hours_ledger
  HOLIDAY_COUNTRY      ISO country code (KR)
  HOLIDAY_API_URL      public holiday API base URL
  HOLIDAY_REFRESH      refresh interval, Go duration (6h)
  LOCALE               default locale for labels (ko)
  LOG_LEVEL            debug | info | warn | error (info)
  LOG_FILE             optional rotated log file
  LOG_JSON             true for JSON log lines
  BULK_CONCURRENCY     parallel writes when applying a plan (8)
  FEMALE_LEAVE_DEDUCT  days deducted per female leave day (0)
  CORS_ORIGINS         comma separated allowed origins

SEE ALSO:
  - cmd/server/main.go: flag overrides
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/warp/hours-ledger/holiday"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port  int
	Store string

	SQLitePath string
	MongoURI   string
	MongoDB    string

	HolidayCountry string
	HolidayAPIURL  string
	HolidayRefresh time.Duration

	Locale string

	LogLevel string
	LogFile  string
	LogJSON  bool

	BulkConcurrency   int
	FemaleLeaveDeduct decimal.Decimal
	CORSOrigins       []string

	// EnvFile is true when a .env file was read.
	EnvFile bool
}

// Load reads .env (optional) and then the environment.
func Load() (Config, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromEnv()
	cfg.EnvFile = loaded
	return cfg, err
}

// FromEnv reads the configuration from the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Store:          strings.ToLower(getEnv("STORE", StoreSQLite)),
		SQLitePath:     getEnv("SQLITE_PATH", "hours.db"),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:        getEnv("MONGODB_DATABASE", "hours_ledger"),
		HolidayCountry: getEnv("HOLIDAY_COUNTRY", "KR"),
		HolidayAPIURL:  getEnv("HOLIDAY_API_URL", holiday.DefaultBaseURL),
		Locale:         getEnv("LOCALE", "ko"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return cfg, err
	}
	if cfg.BulkConcurrency, err = getInt("BULK_CONCURRENCY", 8); err != nil {
		return cfg, err
	}
	if cfg.LogJSON, err = getBool("LOG_JSON", false); err != nil {
		return cfg, err
	}

	refresh := getEnv("HOLIDAY_REFRESH", "6h")
	if cfg.HolidayRefresh, err = time.ParseDuration(refresh); err != nil {
		return cfg, fmt.Errorf("HOLIDAY_REFRESH: %w", err)
	}

	deduct := getEnv("FEMALE_LEAVE_DEDUCT", "0")
	if cfg.FemaleLeaveDeduct, err = decimal.NewFromString(deduct); err != nil {
		return cfg, fmt.Errorf("FEMALE_LEAVE_DEDUCT: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks values that have a closed set or a range.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("STORE: unknown store %q", c.Store)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT: out of range: %d", c.Port)
	}
	if c.BulkConcurrency <= 0 {
		return fmt.Errorf("BULK_CONCURRENCY: must be positive")
	}
	if c.FemaleLeaveDeduct.IsNegative() {
		return fmt.Errorf("FEMALE_LEAVE_DEDUCT: must not be negative")
	}
	return nil
}

func getEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	v := getEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := getEnv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
