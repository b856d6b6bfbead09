package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fetch modes for listing pages.
const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	UserAgent      string
	AcceptLanguage string

	ResultsPerPage int
	MaxResults     int
	Channel        string
	CurrencyCode   string
	IncludeSSTC    bool
	Radius         string
	SortType       string

	MaxConcurrency int
	PreserveOrder  bool
	FetchMode      string
	ChromeBin      string

	OutputDir string
	LogLevel  string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	MaxRetries       int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		BaseURL:        strings.TrimRight(getEnv("RIGHTMOVE_BASE_URL", "https://www.rightmove.co.uk"), "/"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/62.0.3202.94 Safari/537.36"),
		AcceptLanguage: getEnv("ACCEPT_LANGUAGE", "en-US,en;q=0.9,lt;q=0.8,et;q=0.7,de;q=0.6"),

		ResultsPerPage: getEnvInt("RESULTS_PER_PAGE", 24),
		MaxResults:     getEnvInt("MAX_RESULTS", 1000),
		Channel:        strings.ToUpper(getEnv("SEARCH_CHANNEL", "BUY")),
		CurrencyCode:   getEnv("CURRENCY_CODE", "GBP"),
		IncludeSSTC:    getEnvBool("INCLUDE_SSTC", false),
		Radius:         getEnv("SEARCH_RADIUS", "0.0"),
		SortType:       getEnv("SORT_TYPE", "6"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 0),
		PreserveOrder:  getEnvBool("PRESERVE_ORDER", false),
		FetchMode:      strings.ToLower(getEnv("FETCH_MODE", FetchModeHTTP)),
		ChromeBin:      getEnv("CHROME_BIN", ""),

		OutputDir: getEnv("OUTPUT_DIR", "results"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rightmove"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
	}
}

// Validate reports the first setting that cannot drive a run.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: RIGHTMOVE_BASE_URL is empty")
	}
	if c.ResultsPerPage <= 0 {
		return fmt.Errorf("config: RESULTS_PER_PAGE must be positive, got %d", c.ResultsPerPage)
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("config: MAX_RESULTS must not be negative, got %d", c.MaxResults)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("config: MAX_CONCURRENCY must not be negative, got %d", c.MaxConcurrency)
	}
	if c.Channel != "BUY" && c.Channel != "RENT" {
		return fmt.Errorf("config: SEARCH_CHANNEL must be BUY or RENT, got %q", c.Channel)
	}
	if c.FetchMode != FetchModeHTTP && c.FetchMode != FetchModeBrowser {
		return fmt.Errorf("config: unknown FETCH_MODE %q", c.FetchMode)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
