package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingDatabaseURL is returned by Load when DATABASE_URL is not set.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL not found in environment variables")

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL string
	DBMaxConns  int

	TelegramBotToken    string
	TelegramChatIDs     []string
	TelegramAPIEndpoint string
	PredefinedText      string

	BaseURL          string
	Search           SearchCriteria
	Selectors        Selectors
	NegativeKeywords []string
	FilterEnabled    bool
	SearchConfigFile string

	CheckInterval         time.Duration
	PageLoadTimeout       time.Duration
	ElementTimeout        time.Duration
	NavigationInterval    time.Duration
	ListingPause          time.Duration
	TargetPause           time.Duration
	SessionRetryDelay     time.Duration
	MaxSessionAttempts    int
	DescriptionRetries    int
	DescriptionRetryDelay time.Duration

	Headless  bool
	ChromeBin string
	UserAgent string

	LogLevel    string
	MetricsAddr string
}

// Load reads the .env file and returns a populated Config struct.
// A missing DATABASE_URL is the only fatal condition.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 5),

		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatIDs:     getEnvList("TELEGRAM_CHAT_IDS"),
		TelegramAPIEndpoint: getEnv("TELEGRAM_API_ENDPOINT", ""),
		PredefinedText:      getEnv("PREDEFINED_TEXT", ""),

		BaseURL:          strings.TrimRight(getEnv("BASE_URL", "https://www.kleinanzeigen.de"), "/"),
		Search:           DefaultSearchCriteria(),
		Selectors:        DefaultSelectors(),
		NegativeKeywords: DefaultNegativeKeywords(),
		FilterEnabled:    getEnvBool("FILTER_ENABLED", false),
		SearchConfigFile: getEnv("SEARCH_CONFIG_FILE", ""),

		CheckInterval:         getEnvDuration("CHECK_INTERVAL", 100*time.Second),
		PageLoadTimeout:       getEnvDuration("PAGE_LOAD_TIMEOUT", 10*time.Second),
		ElementTimeout:        getEnvDuration("ELEMENT_TIMEOUT", 15*time.Second),
		NavigationInterval:    getEnvDuration("NAVIGATION_INTERVAL", 500*time.Millisecond),
		ListingPause:          getEnvDuration("LISTING_PAUSE", time.Second),
		TargetPause:           getEnvDuration("TARGET_PAUSE", 2*time.Second),
		SessionRetryDelay:     getEnvDuration("SESSION_RETRY_DELAY", 10*time.Second),
		MaxSessionAttempts:    getEnvInt("MAX_SESSION_ATTEMPTS", 3),
		DescriptionRetries:    getEnvInt("DESCRIPTION_RETRIES", 3),
		DescriptionRetryDelay: getEnvDuration("DESCRIPTION_RETRY_DELAY", 2*time.Second),

		Headless:  getEnvBool("HEADLESS", true),
		ChromeBin: getEnv("CHROME_BIN", ""),
		UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}

	if cfg.SearchConfigFile != "" {
		if err := cfg.applyFile(cfg.SearchConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if len(c.Search.Districts) == 0 {
		return errors.New("config: no search districts configured")
	}
	return nil
}

// NotificationsEnabled reports whether Telegram credentials are complete.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramBotToken != "" && len(c.TelegramChatIDs) > 0
}

// SearchURLs returns one results URL per district, in configuration order.
func (c *Config) SearchURLs() []string {
	s := c.Search
	urls := make([]string, 0, len(s.Districts))
	for _, d := range s.Districts {
		urls = append(urls, fmt.Sprintf(
			"%s/s-wohnung-mieten/%s/preis::%d/c203l%s+wohnung_mieten.qm_d:%.2f%%2C%.2f+wohnung_mieten.zimmer_d:%d%%2C%d",
			c.BaseURL, d.Name, s.MaxPrice, d.LocationID, s.MinSize, s.MaxSize, s.MinRooms, s.MaxRooms,
		))
	}
	return urls
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

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
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

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
