package config

import (
	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Server mode
	Port                int `mapstructure:"PORT"`
	PollIntervalMinutes int `mapstructure:"POLL_INTERVAL_MINUTES"`

	// Storage
	DataDir string `mapstructure:"DATA_DIR"`

	// Notification gating
	PriceChangeThreshold      float64 `mapstructure:"PRICE_CHANGE_THRESHOLD"`
	MinPriceChangeAmount      int     `mapstructure:"MIN_PRICE_CHANGE_AMOUNT"`
	MinNotificationIntervalHr int     `mapstructure:"MIN_NOTIFICATION_INTERVAL_HOURS"`
	MinPriceChangeRatePercent float64 `mapstructure:"MIN_PRICE_CHANGE_RATE_PERCENT"`
	MaxPostsPerRun            int     `mapstructure:"MAX_POSTS_PER_RUN"`
	ClearOutbox               bool    `mapstructure:"CLEAR_OUTBOX"`

	// Rakuten Ichiba API
	RakutenAppID        string `mapstructure:"RAKUTEN_APP_ID"`
	RakutenAffiliateID  string `mapstructure:"RAKUTEN_AFFILIATE_ID"`
	APICacheLifetimeSec int    `mapstructure:"API_CACHE_LIFETIME_SECONDS"`
	RequestDelayMs      int    `mapstructure:"REQUEST_DELAY_MS"`

	// Twitter
	TwitterAPIKey            string `mapstructure:"TWITTER_API_KEY"`
	TwitterAPISecret         string `mapstructure:"TWITTER_API_SECRET"`
	TwitterAccessToken       string `mapstructure:"TWITTER_ACCESS_TOKEN"`
	TwitterAccessTokenSecret string `mapstructure:"TWITTER_ACCESS_TOKEN_SECRET"`

	// Threads
	ThreadsAccessToken string `mapstructure:"THREADS_ACCESS_TOKEN"`
	ThreadsUserID      string `mapstructure:"THREADS_USER_ID"`

	// Email alerts
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	AlertEmailTo string `mapstructure:"ALERT_EMAIL_TO"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", 8080)
	viper.SetDefault("POLL_INTERVAL_MINUTES", 60)
	viper.SetDefault("DATA_DIR", ".")
	viper.SetDefault("PRICE_CHANGE_THRESHOLD", 5.0)
	viper.SetDefault("MIN_PRICE_CHANGE_AMOUNT", 500)
	viper.SetDefault("MIN_NOTIFICATION_INTERVAL_HOURS", 72)
	viper.SetDefault("MIN_PRICE_CHANGE_RATE_PERCENT", 1.0)
	viper.SetDefault("MAX_POSTS_PER_RUN", 5)
	viper.SetDefault("CLEAR_OUTBOX", false)
	viper.SetDefault("API_CACHE_LIFETIME_SECONDS", 3600)
	viper.SetDefault("REQUEST_DELAY_MS", 1000)
	viper.SetDefault("SMTP_PORT", 587)

	// Optional .env file for local development
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
