// Package config initializes the application's configuration. It uses Viper
// to merge settings from a config file, environment variables, and
// command-line flags into a unified view.
package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// InitConfig sets defaults, search paths and environment wiring on the
// global Viper instance and reads the config file if one exists. When
// cfgFile is non-empty it is used verbatim. Returns the path of the file
// that was read, or "" when running on defaults alone.
func InitConfig(cfgFile string) (string, error) {
	// A local .env may carry SCRAPER_* variables; absence is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.review-scraper")
	}

	viper.SetDefault("scraper.base_url", "https://www.plattentests.de/rezi.php")
	viper.SetDefault("scraper.user_agent", "review-scraper/1.0 (+https://github.com/musicreview/scraper)")
	viper.SetDefault("scraper.max_rps", 2.5)
	viper.SetDefault("scraper.timeout", "10s")
	viper.SetDefault("scraper.max_retries", 3)
	viper.SetDefault("scraper.backoff_base", "500ms")
	viper.SetDefault("scraper.backoff_max", "5s")
	viper.SetDefault("scraper.existing_mode", "add")
	viper.SetDefault("scraper.tls_skip_verify", false)
	viper.SetDefault("output.path", "data/reviews.jsonl")
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.addr", ":9090")
	viper.SetDefault("logging.development", false)
	viper.SetDefault("logging.verbose", false)

	viper.SetEnvPrefix("SCRAPER") // e.g. SCRAPER_SCRAPER_MAX_RPS=1.0
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			// No config file; defaults and env vars carry the run.
			return "", nil
		}
		return "", err
	}
	return viper.ConfigFileUsed(), nil
}
