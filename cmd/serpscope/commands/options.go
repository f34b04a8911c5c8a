package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/serpscope/pkg/cleaner"
	"github.com/jmylchreest/serpscope/pkg/llm"
	"github.com/jmylchreest/serpscope/pkg/scrape"
	"github.com/jmylchreest/serpscope/pkg/serpscope"
)

// addScrapeFlags registers the fetch and search transport flags.
func addScrapeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("scrape-url", "", "scraping API base URL (env SERPSCOPE_SCRAPE_URL)")
	flags.String("scrape-api-key", "", "scraping API key (env SERPSCOPE_SCRAPE_API_KEY)")
	flags.Bool("local", false, "fetch pages directly from their sites instead of through the scraping API")
	flags.String("page-format", string(cleaner.FormatHTML), "page format to fetch: html, markdown")
	flags.Duration("delay", scrape.DefaultMinDelay, "minimum delay between requests")
	flags.Duration("timeout", scrape.DefaultTimeout, "request timeout")
	flags.String("user-agent", "", "HTTP user agent")
}

// addSearchFlags registers the search query flags.
func addSearchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("language", "l", "en", "result and analysis language (BCP 47, e.g. en, de, pt-BR)")
	flags.String("country", "", "result country code (e.g. us, de)")
	flags.IntP("limit", "n", 10, "number of results")
}

// addCleanerFlags registers the content cleaning flags.
func addCleanerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("preset", "default", "cleaner preset: default, strict, lenient")
	flags.String("max-content", "", "largest accepted page (e.g. 10MB)")
	flags.Duration("max-time", 0, "processing budget per page (e.g. 5s, 0 keeps the preset)")
	flags.Int("min-line-length", 0, "drop lines shorter than this")
	flags.String("link-policy", "", "markdown links: keep_text, drop")
	flags.IntP("concurrency", "c", 4, "pages fetched and cleaned at once")
}

// addLLMFlags registers the analysis provider flags.
func addLLMFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("provider", "p", "", "LLM provider: "+strings.Join(llm.AvailableProviders(), ", ")+" (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use the provider's env var)")
	flags.String("base-url", "", "custom API base URL")
	flags.Int("max-retries", 2, "retries when the model returns invalid JSON")
	flags.Float64("temperature", 0.2, "sampling temperature")
	flags.Int("max-tokens", 4096, "maximum output tokens")
	flags.String("max-page-chars", "24KB", "page content sent to the model (e.g. 24KB, 0=unlimited)")
}

// parseSize parses a human byte size. Empty and "0" mean zero.
func parseSize(name, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return int(n), nil
}

// cleanerConfig builds the cleaner configuration from the preset and overrides.
func cleanerConfig() (*cleaner.Config, error) {
	cfg, err := cleaner.Preset(viper.GetString("preset"))
	if err != nil {
		return nil, err
	}

	if viper.IsSet("max_content") {
		n, err := parseSize("max-content", viper.GetString("max_content"))
		if err != nil {
			return nil, err
		}
		if n > 0 {
			cfg.Budget.MaxContentLength = n
		}
	}
	if d := viper.GetDuration("max_time"); d > 0 {
		cfg.Budget.MaxProcessingTime = d
	}
	if viper.IsSet("min_line_length") {
		cfg.MinLineLength = viper.GetInt("min_line_length")
	}
	if p := viper.GetString("link_policy"); p != "" {
		cfg.LinkPolicy = cleaner.LinkPolicy(p)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSerpscope builds the façade from flags, config file and environment.
func newSerpscope() (*serpscope.Serpscope, error) {
	ccfg, err := cleanerConfig()
	if err != nil {
		return nil, err
	}
	format, err := cleaner.ParseFormat(viper.GetString("page_format"))
	if err != nil {
		return nil, err
	}

	opts := []serpscope.Option{
		serpscope.WithCleanerConfig(ccfg),
		serpscope.WithFormat(format),
		serpscope.WithScrapeAPI(viper.GetString("scrape_url"), viper.GetString("scrape_api_key")),
		serpscope.WithLocalFetch(viper.GetBool("local")),
		serpscope.WithMinDelay(durationOr("delay", scrape.DefaultMinDelay)),
		serpscope.WithTimeout(durationOr("timeout", scrape.DefaultTimeout)),
		serpscope.WithUserAgent(viper.GetString("user_agent")),
	}
	if viper.IsSet("concurrency") {
		opts = append(opts, serpscope.WithConcurrency(viper.GetInt("concurrency")))
	}
	if viper.IsSet("language") {
		opts = append(opts, serpscope.WithLanguage(viper.GetString("language")))
	}
	if viper.IsSet("country") {
		opts = append(opts, serpscope.WithCountry(viper.GetString("country")))
	}
	if viper.IsSet("limit") {
		opts = append(opts, serpscope.WithLimit(viper.GetInt("limit")))
	}

	// An empty provider is detected from the environment.
	opts = append(opts,
		serpscope.WithProvider(viper.GetString("provider")),
		serpscope.WithModel(viper.GetString("model")),
		serpscope.WithAPIKey(viper.GetString("api_key")),
		serpscope.WithBaseURL(viper.GetString("base_url")),
	)
	if viper.IsSet("max_retries") {
		opts = append(opts, serpscope.WithMaxRetries(viper.GetInt("max_retries")))
	}
	if viper.IsSet("temperature") {
		opts = append(opts, serpscope.WithTemperature(viper.GetFloat64("temperature")))
	}
	if viper.IsSet("max_tokens") {
		opts = append(opts, serpscope.WithMaxTokens(viper.GetInt("max_tokens")))
	}
	if viper.IsSet("max_page_chars") {
		n, err := parseSize("max-page-chars", viper.GetString("max_page_chars"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, serpscope.WithMaxPageChars(n))
	}

	return serpscope.New(opts...)
}

func durationOr(key string, def time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return def
}
