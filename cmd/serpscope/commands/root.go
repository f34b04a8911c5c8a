// Package commands implements the CLI commands for serpscope.
package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/serpscope/internal/logger"
	"github.com/jmylchreest/serpscope/internal/metrics"
	"github.com/jmylchreest/serpscope/internal/output"
)

var rootCmd = &cobra.Command{
	Use:   "serpscope",
	Short: "Analyze the pages that rank for a search keyword",
	Long: `Serpscope looks up the search results for a keyword, fetches and cleans
the ranking pages, and asks an LLM for a keyword and content analysis.

Examples:
  # Clean a local HTML file and show its headings
  serpscope clean page.html

  # Clean a page fetched directly from the site as Markdown
  serpscope clean --page-format markdown https://example.com/article

  # List the top 5 results for a keyword
  serpscope search -n 5 --language de "sauerteig starter"

  # Full analysis using Gemini, written as YAML
  serpscope analyze -p gemini -f yaml "sourdough starter"`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.serpscope.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("log-level", "", "log level: debug, info, warn, error (overrides --debug and --quiet)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.StringP("format", "f", string(output.FormatText), "output format: "+formatNames())
	flags.String("metrics-addr", "", "serve prometheus metrics on this address while the command runs (e.g. :9090)")

	for _, name := range []string{"config", "debug", "quiet", "log-json", "log-level", "output", "format", "metrics-addr"} {
		_ = viper.BindPFlag(configKey(name), flags.Lookup(name))
	}
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".serpscope")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. SERPSCOPE_SCRAPE_API_KEY
	viper.SetEnvPrefix("SERPSCOPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// setup binds the running command's flags and configures logging.
func setup(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd.Flags())

	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
		Level: viper.GetString("log_level"),
	})
	if level := viper.GetString("log_level"); level != "" {
		if _, err := logger.ParseLevel(level); err != nil {
			return err
		}
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("config file loaded", "path", used)
	}
	return nil
}

// bindFlags binds local flags to viper keys at run time so commands can
// share flag names without overwriting each other's bindings.
func bindFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(configKey(f.Name), f)
	})
}

// configKey maps a flag name to its config file key.
func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func formatNames() string {
	names := make([]string, len(output.Formats))
	for i, f := range output.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openOutput opens the configured output file and writer. The returned
// function flushes the writer and closes the file; later calls are no-ops.
func openOutput() (output.Writer, func() error, error) {
	format, err := output.ParseFormat(viper.GetString("format"))
	if err != nil {
		return nil, nil, err
	}

	out := os.Stdout
	closeFile := func() error { return nil }
	if path := viper.GetString("output"); path != "" {
		f, err := os.Create(path) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		out = f
		closeFile = f.Close
	}

	w, err := output.NewWriter(out, format)
	if err != nil {
		_ = closeFile()
		return nil, nil, err
	}
	var once sync.Once
	var closeErr error
	return w, func() error {
		once.Do(func() { closeErr = errors.Join(w.Close(), closeFile()) })
		return closeErr
	}, nil
}

// serveMetrics exposes the metrics registry until ctx ends.
func serveMetrics(ctx context.Context) {
	addr := viper.GetString("metrics_addr")
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// logInfo prints a progress message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
