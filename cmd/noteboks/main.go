package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/jward/noteboks"
	"github.com/jward/noteboks/internal/config"
)

// defaultConfigFile is read from the working directory when --config is not
// given. It is optional.
const defaultConfigFile = "noteboks.yaml"

var (
	flagVault    string
	flagConfig   string
	flagFormat   string
	flagLogLevel string
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "noteboks",
	Short:         "Index a vault of plain-text notes",
	Long:          "Noteboks scans a vault of notes, parses their links with tree-sitter and answers hover, definition and backlink queries. All line and column numbers are 0-based; columns count UTF-16 code units.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagVault, "vault", "", "vault root (default: $NOTEBOKS_VAULT, vault.path from config, or .)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+defaultConfigFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(backlinksCmd)
	rootCmd.AddCommand(hoverCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(conflictsCmd)
}

// loadConfig builds the effective configuration. Later sources override
// earlier ones: defaults, config file, environment (including .env), flags.
func loadConfig() (*config.Config, error) {
	cfg := config.NewDefault()
	if flagConfig != "" {
		if err := config.Load(flagConfig, cfg); err != nil {
			return nil, err
		}
	} else if err := config.LoadOptional(defaultConfigFile, cfg); err != nil {
		return nil, err
	}
	if err := config.FromEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if flagVault != "" {
		cfg.Vault.Path = flagVault
	}
	if flagLogLevel != "" {
		if err := cfg.Log.Level.UnmarshalText([]byte(flagLogLevel)); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openIndex loads the configuration, creates an Index over the vault and
// scans it.
func openIndex(ctx context.Context) (*noteboks.Index, noteboks.ScanStats, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, noteboks.ScanStats{}, err
	}
	logger := newLogger(cfg.Log.Level)

	opts := []noteboks.Option{
		noteboks.WithLogger(logger),
		noteboks.WithScanWorkers(cfg.Scan.Workers),
	}
	if cfg.Hover.Script != "" {
		opts = append(opts, noteboks.WithHoverScript(cfg.Hover.Script))
	}

	ix, err := noteboks.New(cfg.Vault.Path, opts...)
	if err != nil {
		return nil, noteboks.ScanStats{}, fmt.Errorf("creating index: %w", err)
	}
	stats, err := ix.Scan(ctx)
	if err != nil {
		ix.Close()
		return nil, noteboks.ScanStats{}, fmt.Errorf("scanning: %w", err)
	}
	return ix, stats, nil
}
