package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lumasweb/antispam/internal/classifier"
	"github.com/lumasweb/antispam/internal/config"
	"github.com/lumasweb/antispam/internal/logger"
	"github.com/lumasweb/antispam/internal/metrics"
	"github.com/lumasweb/antispam/internal/reputation"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("fatal")
		os.Exit(1)
	}
}

// newRootCmd builds and returns the root cobra command. Extracted from main so
// that tests can invoke it directly without spawning a subprocess.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "antispamd",
		Short: "Form anti-spam decision and escalation engine",
		Long: `A standalone service that classifies form submissions, tracks per-session
strikes with temporary blocks, and escalates repeat offenders per address.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServer,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the check API (same as running without a subcommand)",
		RunE:  runServer,
	})

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newAddrCmd())

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "antispamd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	return rootCmd
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	initLogging(cfg.LogLevel, cfg.LogFormat)

	metrics.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	srv, err := newServer(cfg)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}
	defer srv.Close()

	return srv.Run(ctx)
}

// newCheckCmd classifies a single content string from the command line. The
// timing check is skipped, as there is no recorded render to measure against.
func newCheckCmd() *cobra.Command {
	var (
		lang      string
		minLen    int
		stopwords int
		honeypot  string
	)
	cmd := &cobra.Command{
		Use:   "check <content>",
		Short: "Classify one content string and print the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minLen < 0 || stopwords < 0 {
				return fmt.Errorf("thresholds must not be negative")
			}
			verdict := classifier.Classify(classifier.Submission{
				Content:  args[0],
				Honeypot: honeypot,
			}, classifier.Checks{
				MinLength:    minLen,
				MinStopwords: stopwords,
				Language:     lang,
			})
			if verdict == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "PASS")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SPAM %s\n", verdict.Reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", classifier.DefaultLanguage, "language code for the stopword check")
	cmd.Flags().IntVar(&minLen, "min-len", 15, "minimum content length in characters")
	cmd.Flags().IntVar(&stopwords, "stopwords", 2, "minimum stopword hits")
	cmd.Flags().StringVar(&honeypot, "honeypot", "", "simulated honeypot field value")
	return cmd
}

// newAddrCmd groups the administrative reputation-store operations. They open
// the store directly and must not run while the server holds the database.
func newAddrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addr",
		Short: "Inspect or override an address's reputation record",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status <address>",
		Short: "Print the address's record and current block decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepStore(func(store *reputation.BoltStore) error {
				rec, found, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !found {
					fmt.Fprintln(cmd.OutOrStdout(), "no record")
					return nil
				}
				out := struct {
					reputation.Record
					Blocked bool `json:"blocked"`
				}{rec, reputation.Blocked(rec, time.Now())}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	})

	cmd.AddCommand(newFlagCmd("whitelist", "Exempt the address from all blocks", func(on bool) reputation.FlagPatch {
		return reputation.FlagPatch{Whitelisted: &on}
	}))
	cmd.AddCommand(newFlagCmd("hardblock", "Block the address regardless of score", func(on bool) reputation.FlagPatch {
		return reputation.FlagPatch{HardBlocked: &on}
	}))
	cmd.AddCommand(newFlagCmd("permanent", "Exempt the address's block from TTL expiry", func(on bool) reputation.FlagPatch {
		return reputation.FlagPatch{Permanent: &on}
	}))

	return cmd
}

func newFlagCmd(name, short string, patch func(on bool) reputation.FlagPatch) *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   name + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepStore(func(store *reputation.BoltStore) error {
				rec, err := store.SetFlags(cmd.Context(), args[0], patch(!off))
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "clear the flag instead of setting it")
	return cmd
}

func withRepStore(fn func(*reputation.BoltStore) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	initLogging("error", cfg.LogFormat)

	store, err := reputation.Open(filepath.Join(cfg.DataDir, "reputation.db"))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func initLogging(level string, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	redacted := logger.NewRedactWriter(os.Stderr)
	if format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: redacted})
	} else {
		log.Logger = zerolog.New(redacted).With().Timestamp().Logger()
	}

	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
