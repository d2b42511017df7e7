package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opendlt/movecall/internal/config"
	"github.com/opendlt/movecall/internal/logz"
	"github.com/opendlt/movecall/internal/netprofiles"
	"github.com/opendlt/movecall/types/move"
)

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	network    string
	nodeURL    string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "movecall",
		Short:         "Submit a Move entry function call and verify its effect",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.network, "network", "", fmt.Sprintf("Network profile %v", netprofiles.GetAvailableNetworks()))
	rootCmd.PersistentFlags().StringVar(&flags.nodeURL, "node", "", "Node REST endpoint, overrides the network profile")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		runCommand(flags),
		accountCommand(flags),
		journalCommand(flags),
		healthCommand(flags),
	)
	return rootCmd
}

// loadConfig reads the config file, if any, and applies flag overrides
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var data []byte
	if flags.configPath != "" {
		raw, err := os.ReadFile(flags.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", flags.configPath, err)
		}
		data = raw
	}

	overrides := map[string]any{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &overrides); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", flags.configPath, err)
		}
	}
	if flags.network != "" {
		overrides["network"] = flags.network
		delete(overrides, "nodeURL")
		delete(overrides, "chainID")
	}
	if flags.nodeURL != "" {
		overrides["nodeURL"] = flags.nodeURL
	}
	if flags.logLevel != "" {
		overrides["logLevel"] = flags.logLevel
	}

	merged, err := yaml.Marshal(overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config overrides: %w", err)
	}
	return config.Parse(merged)
}

func setup(flags *globalFlags) (*environment, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger := logz.NewConsole(cfg.GetLogLevel(), "movecall")
	logger.Debug("loaded %s", cfg)

	return newEnvironment(cfg, logger)
}

func runCommand(flags *globalFlags) *cobra.Command {
	var (
		moduleAddr  string
		message     string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Store a message through the message module and read it back",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			module := env.account.Address()
			if moduleAddr != "" {
				module, err = move.ParseAddress(moduleAddr)
				if err != nil {
					return fmt.Errorf("invalid --module: %w", err)
				}
			}

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", env.metrics.Handler())
				mux.Handle("/healthz", env.health.Handler())
				server := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						env.logger.Warn("metrics server stopped: %v", err)
					}
				}()
				defer server.Close()
			}

			scenario := &messageScenario{env: env, module: module, message: message}
			result, err := scenario.run(cmd.Context())
			if result != nil {
				if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&moduleAddr, "module", "", "Address the message module is published under (default: the sender)")
	cmd.Flags().StringVar(&message, "message", "hello world!!", "Message to store")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address while running")
	return cmd
}

func accountCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the configured account and its on-chain sequence number",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			seq, err := env.account.Sync(cmd.Context(), env.client)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"address":         env.account.Address().StringLong(),
				"sequence_number": seq,
				"node":            env.client.Endpoint(),
			})
		},
	}
}

func journalCommand(flags *globalFlags) *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "journal [hash]",
		Short: "Show recorded submission outcomes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			if len(args) == 1 {
				outcome, err := env.journal.Get(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), outcome)
			}

			if sender == "" {
				sender = env.account.Address().StringLong()
			}
			outcomes, err := env.journal.ListBySender(sender)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), outcomes)
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "Sender address (default: the configured account)")
	return cmd
}

func healthCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the node is reachable and its ledger is current",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.Close()

			status := env.health.GetStatus(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), status); err != nil {
				return err
			}
			if !status.OK {
				return fmt.Errorf("node %s is unhealthy: %s", status.Endpoint, status.Error)
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
