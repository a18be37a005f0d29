package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/names-loader/internal/app"
	"github.com/heartmarshall/names-loader/internal/app/loader"
	"github.com/heartmarshall/names-loader/internal/config"
	"github.com/heartmarshall/names-loader/internal/domain"
)

type rootOptions struct {
	configPath string
	dryRun     bool
	strategy   string
	yes        bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "names-loader",
		Short:         "Load name frequency datasets into a names database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file (default: $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "read and rank the input without writing anything")
	root.PersistentFlags().StringVar(&opts.strategy, "strategy", "", "write strategy: copy or rows (default: copy, rows for sqlite)")
	root.PersistentFlags().BoolVarP(&opts.yes, "yes", "y", false, "skip the confirmation prompt")

	root.AddCommand(
		newLoadCmd(opts, loader.DatasetFirstnames, "Load the yearly first-name files and compute cumulative ranks"),
		newLoadCmd(opts, loader.DatasetSurnames, "Rebuild the surnames table from the census file"),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads .env, the config file and the environment, then applies flag overrides.
func (o *rootOptions) load() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.dryRun {
		cfg.Loader.DryRun = true
	}
	if o.strategy != "" {
		cfg.Loader.Strategy = o.strategy
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: validate: %w", err)
		}
	}

	o.cfg = cfg
	o.logger = app.NewLogger(cfg.Log)
	return nil
}

func newLoadCmd(opts *rootOptions, dataset, short string) *cobra.Command {
	return &cobra.Command{
		Use:   dataset,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.cfg.Loader.DryRun && destructive(opts.cfg, dataset) && !opts.yes && !opts.cfg.Loader.NonInteractive {
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), dataset)
				if err != nil {
					return err
				}
				if !ok {
					opts.logger.Info("aborted by user")
					return nil
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := app.Run(ctx, opts.cfg, opts.logger, dataset)
			if report != nil {
				loader.LogReport(opts.logger, report)
			}
			if err != nil {
				opts.logger.Error("load failed", slog.String("dataset", dataset), slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Migrate(cmd.Context(), opts.cfg, opts.logger); err != nil {
				opts.logger.Error("migrate failed", slog.String("error", err.Error()))
				return err
			}
			opts.logger.Info("schema up to date")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.BuildVersion())
		},
	}
}

// destructive reports whether loading dataset removes existing rows.
func destructive(cfg *config.Config, dataset string) bool {
	if dataset == loader.DatasetSurnames {
		return true
	}
	return cfg.Loader.RebuildPolicy() == domain.RebuildPolicyRebuild
}

func confirm(in io.Reader, out io.Writer, dataset string) (bool, error) {
	fmt.Fprintf(out, "WARNING: this will delete every row of the %q table and load it again. Proceed? (y/n) ", dataset)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
