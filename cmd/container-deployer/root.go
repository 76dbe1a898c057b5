package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/auto-dns/container-deployer/internal/app"
	"github.com/auto-dns/container-deployer/internal/arguments"
	"github.com/auto-dns/container-deployer/internal/config"
	"github.com/auto-dns/container-deployer/internal/domain"
	"github.com/auto-dns/container-deployer/internal/logger"
)

type contextKey string

const (
	configKey = contextKey("config")
	loggerKey = contextKey("logger")
)

type appFactory func(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (application, error)

func newApplication(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (application, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd(v *viper.Viper, flags []arguments.Flag, newApp appFactory) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           "container-deployer",
		Short:         "Build and deploy a directory of container units",
		Long:          "Discovers container units under a root directory, builds their images and starts their containers on a Docker host.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return domain.NewConfigError(v.ConfigFileUsed(), err)
			}
			logInstance := logger.SetupLogger(&cfg.Logging)
			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			ctx = context.WithValue(ctx, loggerKey, logInstance)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			phases, err := arguments.Phases(cmd.Flags())
			if err != nil {
				return err
			}
			return withApplication(cmd, newApp, func(ctx context.Context, application application) error {
				return application.Run(ctx, phases)
			})
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "set log level (e.g. INFO, DEBUG, WARN)")
	rootCmd.PersistentFlags().String("containers-dir", "", "directory holding one subdirectory per container unit")
	if err := v.BindPFlag("log.log_level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("app.containers_dir", rootCmd.PersistentFlags().Lookup("containers-dir")); err != nil {
		return nil, err
	}

	if err := arguments.Register(rootCmd.Flags(), flags); err != nil {
		return nil, err
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the live status of every container unit's containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, newApp, func(ctx context.Context, application application) error {
				_, err := application.Status(ctx)
				return err
			})
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "List deployment records kept in etcd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, newApp, func(ctx context.Context, application application) error {
				_, err := application.History(ctx)
				return err
			})
		},
	})

	return rootCmd, nil
}

// withApplication creates the application, runs fn with a context cancelled on
// SIGINT/SIGTERM, and closes the application on every path.
func withApplication(cmd *cobra.Command, newApp appFactory, fn func(ctx context.Context, application application) error) error {
	cfg := cmd.Context().Value(configKey).(*config.Config)
	logInstance := cmd.Context().Value(loggerKey).(zerolog.Logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logInstance.Info().Msgf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	application, err := newApp(ctx, cfg, logInstance)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logInstance.Warn().Err(err).Msg("Failed to release resources")
		}
	}()

	return fn(ctx, application)
}

// preParseConfigFlag finds --config before the argument document is loaded,
// since the document's location is itself configurable.
func preParseConfigFlag(args []string) string {
	fs := pflag.NewFlagSet("pre", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	configFile := fs.String("config", "", "")
	_ = fs.Parse(args)
	return *configFile
}

// Execute runs the root command and returns the process exit code.
func Execute(args []string) int {
	return execute(args, viper.New(), newApplication, os.Stderr)
}

func execute(args []string, v *viper.Viper, newApp appFactory, stderr io.Writer) int {
	configFile := preParseConfigFlag(args)
	if err := config.InitConfig(v, configFile); err != nil {
		fmt.Fprintf(stderr, "Execution error: %v\n", err)
		return exitCode(domain.NewConfigError(configFile, err))
	}

	argsFile := v.GetString("app.arguments_file")
	flags, err := arguments.Load(argsFile)
	if err != nil {
		fmt.Fprintf(stderr, "Can't find argument file %s - please reference the project documentation for the argument file\n", argsFile)
		return exitCode(err)
	}

	rootCmd, err := newRootCmd(v, flags, newApp)
	if err != nil {
		fmt.Fprintf(stderr, "Execution error: %v\n", err)
		return exitCode(domain.NewArgumentsError(argsFile, err))
	}
	rootCmd.SetArgs(args)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Execution error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}
