// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/voidhawk9/autoteller/internal/browser"
	"github.com/voidhawk9/autoteller/internal/command"
	"github.com/voidhawk9/autoteller/internal/config"
	"github.com/voidhawk9/autoteller/internal/cookies"
	"github.com/voidhawk9/autoteller/internal/observability"
	"github.com/voidhawk9/autoteller/internal/store"
)

// app carries the configuration and logger resolved by the root command's
// PersistentPreRunE into the subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCommand builds a fresh command tree. A new instance per execution
// keeps flag state from leaking between runs.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     "autoteller",
		Short:   "Autoteller drives a headless browser through remote-invocable automation commands.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.bootstrap()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./autoteller.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(a.newRunCommand())
	root.AddCommand(a.newServeCommand())
	root.AddCommand(newVersionCommand())

	return root
}

// Execute runs the CLI with signal-aware context propagation.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed.", zap.Error(err))
		return err
	}
	return nil
}

// bootstrap loads configuration and initializes the global logger. Runs
// before every subcommand.
func (a *app) bootstrap() error {
	v := viper.New()
	config.SetDefaults(v)
	config.BindEnv(v)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("autoteller")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and environment variables apply.
	}

	cfg, err := config.New(v)
	if err != nil {
		observability.Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "autoteller"})
		return err
	}

	observability.Initialize(cfg.Logger)
	a.cfg = cfg
	a.logger = observability.GetLogger()
	return nil
}

// buildDispatcher assembles the dispatcher and its collaborators. The
// returned store is nil when auditing is disabled; the cleanup releases the
// database pool otherwise.
func (a *app) buildDispatcher(ctx context.Context) (*command.Dispatcher, *store.Store, func(), error) {
	cookieStore, err := cookies.NewStore(a.cfg.Cookies.BaseDir, a.logger)
	if err != nil {
		return nil, nil, nil, err
	}

	launcher := browser.NewLauncher(a.cfg, a.logger)

	cleanup := func() {}
	var auditStore *store.Store
	if a.cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, a.cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		auditStore, err = store.New(ctx, pool, a.logger)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		cleanup = pool.Close
		a.logger.Info("Invocation auditing enabled.")
	}

	var audit command.AuditRecorder
	if auditStore != nil {
		audit = auditStore
	}
	return command.NewDispatcher(a.cfg, a.logger, launcher, cookieStore, audit), auditStore, cleanup, nil
}
