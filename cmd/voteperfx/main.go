package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1000xsh/voteperfx/pkg/config"
	"github.com/1000xsh/voteperfx/pkg/logging"
	"github.com/1000xsh/voteperfx/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           config.AppName,
		Short:         config.AppDescription,
		Long:          config.AppDescription + "\n\n" + config.HelpNote,
		Version:       version.Info().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error loading configuration: %v\n", err)
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = run(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			return err
		},
	}
	cmd.SetVersionTemplate("{{.Name}} version {{.Version}}\n")
	config.RegisterFlags(cmd.Flags())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info().String())
		},
	}
}

// run starts the monitor in the configured mode and blocks until ctx is
// cancelled, the dashboard is closed, or the engine gives up reconnecting.
func run(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logCfg := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: stderr}

	var dash *Dashboard
	if cfg.Mode == config.ModeDashboard {
		dash = NewDashboard(cfg)
		logCfg.Output = dash.LogWriter()
	}
	logger := logging.NewLoggerFromConfig(logCfg)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	errc := make(chan error, 1)
	go func() {
		err := a.Run(ctx)
		cancel()
		errc <- err
	}()

	if dash != nil {
		dash.Attach(a.engine, a.telemetry)
		if err := dash.Run(ctx); err != nil {
			cancel()
			<-errc
			return err
		}
		cancel()
	} else {
		NewCLI(a.engine, a.telemetry, cfg, logger).Run(ctx)
	}

	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
