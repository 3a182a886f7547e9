package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"modhost/pkg/channel"
	"modhost/pkg/channel/websocket"
	"modhost/pkg/config"
	"modhost/pkg/gateway"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Host modules behind the renderer endpoint",
	Long:  "Loads the enabled modules and serves them to renderers over WebSocket, with health, readiness and metrics endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, base, err := loadConfig(os.Stderr)
		if err != nil {
			return err
		}
		log := base.With("component", "cmd.run")

		adapters, err := enabledAdapters(cfg, base)
		if err != nil {
			return fmt.Errorf("renderer configuration invalid: %w", err)
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(runCtx, cfg, base, log, adapters)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// serve builds the host and runs the gateway until ctx is done.
func serve(ctx context.Context, cfg *config.Config, base *slog.Logger, log *slog.Logger, adapters []channel.Adapter, extra ...func(*app) channel.Adapter) error {
	a, err := newApp(cfg, base)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, build := range extra {
		adapters = append(adapters, build(a))
	}

	svc, err := gateway.NewService(cfg, gateway.Deps{
		Host:     a.host,
		Bus:      a.bus,
		Registry: a.registry,
		Metrics:  a.metrics,
		Adapters: adapters,
	}, base)
	if err != nil {
		return fmt.Errorf("initialize gateway service: %w", err)
	}

	log.Info("Module host started", "modules", strings.Join(a.modules, ","), "renderers", enabledChannelNames(adapters))
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("module host failed: %w", err)
	}
	return nil
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Renderer.Enabled {
		adapters = append(adapters, websocket.New(websocket.Config{
			Host:           cfg.Renderer.Host,
			Port:           cfg.Renderer.Port,
			AllowedOrigins: cfg.Renderer.AllowedOrigins,
		}, log))
	}

	if len(adapters) == 0 {
		return nil, errors.New("no renderers are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
