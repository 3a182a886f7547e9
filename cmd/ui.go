package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"modhost/pkg/channel"
	"modhost/pkg/ui/panel"
)

var uiLogFile string

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Host modules with the terminal panel attached",
	Long:  "Loads the enabled modules and attaches a terminal renderer that initializes every module, shows its events and edits its settings. The WebSocket endpoint runs alongside when enabled.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		var logOut io.Writer = io.Discard
		if uiLogFile != "" {
			f, err := os.OpenFile(uiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer f.Close()
			logOut = f
		}

		cfg, base, err := loadConfig(logOut)
		if err != nil {
			return err
		}
		log := base.With("component", "cmd.ui")

		var adapters []channel.Adapter
		if cfg.Renderer.Enabled {
			adapters, err = enabledAdapters(cfg, base)
			if err != nil {
				return err
			}
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		runCtx, cancel := context.WithCancel(runCtx)
		defer cancel()

		attachPanel := func(a *app) channel.Adapter {
			p := panel.New(a.modules, a.registry)
			go func() {
				select {
				case <-p.Done():
					cancel()
				case <-runCtx.Done():
				}
			}()
			return p
		}

		if err := serve(runCtx, cfg, base, log, adapters, attachPanel); err != nil {
			return err
		}
		fmt.Println(panel.Goodbye())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uiCmd)
	uiCmd.Flags().StringVar(&uiLogFile, "log-file", "", "write logs to this file instead of discarding them")
}
