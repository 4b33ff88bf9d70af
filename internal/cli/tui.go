package cli

import (
	"context"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/yaoapp/kun/log"
	"gwi.com/docqa/internal/config"
	"gwi.com/docqa/internal/tui"
	"gwi.com/docqa/internal/watch"
)

const tuiLogFile = "logs/docqa-tui.log"

var watchDir string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppConfig
		// The screen belongs to the TUI.
		if cfg.LogFile == "" {
			cfg.LogFile = tuiLogFile
			config.SetupLogging(cfg)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		app, err := NewApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		session, err := app.Manager.Create()
		if err != nil {
			return err
		}

		var dropped <-chan string
		if watchDir != "" {
			w, err := watch.NewWatcher(app.Loader.Supports, watch.DefaultSettle)
			if err != nil {
				return err
			}
			defer w.Close()
			if dropped, err = w.Watch(ctx, watchDir); err != nil {
				return err
			}
			log.Info("Watching %s for documents", filepath.Clean(watchDir))
		}

		_, err = tea.NewProgram(tui.New(session, dropped), tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	tuiCmd.Flags().StringVarP(&watchDir, "watch", "w", "", "Load the first document dropped into this directory")
}
