package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yaoapp/kun/log"
	"gwi.com/docqa/internal/api"
	"gwi.com/docqa/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppConfig

		app, err := NewApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		router := api.NewRouter(api.NewAPIHandler(app.Manager, app.Loader))
		serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
		srv := &http.Server{
			Addr:         serverAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: cfg.LLMTimeout + 30*time.Second, // queries wait on the model
			IdleTimeout:  120 * time.Second,
		}

		errs := make(chan error, 1)
		go func() {
			log.Info("Starting server on %s", serverAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("could not listen on %s: %w", serverAddr, err)
			}
			close(errs)
		}()
		fmt.Println(color.GreenString("docqa listening on http://localhost%s/api", serverAddr))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errs:
			if err != nil {
				return err
			}
		}
		log.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		log.Info("Server exiting gracefully")
		return nil
	},
}
