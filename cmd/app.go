package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/killallgit/huddle/pkg/config"
	"github.com/killallgit/huddle/pkg/controllers"
	"github.com/killallgit/huddle/pkg/headless"
	"github.com/killallgit/huddle/pkg/logger"
	"github.com/killallgit/huddle/pkg/tui"
)

// AppConfig contains all configuration needed to run the application
type AppConfig struct {
	Config *config.Config
	// Watch prints events to Out instead of starting the interface
	Watch       bool
	ChatID      string
	MetricsAddr string
	Out         io.Writer
}

// loadAppConfig loads configuration and initializes the logger
func loadAppConfig() (*AppConfig, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Init(); err != nil {
		return nil, err
	}
	return &AppConfig{Config: cfg, Out: os.Stdout}, nil
}

// RunApplication is the main entry point for the application logic
func RunApplication(ctx context.Context, appCfg *AppConfig) error {
	log := logger.WithComponent("app")
	log.Info("Application starting", "api", appCfg.Config.API.URL, "user", appCfg.Config.Identity.UserID)
	defer logger.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := controllers.InitializeSession(&controllers.InitConfig{Config: appCfg.Config})
	if err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	defer session.Close()

	if appCfg.Watch {
		err = headless.Watch(ctx, session, headless.Options{
			ChatID:      appCfg.ChatID,
			MetricsAddr: appCfg.MetricsAddr,
			Out:         appCfg.Out,
		})
	} else {
		err = tui.Run(ctx, session)
	}
	if err != nil {
		log.Error("Application stopped with error", "error", err)
		return err
	}
	log.Info("Application stopped")
	return nil
}
