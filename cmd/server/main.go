// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Corphon/SocialGenius/internal/app"
	"github.com/Corphon/SocialGenius/internal/config"
	"github.com/Corphon/SocialGenius/internal/utils"
)

func main() {
	log.Println("Starting SocialGenius server...")

	cfg, err := config.Load()
	if errors.Is(err, config.ErrMissingAPIKey) {
		fmt.Fprintln(os.Stderr, err.Error())
		fmt.Fprintln(os.Stderr, "Set API_KEY (or GEMINI_API_KEY) in the environment or a .env file and restart.")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	initLogger(cfg)
	logger := utils.GetLogger().WithComponent("main")

	application, err := app.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", map[string]interface{}{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Server starting", map[string]interface{}{"url": "http://localhost:" + cfg.Port})
	if err := application.Run(ctx); err != nil {
		logger.Error("Server stopped with error", map[string]interface{}{"error": err.Error()})
		utils.GetLogger().Close()
		os.Exit(1)
	}

	logger.Info("Server stopped", nil)
	utils.GetLogger().Close()
}

// initLogger sends log lines to a dated file under LOG_DIR as well as stdout
func initLogger(cfg *config.Config) {
	logger := utils.GetLogger()
	logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))
	if cfg.DebugMode {
		logger.SetLogLevel(utils.DEBUG)
	}

	logFile := filepath.Join(cfg.LogDir, fmt.Sprintf("socialgenius_%s.log", time.Now().Format("2006-01-02")))
	if err := utils.InitLogger(logFile); err != nil {
		log.Printf("Warning: logging to stdout only: %v", err)
	}
}
