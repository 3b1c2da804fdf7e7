// Command server runs the translation job server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"layout-translator/internal/app"
	"layout-translator/internal/config"
	"layout-translator/internal/logger"
	"layout-translator/internal/results"
	"layout-translator/internal/server"
)

var (
	envFlag  = flag.String("env", ".env", "env file to load before the environment")
	addrFlag = flag.String("addr", "", "listen address (default from LT_SERVER_ADDR)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func run() error {
	cfg, err := config.Load(*envFlag)
	if err != nil {
		return err
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}
	if cfg.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := results.NewManager(cfg.Server.ResultsDir)
	if err != nil {
		return err
	}

	srv := server.New(a, store, server.Config{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})
	return srv.Run(ctx)
}
