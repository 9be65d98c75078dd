package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/vresolve/internal/core/app"
	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/guiyumin/vresolve/internal/core/version"
	"github.com/guiyumin/vresolve/internal/server"
)

func main() {
	port := flag.Int("port", 0, "HTTP listen port (default: 8000)")
	configPath := flag.String("config", "", "config file (default: ~/.config/vresolve/config.yml)")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vresolve-server %s\n", version.Version)
		return
	}

	if err := run(*port, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(port int, configPath string) error {
	cfg := config.LoadOrDefault()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return err
		}
	}

	// flag > config > default
	if port > 0 {
		cfg.Server.Port = port
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}

	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	log := logging.For("main")

	gin.SetMode(gin.ReleaseMode)
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.NewServer(cfg.Server, a.Engine, a.Proxy)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	log.WithField("version", version.Version).Info("vresolve server")
	return srv.Start()
}
