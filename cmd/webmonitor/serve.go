package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"webmonitor-engine/internal/config"
	"webmonitor-engine/internal/engine"
	"webmonitor-engine/internal/events"
	"webmonitor-engine/internal/httpapi"
)

var serveFlags = []cli.Flag{
	cli.StringFlag{Name: "addr", Usage: "listen address, overrides app.addr"},
}

func serve(c *cli.Context) error {
	cfg, cfgPath, err := loadConfig(c)
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.App.Addr = addr
	}
	logger := newLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub()
	eng, err := engine.New(ctx, cfg, engine.Deps{Logger: logger, Events: hub})
	if err != nil {
		return err
	}
	defer eng.Close()

	// Config is reloadable through the API; the engine keeps the startup copy.
	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	handler := httpapi.NewRouter(httpapi.Deps{
		Engine:      eng,
		DB:          eng.DB(),
		Hub:         hub,
		CfgVal:      &cfgVal,
		UserCfgPath: cfgPath,
		LoadCfg:     func() (config.Config, error) { return config.Load(cfgPath) },
		Logger:      logger,
	})

	ln, err := net.Listen("tcp", cfg.App.Addr)
	if err != nil {
		return err
	}
	logger.Info("engine listening", "addr", "http://"+ln.Addr().String(), "db", cfg.DBPath(cfg.App.DataDir))

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// SSE streams never finish on their own; Close after the grace period.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
	}
	return nil
}
