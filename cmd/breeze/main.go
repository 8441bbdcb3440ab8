// Command breeze runs the file-hosting server: authenticated uploads,
// bounded in-memory cache, disk-backed persistence, and range-capable
// downloads.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"breeze/internal/cache"
	"breeze/internal/config"
	"breeze/internal/deletiontoken"
	"breeze/internal/diskstore"
	"breeze/internal/engine"
	"breeze/internal/httpapi"
)

// version is stamped at build time via linker flags; "dev" otherwise.
var version = "dev"

// Logger is designed to be satisfied by log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

func main() {
	app := &cli.App{
		Name:    "breeze",
		Usage:   "a small, authenticated file-hosting server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to the breeze TOML config file",
				Required: true,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal("breeze terminated: ", err)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}

	cfg.ErrorLogger.Printf("breeze %s starting up", version)

	adjustRlimit(cfg.ErrorLogger)

	disk, err := diskstore.New(cfg.Engine.Disk.SavePath, cfg.ErrorLogger)
	if err != nil {
		return err
	}

	c := cache.New(cache.Config{
		MemCapacity:    cfg.Engine.Cache.MemCapacity,
		MaxLength:      cfg.Engine.Cache.MaxLength,
		UploadLifetime: cfg.CacheUploadLifetime(),
		ScanFreq:       cfg.CacheScanFreq(),
	}, cfg.ErrorLogger)

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go c.Scanner(sctx)

	eng, err := engine.New(engine.Config{
		BaseURL:         cfg.Engine.BaseURL,
		UploadKey:       cfg.Engine.UploadKey,
		DeletionSecret:  cfg.Engine.DeletionSecret,
		MaxUploadLen:    cfg.MaxUploadLenPtr(),
		MaxTempLifetime: cfg.MaxTempLifetime(),
		MaxStripLen:     cfg.Engine.MaxStripLen,
		Motd:            cfg.Engine.Motd,
	}, c, disk, cfg.ErrorLogger)
	if err != nil {
		return err
	}

	verifier := deletiontoken.New(cfg.Engine.DeletionSecret)
	if verifier == nil {
		cfg.ErrorLogger.Printf("no deletion_secret configured: the /del endpoint will return 409")
	}

	srv := httpapi.New(eng, verifier, cfg.Engine.UploadKey, version, cfg.AccessLogger, cfg.ErrorLogger)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.ListenOn,
		Handler: srv.Handler(),
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sctx.Done()
		cfg.ErrorLogger.Printf("received shutdown signal, draining connections")
		_ = httpServer.Shutdown(context.Background())
	}()

	cfg.ErrorLogger.Printf("listening on %s", cfg.HTTP.ListenOn)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// ListenAndServe returns as soon as Shutdown begins; wait for the
	// in-flight requests to drain.
	<-shutdownDone
	return nil
}
