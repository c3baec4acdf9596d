// Command davserver publishes a filesystem over WebDAV. With a
// configured root directory it serves the native tree; without one it
// serves a fresh in-memory tree, which makes it a zero-setup scratch
// share. Prometheus metrics are exposed alongside the share.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/anyfs/anyfs/cachefs"
	"github.com/anyfs/anyfs/expose/davserver"
	"github.com/anyfs/anyfs/internal/config"
	"github.com/anyfs/anyfs/internal/logging"
	"github.com/anyfs/anyfs/memfs"
	"github.com/anyfs/anyfs/osfs"
	"github.com/anyfs/anyfs/vfs"
	"github.com/anyfs/anyfs/watchfs"
)

func main() {
	cfg := config.LoadOrDefault()
	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		os.Stderr.WriteString("logging init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	fsys, err := buildFS(cfg, log.Logger)
	if err != nil {
		log.Fatal("filesystem init failed", zap.Error(err))
	}
	defer fsys.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", davserver.Handler(fsys, log.Logger))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("serving webdav",
			zap.String("addr", cfg.Server.Addr),
			zap.String("root", cfg.Server.Root))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
}

// buildFS assembles the served stack: a native or in-memory backend,
// change interception, and a metadata cache in front of native trees.
func buildFS(cfg *config.Config, log *zap.Logger) (vfs.FS, error) {
	if cfg.Server.Root == "" {
		return watchfs.New(memfs.New(), watchfs.WithLogger(log)), nil
	}
	base, err := osfs.New(cfg.Server.Root)
	if err != nil {
		return nil, err
	}
	cached := cachefs.New(base, cfg.Cache.Timeout)
	return watchfs.New(cached, watchfs.WithLogger(log)), nil
}
