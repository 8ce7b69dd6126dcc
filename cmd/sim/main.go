package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/oktant/oktant/internal/core/observability/log"
	"github.com/oktant/oktant/internal/core/spatial"
	"github.com/oktant/oktant/internal/sim"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a yaml config file; defaults apply when empty")
		listenAddr = flag.String("listen", ":9090", "address for the prometheus /metrics endpoint")
		entities   = flag.Int("entities", 500, "number of simulated entities")
		frames     = flag.Int("frames", 0, "number of frames to run; 0 runs until interrupted")
	)
	flag.Parse()

	logger := log.New(log.LevelInfo).With(
		log.String("run_id", uuid.NewString()),
	)

	cfg := spatial.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = spatial.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "loading config:", err)
			os.Exit(1)
		}
	}

	mgr, err := spatial.NewManager(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "creating spatial manager:", err)
		os.Exit(1)
	}

	opts := sim.DefaultOptions()
	opts.Entities = *entities
	opts.Frames = *frames
	driver := sim.New(mgr, logger, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: *listenAddr, Handler: mux}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		defer stop()
		err := driver.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("simulation terminated", log.Err(err))
		os.Exit(1)
	}
	logger.Info("simulation finished")
}
