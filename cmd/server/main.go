package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/iconidentify/toolkit/internal/api"
	"github.com/iconidentify/toolkit/internal/api/handler"
	"github.com/iconidentify/toolkit/internal/config"
	"github.com/iconidentify/toolkit/internal/downloader"
	"github.com/iconidentify/toolkit/internal/readiness"
	"github.com/iconidentify/toolkit/internal/repository"
	"github.com/iconidentify/toolkit/internal/service"
	"github.com/iconidentify/toolkit/internal/worker"
	"github.com/iconidentify/toolkit/internal/workspace"
	"github.com/iconidentify/toolkit/pkg/ffmpeg"
	"github.com/iconidentify/toolkit/pkg/rembg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("toolkit %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration before the logger so LOG_LEVEL applies from the start.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting toolkit",
		"version", Version,
		"build_time", BuildTime,
		"environment", cfg.Environment,
	)

	// Working root; anything left there belongs to a previous process.
	ws, err := workspace.New(cfg.Storage.WorkPath, logger)
	if err != nil {
		logger.Error("failed to create work directory", "error", err)
		os.Exit(1)
	}
	if n := ws.PurgeStale(); n > 0 {
		logger.Info("purged stale job directories", "count", n)
	}

	// Job history
	var jobRepo repository.JobRepository
	if cfg.Storage.HistoryDB != "" {
		sqliteRepo, err := repository.NewSQLiteJobRepository(context.Background(), cfg.Storage.HistoryDB)
		if err != nil {
			logger.Error("failed to open job history", "path", cfg.Storage.HistoryDB, "error", err)
			os.Exit(1)
		}
		defer sqliteRepo.Close()
		jobRepo = sqliteRepo
		logger.Info("job history persisted", "path", cfg.Storage.HistoryDB)
	} else {
		jobRepo = repository.NewInMemoryJobRepository(0)
	}

	// External tools
	ytdlp := downloader.NewYTDLP(downloader.YTDLPConfig{
		Executable: cfg.Download.YTDLPPath,
		FFmpegPath: cfg.Download.FFmpegPath,
	}, logger)
	processor := ffmpeg.NewProcessor(ffmpeg.Config{FFmpegPath: cfg.Download.FFmpegPath}, logger)
	rembgClient := rembg.NewClient(rembg.Config{
		BaseURL: cfg.Rembg.BaseURL,
		Model:   cfg.Rembg.Model,
		Timeout: cfg.Rembg.Timeout,
	})

	// Readiness probes run in the background so the server accepts
	// connections while dependencies come up.
	deps := readiness.NewTracker(logger, readiness.YTDLP, readiness.FFmpeg, readiness.Rembg)
	probeCtx, cancelProbes := context.WithCancel(context.Background())
	var probes sync.WaitGroup
	watch := func(name string, probe readiness.Probe) {
		probes.Add(1)
		go func() {
			defer probes.Done()
			deps.Watch(probeCtx, name, probe, readiness.DefaultRetryConfig(), cfg.Download.ProbeInterval)
		}()
	}

	watch(readiness.YTDLP, func(ctx context.Context) error {
		if cfg.Download.AutoInstall {
			if err := ytdlp.EnsureInstalled(ctx); err != nil {
				return err
			}
		}
		return ytdlp.Probe(ctx)
	})
	watch(readiness.FFmpeg, func(ctx context.Context) error {
		if err := processor.Locate(ctx); err != nil {
			if !cfg.Download.AutoInstall {
				return err
			}
			ffmpegPath, ffprobePath, ierr := ytdlp.InstallFFmpeg(ctx)
			if ierr != nil {
				return errors.Join(err, ierr)
			}
			if err := processor.Use(ffmpegPath, ffprobePath); err != nil {
				return err
			}
		}
		ytdlp.SetFFmpegPath(processor.FFmpegPath())
		return nil
	})
	watch(readiness.Rembg, rembgClient.Ping)

	// Initialize worker pool
	pool := worker.NewPool(worker.Config{Workers: cfg.Worker.Count}, logger)

	// Initialize services
	downloadSvc := service.NewDownloadService(
		ytdlp,
		ytdlp,
		processor,
		ws,
		pool,
		jobRepo,
		deps,
		service.DownloadConfig{
			Timeout:      cfg.Download.Timeout,
			MinFreeBytes: cfg.Storage.MinFreeBytes,
		},
		logger,
	)
	imageSvc := service.NewImageService(rembgClient, deps, logger)

	// Setup router
	router := api.NewRouter(api.Handlers{
		Health: handler.NewHealthHandler(deps, jobRepo, pool, ws),
		Media:  handler.NewMediaHandler(downloadSvc, logger),
		Image:  handler.NewImageHandler(imageSvc, cfg.Server.MaxUploadBytes(), logger),
		Jobs:   handler.NewJobHandler(jobRepo, logger),
	}, api.RouterConfig{
		APIKey:         cfg.Server.APIKey,
		AllowedOrigins: cfg.Server.Origins(),
	})

	if cfg.Server.APIKey == "" && cfg.IsProduction() {
		logger.Warn("API_KEY is not set; /api/v1 is open")
	}

	// Setup HTTP server
	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	cancelProbes()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	shutdown(ctx, srv, pool, 10*time.Second, logger)

	probes.Wait()
	logger.Info("shutdown complete")
}
