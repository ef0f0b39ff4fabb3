package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gopan-drive/config"
	"gopan-drive/internal/ai"
	"gopan-drive/internal/api"
	"gopan-drive/internal/auth"
	"gopan-drive/internal/drive"
	"gopan-drive/internal/events"
	"gopan-drive/internal/filetree"
	"gopan-drive/internal/logger"
	"gopan-drive/internal/payment"
	"gopan-drive/internal/storage"
	"gopan-drive/internal/upload"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "gopan-drive",
	Short:         "In-memory cloud drive server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Write the welcome snapshot new drives start with",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return filetree.WriteSnapshot(out, drive.WelcomeSeed())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to Config.json (default: next to the binary, then the working directory)")
	rootCmd.AddCommand(seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	policy, err := cfg.Quota.Policy()
	if err != nil {
		return err
	}

	// Initialize MinIO
	var blobs storage.Blobs = storage.NewMemory()
	if cfg.MinIO.Enabled {
		m, err := storage.NewMinIO(ctx, &cfg.MinIO)
		if err != nil {
			return fmt.Errorf("failed to initialize MinIO: %w", err)
		}
		blobs = m
	}

	seed := drive.WelcomeSeed()
	if cfg.SeedFile != "" {
		seed, err = filetree.LoadSnapshotFile(cfg.SeedFile)
		if err != nil {
			return err
		}
	}

	broadcaster := events.NewBroadcaster()
	drives := drive.NewRegistry(drive.Options{
		Policy: policy,
		Upload: upload.Options{
			Tick:     cfg.Upload.TickInterval(),
			Step:     cfg.Upload.Step,
			Precheck: cfg.Upload.Precheck,
		},
		ShareBaseURL: cfg.Share.BaseURL,
		Blobs:        blobs,
		Events:       broadcaster,
		Seed:         &seed,
	})
	defer drives.Close()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(api.Deps{
		Config:    cfg,
		Auth:      auth.NewService(&cfg.JWT),
		Drives:    drives,
		Events:    broadcaster,
		Purchaser: payment.NewSimulator(policy, cfg.Payment.DelayDuration()),
		Analyzer: ai.New(ai.GeminiConfig{
			APIKey:        cfg.AI.APIKey,
			Model:         cfg.AI.Model,
			Endpoint:      cfg.AI.Endpoint,
			Timeout:       cfg.AI.TimeoutDuration(),
			RatePerMinute: cfg.AI.RatePerMinute,
		}),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server exited")
	return nil
}
