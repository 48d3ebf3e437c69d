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

	"plant_inspection/internal/config"
	"plant_inspection/internal/delivery"
	"plant_inspection/internal/infrastructure"
	"plant_inspection/internal/metrics"
	"plant_inspection/internal/repository"
	"plant_inspection/internal/usecase"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Plant inspection HTTP API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to $CONFIG_FILE)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closeLog := config.SetupLogger(cfg.Log.File, cfg.LogLevel())
	defer closeLog()

	time.Local = cfg.Location()

	// 1. Storage
	store, err := repository.Open(ctx, repository.Options{
		Driver:      cfg.Storage.Driver,
		SQLitePath:  cfg.Storage.SQLitePath,
		DatabaseURL: cfg.Storage.DatabaseURL,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// 2. Photos
	photos, err := infrastructure.OpenPhotoStorage(ctx, infrastructure.PhotoOptions{
		UploadDir: cfg.Photos.UploadDir,
		S3: infrastructure.S3Config{
			Region:          cfg.Photos.Region,
			Bucket:          cfg.Photos.Bucket,
			Endpoint:        cfg.Photos.Endpoint,
			AccessKeyID:     cfg.Photos.AccessKeyID,
			SecretAccessKey: cfg.Photos.SecretAccessKey,
			PathStyle:       cfg.Photos.PathStyle,
		},
	})
	if err != nil {
		return fmt.Errorf("open photo storage: %w", err)
	}
	var uploadDir string
	if fs, ok := photos.(*infrastructure.FileSystemStorage); ok {
		uploadDir = fs.BasePath()
		logger.Info("using filesystem photo storage", "dir", uploadDir)
	} else {
		logger.Info("using s3 photo storage", "bucket", cfg.Photos.Bucket)
	}

	rec, err := metrics.NewRecorder()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// 3. Use cases
	templateUC := usecase.NewTemplateUseCase(store, logger, rec)
	personUC := usecase.NewPersonUseCase(store, logger, rec)
	inspectionUC := usecase.NewInspectionUseCase(store, photos, logger, rec)
	stepUC := usecase.NewStepResultUseCase(store, photos, nil, logger, rec)
	analyticsUC := usecase.NewAnalyticsUseCase(store, photos, logger, cfg.Location())
	ocrUC := usecase.NewOCRUseCase(logger)

	// 4. Delivery
	handler := delivery.NewRouter(delivery.RouterConfig{
		Admin:     delivery.NewAdminHandler(templateUC, personUC, logger),
		Public:    delivery.NewPublicHandler(inspectionUC, stepUC, analyticsUC, ocrUC, logger, cfg.Location()),
		UploadDir: uploadDir,
		Metrics:   rec,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port, "driver", cfg.Storage.Driver, "timezone", cfg.Location().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	return nil
}
