package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"channel-archiver/internal/config"
	"channel-archiver/internal/domain"
	"channel-archiver/internal/engine"
	"channel-archiver/internal/enumerate"
	"channel-archiver/internal/orchestrator"
	"channel-archiver/internal/registry"
	"channel-archiver/internal/repository/sqlite"
	"channel-archiver/internal/service"
	"channel-archiver/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	taskRepo := sqlite.NewTaskRepository(db)
	videoRepo := sqlite.NewVideoRepository(db)
	historyRepo := sqlite.NewHistoryRepository(db)
	settingsRepo := sqlite.NewSettingsRepository(db)

	if err := taskRepo.Init(ctx); err != nil {
		logger.Fatalf("init task repository: %v", err)
	}
	if err := videoRepo.Init(ctx); err != nil {
		logger.Fatalf("init video repository: %v", err)
	}
	if err := historyRepo.Init(ctx); err != nil {
		logger.Fatalf("init history repository: %v", err)
	}
	if err := settingsRepo.Init(ctx); err != nil {
		logger.Fatalf("init settings repository: %v", err)
	}

	taskService := service.NewTaskService(taskRepo)

	youtube := engine.NewYouTubeClient(cfg.Extractor.YouTubeURL, cfg.Extractor.Token)
	bilibili := engine.NewBilibiliClient(cfg.Extractor.BilibiliURL, cfg.Extractor.Token)

	enumerator := enumerate.NewEnumerator(map[domain.Platform]enumerate.Engine{
		domain.PlatformYouTube:  youtube,
		domain.PlatformBilibili: bilibili,
	}, logger)

	adapters := map[domain.Platform]engine.Adapter{
		domain.PlatformYouTube:  youtube,
		domain.PlatformBilibili: bilibili,
	}

	var archive storage.Service
	if cfg.Storage.Bucket != "" {
		archive, err = buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
	}

	active := registry.NewActiveDownloads()

	processor := orchestrator.NewProcessor(orchestrator.Config{
		BatchSize:     cfg.Acquisition.BatchSize,
		ItemDelay:     cfg.Acquisition.ItemDelay,
		PollInterval:  cfg.Acquisition.PollInterval,
		ArchivePrefix: cfg.Storage.KeyPrefix,
		Logger:        logger,
	}, orchestrator.Deps{
		Tasks:    taskService,
		Videos:   videoRepo,
		History:  historyRepo,
		Settings: settingsRepo,
		Enum:     enumerator,
		Adapters: adapters,
		Active:   active,
		Archive:  archive,
	})

	orch := orchestrator.NewOrchestrator(taskService, processor, archive, cfg.Storage.KeyPrefix, logger)

	if err := orch.Resume(ctx); err != nil {
		logger.Warnf("resume tasks: %v", err)
	}

	logger.Info("channel archiver started")
	<-ctx.Done()
	logger.Info("shutting down...")
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, cfg.Storage.Bucket), nil
}
