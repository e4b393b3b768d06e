package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/detection"
	"github.com/shenikar/traffic_incident_system/internal/reporter"
	"github.com/shenikar/traffic_incident_system/internal/repository/sqlite"
	"github.com/shenikar/traffic_incident_system/internal/vision"
	"github.com/shenikar/traffic_incident_system/pkg/logger"
	redisclient "github.com/shenikar/traffic_incident_system/pkg/redis"
)

func newQueue(ctx context.Context, cfg *config.Config, log *logrus.Logger) (reporter.Queue, func()) {
	if cfg.ReporterQueueBackend != "redis" {
		return reporter.NewMemoryQueue(cfg.ReporterQueueSize), func() {}
	}

	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Info("Successfully connected to Redis")
	return reporter.NewRedisQueue(redisClient, cfg.ReporterQueueSize), func() { redisClient.Close() }
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadDetectorConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// SIGINT/SIGTERM останавливают циклы обнаружения
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Классификатор объектов обязателен: без модели детектор не запускается
	objects, err := vision.NewObjectClassifier(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize object classifier: %v", err)
	}

	// Хранилище недоставленных кандидатов
	var deadLetters reporter.DeadLetterStore
	if cfg.DeadLetterPath != "" {
		store, err := sqlite.Open(ctx, cfg.DeadLetterPath)
		if err != nil {
			log.Fatalf("Failed to open dead letter store: %v", err)
		}
		defer store.Close()
		deadLetters = store
		log.WithField("path", cfg.DeadLetterPath).Info("Dead letter store opened")
	}

	queue, closeQueue := newQueue(ctx, cfg, log)
	defer closeQueue()

	// Reporter живет дольше циклов обнаружения, чтобы успеть доставить очередь при остановке
	rep := reporter.NewReporter(cfg, queue, reporter.NewHTTPSender(cfg), deadLetters, log)
	rep.Start(context.Background())

	// Один цикл обнаружения на камеру
	var (
		wg        sync.WaitGroup
		pipelines []*detection.Pipeline
	)
	for _, camera := range cfg.Cameras {
		source, err := vision.NewFrameSource(camera)
		if err != nil {
			log.WithError(err).WithField("camera_id", camera.ID).Error("Failed to open frame source, camera skipped")
			continue
		}

		pipeline := detection.NewPipeline(cfg, camera, source, objects, rep, log)
		pipelines = append(pipelines, pipeline)

		wg.Add(1)
		go func(camera config.Camera, source detection.FrameSource) {
			defer wg.Done()
			defer source.Close()
			if err := pipeline.Run(ctx); err != nil {
				log.WithError(err).WithField("camera_id", camera.ID).Error("Detection loop failed")
			}
		}(camera, source)
	}
	if len(pipelines) == 0 {
		log.Fatal("No camera could be started")
	}
	log.Infof("Detector started with %d camera(s)", len(pipelines))

	// Периодический вывод счетчиков
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if cfg.StatsLogInterval > 0 {
		ticker := time.NewTicker(cfg.StatsLogInterval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-done:
				break loop
			case <-ticker.C:
				logStats(log, pipelines, rep)
			}
		}
	} else {
		<-done
	}

	log.Info("Detection loops stopped, shutting down reporter...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := rep.Close(shutdownCtx, cfg.ReporterDrainOnShutdown); err != nil {
		log.WithError(err).Warn("Reporter did not drain completely")
	}

	logStats(log, pipelines, rep)
	log.Info("Detector gracefully stopped")
}

func logStats(log *logrus.Logger, pipelines []*detection.Pipeline, rep *reporter.Reporter) {
	fields := logrus.Fields{"reporter": rep.Stats()}
	perCamera := make(map[string]detection.PipelineStats, len(pipelines))
	for _, p := range pipelines {
		perCamera[p.CameraID()] = p.Stats()
	}
	fields["pipelines"] = perCamera
	log.WithFields(fields).Info("Detector stats")
}
