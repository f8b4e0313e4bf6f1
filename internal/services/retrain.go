package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/nba-projections/internal/ingest"
	"github.com/jstittsworth/nba-projections/internal/models"
	"github.com/jstittsworth/nba-projections/internal/projection"
	"github.com/jstittsworth/nba-projections/internal/train"
)

// RetrainService owns the trainer and schedules nightly retrains. All
// retrains funnel through TriggerRetrain so concurrent upload/manual/cron
// triggers serialize on one mutex.
type RetrainService struct {
	trainer  *train.Trainer
	engine   *projection.Engine
	ingestor *ingest.Ingestor
	feed     *FeedFetcher // nil when no feed URL configured
	cache    *CacheService
	logger   *logrus.Logger
	schedule string
	defaults train.Options

	cron      *cron.Cron
	trainMu   sync.Mutex
	stateMu   sync.Mutex
	isRunning bool
}

func NewRetrainService(
	trainer *train.Trainer,
	engine *projection.Engine,
	ingestor *ingest.Ingestor,
	feed *FeedFetcher,
	cache *CacheService,
	logger *logrus.Logger,
	schedule string,
	defaults train.Options,
) *RetrainService {
	return &RetrainService{
		trainer:  trainer,
		engine:   engine,
		ingestor: ingestor,
		feed:     feed,
		cache:    cache,
		logger:   logger,
		schedule: schedule,
		defaults: defaults,
		cron:     cron.New(),
	}
}

// Start schedules the nightly retrain (preceded by a feed pull when a feed
// is configured).
func (s *RetrainService) Start() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.isRunning {
		return fmt.Errorf("retrain service is already running")
	}

	_, err := s.cron.AddFunc(s.schedule, s.scheduledRetrain)
	if err != nil {
		return fmt.Errorf("failed to schedule retrain: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.Infof("Retrain service started (schedule %q)", s.schedule)
	return nil
}

// Stop halts the scheduler, waiting for an in-flight job.
func (s *RetrainService) Stop() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.logger.Info("Retrain service stopped")
}

func (s *RetrainService) scheduledRetrain() {
	ctx := context.Background()

	if s.feed != nil {
		if err := s.pullFeed(ctx); err != nil {
			s.logger.Errorf("Daily feed pull failed: %v", err)
		}
	}

	opts := s.defaults
	opts.Trigger = "scheduled"
	if _, err := s.TriggerRetrain(ctx, opts); err != nil {
		s.logger.Errorf("Scheduled retrain failed: %v", err)
	}
}

func (s *RetrainService) pullFeed(ctx context.Context) error {
	body, date, err := s.feed.FetchDaily(ctx)
	if err != nil {
		return err
	}
	defer body.Close()

	result, err := s.ingestor.IngestDaily(ctx, body, date)
	if err != nil {
		return fmt.Errorf("failed to ingest feed CSV: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"date":     result.Date,
		"accepted": result.RowsAccepted,
	}).Info("Daily feed ingested")
	return nil
}

// TriggerRetrain runs one training pass and swaps the result into the
// serving engine. Safe to call concurrently.
func (s *RetrainService) TriggerRetrain(ctx context.Context, opts train.Options) (*models.TrainingRun, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	run, set, err := s.trainer.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.engine.Swap(set)

	if s.cache != nil {
		if err := s.cache.Delete(ctx, LibraryCacheKey()); err != nil {
			s.logger.Warnf("Failed to invalidate library cache: %v", err)
		}
	}
	return run, nil
}

// Defaults returns the configured training options.
func (s *RetrainService) Defaults() train.Options {
	return s.defaults
}

// ArtifactsDir is where the freshest artifact tables live.
func (s *RetrainService) ArtifactsDir() string {
	return s.trainer.ArtifactsDir()
}
