// Package service owns the cached dataset and turns it into the view models
// served by the dashboard and the JSON API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"airquality-server/internal/modules/airquality/analysis"
	"airquality-server/internal/modules/airquality/dataset"
	"airquality-server/internal/modules/airquality/repository"
	"airquality-server/internal/modules/airquality/types"
	"airquality-server/internal/observability"
)

// Loader reads a dataset from its source.
type Loader interface {
	Load(ctx context.Context, source string) (*types.Dataset, error)
}

// Notifier receives the RFM summary after every load from the source.
type Notifier interface {
	PublishJSON(v any) error
}

type Options struct {
	Source string
	// TTL bounds how long a loaded dataset is served before the source is
	// read again. Zero disables caching.
	TTL time.Duration
	// Threshold is the RFM high-pollution level; nil selects
	// analysis.DefaultThreshold. Zero is a valid threshold.
	Threshold *float64
	Logger    *slog.Logger
	Notifier  Notifier
}

type Service struct {
	loader    Loader
	repo      repository.SnapshotRepository
	source    string
	ttl       time.Duration
	threshold float64
	logger    *slog.Logger
	notifier  Notifier
	now       func() time.Time

	mu      sync.Mutex
	cached  *types.Dataset
	expires time.Time
	// gen is bumped by Invalidate; a load started under an older gen is
	// returned to its caller but never cached or persisted.
	gen uint64

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewService wires the dataset provider. repo may be nil, in which case no
// snapshot is read or written.
func NewService(loader Loader, repo repository.SnapshotRepository, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := analysis.DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	return &Service{
		loader:    loader,
		repo:      repo,
		source:    opts.Source,
		ttl:       opts.TTL,
		threshold: threshold,
		logger:    logger,
		notifier:  opts.Notifier,
		now:       time.Now,
	}
}

func (s *Service) Source() string { return s.source }

func (s *Service) Threshold() float64 { return s.threshold }

// Dataset returns the current dataset, reading through memory, the stored
// snapshot and finally the source.
func (s *Service) Dataset(ctx context.Context) (*types.Dataset, error) {
	now := s.now()

	s.mu.Lock()
	if s.cached != nil && s.ttl > 0 && now.Before(s.expires) {
		ds := s.cached
		s.mu.Unlock()
		observability.RecordCacheLookup("memory", true)
		return ds, nil
	}
	gen := s.gen
	s.mu.Unlock()
	observability.RecordCacheLookup("memory", false)

	if ds := s.freshSnapshot(ctx, now); ds != nil {
		s.store(ds, ds.LoadedAt.Add(s.ttl), gen)
		return ds, nil
	}

	ds, err := s.loadSource(ctx, gen)
	if err != nil {
		return nil, err
	}
	s.store(ds, s.now().Add(s.ttl), gen)
	return ds, nil
}

// Status reports the dataset currently held in memory without loading.
func (s *Service) Status() DatasetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := DatasetStatus{Source: s.source}
	if s.cached != nil {
		st.Loaded = true
		st.Rows = len(s.cached.Readings)
		st.LoadedAt = s.cached.LoadedAt
		st.Expired = s.ttl == 0 || !s.now().Before(s.expires)
	}
	return st
}

// Invalidate drops the in-memory dataset and the stored snapshot so the next
// call reads the source.
func (s *Service) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.cached = nil
	s.expires = time.Time{}
	s.gen++
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.DeleteSnapshot(ctx, s.source); err != nil {
			s.logger.Warn("delete snapshot", "source", s.source, "error", err)
		}
	}
	s.logger.Info("dataset invalidated", "source", s.source)
}

// Refresh invalidates and immediately reloads the dataset.
func (s *Service) Refresh(ctx context.Context) (*types.Dataset, error) {
	s.Invalidate(ctx)
	return s.Dataset(ctx)
}

// RecentLoads returns the newest entries of the load log.
func (s *Service) RecentLoads(ctx context.Context, limit int) ([]types.LoadRecord, error) {
	if s.repo == nil {
		return []types.LoadRecord{}, nil
	}
	return s.repo.RecentLoads(ctx, limit)
}

// StartScheduler refreshes the dataset on the given standard cron spec.
func (s *Service) StartScheduler(spec string, timeout time.Duration) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		if _, err := s.Refresh(ctx); err != nil {
			s.logger.Error("scheduled refresh failed", "source", s.source, "error", err)
			return
		}
		s.logger.Info("scheduled refresh done", "source", s.source, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule refresh %q: %w", spec, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("refresh scheduler started", "spec", spec)
	return nil
}

// Stop waits for a running scheduled refresh and stops the scheduler.
func (s *Service) Stop() {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Watch invalidates the dataset whenever the local source file changes. It
// blocks until ctx is done.
func (s *Service) Watch(ctx context.Context) error {
	if dataset.IsRemote(s.source) {
		return fmt.Errorf("watch %s: not a local file", s.source)
	}
	fw, err := dataset.NewFileWatcher(s.source, s.logger)
	if err != nil {
		return err
	}
	s.logger.Info("watching source file", "path", s.source)

	err = fw.Run(ctx, func() { s.Invalidate(ctx) })
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// store caches ds unless Invalidate ran since gen was read.
func (s *Service) store(ds *types.Dataset, expires time.Time, gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding dataset loaded before invalidation", "source", s.source)
		return
	}
	s.cached = ds
	s.expires = expires
	s.mu.Unlock()
	observability.DatasetRows.Set(float64(len(ds.Readings)))
}

func (s *Service) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Service) freshSnapshot(ctx context.Context, now time.Time) *types.Dataset {
	if s.repo == nil || s.ttl <= 0 {
		return nil
	}

	start := time.Now()
	ds, err := s.repo.LoadSnapshot(ctx, s.source)
	if errors.Is(err, repository.ErrNoSnapshot) {
		observability.RecordCacheLookup("snapshot", false)
		return nil
	}
	if err != nil {
		s.logger.Warn("load snapshot", "source", s.source, "error", err)
		observability.RecordCacheLookup("snapshot", false)
		return nil
	}
	if !now.Before(ds.LoadedAt.Add(s.ttl)) {
		observability.RecordCacheLookup("snapshot", false)
		return nil
	}

	observability.RecordCacheLookup("snapshot", true)
	observability.RecordLoad(types.OriginSnapshot, nil, time.Since(start).Seconds())
	s.recordLoad(ctx, types.LoadRecord{
		Source:     s.source,
		Origin:     types.OriginSnapshot,
		Rows:       len(ds.Readings),
		DurationMS: time.Since(start).Milliseconds(),
		LoadedAt:   now,
	})
	s.logger.Debug("dataset served from snapshot", "source", s.source, "loaded_at", ds.LoadedAt)
	return ds
}

func (s *Service) loadSource(ctx context.Context, gen uint64) (*types.Dataset, error) {
	start := time.Now()
	ds, err := s.loader.Load(ctx, s.source)
	elapsed := time.Since(start)
	observability.RecordLoad(types.OriginSource, err, elapsed.Seconds())

	rec := types.LoadRecord{
		Source:     s.source,
		Origin:     types.OriginSource,
		DurationMS: elapsed.Milliseconds(),
		LoadedAt:   s.now(),
	}
	if err != nil {
		rec.Error = err.Error()
		s.recordLoad(ctx, rec)
		s.logger.Error("dataset load failed", "source", s.source, "error", err)
		return nil, err
	}
	rec.Rows = len(ds.Readings)
	s.recordLoad(ctx, rec)

	if s.repo != nil && s.ttl > 0 && s.current(gen) {
		if err := s.repo.SaveSnapshot(ctx, ds); err != nil {
			s.logger.Warn("save snapshot", "source", s.source, "error", err)
		}
		// Invalidate may have run while saving; its delete could have
		// happened first.
		if !s.current(gen) {
			if err := s.repo.DeleteSnapshot(ctx, s.source); err != nil {
				s.logger.Warn("delete snapshot", "source", s.source, "error", err)
			}
		}
	}

	s.notify(ds)
	return ds, nil
}

func (s *Service) recordLoad(ctx context.Context, rec types.LoadRecord) {
	if s.repo == nil {
		return
	}
	if err := s.repo.RecordLoad(ctx, rec); err != nil {
		s.logger.Warn("record load", "source", rec.Source, "error", err)
	}
}

type rfmNotification struct {
	Source    string         `json:"source"`
	LoadedAt  time.Time      `json:"loaded_at"`
	Threshold float64        `json:"threshold"`
	Rows      []types.RFMRow `json:"rows"`
}

// notify publishes in the background; a slow broker never delays a request.
func (s *Service) notify(ds *types.Dataset) {
	if s.notifier == nil {
		return
	}
	msg := rfmNotification{
		Source:    ds.Source,
		LoadedAt:  ds.LoadedAt,
		Threshold: s.threshold,
		Rows:      analysis.RFM(ds.Readings, s.threshold),
	}
	go func() {
		err := s.notifier.PublishJSON(msg)
		observability.RecordNotification(err)
		if err != nil {
			s.logger.Warn("publish rfm summary", "source", ds.Source, "error", err)
		}
	}()
}
