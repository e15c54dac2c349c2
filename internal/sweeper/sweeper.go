// Package sweeper removes stored files that no note refers to any more.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"noteshare/internal/repository"
	"noteshare/internal/storage"
)

// Sweeper periodically reconciles the file store with note metadata.
type Sweeper interface {
	Start(ctx context.Context) error
	Shutdown()
	// SweepOnce deletes unreferenced files older than the grace period and
	// returns how many were removed.
	SweepOnce(ctx context.Context) (int, error)
}

type Config struct {
	Interval time.Duration
	// Grace protects files whose upload is still being recorded.
	Grace  time.Duration
	Logger *logrus.Logger
	Now    func() time.Time
}

type sweeper struct {
	cfg     Config
	notes   repository.NoteRepository
	storage storage.Service

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg Config, notes repository.NoteRepository, store storage.Service) Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &sweeper{
		cfg:     cfg,
		notes:   notes,
		storage: store,
	}
}

func (s *sweeper) Start(ctx context.Context) error {
	if s.cancel != nil {
		return fmt.Errorf("sweeper already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
					s.cfg.Logger.Warnf("sweep storage: %v", err)
				}
			}
		}
	}()

	s.cfg.Logger.Infof("storage sweeper started, interval %s", s.cfg.Interval)
	return nil
}

func (s *sweeper) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.cfg.Logger.Info("storage sweeper stopped")
}

func (s *sweeper) SweepOnce(ctx context.Context) (int, error) {
	// list objects first so a note created in between is still seen as referenced
	objects, err := s.storage.ListObjects(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list objects: %w", err)
	}
	names, err := s.notes.FileNames(ctx)
	if err != nil {
		return 0, fmt.Errorf("list note files: %w", err)
	}

	referenced := make(map[string]struct{}, len(names))
	for _, name := range names {
		referenced[name] = struct{}{}
	}

	cutoff := s.cfg.Now().Add(-s.cfg.Grace)
	removed := 0
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if obj.LastModified == nil || obj.LastModified.After(cutoff) {
			continue
		}
		logger := s.cfg.Logger.WithFields(logrus.Fields{"file": obj.Key, "size": obj.Size})
		if err := s.storage.Delete(ctx, obj.Key); err != nil {
			logger.Warnf("remove orphaned file: %v", err)
			continue
		}
		logger.Info("removed orphaned file")
		removed++
	}
	return removed, nil
}
