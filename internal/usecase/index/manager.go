// Package index makes sure the vector index exists with the expected shape
// before ingestion writes to it.
package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// Mode selects what Ensure does with an index that already exists.
type Mode string

const (
	// ModeKeep leaves an existing index in place (non-destructive).
	ModeKeep Mode = "keep"
	// ModeRecreate deletes an existing index and creates it again (destructive).
	ModeRecreate Mode = "recreate"
)

const (
	// DefaultCreateTimeout bounds index creation when none is configured.
	DefaultCreateTimeout = 30 * time.Second

	readyPollInterval = 100 * time.Millisecond
	readyWaitFactor   = 10
)

// ManagerConfig configures the index lifecycle.
type ManagerConfig struct {
	Name          string
	Dimension     int
	CreateTimeout time.Duration
	Mode          Mode
}

// Manager implements the index lifecycle.
type Manager struct {
	admin  Admin
	cfg    ManagerConfig
	logger *zap.Logger
}

// NewManager validates the configuration and creates a Manager.
func NewManager(admin Admin, cfg ManagerConfig, logger *zap.Logger) (*Manager, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("index name is required: %w", domain.ErrInvalidConfiguration)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d: %w", cfg.Dimension, domain.ErrInvalidConfiguration)
	}
	if cfg.CreateTimeout < 0 {
		return nil, fmt.Errorf("create timeout must not be negative: %w", domain.ErrInvalidConfiguration)
	}
	if cfg.CreateTimeout == 0 {
		cfg.CreateTimeout = DefaultCreateTimeout
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeKeep
	case ModeKeep, ModeRecreate:
	default:
		return nil, fmt.Errorf("unknown index mode %q: %w", cfg.Mode, domain.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{admin: admin, cfg: cfg, logger: logger}, nil
}

// Name returns the managed index name.
func (m *Manager) Name() string {
	return m.cfg.Name
}

// Ensure makes the index ready for writes.
//
// An existing index is kept when its dimension matches (ModeKeep) or dropped
// and created again (ModeRecreate). A missing index is created with the cosine
// metric. Creation races CreateTimeout; when the timer wins Ensure returns
// *domain.IndexCreationTimeoutError while the create call keeps running
// detached, and its late outcome is only logged.
func (m *Manager) Ensure(ctx context.Context) error {
	names, err := m.admin.ListIndexes(ctx)
	if err != nil {
		metrics.IndexEnsureTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("list indexes: %w", err)
	}

	log := m.logger.With(zap.String("index", m.cfg.Name))

	if slices.Contains(names, m.cfg.Name) {
		if m.cfg.Mode == ModeKeep {
			if err := m.checkExisting(ctx); err != nil {
				metrics.IndexEnsureTotal.WithLabelValues("error").Inc()
				return err
			}
			log.Info("Index already exists")
			metrics.IndexEnsureTotal.WithLabelValues("existing").Inc()
			return nil
		}

		log.Info("Recreating index")
		if err := m.admin.DeleteIndex(ctx, m.cfg.Name); err != nil && !errors.Is(err, domain.ErrIndexNotFound) {
			metrics.IndexEnsureTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("delete index %s: %w", m.cfg.Name, err)
		}
		if err := m.create(ctx, log); err != nil {
			return err
		}
		metrics.IndexEnsureTotal.WithLabelValues("recreated").Inc()
		return nil
	}

	log.Info("Creating index",
		zap.Int("dimension", m.cfg.Dimension),
		zap.Duration("timeout", m.cfg.CreateTimeout),
	)
	if err := m.create(ctx, log); err != nil {
		return err
	}
	metrics.IndexEnsureTotal.WithLabelValues("created").Inc()
	return nil
}

func (m *Manager) checkExisting(ctx context.Context) error {
	info, err := m.admin.DescribeIndex(ctx, m.cfg.Name)
	if err != nil {
		return fmt.Errorf("describe index %s: %w", m.cfg.Name, err)
	}
	if info.Dimension != m.cfg.Dimension {
		return fmt.Errorf("index %s has dimension %d, configured %d: %w: %w",
			m.cfg.Name, info.Dimension, m.cfg.Dimension, domain.ErrInvalidConfiguration, domain.ErrVectorDimMismatch)
	}
	return nil
}

// create runs the create call detached from ctx and races it against the timeout.
func (m *Manager) create(ctx context.Context, log *zap.Logger) error {
	info := domain.IndexInfo{Name: m.cfg.Name, Dimension: m.cfg.Dimension, Metric: domain.MetricCosine}

	done := make(chan error, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		done <- m.createAndWait(detached, info)
	}()

	timer := time.NewTimer(m.cfg.CreateTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			metrics.IndexEnsureTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("create index %s: %w", m.cfg.Name, err)
		}
		log.Info("Index ready")
		return nil
	case <-timer.C:
		metrics.IndexEnsureTotal.WithLabelValues("timeout").Inc()
		go logLateOutcome(done, log)
		return &domain.IndexCreationTimeoutError{Index: m.cfg.Name, Timeout: m.cfg.CreateTimeout}
	case <-ctx.Done():
		metrics.IndexEnsureTotal.WithLabelValues("error").Inc()
		go logLateOutcome(done, log)
		return fmt.Errorf("create index %s: %w", m.cfg.Name, ctx.Err())
	}
}

func logLateOutcome(done <-chan error, log *zap.Logger) {
	if err := <-done; err != nil {
		log.Warn("Index creation failed after the caller stopped waiting", zap.Error(err))
		return
	}
	log.Info("Index creation finished after the caller stopped waiting")
}

// createAndWait issues the create call and polls until the index is describable.
// Polling gives up after readyWaitFactor timeouts so a detached call cannot spin forever.
func (m *Manager) createAndWait(ctx context.Context, info domain.IndexInfo) error {
	if err := m.admin.CreateIndex(ctx, info); err != nil {
		return err
	}

	deadline := time.Now().Add(readyWaitFactor * m.cfg.CreateTimeout)
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		_, err := m.admin.DescribeIndex(ctx, info.Name)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrIndexNotFound) {
			return fmt.Errorf("wait for index: %w", err)
		}
		if time.Now().After(deadline) {
			return errors.New("index not visible after create")
		}
		<-ticker.C
	}
}
