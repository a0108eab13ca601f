// Package store persists the candidate source and the append-only outcome
// rows of the discovery pipeline.
package store

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fault-lab/triggeroor/pkg/config"
)

// Store provides persistence for candidates and trigger records.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Candidate source (read-only input for discovery).
	CreateCandidate(ctx context.Context, c *Candidate) error
	HasProject(ctx context.Context, project string) (bool, error)
	ListPrereqCompleteIDs(ctx context.Context, project string) ([]int, error)
	CountCandidates(ctx context.Context, project string) (int64, error)

	// Outcome rows. CreateTriggerRecord is a plain insert, never an
	// upsert; resumability relies on the selector's exclusion filter.
	CreateTriggerRecord(ctx context.Context, r *TriggerRecord) error
	GetTriggerRecord(ctx context.Context, project string, candidateID int) (*TriggerRecord, error)
	ListRecordedIDs(ctx context.Context, project string) ([]int, error)
	CountRecords(ctx context.Context, project string) (int64, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Candidate{},
		&TriggerRecord{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}

	return sqlDB.Close()
}

func (s *store) CreateCandidate(ctx context.Context, c *Candidate) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("creating candidate: %w", err)
	}

	return nil
}

func (s *store) HasProject(ctx context.Context, project string) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&Candidate{}).
		Where("project = ?", project).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking project %q: %w", project, err)
	}

	return count > 0, nil
}

func (s *store) ListPrereqCompleteIDs(ctx context.Context, project string) ([]int, error) {
	var ids []int

	err := s.db.WithContext(ctx).
		Model(&Candidate{}).
		Where("project = ? AND prereq_ok = ?", project, true).
		Order("candidate_id ASC").
		Pluck("candidate_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing candidates for %q: %w", project, err)
	}

	return ids, nil
}

func (s *store) CountCandidates(ctx context.Context, project string) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&Candidate{}).
		Where("project = ? AND prereq_ok = ?", project, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting candidates for %q: %w", project, err)
	}

	return count, nil
}

func (s *store) CreateTriggerRecord(ctx context.Context, r *TriggerRecord) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("creating trigger record: %w", err)
	}

	return nil
}

func (s *store) GetTriggerRecord(ctx context.Context, project string, candidateID int) (*TriggerRecord, error) {
	var record TriggerRecord

	err := s.db.WithContext(ctx).
		Where("project = ? AND candidate_id = ?", project, candidateID).
		First(&record).Error
	if err != nil {
		return nil, fmt.Errorf("getting record for %s/%d: %w", project, candidateID, err)
	}

	return &record, nil
}

func (s *store) ListRecordedIDs(ctx context.Context, project string) ([]int, error) {
	var ids []int

	err := s.db.WithContext(ctx).
		Model(&TriggerRecord{}).
		Where("project = ?", project).
		Order("candidate_id ASC").
		Pluck("candidate_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing recorded ids for %q: %w", project, err)
	}

	return ids, nil
}

func (s *store) CountRecords(ctx context.Context, project string) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&TriggerRecord{}).
		Where("project = ?", project).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting records for %q: %w", project, err)
	}

	return count, nil
}
