// Package store persists the research domain with gorm. Postgres is the
// production dialect; SQLite backs tests and single-node runs.
package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects using the configured driver. SQLite is limited to a single
// connection so transactions never contend with themselves.
func Open(cfg config.Database, log *logger.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger: gormLogger.New(log.Entry, gormLogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return New(db, log), nil
}

func New(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.Component("store")}
}

// Migrate creates or updates every table and index.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(types.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Dialect() string { return s.db.Dialector.Name() }

// Transaction runs fn against a Store bound to one database transaction. Any
// error returned by fn rolls the transaction back and is passed through.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, log: s.log})
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Interviews() *InterviewRepo     { return &InterviewRepo{db: s.db} }
func (s *Store) Evidence() *EvidenceRepo        { return &EvidenceRepo{db: s.db} }
func (s *Store) Facets() *FacetRepo             { return &FacetRepo{db: s.db} }
func (s *Store) People() *PersonRepo            { return &PersonRepo{db: s.db} }
func (s *Store) MergeRecords() *MergeRecordRepo { return &MergeRecordRepo{db: s.db} }
func (s *Store) JobRuns() *JobRunRepo           { return &JobRunRepo{db: s.db, dialect: s.Dialect()} }

// IDBatchSize caps the ids in one IN clause below the drivers' bind
// parameter limits.
const IDBatchSize = 500

// findByIDs loads rows of T whose id is in ids, one IN clause per batch.
func findByIDs[T any](ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]T, error) {
	var out []T
	for batch := range slices.Chunk(ids, IDBatchSize) {
		var rows []T
		if err := db.WithContext(ctx).Where("id IN ?", batch).Find(&rows).Error; err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func notFound(op string, err error) error {
	return apperr.E(apperr.KindNotFound, op, err)
}
