package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Status values stored for a record.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDeclined  = "declined"
)

// Record is one file that was sent or received.
type Record struct {
	ID        uint `gorm:"primaryKey"`
	PeerName  string
	Direction string `gorm:"index"`
	FileName  string
	Size      int64
	Status    string
	Detail    string
	CreatedAt time.Time `gorm:"index"`
}

// Store is the transfer journal.
type Store struct {
	DB *gorm.DB
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Store{DB: db}, nil
}

// Add appends a record, stamping CreatedAt when unset.
func (s *Store) Add(r *Record) error {
	if err := s.DB.Create(r).Error; err != nil {
		return fmt.Errorf("add history record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. A limit of 0 or less
// returns everything.
func (s *Store) Recent(limit int) ([]Record, error) {
	var records []Record
	q := s.DB.Order("created_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return records, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
