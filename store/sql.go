package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// entry is one stored key. The column is "name" because "key" is reserved
// in MySQL.
type entry struct {
	Name      string `gorm:"column:name;primaryKey;size:191"`
	Value     string `gorm:"column:value;type:text"`
	UpdatedAt time.Time
}

func (entry) TableName() string {
	return "kv_entries"
}

// SQLStore keeps keys in a SQL table through gorm
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens a sqlite or mysql database and migrates the table
func NewSQLStore(dbType, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch dbType {
	case TypeMySQL:
		dialector = mysql.Open(dsn)
	default:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", dbType, err)
	}
	return NewSQLStoreFromDB(db)
}

// NewSQLStoreFromDB wraps an existing connection
func NewSQLStoreFromDB(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var e entry
	err := s.db.WithContext(ctx).Where("name = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(e.Value), nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	e := entry{Name: key, Value: string(value), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("name = ?", key).Delete(&entry{}).Error
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
