// Package store reads timelog records from PostgreSQL.
package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mathewdenison/employees-timesheet-list/internal/models"
)

// TimeLogStore is the read side of the timelogs table
type TimeLogStore interface {
	FetchAll(ctx context.Context) ([]models.TimeLog, error)
}

// GormStore implements TimeLogStore on top of a *gorm.DB
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FetchAll returns every timelog ordered by primary key. There is no filter
// and no page size; callers get the whole table.
func (s *GormStore) FetchAll(ctx context.Context) ([]models.TimeLog, error) {
	var logs []models.TimeLog

	err := s.db.WithContext(ctx).
		Order("id").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch timelogs: %w", err)
	}

	return logs, nil
}
