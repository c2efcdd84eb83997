package audit

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DispatchRow is the persisted shape of one dispatch record, stored in
// rails_cron_dispatches with a unique index on (Key, FireTime) so a
// retried log never produces duplicate rows for the same firing.
type DispatchRow struct {
	ID           uint64 `gorm:"primaryKey"`
	Key          string `gorm:"uniqueIndex:idx_dispatch_key_firetime;size:255"`
	FireTime     time.Time `gorm:"uniqueIndex:idx_dispatch_key_firetime"`
	DispatchedAt time.Time
	NodeID       string `gorm:"size:128"`
	Status       string `gorm:"size:32;index"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

func (DispatchRow) TableName() string {
	return "rails_cron_dispatches"
}

// SQL is a dispatch audit backend over any SQL dialect gorm supports.
type SQL struct {
	db *gorm.DB
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

// AutoMigrate creates or updates the backing table.
func (s *SQL) AutoMigrate() error {
	return s.db.AutoMigrate(&DispatchRow{})
}

func (s *SQL) Log(ctx context.Context, jobKey string, firingInstant time.Time, nodeID string, status Status) error {
	row := DispatchRow{
		Key:          jobKey,
		FireTime:     firingInstant.UTC(),
		DispatchedAt: time.Now().UTC(),
		NodeID:       nodeID,
		Status:       string(status),
	}
	// A retried log for the same firing upserts rather than erroring,
	// since logging must never fail the caller's dispatch path.
	return s.db.WithContext(ctx).
		Where("key = ? AND fire_time = ?", jobKey, firingInstant.UTC()).
		Assign(DispatchRow{DispatchedAt: row.DispatchedAt, NodeID: nodeID, Status: string(status)}).
		FirstOrCreate(&row).Error
}

func (s *SQL) Find(ctx context.Context, jobKey string, firingInstant time.Time) (*Record, bool, error) {
	var row DispatchRow
	err := s.db.WithContext(ctx).
		Where("key = ? AND fire_time = ?", jobKey, firingInstant.UTC()).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &Record{
		JobKey:        row.Key,
		FiringInstant: row.FireTime,
		NodeID:        row.NodeID,
		Status:        Status(row.Status),
		DispatchedAt:  row.DispatchedAt,
	}, true, nil
}

func (s *SQL) Dispatched(ctx context.Context, jobKey string, firingInstant time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&DispatchRow{}).
		Where("key = ? AND fire_time = ?", jobKey, firingInstant.UTC()).
		Count(&count).Error
	return count > 0, err
}

// Cleanup deletes rows with fire_time older than olderThan relative to
// now, matching the recovery procedure's post-recovery trim step.
func (s *SQL) Cleanup(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UTC()
	return s.db.WithContext(ctx).
		Where("fire_time < ?", cutoff).
		Delete(&DispatchRow{}).Error
}

func (s *SQL) Close() error {
	return nil
}

// FindByNode returns every record dispatched by nodeID, most recent first.
func (s *SQL) FindByNode(ctx context.Context, nodeID string) ([]Record, error) {
	var rows []DispatchRow
	err := s.db.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("fire_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// FindByStatus returns every record with the given status, most recent first.
func (s *SQL) FindByStatus(ctx context.Context, status Status) ([]Record, error) {
	var rows []DispatchRow
	err := s.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("fire_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func toRecords(rows []DispatchRow) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = Record{
			JobKey:        row.Key,
			FiringInstant: row.FireTime,
			NodeID:        row.NodeID,
			Status:        Status(row.Status),
			DispatchedAt:  row.DispatchedAt,
		}
	}
	return out
}
