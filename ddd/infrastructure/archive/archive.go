package archive

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"transcription-service/ddd/domain/vo"
)

// JobEventRecord is the relational form of one job lifecycle event.
type JobEventRecord struct {
	ID            uint      `gorm:"primaryKey"`
	Kind          string    `gorm:"size:32;index"`
	JobID         string    `gorm:"size:64;index"`
	WorkerID      string    `gorm:"size:64"`
	SegmentsCount int       `gorm:"default:0"`
	ElapsedSecs   float64   `gorm:"default:0"`
	Error         string    `gorm:"type:text"`
	OccurredAt    time.Time `gorm:"index"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (JobEventRecord) TableName() string { return "job_events" }

// ScaleRunRecord is the relational form of one autoscaler run.
type ScaleRunRecord struct {
	ID                  uint    `gorm:"primaryKey"`
	Action              string  `gorm:"size:16;index"`
	PendingMinutes      float64 `gorm:"default:0"`
	JobCount            int     `gorm:"default:0"`
	CurrentInstances    int     `gorm:"default:0"`
	TargetInstances     int     `gorm:"default:0"`
	InstancesLaunched   int     `gorm:"default:0"`
	InstancesTerminated int     `gorm:"default:0"`
	MetricsSource       string  `gorm:"size:32"`
	DryRun              bool
	RanAt               time.Time `gorm:"index"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (ScaleRunRecord) TableName() string { return "scale_runs" }

// Archive implements port.EventPublisher against MySQL, keeping a queryable
// history of job outcomes and scaling decisions alongside (or instead of)
// the kafka stream.
type Archive struct {
	db *gorm.DB
}

// NewArchive migrates the schema and returns the publisher.
func NewArchive(db *gorm.DB) (*Archive, error) {
	if err := db.AutoMigrate(&JobEventRecord{}, &ScaleRunRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// PublishJobEvent inserts one job event row.
func (a *Archive) PublishJobEvent(ctx context.Context, ev *vo.JobEvent) error {
	rec := JobEventRecord{
		Kind:          string(ev.Kind),
		JobID:         ev.JobID,
		WorkerID:      ev.WorkerID,
		SegmentsCount: ev.SegmentsCount,
		ElapsedSecs:   ev.ElapsedSecs,
		Error:         ev.Error,
		OccurredAt:    ev.OccurredAt,
	}
	return a.db.WithContext(ctx).Create(&rec).Error
}

// PublishScaleEvent inserts one scale run row.
func (a *Archive) PublishScaleEvent(ctx context.Context, res *vo.ScaleResult) error {
	rec := ScaleRunRecord{
		Action:              string(res.Action),
		PendingMinutes:      res.PendingMinutes,
		JobCount:            res.JobCount,
		CurrentInstances:    res.CurrentInstances,
		TargetInstances:     res.TargetInstances,
		InstancesLaunched:   res.InstancesLaunched,
		InstancesTerminated: res.InstancesTerminated,
		MetricsSource:       res.MetricsSource,
		DryRun:              res.DryRun,
		RanAt:               res.RanAt,
	}
	return a.db.WithContext(ctx).Create(&rec).Error
}

// Close is a no-op; the connection pool is owned by the caller.
func (a *Archive) Close() error { return nil }
