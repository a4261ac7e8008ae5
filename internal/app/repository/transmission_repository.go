package repository

import (
	"time"

	"github.com/facturalink/dte-backend/internal/app/model"
	"gorm.io/gorm"
)

// TransmissionRepository persists jobs and their immutable attempt log.
type TransmissionRepository interface {
	CreateJob(job *model.TransmissionJob) error
	FindJobByID(id string) (*model.TransmissionJob, error)
	SaveJob(job *model.TransmissionJob) error
	MarkJobCompleted(id string) error
	MarkJobDeadLettered(id string, lastError string) error
	IncrementJobAttempt(id string, lastError string) error

	RecordAttempt(attempt *model.TransmissionAttempt) error
	ListAttempts(jobID string) ([]model.TransmissionAttempt, error)
	ListAttemptsByDocument(documentID uint) ([]model.TransmissionAttempt, error)
}

type transmissionRepository struct {
	db *gorm.DB
}

func NewTransmissionRepository(db *gorm.DB) TransmissionRepository {
	return &transmissionRepository{db: db}
}

func (r *transmissionRepository) CreateJob(job *model.TransmissionJob) error {
	return r.db.Create(job).Error
}

func (r *transmissionRepository) FindJobByID(id string) (*model.TransmissionJob, error) {
	var job model.TransmissionJob
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *transmissionRepository) SaveJob(job *model.TransmissionJob) error {
	return r.db.Save(job).Error
}

func (r *transmissionRepository) MarkJobCompleted(id string) error {
	now := time.Now()
	return r.db.Model(&model.TransmissionJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.JobStatusCompleted,
			"completed_at": &now,
		}).Error
}

func (r *transmissionRepository) MarkJobDeadLettered(id string, lastError string) error {
	now := time.Now()
	return r.db.Model(&model.TransmissionJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.JobStatusDeadLettered,
			"last_error":   lastError,
			"completed_at": &now,
		}).Error
}

func (r *transmissionRepository) IncrementJobAttempt(id string, lastError string) error {
	return r.db.Model(&model.TransmissionJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    lastError,
		}).Error
}

func (r *transmissionRepository) RecordAttempt(attempt *model.TransmissionAttempt) error {
	return r.db.Create(attempt).Error
}

func (r *transmissionRepository) ListAttempts(jobID string) ([]model.TransmissionAttempt, error) {
	var attempts []model.TransmissionAttempt
	err := r.db.Where("job_id = ?", jobID).Order("id ASC").Find(&attempts).Error
	return attempts, err
}

func (r *transmissionRepository) ListAttemptsByDocument(documentID uint) ([]model.TransmissionAttempt, error) {
	var attempts []model.TransmissionAttempt
	err := r.db.Where("document_id = ?", documentID).Order("id ASC").Find(&attempts).Error
	return attempts, err
}
