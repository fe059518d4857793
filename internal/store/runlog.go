package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"domainsync/internal/model"
)

// RunCounts aggregates per-record outcomes for one batch
type RunCounts struct {
	Found     int `json:"found"`
	Processed int `json:"processed"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// RecordError is one per-record failure noted in the run log detail
type RecordError struct {
	Index    int    `json:"index"`
	DomainID string `json:"domain_id,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Message  string `json:"message"`
}

// RunFinal carries everything FinalizeRunLog writes
type RunFinal struct {
	Counts        RunCounts
	TotalReported int
	Status        model.SyncLogStatus
	ErrorMessage  *string
	ErrorDetail   []RecordError
}

// CreateRunLog opens the audit row for one batch with status=running.
// It is written before the page fetch so a crash mid-fetch still
// leaves a reconcilable record.
func (s *Store) CreateRunLog(ctx context.Context, tenantID int64, batchNumber, batchStart, batchEnd int) (*model.SyncLog, error) {
	row := model.SyncLog{
		RunID:       uuid.NewString(),
		TenantID:    tenantID,
		BatchNumber: batchNumber,
		BatchStart:  batchStart,
		BatchEnd:    batchEnd,
		Status:      model.SyncLogStatusRunning,
		StartedAt:   time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create run log: %w", err)
	}
	return &row, nil
}

// FinalizeRunLog closes the audit row exactly once. The update is
// guarded on status=running so a finalized row can never be reopened
// or rewritten.
func (s *Store) FinalizeRunLog(ctx context.Context, logID int64, final RunFinal) error {
	if final.Status != model.SyncLogStatusCompleted && final.Status != model.SyncLogStatusFailed {
		return fmt.Errorf("run log can only be finalized to completed or failed, got %s", final.Status)
	}

	updates := map[string]interface{}{
		"found":          final.Counts.Found,
		"processed":      final.Counts.Processed,
		"added":          final.Counts.Added,
		"updated":        final.Counts.Updated,
		"errors":         final.Counts.Errors,
		"total_reported": final.TotalReported,
		"status":         final.Status,
		"error_message":  final.ErrorMessage,
		"completed_at":   time.Now(),
	}

	if len(final.ErrorDetail) > 0 {
		detail, err := json.Marshal(final.ErrorDetail)
		if err != nil {
			return fmt.Errorf("failed to marshal error detail: %w", err)
		}
		updates["error_detail"] = datatypes.JSON(detail)
	}

	result := s.db.WithContext(ctx).Model(&model.SyncLog{}).
		Where("id = ? AND status = ?", logID, model.SyncLogStatusRunning).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to finalize run log %d: %w", logID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run log %d is not running, refusing to finalize twice", logID)
	}
	return nil
}

// ListRunLogs returns the tenant's most recent run logs, newest first
func (s *Store) ListRunLogs(ctx context.Context, tenantID int64, limit int) ([]model.SyncLog, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var logs []model.SyncLog
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return logs, nil
}
