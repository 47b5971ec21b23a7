package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/carlog/carlog/internal/metrics"
	"github.com/carlog/carlog/internal/model"
)

// MaintenanceService handles maintenance record business logic.
type MaintenanceService struct {
	records RecordStore
	metrics metrics.Recorder
	now     func() time.Time
}

// NewMaintenanceService creates a new MaintenanceService.
func NewMaintenanceService(records RecordStore, recorder metrics.Recorder) *MaintenanceService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &MaintenanceService{
		records: records,
		metrics: recorder,
		now:     time.Now,
	}
}

// AddRecordInput defines input for recording a service.
type AddRecordInput struct {
	UserID      int64
	ServiceType string
	Cost        float64
	Notes       string
	// Date is optional; nil means today (UTC).
	Date *time.Time
}

// AddRecord stores a maintenance record owned by input.UserID.
// Text fields are stored exactly as given.
func (s *MaintenanceService) AddRecord(ctx context.Context, input AddRecordInput) (*model.MaintenanceRecord, error) {
	if strings.TrimSpace(input.ServiceType) == "" {
		return nil, ErrMissingServiceType
	}
	if len(input.ServiceType) > MaxServiceTypeLength || len(input.Notes) > MaxNotesLength {
		return nil, ErrFieldTooLong
	}
	if math.IsNaN(input.Cost) || math.IsInf(input.Cost, 0) {
		return nil, ErrInvalidCost
	}

	date := s.now()
	if input.Date != nil {
		date = *input.Date
	}

	rec := &model.MaintenanceRecord{
		UserID:      input.UserID,
		Date:        model.TruncateToDate(date),
		ServiceType: input.ServiceType,
		Cost:        input.Cost,
		Notes:       input.Notes,
	}

	if err := s.records.CreateMaintenanceRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create maintenance record: %w", err)
	}

	s.metrics.IncRecordCreated()
	return rec, nil
}

// ListRecords returns userID's records, newest first.
func (s *MaintenanceService) ListRecords(ctx context.Context, userID int64) ([]*model.MaintenanceRecord, error) {
	records, err := s.records.ListMaintenanceRecordsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance records: %w", err)
	}

	s.metrics.IncRecordsListed(len(records))
	return records, nil
}
