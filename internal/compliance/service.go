package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetcomply/internal/metrics"
	"fleetcomply/internal/model"
	"fleetcomply/internal/store"
)

// Service 基于已存储的记录评估合规
type Service struct {
	store      *store.Store
	atRiskDays int
	logger     *zap.Logger
	now        func() time.Time
}

// NewService 创建服务。atRiskDays 为进程级默认提前期，
// 租户可通过 compliance.at_risk_days 设置覆盖
func NewService(st *store.Store, atRiskDays int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, atRiskDays: atRiskDays, logger: logger, now: time.Now}
}

// Policy 返回租户当天的评估参数
func (s *Service) Policy(ctx context.Context, tenantID int64) (Policy, error) {
	days := s.atRiskDays
	override, err := s.store.GetSettingInt(ctx, tenantID, store.SettingAtRiskDays)
	switch {
	case err == nil && override > 0:
		days = override
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return Policy{}, fmt.Errorf("load at-risk setting: %w", err)
	}
	return Policy{AtRiskDays: days, Today: Day(s.now())}, nil
}

// Status 评估租户下的一辆车
func (s *Service) Status(ctx context.Context, tenantID, vehicleID int64) (*model.ComplianceStatus, error) {
	vehicle, err := s.store.GetVehicle(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	types, err := s.store.ListComplianceTypes(ctx, tenantID, &vehicle.VehicleTypeID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListComplianceRecords(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	policy, err := s.Policy(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	status := policy.Evaluate(*vehicle, types, records)
	metrics.ComplianceEvaluations.WithLabelValues(status.Summary.OverallStatus).Inc()
	s.logger.Debug("compliance evaluated",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("vehicle_id", vehicleID),
		zap.String("overall_status", status.Summary.OverallStatus),
		zap.Float64("score", status.Summary.ComplianceScore),
	)
	return &status, nil
}

// Records 列出车辆的记录及计算出的状态
func (s *Service) Records(ctx context.Context, tenantID, vehicleID int64) ([]model.ComplianceRecord, error) {
	vehicle, err := s.store.GetVehicle(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	types, err := s.store.ListComplianceTypes(ctx, tenantID, &vehicle.VehicleTypeID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListComplianceRecords(ctx, tenantID, vehicleID)
	if err != nil {
		return nil, err
	}
	policy, err := s.Policy(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	policy.Annotate(types, records)
	return records, nil
}
