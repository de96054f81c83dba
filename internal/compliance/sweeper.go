package compliance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetcomply/internal/metrics"
	"fleetcomply/internal/model"
	"fleetcomply/internal/store"
)

// Sweeper 为每个要求的当前记录生成即将到期/已过期通知
// 每个 (record, kind) 最多通知一次
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper 创建按 interval 执行的扫描器
func NewSweeper(svc *Service, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{svc: svc, interval: interval, logger: logger}
}

// Run 立即扫描一次，之后每个周期扫描一次，直到 ctx 结束
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.SweepAll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("compliance sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SweepAll 扫描所有租户并返回创建的通知数
func (w *Sweeper) SweepAll(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	tenantIDs, err := w.svc.store.ListTenantIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}
	total := 0
	for _, id := range tenantIDs {
		n, err := w.SweepTenant(ctx, id)
		if err != nil {
			return total, fmt.Errorf("tenant %d: %w", id, err)
		}
		total += n
	}
	w.logger.Info("compliance sweep done",
		zap.Int("tenants", len(tenantIDs)),
		zap.Int("created", total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return total, nil
}

// SweepTenant 扫描单个租户
func (w *Sweeper) SweepTenant(ctx context.Context, tenantID int64) (int, error) {
	st := w.svc.store
	policy, err := w.svc.Policy(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	types, err := st.ListComplianceTypes(ctx, tenantID, nil)
	if err != nil {
		return 0, err
	}
	records, err := st.ListRecordsForTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	vehicles, err := st.ListVehicles(ctx, store.VehicleQueryOptions{TenantID: tenantID, SkipFieldValues: true})
	if err != nil {
		return 0, err
	}

	typeByID := make(map[int64]model.ComplianceType, len(types))
	for _, ct := range types {
		typeByID[ct.ID] = ct
	}
	vehicleByID := make(map[int64]model.Vehicle, len(vehicles))
	for _, v := range vehicles {
		vehicleByID[v.ID] = v
	}

	type key struct{ vehicleID, typeID int64 }
	grouped := make(map[key][]model.ComplianceRecord)
	for _, r := range records {
		k := key{r.VehicleID, r.ComplianceTypeID}
		grouped[k] = append(grouped[k], r)
	}

	created := 0
	for k, recs := range grouped {
		ct, ok := typeByID[k.typeID]
		if !ok {
			continue
		}
		v, ok := vehicleByID[k.vehicleID]
		if !ok || v.Status != model.VehicleStatusActive || !Applies(ct, v.VehicleTypeID) {
			continue
		}
		current := CurrentRecord(recs)
		status, days := policy.RecordStatus(ct, *current)
		n := alertFor(v, ct, *current, status, days)
		if n == nil {
			continue
		}
		inserted, err := st.CreateNotificationOnce(ctx, n)
		if err != nil {
			return created, err
		}
		if inserted {
			created++
			metrics.NotificationsCreated.WithLabelValues(n.Kind).Inc()
			w.logger.Debug("notification created",
				zap.Int64("tenant_id", tenantID),
				zap.Int64("vehicle_id", v.ID),
				zap.String("kind", n.Kind),
			)
		}
	}
	return created, nil
}

func alertFor(v model.Vehicle, ct model.ComplianceType, rec model.ComplianceRecord, status model.RequirementStatus, days *int) *model.Notification {
	n := &model.Notification{
		TenantID:           v.TenantID,
		VehicleID:          v.ID,
		ComplianceRecordID: rec.ID,
	}
	switch status {
	case model.StatusExpired:
		n.Kind = model.NotificationExpired
		n.Title = fmt.Sprintf("%s expired", ct.Name)
		n.Message = fmt.Sprintf("%s for %s expired on %s", ct.Name, v.Name, rec.ExpiryDate.Format(store.DateLayout))
	case model.StatusAtRisk:
		n.Kind = model.NotificationExpiring
		n.Title = fmt.Sprintf("%s expiring soon", ct.Name)
		n.Message = fmt.Sprintf("%s for %s expires in %d day(s) on %s", ct.Name, v.Name, *days, rec.ExpiryDate.Format(store.DateLayout))
	default:
		return nil
	}
	return n
}
