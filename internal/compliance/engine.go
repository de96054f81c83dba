// Package compliance 评估车辆合规要求并生成到期提醒
// 状态和得分只在这里计算
package compliance

import (
	"math"
	"sort"
	"time"

	"fleetcomply/internal/model"
)

// DefaultAtRiskDays 合规类型和租户都未设置提前期时使用
const DefaultAtRiskDays = 30

// Policy 评估参数
type Policy struct {
	AtRiskDays int       // 未设置 renewal_lead_days 的类型使用的提前期
	Today      time.Time // 评估当天
}

func (p Policy) leadDays(ct model.ComplianceType) int {
	if ct.RenewalLeadDays > 0 {
		return ct.RenewalLeadDays
	}
	if p.AtRiskDays > 0 {
		return p.AtRiskDays
	}
	return DefaultAtRiskDays
}

// Day 将 t 截断为当天，以 UTC 零点表示，便于与存储的日期直接比较
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil 返回今天到到期日的整天数，已过期时为负数
func DaysUntil(today, expiry time.Time) int {
	return int(math.Round(Day(expiry).Sub(Day(today)).Hours() / 24))
}

// RecordStatus 按合规类型评估单条记录
func (p Policy) RecordStatus(ct model.ComplianceType, rec model.ComplianceRecord) (model.RequirementStatus, *int) {
	if rec.ExpiryDate == nil {
		return model.StatusCompliant, nil
	}
	days := DaysUntil(p.Today, *rec.ExpiryDate)
	switch {
	case days < 0:
		return model.StatusExpired, &days
	case days <= p.leadDays(ct):
		return model.StatusAtRisk, &days
	default:
		return model.StatusCompliant, &days
	}
}

// Annotate 为类型已知的每条记录填充 Status 和 DaysUntilExpiry
func (p Policy) Annotate(types []model.ComplianceType, records []model.ComplianceRecord) {
	byID := make(map[int64]model.ComplianceType, len(types))
	for _, ct := range types {
		byID[ct.ID] = ct
	}
	for i := range records {
		ct, ok := byID[records[i].ComplianceTypeID]
		if !ok {
			continue
		}
		records[i].Status, records[i].DaysUntilExpiry = p.RecordStatus(ct, records[i])
	}
}

// CurrentRecord 选出决定该要求的记录：到期日最晚者，无到期日视为最晚
// 到期日相同时取 id 最大者
func CurrentRecord(records []model.ComplianceRecord) *model.ComplianceRecord {
	var best *model.ComplianceRecord
	for i := range records {
		r := &records[i]
		if best == nil || laterThan(r, best) {
			best = r
		}
	}
	return best
}

func laterThan(a, b *model.ComplianceRecord) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate == nil:
		return a.ID > b.ID
	case a.ExpiryDate == nil:
		return true
	case b.ExpiryDate == nil:
		return false
	case a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ID > b.ID
	default:
		return a.ExpiryDate.After(*b.ExpiryDate)
	}
}

// Applies 判断 ct 是否为 vehicleTypeID 类车辆的合规要求
func Applies(ct model.ComplianceType, vehicleTypeID int64) bool {
	return ct.VehicleTypeID == nil || *ct.VehicleTypeID == vehicleTypeID
}

// Evaluate 计算单辆车的要求列表和汇总
// types 可以包含其他车辆类型的合规类型，会被过滤掉
func (p Policy) Evaluate(vehicle model.Vehicle, types []model.ComplianceType, records []model.ComplianceRecord) model.ComplianceStatus {
	byType := make(map[int64][]model.ComplianceRecord)
	for _, r := range records {
		if r.VehicleID == vehicle.ID {
			byType[r.ComplianceTypeID] = append(byType[r.ComplianceTypeID], r)
		}
	}

	applicable := make([]model.ComplianceType, 0, len(types))
	for _, ct := range types {
		if Applies(ct, vehicle.VehicleTypeID) {
			applicable = append(applicable, ct)
		}
	}
	sort.SliceStable(applicable, func(i, j int) bool { return applicable[i].Name < applicable[j].Name })

	groups := model.RequirementGroups{
		Required: []model.ComplianceRequirement{},
		Optional: []model.ComplianceRequirement{},
	}
	for _, ct := range applicable {
		req := p.requirement(ct, byType[ct.ID])
		if ct.IsRequired {
			groups.Required = append(groups.Required, req)
		} else {
			groups.Optional = append(groups.Optional, req)
		}
	}

	return model.ComplianceStatus{
		Vehicle:      vehicle,
		Requirements: groups,
		Summary:      Summarize(groups),
	}
}

func (p Policy) requirement(ct model.ComplianceType, records []model.ComplianceRecord) model.ComplianceRequirement {
	req := model.ComplianceRequirement{
		RequirementID:  ct.ID,
		ComplianceType: ct,
		Category:       ct.Category,
		Status:         model.StatusPending,
	}
	current := CurrentRecord(records)
	if current == nil {
		return req
	}

	rec := *current
	rec.Status, rec.DaysUntilExpiry = p.RecordStatus(ct, rec)
	if rec.Documents == nil {
		rec.Documents = []model.Document{}
	}
	req.CurrentRecord = &rec
	req.Status = rec.Status
	req.DaysUntilExpiry = rec.DaysUntilExpiry
	req.IsOverdue = rec.Status == model.StatusExpired
	return req
}

// Summarize 对必需要求打分，可选要求只计入 Total
func Summarize(groups model.RequirementGroups) model.ComplianceSummary {
	s := model.ComplianceSummary{Total: len(groups.Required) + len(groups.Optional)}

	var required = struct{ compliant, atRisk, expired, pending int }{}
	count := func(reqs []model.ComplianceRequirement, isRequired bool) {
		for _, r := range reqs {
			switch r.Status {
			case model.StatusCompliant:
				s.Compliant++
				if isRequired {
					required.compliant++
				}
			case model.StatusAtRisk:
				s.AtRisk++
				if isRequired {
					required.atRisk++
				}
			case model.StatusExpired:
				s.Expired++
				if isRequired {
					required.expired++
				}
			case model.StatusPending:
				s.Pending++
				if isRequired {
					required.pending++
				}
			}
		}
	}
	count(groups.Required, true)
	count(groups.Optional, false)

	if n := len(groups.Required); n > 0 {
		s.ComplianceScore = 100 * (float64(required.compliant) + 0.5*float64(required.atRisk)) / float64(n)
	} else {
		s.ComplianceScore = 100
	}

	switch {
	case required.expired > 0:
		s.OverallStatus = model.OverallNonCompliant
	case required.pending > 0:
		s.OverallStatus = model.OverallIncomplete
	case required.atRisk > 0:
		s.OverallStatus = model.OverallAtRisk
	default:
		s.OverallStatus = model.OverallCompliant
	}
	s.CanOperate = required.expired == 0 && required.pending == 0
	return s
}
