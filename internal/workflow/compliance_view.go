package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fleetcomply/internal/model"
)

// ErrInvalidVehicleID 车辆 id 不是正数
var ErrInvalidVehicleID = errors.New("vehicle id must be positive")

// LoadState 视图加载的生命周期
type LoadState int

const (
	Idle LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("LoadState(%d)", int(s))
}

// RequirementRow 展开列表中的一条要求
type RequirementRow struct {
	model.ComplianceRequirement
	IsOptional bool
}

// ComplianceSnapshot 视图的渲染状态
type ComplianceSnapshot struct {
	State     LoadState
	Vehicle   model.Vehicle
	Rows      []RequirementRow
	Summary   model.ComplianceSummary
	ScoreText string
	Err       error
}

// ComplianceView 展示一辆车的合规状态，状态和得分直接取自服务端
type ComplianceView struct {
	api       ComplianceAPI
	vehicleID int64

	mu     sync.Mutex
	state  LoadState
	status *model.ComplianceStatus
	err    error
}

// NewComplianceView 在发出请求前校验 vehicleID
func NewComplianceView(api ComplianceAPI, vehicleID int64) (*ComplianceView, error) {
	if vehicleID <= 0 {
		return nil, ErrInvalidVehicleID
	}
	return &ComplianceView{api: api, vehicleID: vehicleID}, nil
}

// Load 拉取一次状态，失败时清除之前的结果
func (v *ComplianceView) Load(ctx context.Context) error {
	v.mu.Lock()
	v.state = Loading
	v.mu.Unlock()

	st, err := v.api.ComplianceStatus(ctx, v.vehicleID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.state, v.status, v.err = Failed, nil, err
		return err
	}
	v.state, v.status, v.err = Loaded, st, nil
	return nil
}

// Retry 失败后重新加载
func (v *ComplianceView) Retry(ctx context.Context) error {
	return v.Load(ctx)
}

// Snapshot 返回当前渲染状态
func (v *ComplianceView) Snapshot() ComplianceSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := ComplianceSnapshot{State: v.state, Err: v.err}
	if v.status == nil {
		return snap
	}
	snap.Vehicle = v.status.Vehicle
	snap.Summary = v.status.Summary
	snap.ScoreText = FormatScore(v.status.Summary.ComplianceScore)
	snap.Rows = FlattenRequirements(v.status.Requirements)
	return snap
}

// FlattenRequirements 先必需后可选，展开为一个列表
func FlattenRequirements(groups model.RequirementGroups) []RequirementRow {
	rows := make([]RequirementRow, 0, len(groups.Required)+len(groups.Optional))
	for _, r := range groups.Required {
		rows = append(rows, RequirementRow{ComplianceRequirement: r})
	}
	for _, r := range groups.Optional {
		rows = append(rows, RequirementRow{ComplianceRequirement: r, IsOptional: true})
	}
	return rows
}

// FormatScore 将得分渲染为整数百分比
func FormatScore(score float64) string {
	return fmt.Sprintf("%.0f%%", score)
}
