package catalog

import (
	"context"
	"fmt"

	"fleetcomply/internal/fields"
	"fleetcomply/internal/importer"
	"fleetcomply/internal/model"
	"fleetcomply/internal/store"
)

// SeedResult Seed 创建的数量统计
type SeedResult struct {
	VehicleTypes    int
	ComplianceTypes int
}

// Seed 在租户下创建目录中的车辆类型和合规类型
// slug 或名称已存在的条目保持不变，重复执行不会产生重复数据
func (c *Catalog) Seed(ctx context.Context, st *store.Store, tenantID int64) (SeedResult, error) {
	var res SeedResult

	existing, err := st.ListVehicleTypes(ctx, tenantID)
	if err != nil {
		return res, err
	}
	typeIDs := make(map[string]int64, len(existing))
	bySlug := make(map[string]int64, len(existing))
	for _, vt := range existing {
		typeIDs[vt.Name] = vt.ID
		bySlug[vt.Slug] = vt.ID
	}

	for _, seed := range c.VehicleTypes {
		slug := importer.Slugify(seed.Name)
		if id, ok := bySlug[slug]; ok {
			typeIDs[seed.Name] = id
			continue
		}
		vt := &model.VehicleType{TenantID: tenantID, Name: seed.Name, Slug: slug, Description: seed.Description}
		for i, f := range seed.Fields {
			label := f.Label
			if label == "" {
				label = f.Key
			}
			vt.Fields = append(vt.Fields, model.VehicleTypeField{
				Key:       f.Key,
				Label:     label,
				FieldType: f.Type,
				Required:  f.Required,
				Options:   f.Options,
				SortOrder: i + 1,
			})
		}
		if _, err := fields.NewSchema(vt.Fields); err != nil {
			return res, fmt.Errorf("catalog vehicle type %q: %w", seed.Name, err)
		}
		if err := st.CreateVehicleType(ctx, vt); err != nil {
			return res, fmt.Errorf("seed vehicle type %q: %w", seed.Name, err)
		}
		typeIDs[seed.Name] = vt.ID
		res.VehicleTypes++
	}

	current, err := st.ListComplianceTypes(ctx, tenantID, nil)
	if err != nil {
		return res, err
	}
	names := make(map[string]bool, len(current))
	for _, ct := range current {
		names[ct.Name] = true
	}
	for _, seed := range c.ComplianceTypes {
		if names[seed.Name] {
			continue
		}
		ct := &model.ComplianceType{
			TenantID:        tenantID,
			Name:            seed.Name,
			Category:        seed.Category,
			Description:     seed.Description,
			ValidityDays:    seed.ValidityDays,
			RenewalLeadDays: seed.RenewalLeadDays,
			IsRequired:      seed.Required,
		}
		if seed.AppliesTo != "" {
			id, ok := typeIDs[seed.AppliesTo]
			if !ok {
				return res, fmt.Errorf("catalog compliance type %q: unknown vehicle type %q", seed.Name, seed.AppliesTo)
			}
			ct.VehicleTypeID = &id
		}
		if err := st.CreateComplianceType(ctx, ct); err != nil {
			return res, fmt.Errorf("seed compliance type %q: %w", seed.Name, err)
		}
		res.ComplianceTypes++
	}
	return res, nil
}
