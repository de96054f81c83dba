// Package catalog 加载新租户默认写入的车辆类型和合规类型
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog 种子文件结构
type Catalog struct {
	VehicleTypes    []VehicleType    `yaml:"vehicle_types"`
	ComplianceTypes []ComplianceType `yaml:"compliance_types"`
}

// VehicleType 种子条目
type VehicleType struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Fields      []Field `yaml:"fields"`
}

// Field 种子条目
type Field struct {
	Key      string   `yaml:"key"`
	Label    string   `yaml:"label"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Options  []string `yaml:"options,omitempty"`
}

// ComplianceType 种子条目。AppliesTo 为车辆类型名称，为空表示全部
type ComplianceType struct {
	Name            string `yaml:"name"`
	Category        string `yaml:"category"`
	Description     string `yaml:"description"`
	ValidityDays    int    `yaml:"validity_days"`
	RenewalLeadDays int    `yaml:"renewal_lead_days"`
	Required        bool   `yaml:"required"`
	AppliesTo       string `yaml:"applies_to,omitempty"`
}

// Default 返回内嵌的目录
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load 读取目录文件；路径为空时使用内嵌默认目录
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse 解析并校验目录文档
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	names := make(map[string]bool, len(c.VehicleTypes))
	for _, vt := range c.VehicleTypes {
		if vt.Name == "" {
			return nil, fmt.Errorf("catalog: vehicle type without name")
		}
		names[vt.Name] = true
		keys := make(map[string]bool, len(vt.Fields))
		for _, f := range vt.Fields {
			if keys[f.Key] {
				return nil, fmt.Errorf("catalog: vehicle type %q repeats field key %q", vt.Name, f.Key)
			}
			keys[f.Key] = true
		}
	}
	for _, ct := range c.ComplianceTypes {
		if ct.AppliesTo != "" && !names[ct.AppliesTo] {
			return nil, fmt.Errorf("catalog: compliance type %q applies to unknown vehicle type %q", ct.Name, ct.AppliesTo)
		}
	}
	return &c, nil
}
