package importer

import (
	"fleetcomply/internal/fields"
)

// 所有车辆类型都有的内置列
const (
	ColumnName         = fields.KeyName
	ColumnRegistration = fields.KeyRegistration
)

var builtinAliases = map[string]string{
	"name":                ColumnName,
	"vehicle name":        ColumnName,
	"vehicle":             ColumnName,
	"registration number": ColumnRegistration,
	"registration":        ColumnRegistration,
	"registration no":     ColumnRegistration,
	"plate":               ColumnRegistration,
	"license plate":       ColumnRegistration,
}

// ColumnMapping 文件列到字段 key 的绑定
type ColumnMapping struct {
	Index  int    `json:"index"`
	Header string `json:"header"`
	Key    string `json:"key"`
}

// HeaderMap 表头映射结果
type HeaderMap struct {
	Columns  []ColumnMapping `json:"columns"`
	Unmapped []string        `json:"unmapped,omitempty"`
}

// MapHeaders 规范化后按 key 或标签将表头匹配到内置列和 schema 字段，
// 同一 key 以第一个匹配的列为准
func MapHeaders(headers []string, schema *fields.Schema) HeaderMap {
	lookup := make(map[string]string)
	for alias, key := range builtinAliases {
		lookup[alias] = key
	}
	for _, f := range schema.Fields() {
		lookup[Normalize(f.Key)] = f.Key
		lookup[Normalize(f.Label)] = f.Key
	}

	var hm HeaderMap
	claimed := make(map[string]bool)
	for idx, h := range headers {
		if h == "" {
			continue
		}
		key, ok := lookup[Normalize(h)]
		if !ok || claimed[key] {
			hm.Unmapped = append(hm.Unmapped, h)
			continue
		}
		claimed[key] = true
		hm.Columns = append(hm.Columns, ColumnMapping{Index: idx, Header: h, Key: key})
	}
	return hm
}

// Row 按字段 key 提取一行中已映射的单元格
func (hm HeaderMap) Row(cells []string) map[string]string {
	data := make(map[string]string, len(hm.Columns))
	for _, c := range hm.Columns {
		if c.Index < len(cells) {
			data[c.Key] = cells[c.Index]
		} else {
			data[c.Key] = ""
		}
	}
	return data
}
