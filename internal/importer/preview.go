package importer

import (
	"io"
	"strings"

	"fleetcomply/internal/fields"
	"fleetcomply/internal/model"
)

// 预览分页默认值
const (
	DefaultPerPage = 25
	MaxPerPage     = 200
)

// Row 应用编辑前按字段 key 组织的一行数据
type Row struct {
	Number int
	Data   map[string]string
}

// Parsed 映射到车辆类型 schema 的上传文件
type Parsed struct {
	Filename string
	Schema   *fields.Schema
	Headers  HeaderMap
	Rows     []Row
}

// Parse 读取上传文件并将其列映射到 schema
func Parse(filename string, r io.Reader, schema *fields.Schema) (*Parsed, error) {
	sheet, err := Read(filename, r)
	if err != nil {
		return nil, err
	}
	p := &Parsed{
		Filename: filename,
		Schema:   schema,
		Headers:  MapHeaders(sheet.Headers, schema),
		Rows:     make([]Row, 0, len(sheet.Rows)),
	}
	for _, raw := range sheet.Rows {
		data := p.emptyRow()
		for k, v := range p.Headers.Row(raw.Cells) {
			data[k] = v
		}
		p.Rows = append(p.Rows, Row{Number: raw.Number, Data: data})
	}
	return p, nil
}

// emptyRow 为每个可导入的 key 都保留一项，客户端可以看到所有列
func (p *Parsed) emptyRow() map[string]string {
	data := map[string]string{ColumnName: "", ColumnRegistration: ""}
	for _, f := range p.Schema.Fields() {
		data[f.Key] = ""
	}
	return data
}

// Effective 返回应用编辑后的行。不可导入列的编辑和未知行号的编辑都会被忽略
func (p *Parsed) Effective(edited model.EditedRows) []Row {
	out := make([]Row, len(p.Rows))
	for i, r := range p.Rows {
		data := make(map[string]string, len(r.Data))
		for k, v := range r.Data {
			data[k] = v
		}
		for k, v := range edited[r.Number] {
			if _, ok := data[k]; ok {
				data[k] = v
			}
		}
		out[i] = Row{Number: r.Number, Data: data}
	}
	return out
}

// ValidateRow 权威的行校验器。错误信息标记为 "<key>: <message>"，
// 先内置列，再按 schema 顺序
func ValidateRow(schema *fields.Schema, data map[string]string) []string {
	var errs []string
	if fe := fields.Check(ColumnName, fields.Text{}, true, data[ColumnName]); fe != nil {
		errs = append(errs, fe.Error())
	}
	for _, fe := range schema.Validate(data) {
		errs = append(errs, fe.Error())
	}
	return errs
}

// PreviewOptions 选择预览的一页
type PreviewOptions struct {
	Page    int
	PerPage int
	MaxPer  int
	Edited  model.EditedRows
}

func (o PreviewOptions) normalized() (page, perPage int) {
	maxPer := o.MaxPer
	if maxPer <= 0 {
		maxPer = MaxPerPage
	}
	perPage = o.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > maxPer {
		perPage = maxPer
	}
	page = o.Page
	if page < 1 {
		page = 1
	}
	return page, perPage
}

// Preview 应用编辑后校验每一行，返回整个文件的计数和请求的那一页
func (p *Parsed) Preview(opts PreviewOptions) model.PreviewResult {
	page, perPage := opts.normalized()
	rows := p.Effective(opts.Edited)

	result := model.PreviewResult{TotalRows: len(rows), Rows: []model.PreviewRow{}}
	validated := make([]model.PreviewRow, len(rows))
	for i, r := range rows {
		errs := ValidateRow(p.Schema, r.Data)
		if errs == nil {
			errs = []string{}
		}
		validated[i] = model.PreviewRow{RowNumber: r.Number, Data: r.Data, Errors: errs, IsValid: len(errs) == 0}
		if len(errs) == 0 {
			result.ValidRows++
		} else {
			result.InvalidRows++
		}
	}

	totalPages := (len(rows) + perPage - 1) / perPage
	result.Pagination = model.Pagination{Page: page, PerPage: perPage, Total: len(rows), TotalPages: totalPages}
	start := (page - 1) * perPage
	if start < len(validated) {
		end := min(start+perPage, len(validated))
		result.Rows = validated[start:end]
	}
	return result
}

// ErrorSummary 输出导入结果中一行的错误
func ErrorSummary(rowNumber int, errs []string) model.ImportRowError {
	return model.ImportRowError{RowNumber: rowNumber, Message: strings.Join(errs, "; ")}
}
