package importer

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"fleetcomply/internal/fields"
	"fleetcomply/internal/model"
)

const (
	templateSheet = "Vehicles"
	templateRows  = 1000 // 应用校验规则的数据行数
)

// TemplateFilename 遵循识别器可识别的命名约定
func TemplateFilename(vt *model.VehicleType) string {
	slug := vt.Slug
	if slug == "" {
		slug = Slugify(vt.Name)
	}
	return TemplatePrefix + slug + ".xlsx"
}

// BuildTemplate 为车辆类型创建导入工作簿：一行标签表头，
// 以及按字段种类设置的逐列校验
func BuildTemplate(vt *model.VehicleType, schema *fields.Schema) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		f.Close()
		return nil, err
	}

	headers := []any{"Name", "Registration Number"}
	for _, fd := range schema.Fields() {
		label := fd.Label
		if label == "" {
			label = fd.Key
		}
		headers = append(headers, label)
	}
	if err := f.SetSheetRow(templateSheet, "A1", &headers); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetRowStyle(templateSheet, 1, 1, bold); err != nil {
		f.Close()
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(templateSheet, "A", lastCol, 22); err != nil {
		f.Close()
		return nil, err
	}

	for i, fd := range schema.Fields() {
		col, _ := excelize.ColumnNumberToName(i + 3)
		rule := &columnRule{file: f, col: col, now: time.Now()}
		fd.Kind.Accept(rule)
		if rule.err != nil {
			f.Close()
			return nil, fmt.Errorf("field %q: %w", fd.Key, rule.err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// columnRule 为模板列附加一种字段种类的校验
type columnRule struct {
	file *excelize.File
	col  string
	now  time.Time
	err  error
}

func (r *columnRule) sqref() string {
	return fmt.Sprintf("%s2:%s%d", r.col, r.col, templateRows+1)
}

func (r *columnRule) add(dv *excelize.DataValidation) {
	dv.Sqref = r.sqref()
	r.err = r.file.AddDataValidation(templateSheet, dv)
}

func (r *columnRule) VisitText(fields.Text) {}

func (r *columnRule) VisitEmail(fields.Email) {}

func (r *columnRule) VisitNumber(fields.Number) {
	dv := excelize.NewDataValidation(true)
	if r.err = dv.SetRange(-1e12, 1e12, excelize.DataValidationTypeDecimal, excelize.DataValidationOperatorBetween); r.err == nil {
		r.add(dv)
	}
}

func (r *columnRule) VisitYear(fields.Year) {
	dv := excelize.NewDataValidation(true)
	if r.err = dv.SetRange(fields.MinYear, r.now.Year()+1, excelize.DataValidationTypeWhole, excelize.DataValidationOperatorBetween); r.err == nil {
		r.add(dv)
	}
}

func (r *columnRule) VisitDate(fields.Date) {
	style, err := r.file.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		r.err = err
		return
	}
	r.err = r.file.SetColStyle(templateSheet, r.col, style)
}

func (r *columnRule) VisitSelect(k fields.Select) {
	dv := excelize.NewDataValidation(true)
	if r.err = dv.SetDropList(k.Options); r.err == nil {
		r.add(dv)
	}
}

func (r *columnRule) VisitBoolean(fields.Boolean) {
	dv := excelize.NewDataValidation(true)
	if r.err = dv.SetDropList([]string{"yes", "no"}); r.err == nil {
		r.add(dv)
	}
}
