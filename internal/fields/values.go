package fields

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"fleetcomply/internal/model"
)

// Field 解析后的 schema 条目
type Field struct {
	ID       int64
	Key      string
	Label    string
	Kind     Kind
	Required bool
}

// Schema 一个车辆类型解析后的字段列表
type Schema struct {
	fields []Field
	byID   map[int64]int
	byKey  map[string]int
}

// 内置车辆属性的 key，自定义字段不可复用
const (
	KeyName         = "name"
	KeyRegistration = "registration_number"
)

// ErrReservedKey 自定义字段使用了内置属性的 key
var ErrReservedKey = errors.New("field key is reserved")

// IsReserved 判断 key 是否属于内置车辆属性
func IsReserved(key string) bool {
	return key == KeyName || key == KeyRegistration
}

// NewSchema 解析存储的字段定义，拒绝重复和保留的 key
func NewSchema(defs []model.VehicleTypeField) (*Schema, error) {
	sorted := make([]model.VehicleTypeField, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SortOrder < sorted[j].SortOrder })

	s := &Schema{
		fields: make([]Field, 0, len(sorted)),
		byID:   make(map[int64]int, len(sorted)),
		byKey:  make(map[string]int, len(sorted)),
	}
	for _, d := range sorted {
		if IsReserved(d.Key) {
			return nil, fmt.Errorf("%w: %q", ErrReservedKey, d.Key)
		}
		if _, dup := s.byKey[d.Key]; dup {
			return nil, fmt.Errorf("duplicate field key %q", d.Key)
		}
		kind, err := ParseKind(d.FieldType, d.Options)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", d.Key, err)
		}
		s.byID[d.ID] = len(s.fields)
		s.byKey[d.Key] = len(s.fields)
		s.fields = append(s.fields, Field{ID: d.ID, Key: d.Key, Label: d.Label, Kind: kind, Required: d.Required})
	}
	return s, nil
}

// Fields 按显示顺序返回字段
func (s *Schema) Fields() []Field {
	return s.fields
}

// ByKey 按 key 查找字段
func (s *Schema) ByKey(key string) (Field, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// ByID 按 id 查找字段
func (s *Schema) ByID(id int64) (Field, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Validate 校验 data（按字段 key 组织）的每个字段，按 schema 顺序返回错误。
// schema 中不存在的 key 会被忽略
func (s *Schema) Validate(data map[string]string) []FieldError {
	var errs []FieldError
	for _, f := range s.fields {
		if fe := Check(f.Key, f.Kind, f.Required, data[f.Key]); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs
}

// Values 一辆车的 EAV 属性，按字段 id 组织。所有写入都经过 Set，
// 存储的值对其种类始终是规范的
type Values struct {
	schema *Schema
	m      map[int64]string
}

// NewValues 创建绑定到 schema 的空值集合
func NewValues(schema *Schema) *Values {
	return &Values{schema: schema, m: make(map[int64]string)}
}

// FromStored 从存储中重建值，已不在 schema 中的字段会被丢弃
func FromStored(schema *Schema, stored []model.VehicleFieldValue) *Values {
	v := NewValues(schema)
	for _, fv := range stored {
		if _, ok := schema.ByID(fv.FieldID); ok {
			v.m[fv.FieldID] = fv.Value
		}
	}
	return v
}

// FromKeyed 校验并加载 key→value 映射，返回所有错误
func FromKeyed(schema *Schema, data map[string]string) (*Values, []FieldError) {
	v := NewValues(schema)
	var errs []FieldError
	for key := range data {
		if _, ok := schema.ByKey(key); !ok {
			errs = append(errs, FieldError{Field: key, Message: "is not a field of this vehicle type"})
		}
	}
	for _, f := range schema.fields {
		raw := data[f.Key]
		if fe := Check(f.Key, f.Kind, f.Required, raw); fe != nil {
			errs = append(errs, *fe)
			continue
		}
		if err := v.Set(f.Key, raw); err != nil {
			errs = append(errs, FieldError{Field: f.Key, Message: err.Error()})
		}
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return v, errs
}

// FromCanonical 加载从存储读回、按字段 key 组织的值
// 这些值已是规范形式，不在 schema 中的 key 会被丢弃
func FromCanonical(schema *Schema, keyed map[string]string) *Values {
	v := NewValues(schema)
	for key, val := range keyed {
		if f, ok := schema.ByKey(key); ok && val != "" {
			v.m[f.ID] = val
		}
	}
	return v
}

// Set 规范化 raw 后保存，raw 为空时清除该值
func (v *Values) Set(key, raw string) error {
	f, ok := v.schema.ByKey(key)
	if !ok {
		return fmt.Errorf("unknown field %q", key)
	}
	out, err := Normalize(f.Kind, raw)
	if err != nil {
		return err
	}
	if out == "" {
		delete(v.m, f.ID)
		return nil
	}
	v.m[f.ID] = out
	return nil
}

// Get 返回 key 对应的存储字符串
func (v *Values) Get(key string) (string, bool) {
	f, ok := v.schema.ByKey(key)
	if !ok {
		return "", false
	}
	s, ok := v.m[f.ID]
	return s, ok
}

// Float 读取数字字段
func (v *Values) Float(key string) (float64, bool, error) {
	if err := v.expect(key, TypeNumber); err != nil {
		return 0, false, err
	}
	s, ok := v.Get(key)
	if !ok {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, true, err
}

// Year 读取年份字段
func (v *Values) Year(key string) (int, bool, error) {
	if err := v.expect(key, TypeYear); err != nil {
		return 0, false, err
	}
	s, ok := v.Get(key)
	if !ok {
		return 0, false, nil
	}
	y, err := strconv.Atoi(s)
	return y, true, err
}

// Date 读取日期字段
func (v *Values) Date(key string) (time.Time, bool, error) {
	if err := v.expect(key, TypeDate); err != nil {
		return time.Time{}, false, err
	}
	s, ok := v.Get(key)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(DateLayout, s)
	return t, true, err
}

// Bool 读取布尔字段
func (v *Values) Bool(key string) (bool, bool, error) {
	if err := v.expect(key, TypeBoolean); err != nil {
		return false, false, err
	}
	s, ok := v.Get(key)
	if !ok {
		return false, false, nil
	}
	return s == "true", true, nil
}

func (v *Values) expect(key, typeName string) error {
	f, ok := v.schema.ByKey(key)
	if !ok {
		return fmt.Errorf("unknown field %q", key)
	}
	if f.Kind.Name() != typeName {
		return fmt.Errorf("field %q is %s, not %s", key, f.Kind.Name(), typeName)
	}
	return nil
}

// Typed 按字段 key 返回已有值对应种类的 Go 类型：
// 数字为 float64，年份为 int，布尔为 bool，其他种类为规范字符串
func (v *Values) Typed() (map[string]any, error) {
	out := make(map[string]any, len(v.m))
	for _, f := range v.schema.fields {
		if _, ok := v.m[f.ID]; !ok {
			continue
		}
		r := &typedReader{values: v, key: f.Key}
		f.Kind.Accept(r)
		if r.err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, r.err)
		}
		out[f.Key] = r.out
	}
	return out, nil
}

type typedReader struct {
	values *Values
	key    string
	out    any
	err    error
}

func (r *typedReader) VisitText(Text)     { r.out, _ = r.values.Get(r.key) }
func (r *typedReader) VisitEmail(Email)   { r.out, _ = r.values.Get(r.key) }
func (r *typedReader) VisitSelect(Select) { r.out, _ = r.values.Get(r.key) }

func (r *typedReader) VisitNumber(Number) {
	r.out, _, r.err = r.values.Float(r.key)
}

func (r *typedReader) VisitYear(Year) {
	r.out, _, r.err = r.values.Year(r.key)
}

func (r *typedReader) VisitBoolean(Boolean) {
	r.out, _, r.err = r.values.Bool(r.key)
}

func (r *typedReader) VisitDate(Date) {
	d, _, err := r.values.Date(r.key)
	r.out, r.err = d.Format(DateLayout), err
}

// Keyed 按字段 key 返回值，与 API 暴露的一致
func (v *Values) Keyed() map[string]string {
	out := make(map[string]string, len(v.m))
	for id, val := range v.m {
		if f, ok := v.schema.ByID(id); ok {
			out[f.Key] = val
		}
	}
	return out
}

// Stored 以 vehicle_field_values 行的形式返回值
func (v *Values) Stored(vehicleID int64) []model.VehicleFieldValue {
	out := make([]model.VehicleFieldValue, 0, len(v.m))
	for _, f := range v.schema.fields {
		if val, ok := v.m[f.ID]; ok {
			out = append(out, model.VehicleFieldValue{VehicleID: vehicleID, FieldID: f.ID, Value: val})
		}
	}
	return out
}
