// Package fields 车辆类型自定义字段 schema 的模型
//
// 字段种类是封闭集合。需要区分每种类型的代码实现 Visitor；新增种类会新增 Visitor 方法，
// 所有分发处在处理新种类之前都无法编译
package fields

import (
	"fmt"
	"strings"
)

// vehicle_type_fields.field_type 中存储的字段类型名
const (
	TypeText    = "text"
	TypeNumber  = "number"
	TypeDate    = "date"
	TypeEmail   = "email"
	TypeYear    = "year"
	TypeSelect  = "select"
	TypeBoolean = "boolean"
)

// Kind Text、Number、Date、Email、Year、Select 或 Boolean 之一
type Kind interface {
	Name() string
	Accept(v Visitor)
	sealed()
}

// Visitor 按具体种类分发
type Visitor interface {
	VisitText(Text)
	VisitNumber(Number)
	VisitDate(Date)
	VisitEmail(Email)
	VisitYear(Year)
	VisitSelect(Select)
	VisitBoolean(Boolean)
}

type Text struct{}

type Number struct{}

type Date struct{}

type Email struct{}

type Year struct{}

// Select 只接受 Options 中的值
type Select struct {
	Options []string
}

type Boolean struct{}

func (Text) Name() string    { return TypeText }
func (Number) Name() string  { return TypeNumber }
func (Date) Name() string    { return TypeDate }
func (Email) Name() string   { return TypeEmail }
func (Year) Name() string    { return TypeYear }
func (Select) Name() string  { return TypeSelect }
func (Boolean) Name() string { return TypeBoolean }

func (k Text) Accept(v Visitor)    { v.VisitText(k) }
func (k Number) Accept(v Visitor)  { v.VisitNumber(k) }
func (k Date) Accept(v Visitor)    { v.VisitDate(k) }
func (k Email) Accept(v Visitor)   { v.VisitEmail(k) }
func (k Year) Accept(v Visitor)    { v.VisitYear(k) }
func (k Select) Accept(v Visitor)  { v.VisitSelect(k) }
func (k Boolean) Accept(v Visitor) { v.VisitBoolean(k) }

func (Text) sealed()    {}
func (Number) sealed()  {}
func (Date) sealed()    {}
func (Email) sealed()   {}
func (Year) sealed()    {}
func (Select) sealed()  {}
func (Boolean) sealed() {}

// ParseKind 根据存储的名称构造 Kind。只有 select 字段接受 Options，且至少需要一个选项
func ParseKind(fieldType string, options []string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(fieldType))
	if name != TypeSelect && len(options) > 0 {
		return nil, fmt.Errorf("options are only allowed on select fields, got field type %q", fieldType)
	}

	switch name {
	case TypeText, "":
		return Text{}, nil
	case TypeNumber:
		return Number{}, nil
	case TypeDate:
		return Date{}, nil
	case TypeEmail:
		return Email{}, nil
	case TypeYear:
		return Year{}, nil
	case TypeBoolean:
		return Boolean{}, nil
	case TypeSelect:
		cleaned := make([]string, 0, len(options))
		for _, o := range options {
			if o = strings.TrimSpace(o); o != "" {
				cleaned = append(cleaned, o)
			}
		}
		if len(cleaned) == 0 {
			return nil, fmt.Errorf("select field needs at least one option")
		}
		return Select{Options: cleaned}, nil
	default:
		return nil, fmt.Errorf("unknown field type %q", fieldType)
	}
}
