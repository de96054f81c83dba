package fields

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// MinYear 可接受的最早车型年份
const MinYear = 1900

// DateLayout 日期的规范存储格式
const DateLayout = "2006-01-02"

var dateLayouts = []string{DateLayout, "02/01/2006", "2006/01/02", "02.01.2006", time.RFC3339}

// FieldError 带字段 key 标记的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 输出预览行中使用的 "<field>: <message>" 形式
func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ErrorField 返回 FieldError 文本中的字段标记，未标记时返回 ""
func ErrorField(rendered string) string {
	idx := strings.Index(rendered, ": ")
	if idx <= 0 {
		return ""
	}
	return rendered[:idx]
}

// Normalize 按种类校验 raw 并返回规范的存储值
// 空输入原样返回，是否必填由调用方检查
func Normalize(kind Kind, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	n := &normalizer{raw: raw, now: time.Now()}
	kind.Accept(n)
	return n.out, n.err
}

// Check 校验字段的单个值，包括必填检查
func Check(key string, kind Kind, required bool, raw string) *FieldError {
	if strings.TrimSpace(raw) == "" {
		if required {
			return &FieldError{Field: key, Message: "is required"}
		}
		return nil
	}
	if _, err := Normalize(kind, raw); err != nil {
		return &FieldError{Field: key, Message: err.Error()}
	}
	return nil
}

type normalizer struct {
	raw string
	now time.Time
	out string
	err error
}

func (n *normalizer) VisitText(Text) {
	n.out = n.raw
}

func (n *normalizer) VisitNumber(Number) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(n.raw, ",", ""), 64)
	if err != nil {
		n.err = fmt.Errorf("must be a number")
		return
	}
	n.out = strconv.FormatFloat(f, 'f', -1, 64)
}

func (n *normalizer) VisitDate(Date) {
	t, ok := ParseDate(n.raw)
	if !ok {
		n.err = fmt.Errorf("must be a date (YYYY-MM-DD)")
		return
	}
	n.out = t.Format(DateLayout)
}

func (n *normalizer) VisitEmail(Email) {
	addr, err := mail.ParseAddress(n.raw)
	if err != nil || addr.Address != n.raw || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@")+1:], ".") {
		n.err = fmt.Errorf("must be a valid email address")
		return
	}
	n.out = strings.ToLower(addr.Address)
}

func (n *normalizer) VisitYear(Year) {
	maxYear := n.now.Year() + 1
	y, err := strconv.Atoi(n.raw)
	if err != nil || y < MinYear || y > maxYear {
		n.err = fmt.Errorf("must be a year between %d and %d", MinYear, maxYear)
		return
	}
	n.out = strconv.Itoa(y)
}

func (n *normalizer) VisitSelect(k Select) {
	for _, opt := range k.Options {
		if strings.EqualFold(opt, n.raw) {
			n.out = opt
			return
		}
	}
	n.err = fmt.Errorf("must be one of: %s", strings.Join(k.Options, ", "))
}

func (n *normalizer) VisitBoolean(Boolean) {
	switch strings.ToLower(n.raw) {
	case "yes", "y", "true", "1":
		n.out = "true"
	case "no", "n", "false", "0":
		n.out = "false"
	default:
		n.err = fmt.Errorf("must be yes or no")
	}
}

// ParseDate 接受规范格式、几种日在前的格式以及 Excel 序列日
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	// Excel 序列日：自 1899-12-30 起的天数
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 && serial < 2958466 {
		base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
		return base.AddDate(0, 0, int(serial)), true
	}
	return time.Time{}, false
}
