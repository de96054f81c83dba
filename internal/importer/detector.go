package importer

import (
	"path/filepath"
	"strings"

	"fleetcomply/internal/model"
)

// TemplatePrefix 生成的模板文件名前缀
const TemplatePrefix = "vehicle-import-"

// 识别方式
const (
	MethodTemplate = "template"
	MethodName     = "name"
	MethodTokens   = "tokens"
	MethodNone     = "none"
)

// SelectionThreshold 置信度低于该值时需要用户选择类型
const SelectionThreshold = 0.5

// Detector 根据文件名猜测上传文件的车辆类型
type Detector struct{}

// NewDetector 创建识别器
func NewDetector() *Detector {
	return &Detector{}
}

// Detect 返回最佳匹配，得分相同时优先较长的类型名
// 不会失败：没有可用匹配时结果设置 NeedsSelection
func (d *Detector) Detect(filename string, types []model.VehicleType) model.TypeDetection {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))

	best := model.TypeDetection{Method: MethodNone}
	consider := func(vt model.VehicleType, confidence float64, method string) {
		better := confidence > best.Confidence ||
			(confidence > 0 && confidence == best.Confidence && len(vt.Name) > len(best.TypeName))
		if better {
			id := vt.ID
			best = model.TypeDetection{VehicleTypeID: &id, TypeName: vt.Name, Confidence: confidence, Method: method}
		}
	}

	// 模板约定：vehicle-import-<slug>[-任意内容]
	if rest, ok := strings.CutPrefix(base, TemplatePrefix); ok {
		longest := 0
		for _, vt := range types {
			if vt.Slug == "" || len(vt.Slug) <= longest {
				continue
			}
			if rest == vt.Slug || strings.HasPrefix(rest, vt.Slug+"-") {
				longest = len(vt.Slug)
				best = model.TypeDetection{}
				consider(vt, 1.0, MethodTemplate)
			}
		}
		if best.Confidence == 1.0 {
			return best
		}
	}

	fileTokens := singularAll(Tokens(Normalize(base)))
	padded := " " + strings.Join(fileTokens, " ") + " "
	for _, vt := range types {
		nameTokens := singularAll(Tokens(Normalize(vt.Name)))
		if len(nameTokens) == 0 {
			continue
		}
		if strings.Contains(padded, " "+strings.Join(nameTokens, " ")+" ") {
			consider(vt, 0.8, MethodName)
			continue
		}
		consider(vt, 0.7*overlap(nameTokens, fileTokens), MethodTokens)
	}

	best.NeedsSelection = best.Confidence < SelectionThreshold
	if best.VehicleTypeID == nil {
		best.Method = MethodNone
	}
	return best
}

// overlap 名称词元出现在文件名中的比例
func overlap(nameTokens, fileTokens []string) float64 {
	set := make(map[string]bool, len(fileTokens))
	for _, t := range fileTokens {
		set[t] = true
	}
	hits := 0
	for _, t := range nameTokens {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(nameTokens))
}

func singularAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		if len(t) > 3 && strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss") {
			t = t[:len(t)-1]
		}
		out[i] = t
	}
	return out
}
