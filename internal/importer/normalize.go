package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize 将 s 折叠用于宽松匹配：去除变音符号、统一大小写，
// 分隔符（空格、'_'、'-'、'.'）合并为单个空格
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	plain = folder.String(plain)
	return strings.Join(Tokens(plain), " ")
}

// Tokens 按非字母数字字符切分 s
func Tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Slugify 将 name 转为小写、连字符分隔的 slug
func Slugify(name string) string {
	return strings.Join(Tokens(Normalize(name)), "-")
}
