package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat 文件既不是 .xlsx 也不是 .csv
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx or .csv")
	// ErrNoHeader 第一行缺失或为空
	ErrNoHeader = errors.New("file has no header row")
)

// utf8BOM 如存在则从第一个表头单元格去除
const utf8BOM = "\uFEFF"

// RawRow 一条非空数据行，Number 为表格中从 1 开始的行号
type RawRow struct {
	Number int
	Cells  []string
}

// Sheet 上传文件的表头和数据行
type Sheet struct {
	Headers []string
	Rows    []RawRow
}

// Read 按扩展名选择格式解析上传文件
func Read(filename string, r io.Reader) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ReadXLSX 读取工作簿的第一个工作表。单元格按原始值读取，
// 日期以序列数到达，与单元格格式无关
func ReadXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return buildSheet(rows)
}

// ReadCSV 读取带表头的逗号分隔文件
func ReadCSV(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], utf8BOM)
	}
	return buildSheet(records)
}

func buildSheet(rows [][]string) (*Sheet, error) {
	if len(rows) == 0 || isBlank(rows[0]) {
		return nil, ErrNoHeader
	}
	sheet := &Sheet{Headers: trimAll(rows[0])}
	for i, cells := range rows[1:] {
		if isBlank(cells) {
			continue
		}
		sheet.Rows = append(sheet.Rows, RawRow{Number: i + 2, Cells: trimAll(cells)})
	}
	return sheet, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
