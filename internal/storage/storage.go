// Package storage 在本地文件系统保存上传的文档并生成公开 URL
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidPath 相对路径越出上传根目录
var ErrInvalidPath = errors.New("invalid file path")

// Stored 已保存文件的描述
type Stored struct {
	RelPath  string // 以斜杠分隔，相对于根目录
	FileName string // 客户端原始文件名
	MimeType string
	Size     int64
}

// Local 在根目录下存放文件
type Local struct {
	root    string
	baseURL string
	now     func() time.Time
}

// NewLocal 按需创建根目录。baseURL 为 URL 中相对路径的前缀，
// 例如 "/api/v1/files" 或 "https://cdn.example.com/fleet"
func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}, nil
}

// Root 返回上传目录
func (l *Local) Root() string {
	return l.root
}

// Save 将 r 写入 <tenant>/<yyyy>/<mm>/<uuid><ext>
func (l *Local) Save(tenantID int64, filename string, r io.Reader) (*Stored, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	now := l.now()
	rel := path.Join(fmt.Sprint(tenantID), now.Format("2006"), now.Format("01"), uuid.NewString()+ext)

	full, err := l.Path(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, err
	}
	out, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	// 扩展名无法确定类型时检测文件头
	head := make([]byte, 512)
	n, _ := io.ReadFull(r, head)
	head = head[:n]
	size, err := io.Copy(out, io.MultiReader(bytes.NewReader(head), r))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		return nil, fmt.Errorf("write file: %w", err)
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		mimeType = http.DetectContentType(head)
	}
	return &Stored{RelPath: rel, FileName: filepath.Base(filename), MimeType: mimeType, Size: size}, nil
}

// Path 将存储的相对路径解析为根目录内的文件系统路径
func (l *Local) Path(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if clean == "/" || strings.Contains(rel, "\\") {
		return "", ErrInvalidPath
	}
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// URL 生成存储文件的公开 URL
func (l *Local) URL(rel string) string {
	return l.baseURL + "/" + strings.TrimPrefix(rel, "/")
}

// Remove 删除存储的文件，文件不存在不视为错误
func (l *Local) Remove(rel string) error {
	full, err := l.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
