package v1

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// downloadTTL 一次性下载链接的有效期
const downloadTTL = 5 * time.Minute

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type pendingDownload struct {
	fileName    string
	contentType string
	content     []byte
	expiresAt   time.Time
}

// downloadStore 以一次性令牌保存生成的文件，浏览器无需 bearer 头即可通过普通链接下载
type downloadStore struct {
	mu    sync.Mutex
	items map[string]pendingDownload
	now   func() time.Time
}

func newDownloadStore() *downloadStore {
	return &downloadStore{
		items: make(map[string]pendingDownload),
		now:   time.Now,
	}
}

func (s *downloadStore) put(fileName, contentType string, content []byte, ttl time.Duration) (token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeExpiredLocked(now)

	token = newRandomToken(24)
	expiresAt = now.Add(ttl)
	s.items[token] = pendingDownload{
		fileName:    fileName,
		contentType: contentType,
		content:     content,
		expiresAt:   expiresAt,
	}
	return token, expiresAt
}

// take 返回下载内容并将其移除
func (s *downloadStore) take(token string) (pendingDownload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeExpiredLocked(now)

	v, ok := s.items[token]
	if !ok {
		return pendingDownload{}, false
	}
	delete(s.items, token)
	return v, true
}

func (s *downloadStore) purgeExpiredLocked(now time.Time) {
	for k, v := range s.items {
		if now.After(v.expiresAt) {
			delete(s.items, k)
		}
	}
}

func newRandomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Download 提供 ImportTemplateLink 创建的一次性下载
// GET /api/v1/downloads/:token
func (h *Handler) Download(c *gin.Context) {
	d, ok := h.downloads.take(c.Param("token"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "download link expired or unknown"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+d.fileName+"\"")
	c.Data(http.StatusOK, d.contentType, d.content)
}
