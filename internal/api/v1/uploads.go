package v1

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleetcomply/internal/middleware"
	"fleetcomply/internal/model"
	"fleetcomply/internal/storage"
)

// limitBody 按配置的上传大小限制请求体
func (h *Handler) limitBody(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
}

// formFile 返回字段 name 的上传文件。optional 时缺失文件返回 (nil, nil)，
// 其他问题直接响应请求并返回 ok=false
func (h *Handler) formFile(c *gin.Context, name string, optional bool) (*multipart.FileHeader, bool) {
	fh, err := c.FormFile(name)
	switch {
	case err == nil:
		return fh, true
	case errors.Is(err, http.ErrMissingFile):
		if optional {
			return nil, true
		}
		badRequest(c, "missing file")
		return nil, false
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(c, err)
			return nil, false
		}
		badRequest(c, "invalid multipart body: "+err.Error())
		return nil, false
	}
}

// saveUpload 将文件保存到租户的上传目录
func (h *Handler) saveUpload(c *gin.Context, fh *multipart.FileHeader) (*storage.Stored, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return h.storage.Save(middleware.TenantID(c), fh.Filename, f)
}

func (h *Handler) removeFile(rel string) {
	if err := h.storage.Remove(rel); err != nil {
		h.logger.Warn("remove stored file", zap.String("path", rel), zap.Error(err))
	}
}

// withURLs 填充每个文档的公开 URL
func (h *Handler) withURLs(docs []model.Document) []model.Document {
	for i := range docs {
		docs[i].URL = h.storage.URL(docs[i].FilePath)
	}
	return docs
}

// ServeFile 提供上传根目录下的文档
// GET /api/v1/files/*path
func (h *Handler) ServeFile(c *gin.Context) {
	full, err := h.storage.Path(c.Param("path"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(full)
}
