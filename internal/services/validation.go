package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aihub/curation-go/internal/config"
	"github.com/aihub/curation-go/internal/errors"
)

// ValidateUploadFile 上传前的同步验证：超限或类型不允许的文件在任何状态
// 变更与存储写入之前被拒绝。
func ValidateUploadFile(cfg config.FileUploadConfig, filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return errors.NewValidationError("filename is required")
	}

	if size <= 0 {
		return errors.NewValidationError("file is empty")
	}
	if size > cfg.MaxSize {
		return errors.NewBusinessError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("file size %d exceeds limit %d", size, cfg.MaxSize))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range cfg.AllowedTypes {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return errors.NewBusinessError(errors.ErrCodeInvalidFileFormat,
		fmt.Sprintf("file type %s is not allowed", ext))
}

// ValidateSourceURL 来源URL的基本格式校验
func ValidateSourceURL(sourceURL string) error {
	if sourceURL == "" {
		return nil
	}
	if !strings.HasPrefix(sourceURL, "http://") && !strings.HasPrefix(sourceURL, "https://") {
		return errors.NewValidationError("source_url must be an http(s) URL")
	}
	return nil
}
