package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxReceiptSize = 10 << 20

var receiptExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

// UploadReceipt stores a payment receipt under the uploads directory and
// returns the path to reference from a payment submission. Files are named
// by a fresh snowflake so the client-supplied name never reaches disk.
func (s *Server) UploadReceipt(c *gin.Context) {
	if allowed, err := s.limiter.AllowUpload(c.Request.Context(), c.ClientIP()); err != nil {
		s.log.Warn("upload limiter unavailable", zap.Error(err))
	} else if !allowed {
		AbortWithError(c, ErrRateLimited)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}
	if file.Size > maxReceiptSize {
		AbortWithError(c, newValidationError("file", "too_large", "file exceeds 10MB"))
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !receiptExtensions[ext] {
		AbortWithError(c, newValidationError("file", "invalid_type", "file must be jpg, png or pdf"))
		return
	}

	if err := os.MkdirAll(s.cfg.Uploads.Dir, 0o755); err != nil {
		AbortWithError(c, err)
		return
	}

	name := fmt.Sprintf("%s%s", s.genID.Generate(), ext)
	dst := filepath.Join(s.cfg.Uploads.Dir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"receipt_path": dst}})
}
