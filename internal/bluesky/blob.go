package bluesky

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackmichael/metro/internal/domain"
)

// UploadBlob uploads raw image bytes as a blob and returns a reference. An
// empty mimeType is sniffed from the data. The blob is garbage collected by
// the PDS unless a record references it soon after.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*domain.BlobRef, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	cl := call{
		nsid:        "com.atproto.repo.uploadBlob",
		method:      http.MethodPost,
		endpoint:    readWriteEndpoint,
		body:        data,
		contentType: mimeType,
	}

	var result uploadBlobResponse
	if err := c.getJSON(ctx, cl, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("blob uploaded", "mime", result.Blob.MimeType, "size", result.Blob.Size)
	return &result.Blob, nil
}

// UploadImageFile reads an image from disk and uploads it.
func (c *Client) UploadImageFile(ctx context.Context, path string) (*domain.BlobRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	mimeType := imageMimeTypes[strings.ToLower(filepath.Ext(path))]
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%s is not an image (%s)", filepath.Base(path), mimeType)
	}
	return c.UploadBlob(ctx, data, mimeType)
}

var imageMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

type uploadBlobResponse struct {
	Blob domain.BlobRef `json:"blob"`
}
