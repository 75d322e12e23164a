// Package media stores uploaded files with a remote provider and returns the
// public URL to persist.
package media

import (
	"context"
	"path/filepath"
	"strings"
)

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader is implemented by Cloudinary and S3Uploader.
type Uploader interface {
	Upload(ctx context.Context, file File) (string, error)
}

func (f File) extension() string {
	return strings.ToLower(filepath.Ext(f.Name))
}
