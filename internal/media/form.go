package media

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"videotube-backend/internal/apperror"
)

const (
	MaxImageBytes = 10 << 20
	MaxVideoBytes = 100 << 20

	multipartMemory = 32 << 20
)

type FileRule struct {
	MaxBytes          int64
	ContentTypePrefix string
	Label             string
}

var (
	ImageRule = FileRule{MaxBytes: MaxImageBytes, ContentTypePrefix: "image/", Label: "an image"}
	VideoRule = FileRule{MaxBytes: MaxVideoBytes, ContentTypePrefix: "video/", Label: "a video"}
)

func ParseMultipartForm(r *http.Request) error {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperror.Validation("request body too large")
		}
		return apperror.Validation("invalid multipart form")
	}
	return nil
}

// ReadFormFile returns (nil, nil) when field is absent. The form must already
// be parsed with ParseMultipartForm.
func ReadFormFile(r *http.Request, field string, rule FileRule) (*File, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperror.Validation("invalid " + field + " file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, rule.MaxBytes+1))
	if err != nil {
		return nil, apperror.Validation("failed to read " + field + " file")
	}
	if len(data) == 0 {
		return nil, apperror.Validation(field + " file is empty")
	}
	if int64(len(data)) > rule.MaxBytes {
		return nil, apperror.Validation(field + " file is too large")
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), rule.ContentTypePrefix) {
		return nil, apperror.Validation(field + " must be " + rule.Label)
	}

	return &File{Name: header.Filename, ContentType: contentType, Data: data}, nil
}
